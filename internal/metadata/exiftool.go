package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Tag names queried through exiftool. The group prefix matches exiftool's
// -G output keys.
const (
	TagDateTimeOriginal    = "EXIF:DateTimeOriginal"
	TagQuickTimeCreateDate = "QuickTime:CreateDate"
	TagLatitude            = "Composite:GPSLatitude"
	TagLongitude           = "Composite:GPSLongitude"
	TagRating              = "XMP:Rating"
	TagImageHeight         = "File:ImageHeight"
	TagImageWidth          = "File:ImageWidth"
)

// Reader is the tag-query contract the pipeline consumes. Results are
// positional: index i holds the value for tags[i], nil when absent.
type Reader interface {
	ReadTags(ctx context.Context, path string, tags []string, trySidecar bool) ([]*string, error)
	WriteTags(ctx context.Context, path string, tags map[string]string, useSidecar bool) error
}

// Exiftool reads and writes file metadata by shelling out to exiftool.
type Exiftool struct {
	binary string
}

func NewExiftool(binary string) *Exiftool {
	if binary == "" {
		binary = "exiftool"
	}
	return &Exiftool{binary: binary}
}

// SidecarPath is the XMP sidecar location for a media file.
func SidecarPath(path string) string {
	return path + ".xmp"
}

// ReadTags queries the given tags. With trySidecar, the XMP sidecar is
// consulted first and the original file fills in whatever the sidecar
// does not carry.
func (e *Exiftool) ReadTags(ctx context.Context, path string, tags []string, trySidecar bool) ([]*string, error) {
	values := make([]*string, len(tags))

	if trySidecar {
		sidecar := SidecarPath(path)
		if _, err := os.Stat(sidecar); err == nil {
			sidecarValues, err := e.readFile(ctx, sidecar, tags)
			if err == nil {
				copy(values, sidecarValues)
			}
		}
	}

	missing := false
	for _, v := range values {
		if v == nil {
			missing = true
			break
		}
	}
	if !missing {
		return values, nil
	}

	fileValues, err := e.readFile(ctx, path, tags)
	if err != nil {
		return nil, err
	}
	for i := range values {
		if values[i] == nil {
			values[i] = fileValues[i]
		}
	}
	return values, nil
}

// WriteTags writes tag values either in place or to the XMP sidecar.
func (e *Exiftool) WriteTags(ctx context.Context, path string, tags map[string]string, useSidecar bool) error {
	target := path
	args := []string{"-overwrite_original", "-n"}
	if useSidecar {
		sidecar := SidecarPath(path)
		if _, err := os.Stat(sidecar); os.IsNotExist(err) {
			// exiftool creates the sidecar from the source file with -o
			args = []string{"-n", "-o", sidecar}
		} else {
			target = sidecar
		}
	}
	for tag, value := range tags {
		args = append(args, fmt.Sprintf("-%s=%s", stripGroup(tag), value))
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exiftool write %s: %w (%s)", target, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e *Exiftool) readFile(ctx context.Context, path string, tags []string) ([]*string, error) {
	args := []string{"-j", "-G", "-n"}
	for _, tag := range tags {
		args = append(args, "-"+tag)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("exiftool read %s: %w (%s)", path, err, strings.TrimSpace(stderr.String()))
	}

	var records []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &records); err != nil {
		return nil, fmt.Errorf("parse exiftool output for %s: %w", path, err)
	}

	values := make([]*string, len(tags))
	if len(records) == 0 {
		return values, nil
	}
	record := records[0]

	for i, tag := range tags {
		if raw, ok := record[tag]; ok {
			values[i] = stringify(raw)
			continue
		}
		// Sidecar files report tags under the XMP group regardless of the
		// group the caller asked for.
		suffix := stripGroup(tag)
		for key, raw := range record {
			if stripGroup(key) == suffix {
				values[i] = stringify(raw)
				break
			}
		}
	}
	return values, nil
}

func stripGroup(tag string) string {
	if idx := strings.LastIndex(tag, ":"); idx >= 0 {
		return tag[idx+1:]
	}
	return tag
}

func stringify(raw any) *string {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		// exiftool -n emits numerics; trim the trailing zeros of integers
		if v == float64(int64(v)) {
			s = fmt.Sprintf("%d", int64(v))
		} else {
			s = fmt.Sprintf("%g", v)
		}
	default:
		s = fmt.Sprintf("%v", v)
	}
	return &s
}
