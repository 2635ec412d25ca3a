package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os/exec"
	"strconv"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/observability"
)

const (
	bigThumbnailHeight = 1080
	squareSize         = 500
	squareSmallSize    = 250
	webpQuality        = 85
)

// SynthesizeThumbnails produces the three derived representations:
// a large webp (video: still cover), a 500px square and a 250px square
// (video: short animated mp4 clips). Existing artifacts are kept, so a
// redelivered job only fills the gaps.
func (p *Pipeline) SynthesizeThumbnails(ctx context.Context, asset *models.Asset) error {
	path := asset.CanonicalPath()
	if path == "" {
		return fmt.Errorf("asset %s has no source path", asset.Hash)
	}

	bigKey := artifactKey(models.VariantBig, asset.Hash, ".webp")
	squareKey := artifactKey(models.VariantSquare, asset.Hash, asset.ThumbnailExt())
	smallKey := artifactKey(models.VariantSquareSmall, asset.Hash, asset.ThumbnailExt())

	// Source decode is deferred until a static variant is actually missing.
	var source image.Image
	loadSource := func() (image.Image, error) {
		if source != nil {
			return source, nil
		}
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("open source %s: %w", path, err)
		}
		source = img
		return source, nil
	}

	if err := p.ensureArtifact(ctx, bigKey, models.VariantBig, func() ([]byte, string, error) {
		if asset.Video {
			data, err := p.videoCover(ctx, path)
			return data, "image/webp", err
		}
		img, err := loadSource()
		if err != nil {
			return nil, "", err
		}
		data, err := encodeWebp(imaging.Resize(img, 0, bigThumbnailHeight, imaging.Lanczos))
		return data, "image/webp", err
	}); err != nil {
		return err
	}

	for _, variant := range []struct {
		key  string
		name string
		size int
	}{
		{squareKey, models.VariantSquare, squareSize},
		{smallKey, models.VariantSquareSmall, squareSmallSize},
	} {
		variant := variant
		if err := p.ensureArtifact(ctx, variant.key, variant.name, func() ([]byte, string, error) {
			if asset.Video {
				data, err := p.animatedSquare(ctx, path, variant.size)
				return data, "video/mp4", err
			}
			img, err := loadSource()
			if err != nil {
				return nil, "", err
			}
			data, err := encodeWebp(imaging.Fill(img, variant.size, variant.size, imaging.Center, imaging.Lanczos))
			return data, "image/webp", err
		}); err != nil {
			return err
		}
	}

	asset.ThumbnailBig = bigKey
	asset.SquareThumbnail = squareKey
	asset.SquareThumbnailSmall = smallKey

	if asset.AspectRatio == nil {
		if err := p.deriveAspectRatio(ctx, asset); err != nil {
			slog.Warn("derive aspect ratio", "hash", asset.Hash, "error", err)
		}
	}

	return p.persistAsset(ctx, asset, true)
}

// ensureArtifact writes the artifact unless it already exists.
func (p *Pipeline) ensureArtifact(ctx context.Context, key, variant string, synth func() ([]byte, string, error)) error {
	exists, err := p.artifacts.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check artifact %s: %w", key, err)
	}
	if exists {
		return nil
	}
	data, contentType, err := synth()
	if err != nil {
		return err
	}
	if err := p.artifacts.Write(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("write artifact %s: %w", key, err)
	}
	observability.ThumbnailsGenerated.WithLabelValues(variant).Inc()
	return nil
}

// deriveAspectRatio measures the large thumbnail, which already carries
// the display orientation.
func (p *Pipeline) deriveAspectRatio(ctx context.Context, asset *models.Asset) error {
	_, img, err := p.readThumbnail(ctx, asset)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dy() == 0 {
		return fmt.Errorf("thumbnail %s has zero height", asset.ThumbnailBig)
	}
	ratio := math.Round(float64(b.Dx())/float64(b.Dy())*100) / 100
	asset.AspectRatio = &ratio
	return nil
}

// videoCover extracts the first frame as a webp still scaled to the
// large thumbnail height.
func (p *Pipeline) videoCover(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=-2:%d", bigThumbnailHeight),
		"-f", "webp",
		"pipe:1",
	}
	return p.runFFmpeg(ctx, args)
}

// animatedSquare clips the first seconds of the video into a muted
// center-cropped square mp4.
func (p *Pipeline) animatedSquare(ctx context.Context, path string, size int) ([]byte, error) {
	crop := fmt.Sprintf("crop='min(iw,ih)':'min(iw,ih)',scale=%d:%d", size, size)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", "0",
		"-t", strconv.Itoa(p.animatedLength),
		"-i", path,
		"-vf", crop,
		"-an",
		"-movflags", "frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	}
	return p.runFFmpeg(ctx, args)
}

func (p *Pipeline) runFFmpeg(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func encodeWebp(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
