package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

// persistAsset saves the asset after diffing it against the stored
// snapshot. When export is set and the rating changed, the new value is
// written back to the source file per the owner's export preference
// before the record is saved.
func (p *Pipeline) persistAsset(ctx context.Context, asset *models.Asset, export bool) error {
	if export {
		prev, err := p.store.GetAsset(ctx, asset.Hash)
		if err != nil {
			return fmt.Errorf("load asset snapshot: %w", err)
		}
		if fieldChanged(ChangedFields(prev, asset), "rating") {
			p.exportRating(ctx, asset)
		}
	}
	if err := p.store.SaveAsset(ctx, asset); err != nil {
		return fmt.Errorf("save asset %s: %w", asset.Hash, err)
	}
	return nil
}

// exportRating pushes the rating into the file or its sidecar. Failures
// are logged: the database stays authoritative either way.
func (p *Pipeline) exportRating(ctx context.Context, asset *models.Asset) {
	user, err := p.store.GetUser(ctx, asset.OwnerID)
	if err != nil || user == nil {
		slog.Warn("load owner for metadata export", "hash", asset.Hash, "error", err)
		return
	}
	if user.SaveMetadataToDisk == models.MetadataExportOff {
		return
	}
	useSidecar := user.SaveMetadataToDisk == models.MetadataExportSidecar
	tags := map[string]string{metadata.TagRating: strconv.Itoa(asset.Rating)}
	if err := p.meta.WriteTags(ctx, asset.CanonicalPath(), tags, useSidecar); err != nil {
		slog.Warn("export rating to file", "hash", asset.Hash, "error", err)
	}
}

// ChangedFields compares the stored snapshot against the in-memory
// asset and returns the names of differing fields. A nil snapshot means
// a new record: every populated field counts as changed.
func ChangedFields(prev, cur *models.Asset) []string {
	if prev == nil {
		prev = &models.Asset{Hash: cur.Hash, OwnerID: cur.OwnerID}
	}

	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	add("source_paths", !equalStrings(prev.SourcePaths, cur.SourcePaths))
	add("thumbnail_big", prev.ThumbnailBig != cur.ThumbnailBig)
	add("square_thumbnail", prev.SquareThumbnail != cur.SquareThumbnail)
	add("square_thumbnail_small", prev.SquareThumbnailSmall != cur.SquareThumbnailSmall)
	add("aspect_ratio", !equalFloatPtr(prev.AspectRatio, cur.AspectRatio))
	add("timestamp", !equalTimePtr(prev.Timestamp, cur.Timestamp))
	add("gps_lat", !equalFloatPtr(prev.GPSLat, cur.GPSLat))
	add("gps_lon", !equalFloatPtr(prev.GPSLon, cur.GPSLon))
	add("geolocation", !equalJSON(prev.Geolocation, cur.Geolocation))
	add("captions", !equalJSON(prev.Captions, cur.Captions))
	add("dominant_color", !equalColorPtr(prev.DominantColor, cur.DominantColor))
	add("search_captions", prev.SearchCaptions != cur.SearchCaptions)
	add("search_location", prev.SearchLocation != cur.SearchLocation)
	add("rating", prev.Rating != cur.Rating)
	add("hidden", prev.Hidden != cur.Hidden)
	add("video", prev.Video != cur.Video)
	add("public", prev.Public != cur.Public)
	add("embedding", !equalFloats(prev.Embedding, cur.Embedding))

	return changed
}

func fieldChanged(changed []string, name string) bool {
	return containsString(changed, name)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloats(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalColorPtr(a, b *models.RGB) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalJSON(a, b interface{}) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) == string(jb)
}
