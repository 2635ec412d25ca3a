package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

// exifTimeLayout is the colon-separated date form EXIF writers emit.
const exifTimeLayout = "2006:01:02 15:04:05"

// ResolveTimestamp extracts the capture time from metadata and moves
// the asset between the date albums keyed by it. The album swap is
// committed before the asset record so a crash in between leaves the
// memberships consistent with the new timestamp.
func (p *Pipeline) ResolveTimestamp(ctx context.Context, asset *models.Asset) error {
	parsed := p.extractTimestamp(ctx, asset)

	oldKey := timestampKey(asset.Timestamp)
	newKey := timestampKey(parsed)

	if oldKey != newKey {
		old, err := p.store.GetAlbumDate(ctx, asset.OwnerID, oldKey)
		if err != nil {
			return fmt.Errorf("load previous date album: %w", err)
		}
		if old != nil {
			if err := p.store.RemoveFromAlbumDate(ctx, old.ID, asset.Hash); err != nil {
				return fmt.Errorf("leave date album %q: %w", oldKey, err)
			}
		}
	}

	album, err := p.store.GetOrCreateAlbumDate(ctx, asset.OwnerID, newKey)
	if err != nil {
		return fmt.Errorf("resolve date album %q: %w", newKey, err)
	}
	if err := p.store.AddToAlbumDate(ctx, album.ID, asset.Hash); err != nil {
		return fmt.Errorf("join date album %q: %w", newKey, err)
	}

	asset.Timestamp = parsed
	if err := p.persistAsset(ctx, asset, true); err != nil {
		return err
	}
	p.cache.InvalidateAll(ctx)
	return nil
}

// extractTimestamp reads the capture time tags. Metadata failures
// yield a nil timestamp, which files the asset under the unknown-date
// album rather than failing the job.
func (p *Pipeline) extractTimestamp(ctx context.Context, asset *models.Asset) *time.Time {
	values, err := p.meta.ReadTags(ctx, asset.CanonicalPath(),
		[]string{metadata.TagDateTimeOriginal, metadata.TagQuickTimeCreateDate}, true)
	if err != nil {
		slog.Warn("read capture time", "hash", asset.Hash, "error", err)
		return asset.Timestamp
	}

	if values[0] != nil {
		if ts, err := time.ParseInLocation(exifTimeLayout, *values[0], time.UTC); err == nil {
			return &ts
		}
	}

	if values[1] != nil {
		if ts, err := time.ParseInLocation(exifTimeLayout, *values[1], time.UTC); err == nil {
			corrected := p.correctQuickTimeZone(ts, asset)
			return &corrected
		}
	}

	return nil
}

// correctQuickTimeZone rewrites a QuickTime UTC instant as the local
// wall-clock time at the capture location, re-tagged as UTC. QuickTime
// records UTC while EXIF records local time; storing the local wall
// clock keeps both families comparable. Without known coordinates the
// instant is kept as is.
func (p *Pipeline) correctQuickTimeZone(ts time.Time, asset *models.Asset) time.Time {
	if p.tz == nil || asset.GPSLat == nil || asset.GPSLon == nil {
		return ts
	}
	zone := p.tz.TimezoneAt(*asset.GPSLat, *asset.GPSLon)
	if zone == "" {
		return ts
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		slog.Warn("load capture timezone", "zone", zone, "error", err)
		return ts
	}
	local := ts.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}

// timestampKey maps a capture time to its date-album key; assets with
// no timestamp share the empty key.
func timestampKey(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format(models.DateLayout)
}
