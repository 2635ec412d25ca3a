package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"unicode"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

// Geolocate reverse-geocodes the asset's GPS coordinates into place
// albums. When coordinates and places are already settled the stage is
// a no-op; when coordinates changed the asset's place memberships are
// swapped wholesale to the fresh result.
func (p *Pipeline) Geolocate(ctx context.Context, asset *models.Asset) error {
	lat, lon, ok := p.readCoordinates(ctx, asset)
	if !ok {
		return nil
	}

	oldPlaces, err := p.store.AlbumPlacesForAsset(ctx, asset.OwnerID, asset.Hash)
	if err != nil {
		return fmt.Errorf("load place memberships: %w", err)
	}

	if asset.GPSLat != nil && *asset.GPSLat == lat &&
		asset.GPSLon != nil && *asset.GPSLon == lon &&
		len(oldPlaces) != 0 && asset.Geolocation != nil {
		return nil
	}

	// Coordinates are persisted before geocoding so a provider outage
	// still leaves them queryable; the next delivery retries the rest.
	asset.GPSLat = &lat
	asset.GPSLon = &lon
	if err := p.persistAsset(ctx, asset, true); err != nil {
		return err
	}

	if p.geocoder == nil {
		return nil
	}
	result, err := p.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		slog.Error("reverse geocode", "hash", asset.Hash, "lat", lat, "lon", lon, "error", err)
		return nil
	}
	if result == nil || len(result.Features) == 0 {
		return nil
	}

	asset.Geolocation = result
	if result.SearchText != "" {
		if asset.SearchLocation != "" {
			asset.SearchLocation += " " + result.SearchText
		} else {
			asset.SearchLocation = result.SearchText
		}
	}

	for _, old := range oldPlaces {
		if err := p.store.RemoveFromAlbumPlace(ctx, old.ID, asset.Hash); err != nil {
			return fmt.Errorf("leave place album %q: %w", old.Title, err)
		}
	}

	// Feature order is finest to coarsest; the level counts up toward
	// the coarsest so countries rank above streets.
	for i, feature := range result.Features {
		if feature.Text == "" || isNumeric(feature.Text) {
			continue
		}
		album, err := p.store.GetOrCreateAlbumPlace(ctx, asset.OwnerID, feature.Text)
		if err != nil {
			return fmt.Errorf("resolve place album %q: %w", feature.Text, err)
		}
		contained, err := p.store.AlbumPlaceContains(ctx, album.ID, asset.Hash)
		if err != nil {
			return fmt.Errorf("check place album %q: %w", feature.Text, err)
		}
		if !contained {
			album.GeolocationLevel = len(result.Features) - i
			if err := p.store.SaveAlbumPlace(ctx, album); err != nil {
				return fmt.Errorf("save place album %q: %w", feature.Text, err)
			}
		}
		if err := p.store.AddToAlbumPlace(ctx, album.ID, asset.Hash); err != nil {
			return fmt.Errorf("join place album %q: %w", feature.Text, err)
		}
	}

	if err := p.annotateDateAlbum(ctx, asset, result); err != nil {
		slog.Warn("annotate date album location", "hash", asset.Hash, "error", err)
	}

	if err := p.persistAsset(ctx, asset, true); err != nil {
		return err
	}
	p.cache.InvalidateAll(ctx)
	return nil
}

// readCoordinates pulls GPS tags from metadata. Absent or malformed
// tags end the stage quietly.
func (p *Pipeline) readCoordinates(ctx context.Context, asset *models.Asset) (float64, float64, bool) {
	values, err := p.meta.ReadTags(ctx, asset.CanonicalPath(),
		[]string{metadata.TagLatitude, metadata.TagLongitude}, true)
	if err != nil {
		slog.Warn("read gps tags", "hash", asset.Hash, "error", err)
		return 0, 0, false
	}
	if values[0] == nil || values[1] == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(*values[0], 64)
	if err != nil {
		slog.Warn("parse latitude", "hash", asset.Hash, "value", *values[0])
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(*values[1], 64)
	if err != nil {
		slog.Warn("parse longitude", "hash", asset.Hash, "value", *values[1])
		return 0, 0, false
	}
	return lat, lon, true
}

// annotateDateAlbum records the asset's city on the date album it
// belongs to, so day headers can show where the day happened.
func (p *Pipeline) annotateDateAlbum(ctx context.Context, asset *models.Asset, geo *models.Geolocation) error {
	city := cityFeature(geo)
	if city == "" {
		return nil
	}
	album, err := p.store.GetAlbumDate(ctx, asset.OwnerID, timestampKey(asset.Timestamp))
	if err != nil || album == nil {
		return err
	}
	if album.Location == nil {
		album.Location = &models.AlbumLocation{}
	}
	if containsString(album.Location.Places, city) {
		return nil
	}
	album.Location.Places = append(album.Location.Places, city)
	return p.store.SaveAlbumDate(ctx, album)
}

// cityFeature picks the city-granularity feature: the first non-numeric
// entry between the finest and the coarsest.
func cityFeature(geo *models.Geolocation) string {
	if len(geo.Features) < 3 {
		return ""
	}
	for _, f := range geo.Features[1 : len(geo.Features)-1] {
		if f.Text != "" && !isNumeric(f.Text) {
			return f.Text
		}
	}
	return ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
