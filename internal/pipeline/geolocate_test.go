package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

func geoAsset(store *memStore, path string) *models.Asset {
	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{path}}
	_ = store.SaveAsset(context.Background(), asset)
	return asset
}

func setGPS(meta *fakeMetadata, path, lat, lon string) {
	meta.setTag(path, metadata.TagLatitude, lat)
	meta.setTag(path, metadata.TagLongitude, lon)
}

func TestGeolocateAssignsPlaceLevels(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/paris.jpg", "48.8584", "2.2945")

	geocoder := &fakeGeocoder{result: &models.Geolocation{
		Features: []models.PlaceFeature{
			{Text: "Eiffel Tower"},
			{Text: "Paris"},
			{Text: "France"},
		},
		SearchText: "Eiffel Tower Paris France",
	}}

	asset := geoAsset(store, "/photos/paris.jpg")
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	require.NotNil(t, asset.GPSLat)
	assert.InDelta(t, 48.8584, *asset.GPSLat, 1e-9)
	assert.Equal(t, "Eiffel Tower Paris France", asset.SearchLocation)

	// Finest feature carries the highest level.
	for _, want := range []struct {
		title string
		level int
	}{
		{"Eiffel Tower", 3},
		{"Paris", 2},
		{"France", 1},
	} {
		album, err := store.GetOrCreateAlbumPlace(ctx, 1, want.title)
		require.NoError(t, err)
		assert.Equal(t, want.level, album.GeolocationLevel, want.title)
		member, _ := store.AlbumPlaceContains(ctx, album.ID, "h1")
		assert.True(t, member, want.title)
	}
}

func TestGeolocateSwapsMembershipsOnNewResult(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/a.jpg", "1.0", "2.0")

	asset := geoAsset(store, "/photos/a.jpg")

	// Previously geocoded into A and B.
	for _, title := range []string{"A", "B"} {
		album, err := store.GetOrCreateAlbumPlace(ctx, 1, title)
		require.NoError(t, err)
		require.NoError(t, store.AddToAlbumPlace(ctx, album.ID, "h1"))
	}

	geocoder := &fakeGeocoder{result: &models.Geolocation{
		Features: []models.PlaceFeature{{Text: "B"}, {Text: "C"}},
	}}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	titles := map[string]bool{}
	places, err := store.AlbumPlacesForAsset(ctx, 1, "h1")
	require.NoError(t, err)
	for _, a := range places {
		titles[a.Title] = true
	}
	assert.Equal(t, map[string]bool{"B": true, "C": true}, titles)
}

func TestGeolocateSkipsWhenSettled(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/a.jpg", "1.0", "2.0")

	asset := geoAsset(store, "/photos/a.jpg")
	asset.GPSLat = floatPtr(1.0)
	asset.GPSLon = floatPtr(2.0)
	asset.Geolocation = &models.Geolocation{Features: []models.PlaceFeature{{Text: "A"}}}

	album, err := store.GetOrCreateAlbumPlace(ctx, 1, "A")
	require.NoError(t, err)
	require.NoError(t, store.AddToAlbumPlace(ctx, album.ID, "h1"))

	geocoder := &fakeGeocoder{result: &models.Geolocation{Features: []models.PlaceFeature{{Text: "A"}}}}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	assert.Zero(t, geocoder.calls, "settled asset must not hit the geocoder")
}

func TestGeolocateKeepsCoordinatesWhenGeocoderFails(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/a.jpg", "1.5", "2.5")

	asset := geoAsset(store, "/photos/a.jpg")
	geocoder := &fakeGeocoder{err: assert.AnError}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	stored, err := store.GetAsset(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, stored.GPSLat)
	assert.InDelta(t, 1.5, *stored.GPSLat, 1e-9)
	assert.Nil(t, stored.Geolocation)
}

func TestGeolocateSkipsNumericFeatures(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/a.jpg", "1.0", "2.0")

	asset := geoAsset(store, "/photos/a.jpg")
	geocoder := &fakeGeocoder{result: &models.Geolocation{
		Features: []models.PlaceFeature{{Text: "12345"}, {Text: "Springfield"}},
	}}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	places, err := store.AlbumPlacesForAsset(ctx, 1, "h1")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Springfield", places[0].Title)
}

func TestGeolocateWithoutTagsIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	asset := geoAsset(store, "/photos/a.jpg")

	geocoder := &fakeGeocoder{}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: newFakeMetadata(), Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	assert.Zero(t, geocoder.calls)
	assert.Nil(t, asset.GPSLat)
}

func TestGeolocateAnnotatesDateAlbum(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	setGPS(meta, "/photos/a.jpg", "48.85", "2.29")

	asset := geoAsset(store, "/photos/a.jpg")
	ts := timeMustParse(t, "2023-06-15")
	asset.Timestamp = &ts
	require.NoError(t, store.SaveAsset(ctx, asset))

	album, err := store.GetOrCreateAlbumDate(ctx, 1, "2023-06-15")
	require.NoError(t, err)
	require.NoError(t, store.AddToAlbumDate(ctx, album.ID, "h1"))

	geocoder := &fakeGeocoder{result: &models.Geolocation{
		Features: []models.PlaceFeature{{Text: "Eiffel Tower"}, {Text: "Paris"}, {Text: "France"}},
	}}
	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta, Geocoder: geocoder})
	require.NoError(t, p.Geolocate(ctx, asset))

	updated, err := store.GetAlbumDate(ctx, 1, "2023-06-15")
	require.NoError(t, err)
	require.NotNil(t, updated.Location)
	assert.Equal(t, []string{"Paris"}, updated.Location.Places)
}
