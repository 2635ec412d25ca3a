package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

func TestResolveTimestampFromExif(t *testing.T) {
	store := newMemStore()
	meta := newFakeMetadata()
	meta.setTag("/photos/a.jpg", metadata.TagDateTimeOriginal, "2023:06:15 10:30:00")

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/photos/a.jpg"}}
	require.NoError(t, store.SaveAsset(context.Background(), asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ResolveTimestamp(context.Background(), asset))

	require.NotNil(t, asset.Timestamp)
	assert.Equal(t, time.Date(2023, 6, 15, 10, 30, 0, 0, time.UTC), *asset.Timestamp)

	album, err := store.GetAlbumDate(context.Background(), 1, "2023-06-15")
	require.NoError(t, err)
	require.NotNil(t, album)
	member, err := store.AlbumDateContains(context.Background(), album.ID, "h1")
	require.NoError(t, err)
	assert.True(t, member)
}

func TestResolveTimestampMovesBetweenDateAlbums(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()

	// The asset starts filed under the unknown-date album.
	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/photos/a.jpg"}}
	require.NoError(t, store.SaveAsset(ctx, asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ResolveTimestamp(ctx, asset))

	unknown, err := store.GetAlbumDate(ctx, 1, "")
	require.NoError(t, err)
	require.NotNil(t, unknown)
	member, _ := store.AlbumDateContains(ctx, unknown.ID, "h1")
	assert.True(t, member)

	// A sidecar appears with a real capture time: the asset must move.
	meta.setTag("/photos/a.jpg", metadata.TagDateTimeOriginal, "2020:01:02 08:00:00")
	require.NoError(t, p.ResolveTimestamp(ctx, asset))

	member, _ = store.AlbumDateContains(ctx, unknown.ID, "h1")
	assert.False(t, member, "asset should have left the unknown-date album")

	dated, err := store.GetAlbumDate(ctx, 1, "2020-01-02")
	require.NoError(t, err)
	require.NotNil(t, dated)
	member, _ = store.AlbumDateContains(ctx, dated.ID, "h1")
	assert.True(t, member)
}

func TestResolveTimestampQuickTimeZoneCorrection(t *testing.T) {
	store := newMemStore()
	meta := newFakeMetadata()
	// QuickTime records UTC; midnight-thirty UTC is the prior evening
	// in New York.
	meta.setTag("/videos/v.mp4", metadata.TagQuickTimeCreateDate, "2022:01:01 00:30:00")

	asset := &models.Asset{
		Hash:        "v1",
		OwnerID:     1,
		SourcePaths: []string{"/videos/v.mp4"},
		Video:       true,
		GPSLat:      floatPtr(40.71),
		GPSLon:      floatPtr(-74.0),
	}
	require.NoError(t, store.SaveAsset(context.Background(), asset))

	p := New(Config{
		Store:     store,
		Artifacts: newMemArtifacts(),
		Metadata:  meta,
		Timezone:  &fakeTimezone{zone: "America/New_York"},
	})
	require.NoError(t, p.ResolveTimestamp(context.Background(), asset))

	require.NotNil(t, asset.Timestamp)
	assert.Equal(t, time.Date(2021, 12, 31, 19, 30, 0, 0, time.UTC), *asset.Timestamp)

	album, err := store.GetAlbumDate(context.Background(), 1, "2021-12-31")
	require.NoError(t, err)
	require.NotNil(t, album)
}

func TestResolveTimestampQuickTimeWithoutCoordinates(t *testing.T) {
	store := newMemStore()
	meta := newFakeMetadata()
	meta.setTag("/videos/v.mp4", metadata.TagQuickTimeCreateDate, "2022:01:01 00:30:00")

	asset := &models.Asset{Hash: "v1", OwnerID: 1, SourcePaths: []string{"/videos/v.mp4"}, Video: true}
	require.NoError(t, store.SaveAsset(context.Background(), asset))

	p := New(Config{
		Store:     store,
		Artifacts: newMemArtifacts(),
		Metadata:  meta,
		Timezone:  &fakeTimezone{zone: "America/New_York"},
	})
	require.NoError(t, p.ResolveTimestamp(context.Background(), asset))

	require.NotNil(t, asset.Timestamp)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 30, 0, 0, time.UTC), *asset.Timestamp,
		"without coordinates the instant must be kept as recorded")

	album, err := store.GetAlbumDate(context.Background(), 1, "2022-01-01")
	require.NoError(t, err)
	require.NotNil(t, album)
	member, err := store.AlbumDateContains(context.Background(), album.ID, "v1")
	require.NoError(t, err)
	assert.True(t, member, "uncorrected video files under its UTC date")
}

func TestResolveTimestampExifWinsOverQuickTime(t *testing.T) {
	store := newMemStore()
	meta := newFakeMetadata()
	meta.setTag("/photos/a.jpg", metadata.TagDateTimeOriginal, "2023:06:15 10:30:00")
	meta.setTag("/photos/a.jpg", metadata.TagQuickTimeCreateDate, "2024:01:01 00:00:00")

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/photos/a.jpg"}}
	require.NoError(t, store.SaveAsset(context.Background(), asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ResolveTimestamp(context.Background(), asset))

	require.NotNil(t, asset.Timestamp)
	assert.Equal(t, 2023, asset.Timestamp.Year())
}

func TestResolveTimestampMetadataFailureKeepsValue(t *testing.T) {
	store := newMemStore()
	meta := newFakeMetadata()
	meta.errs["/photos/a.jpg"] = assert.AnError

	prior := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)
	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/photos/a.jpg"}, Timestamp: &prior}
	require.NoError(t, store.SaveAsset(context.Background(), asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ResolveTimestamp(context.Background(), asset))

	require.NotNil(t, asset.Timestamp)
	assert.Equal(t, prior, *asset.Timestamp)
}
