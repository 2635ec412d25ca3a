package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/models"
)

func TestDeleteWithFilesRemovesRecordAndArtifacts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	artifacts := newMemArtifacts()

	asset := &models.Asset{
		Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"},
		ThumbnailBig:         "thumbnails_big/h1.webp",
		SquareThumbnail:      "square_thumbnails/h1.webp",
		SquareThumbnailSmall: "square_thumbnails_small/h1.webp",
	}
	require.NoError(t, store.SaveAsset(ctx, asset))
	for _, key := range []string{asset.ThumbnailBig, asset.SquareThumbnail, asset.SquareThumbnailSmall} {
		require.NoError(t, artifacts.Write(ctx, key, []byte("x"), "image/webp"))
	}

	unknown, err := store.GetOrCreatePerson(ctx, 1, models.UnknownPersonName)
	require.NoError(t, err)
	require.NoError(t, store.CreateFace(ctx, &models.Face{
		AssetHash: "h1", PersonID: unknown.ID, CropKey: "faces/h1_0.jpg",
	}, nil))
	require.NoError(t, artifacts.Write(ctx, "faces/h1_0.jpg", []byte("x"), "image/jpeg"))

	p := New(Config{Store: store, Artifacts: artifacts, Metadata: newFakeMetadata()})
	require.NoError(t, p.DeleteWithFiles(ctx, "h1"))

	stored, err := store.GetAsset(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, artifacts.objects)
}

func TestDeleteWithFilesUnknownHashIsNoop(t *testing.T) {
	p := New(Config{Store: newMemStore(), Artifacts: newMemArtifacts(), Metadata: newFakeMetadata()})
	assert.NoError(t, p.DeleteWithFiles(context.Background(), "missing"))
}

func TestPruneMissingPathsDropsDeadPaths(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	dir := t.TempDir()
	alive := filepath.Join(dir, "alive.jpg")
	require.NoError(t, os.WriteFile(alive, []byte("x"), 0o644))

	asset := &models.Asset{
		Hash: "h1", OwnerID: 1,
		SourcePaths: []string{filepath.Join(dir, "gone.jpg"), alive},
	}
	require.NoError(t, store.SaveAsset(ctx, asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: newFakeMetadata()})
	require.NoError(t, p.PruneMissingPaths(ctx, asset))

	assert.Equal(t, []string{alive}, asset.SourcePaths)
	stored, _ := store.GetAsset(ctx, "h1")
	assert.Equal(t, []string{alive}, stored.SourcePaths)
}

func TestPruneMissingPathsDeletesOrphanedAsset(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	artifacts := newMemArtifacts()

	asset := &models.Asset{
		Hash: "h1", OwnerID: 1,
		SourcePaths:  []string{filepath.Join(t.TempDir(), "gone.jpg")},
		ThumbnailBig: "thumbnails_big/h1.webp",
	}
	require.NoError(t, store.SaveAsset(ctx, asset))
	require.NoError(t, artifacts.Write(ctx, asset.ThumbnailBig, []byte("x"), "image/webp"))

	p := New(Config{Store: store, Artifacts: artifacts, Metadata: newFakeMetadata()})
	require.NoError(t, p.PruneMissingPaths(ctx, asset))

	stored, _ := store.GetAsset(ctx, "h1")
	assert.Nil(t, stored)
	assert.Empty(t, artifacts.objects)
}
