package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

func TestExtractRatingImportsTag(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.users[1] = &models.User{ID: 1, SaveMetadataToDisk: models.MetadataExportMediaFile}
	meta := newFakeMetadata()
	meta.setTag("/p/a.jpg", metadata.TagRating, "4")

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"}}
	require.NoError(t, store.SaveAsset(ctx, asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ExtractRating(ctx, asset))

	assert.Equal(t, 4, asset.Rating)
	stored, _ := store.GetAsset(ctx, "h1")
	assert.Equal(t, 4, stored.Rating)

	// An import must never echo the rating back into the file, even
	// when the owner has write-back enabled.
	assert.Empty(t, meta.writes)
}

func TestExtractRatingMissingTagKeepsValue(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"}, Rating: 3}
	require.NoError(t, store.SaveAsset(ctx, asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: newFakeMetadata()})
	require.NoError(t, p.ExtractRating(ctx, asset))
	assert.Equal(t, 3, asset.Rating)
}

func TestExtractRatingMalformedTagKeepsValue(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	meta := newFakeMetadata()
	meta.setTag("/p/a.jpg", metadata.TagRating, "five")

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"}, Rating: 2}
	require.NoError(t, store.SaveAsset(ctx, asset))

	p := New(Config{Store: store, Artifacts: newMemArtifacts(), Metadata: meta})
	require.NoError(t, p.ExtractRating(ctx, asset))
	assert.Equal(t, 2, asset.Rating)
}
