package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/models"
)

func captionAsset(t *testing.T, store *memStore, artifacts *memArtifacts) *models.Asset {
	t.Helper()
	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"}}
	require.NoError(t, store.SaveAsset(context.Background(), asset))
	thumbnailFixture(t, artifacts, asset, 100, 100)
	return asset
}

func testUser() *models.User {
	return &models.User{ID: 1, Username: "admin", Confidence: 0.5}
}

func TestGenerateCaptionsSceneJoinsWithCommas(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	asset := captionAsset(t, store, artifacts)

	p := New(Config{
		Store:     store,
		Artifacts: artifacts,
		Metadata:  newFakeMetadata(),
		Classifier: &fakeClassifier{scene: &models.SceneCaption{
			Categories:  []string{"beach", "coast"},
			Attributes:  []string{"sunny"},
			Environment: "outdoor",
		}},
	})
	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))

	require.NotNil(t, asset.Captions.Places365)
	assert.Equal(t, "beach , coast , outdoor", asset.SearchCaptions)
}

func TestGenerateCaptionsAttributesStayOutOfSearchText(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	asset := captionAsset(t, store, artifacts)

	p := New(Config{
		Store:     store,
		Artifacts: artifacts,
		Metadata:  newFakeMetadata(),
		Classifier: &fakeClassifier{scene: &models.SceneCaption{
			Categories:  []string{"beach"},
			Attributes:  []string{"sunny"},
			Environment: "outdoor",
		}},
	})
	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))

	assert.Equal(t, "beach , outdoor", asset.SearchCaptions)
	assert.NotContains(t, asset.SearchCaptions, "sunny",
		"attributes belong to the thing albums, not the search text")
	assert.Equal(t, []string{"sunny"}, asset.Captions.Places365.Attributes)
}

func TestGenerateCaptionsProseAppendsWithoutSeparator(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	asset := captionAsset(t, store, artifacts)
	asset.SearchCaptions = "beach , outdoor"

	p := New(Config{
		Store:     store,
		Artifacts: artifacts,
		Metadata:  newFakeMetadata(),
		Captioner: &fakeCaptioner{caption: "<start> A Dog On The Beach <end>"},
	})
	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))

	assert.Equal(t, "a dog on the beach", asset.Captions.Im2txt)
	assert.Equal(t, "beach , outdoora dog on the beach", asset.SearchCaptions)
}

func TestGenerateCaptionsEmbeddingAtMostOnce(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	asset := captionAsset(t, store, artifacts)

	embedder := &fakeEmbedder{vector: []float32{0.5, 0.5}, magnitude: 0.707}
	p := New(Config{Store: store, Artifacts: artifacts, Metadata: newFakeMetadata(), Embedder: embedder})

	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))
	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))

	assert.Equal(t, 1, embedder.calls, "embedding must not be recomputed")
	assert.Equal(t, []float32{0.5, 0.5}, asset.Embedding)
	require.NotNil(t, asset.EmbeddingMagnitude)
	assert.InDelta(t, 0.707, float64(*asset.EmbeddingMagnitude), 1e-6)
}

func TestGenerateCaptionsSceneFailureKeepsOthersRunning(t *testing.T) {
	store := newMemStore()
	artifacts := newMemArtifacts()
	asset := captionAsset(t, store, artifacts)

	p := New(Config{
		Store:      store,
		Artifacts:  artifacts,
		Metadata:   newFakeMetadata(),
		Classifier: &fakeClassifier{err: assert.AnError},
		Captioner:  &fakeCaptioner{caption: "a cat"},
	})
	require.NoError(t, p.GenerateCaptions(context.Background(), asset, testUser()))

	assert.Nil(t, asset.Captions.Places365)
	assert.Equal(t, "a cat", asset.Captions.Im2txt)
}

func TestCleanGeneratedCaption(t *testing.T) {
	assert.Equal(t, "a red car", cleanGeneratedCaption("  <start> A Red Car <end>  "))
}
