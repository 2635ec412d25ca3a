package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tognee/librephotos/internal/models"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestExtractDominantColorPicksMajority(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	artifacts := newMemArtifacts()

	// Mostly red with a blue stripe.
	img := solidImage(100, 100, color.RGBA{R: 200, A: 255})
	for y := 0; y < 10; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{B: 220, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	asset := &models.Asset{Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"}}
	require.NoError(t, store.SaveAsset(ctx, asset))
	key := artifactKey(models.VariantBig, "h1", ".webp")
	require.NoError(t, artifacts.Write(ctx, key, buf.Bytes(), "image/webp"))
	asset.ThumbnailBig = key

	p := New(Config{Store: store, Artifacts: artifacts, Metadata: newFakeMetadata()})
	require.NoError(t, p.ExtractDominantColor(ctx, asset))

	require.NotNil(t, asset.DominantColor)
	assert.Greater(t, asset.DominantColor.R, asset.DominantColor.B)
	assert.Greater(t, int(asset.DominantColor.R), 150)
}

func TestExtractDominantColorRunsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	artifacts := newMemArtifacts()

	prior := models.RGB{R: 1, G: 2, B: 3}
	asset := &models.Asset{
		Hash: "h1", OwnerID: 1, SourcePaths: []string{"/p/a.jpg"},
		DominantColor: &prior,
	}
	require.NoError(t, store.SaveAsset(ctx, asset))

	// No thumbnail artifact: the stage would fail if it tried to read one.
	p := New(Config{Store: store, Artifacts: artifacts, Metadata: newFakeMetadata()})
	require.NoError(t, p.ExtractDominantColor(ctx, asset))

	assert.Equal(t, prior, *asset.DominantColor)
}

func TestDominantColorSolid(t *testing.T) {
	got := dominantColor(solidImage(10, 10, color.RGBA{R: 40, G: 80, B: 120, A: 255}), 16)
	assert.Equal(t, models.RGB{R: 40, G: 80, B: 120}, got)
}

func TestDominantColorEmptyImage(t *testing.T) {
	got := dominantColor(image.NewRGBA(image.Rect(0, 0, 0, 0)), 16)
	assert.Equal(t, models.RGB{}, got)
}
