package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlbumDateDisplayTitle(t *testing.T) {
	assert.Equal(t, "No Timestamp", (&AlbumDate{}).DisplayTitle())
	assert.Equal(t, "Thursday, June 15 2023", (&AlbumDate{Date: "2023-06-15"}).DisplayTitle())
	assert.Equal(t, "not-a-date", (&AlbumDate{Date: "not-a-date"}).DisplayTitle())
}

func TestAssetThumbnailExt(t *testing.T) {
	assert.Equal(t, ".webp", (&Asset{}).ThumbnailExt())
	assert.Equal(t, ".mp4", (&Asset{Video: true}).ThumbnailExt())
}

func TestRGBString(t *testing.T) {
	assert.Equal(t, "12,34,56", RGB{R: 12, G: 34, B: 56}.String())
}

func TestFaceWithinTolerance(t *testing.T) {
	f := &Face{Top: 10, Right: 60, Bottom: 60, Left: 10}
	assert.True(t, f.WithinTolerance(12, 58, 62, 8, 2))
	assert.False(t, f.WithinTolerance(13, 60, 60, 10, 2))
}
