package models

import (
	"fmt"
	"time"
)

// Thumbnail variants. The variant name doubles as the artifact key prefix.
const (
	VariantBig         = "thumbnails_big"
	VariantSquare      = "square_thumbnails"
	VariantSquareSmall = "square_thumbnails_small"
)

// RGB is a dominant color triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// PlaceFeature is one entry of a reverse-geocode result, finest first.
type PlaceFeature struct {
	Text string `json:"text"`
}

// Geolocation is the structured reverse-geocode result cached on an asset.
type Geolocation struct {
	Features   []PlaceFeature `json:"features"`
	SearchText string         `json:"search_text,omitempty"`
}

// SceneCaption is the scene-classifier output for one asset.
type SceneCaption struct {
	Categories  []string `json:"categories"`
	Attributes  []string `json:"attributes"`
	Environment string   `json:"environment"`
}

// Captions is the keyed caption bag.
type Captions struct {
	Places365 *SceneCaption `json:"places365,omitempty"`
	Im2txt    string        `json:"im2txt,omitempty"`
}

// Asset is a managed photo or video and its derived facts.
// The Hash identity is assigned once and stable: md5 of the canonical
// source file content with the owner id appended.
type Asset struct {
	Hash        string   `json:"hash" db:"hash"`
	OwnerID     int64    `json:"owner_id" db:"owner_id"`
	SourcePaths []string `json:"source_paths" db:"source_paths"`

	ThumbnailBig         string `json:"thumbnail_big" db:"thumbnail_big"`
	SquareThumbnail      string `json:"square_thumbnail" db:"square_thumbnail"`
	SquareThumbnailSmall string `json:"square_thumbnail_small" db:"square_thumbnail_small"`

	AspectRatio *float64 `json:"aspect_ratio,omitempty" db:"aspect_ratio"`

	AddedOn   time.Time  `json:"added_on" db:"added_on"`
	Timestamp *time.Time `json:"timestamp,omitempty" db:"timestamp"`

	GPSLat *float64 `json:"gps_lat,omitempty" db:"gps_lat"`
	GPSLon *float64 `json:"gps_lon,omitempty" db:"gps_lon"`

	Geolocation *Geolocation `json:"geolocation,omitempty" db:"geolocation"`
	Captions    Captions     `json:"captions" db:"captions"`

	DominantColor *RGB `json:"dominant_color,omitempty" db:"dominant_color"`

	SearchCaptions string `json:"search_captions" db:"search_captions"`
	SearchLocation string `json:"search_location" db:"search_location"`

	Rating int  `json:"rating" db:"rating"`
	Hidden bool `json:"hidden" db:"hidden"`
	Video  bool `json:"video" db:"video"`
	Public bool `json:"public" db:"public"`

	Embedding          []float32 `json:"-" db:"embedding"`
	EmbeddingMagnitude *float32  `json:"-" db:"embedding_magnitude"`
}

// CanonicalPath is the first backing file, used for all re-derivation.
func (a *Asset) CanonicalPath() string {
	if len(a.SourcePaths) == 0 {
		return ""
	}
	return a.SourcePaths[0]
}

// ThumbnailExt is the file extension of the square variants.
func (a *Asset) ThumbnailExt() string {
	if a.Video {
		return ".mp4"
	}
	return ".webp"
}
