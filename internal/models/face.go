package models

import (
	"time"

	"github.com/google/uuid"
)

// UnknownPersonName is the stable name of the per-owner bucket that newly
// extracted faces are assigned to until identified.
const UnknownPersonName = "unknown"

// Person is a face-owner bucket within one account's scope.
type Person struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Face is one detected face on an asset. Box coordinates are in the pixel
// space of the asset's big thumbnail.
type Face struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AssetHash string    `json:"asset_hash" db:"asset_hash"`
	PersonID  uuid.UUID `json:"person_id" db:"person_id"`

	Top    int `json:"top" db:"location_top"`
	Right  int `json:"right" db:"location_right"`
	Bottom int `json:"bottom" db:"location_bottom"`
	Left   int `json:"left" db:"location_left"`

	// Encoding is the face embedding as a fixed-width hex byte string
	// (little-endian float32s).
	Encoding string `json:"-" db:"encoding"`

	CropKey   string    `json:"crop_key" db:"crop_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WithinTolerance reports whether all four box coordinates are within
// margin pixels of the other face's box.
func (f *Face) WithinTolerance(top, right, bottom, left, margin int) bool {
	return absInt(f.Top-top) <= margin &&
		absInt(f.Right-right) <= margin &&
		absInt(f.Bottom-bottom) <= margin &&
		absInt(f.Left-left) <= margin
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
