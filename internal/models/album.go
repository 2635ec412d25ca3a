package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date key of an AlbumDate. An empty date keys
// the "unknown date" bucket.
const DateLayout = "2006-01-02"

// AlbumLocation aggregates the place names seen among an AlbumDate's members.
type AlbumLocation struct {
	Places []string `json:"places"`
}

// AlbumDate groups assets sharing a calendar date within one owner's scope.
// An asset belongs to exactly one AlbumDate at any time.
type AlbumDate struct {
	ID       uuid.UUID      `json:"id" db:"id"`
	OwnerID  int64          `json:"owner_id" db:"owner_id"`
	Date     string         `json:"date" db:"date"` // DateLayout, "" = unknown bucket
	Location *AlbumLocation `json:"location,omitempty" db:"location"`
}

// DisplayTitle derives the album title from its date key.
func (a *AlbumDate) DisplayTitle() string {
	if a.Date == "" {
		return "No Timestamp"
	}
	t, err := time.Parse(DateLayout, a.Date)
	if err != nil {
		return a.Date
	}
	return t.Format("Monday, January 2 2006")
}

// AlbumPlace groups assets sharing one geocoded place label within one
// owner's scope. GeolocationLevel is the distance from the finest feature,
// recorded when an asset is first added.
type AlbumPlace struct {
	ID               uuid.UUID `json:"id" db:"id"`
	OwnerID          int64     `json:"owner_id" db:"owner_id"`
	Title            string    `json:"title" db:"title"`
	GeolocationLevel int       `json:"geolocation_level" db:"geolocation_level"`
}

// Thing types for AlbumThing, matching the scene-caption facets they come from.
const (
	ThingTypeAttribute = "places365_attribute"
	ThingTypeCategory  = "places365_category"
)

// AlbumThing groups assets sharing one caption-derived attribute or
// category within one owner's scope.
type AlbumThing struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Title     string    `json:"title" db:"title"`
	ThingType string    `json:"thing_type" db:"thing_type"`
}
