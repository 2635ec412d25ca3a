package dto

import "github.com/google/uuid"

type FaceResponse struct {
	ID        uuid.UUID `json:"id"`
	AssetHash string    `json:"asset_hash"`
	PersonID  uuid.UUID `json:"person_id"`
	Top       int       `json:"top"`
	Right     int       `json:"right"`
	Bottom    int       `json:"bottom"`
	Left      int       `json:"left"`
	CropURL   string    `json:"crop_url,omitempty"`
	CreatedAt string    `json:"created_at"`
}

type FaceListResponse struct {
	Faces []FaceResponse `json:"faces"`
	Total int            `json:"total"`
}

// FaceSearchRequest finds identified faces similar to an image. Bound
// from query parameters; the request body carries the image bytes.
type FaceSearchRequest struct {
	OwnerID   int64   `form:"owner_id" binding:"required"`
	Threshold float64 `form:"threshold"`
	Limit     int     `form:"limit"`
}

type FaceSearchResult struct {
	FaceID   uuid.UUID `json:"face_id"`
	PersonID uuid.UUID `json:"person_id"`
	Name     string    `json:"name"`
	Score    float32   `json:"score"`
}
