package dto

import "github.com/google/uuid"

// WSEvent is a WebSocket message for real-time enrichment progress.
type WSEvent struct {
	Type      string    `json:"type"` // asset_enriched, asset_failed
	JobID     uuid.UUID `json:"job_id"`
	OwnerID   int64     `json:"owner_id"`
	AssetHash string    `json:"asset_hash"`
	Faces     int       `json:"faces"`
	Places    []string  `json:"places,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
}
