package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrichmentJob is the message published to NATS for worker processing.
// The scheduler delivers at least once; every pipeline stage converges
// under re-delivery.
type EnrichmentJob struct {
	JobID      uuid.UUID `json:"job_id"`
	OwnerID    int64     `json:"owner_id"`
	SourcePath string    `json:"source_path"`
	AssetHash  string    `json:"asset_hash,omitempty"` // set on re-runs
	Video      bool      `json:"video"`
}

// EnrichmentEvent is published after a pipeline run for API broadcast.
type EnrichmentEvent struct {
	JobID     uuid.UUID  `json:"job_id"`
	AssetHash string     `json:"asset_hash"`
	OwnerID   int64      `json:"owner_id"`
	Status    string     `json:"status"` // "enriched" or "failed"
	Faces     int        `json:"faces"`
	Places    []string   `json:"places,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
