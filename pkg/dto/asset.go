package dto

// AssetResponse is the API view of an enriched asset.
type AssetResponse struct {
	Hash                 string   `json:"hash"`
	OwnerID              int64    `json:"owner_id"`
	SourcePaths          []string `json:"source_paths"`
	ThumbnailBig         string   `json:"thumbnail_big,omitempty"`
	SquareThumbnail      string   `json:"square_thumbnail,omitempty"`
	SquareThumbnailSmall string   `json:"square_thumbnail_small,omitempty"`
	AspectRatio          *float64 `json:"aspect_ratio,omitempty"`
	Timestamp            string   `json:"timestamp,omitempty"`
	GPSLat               *float64 `json:"gps_lat,omitempty"`
	GPSLon               *float64 `json:"gps_lon,omitempty"`
	SearchCaptions       string   `json:"search_captions,omitempty"`
	SearchLocation       string   `json:"search_location,omitempty"`
	DominantColor        string   `json:"dominant_color,omitempty"`
	Rating               int      `json:"rating"`
	Video                bool     `json:"video"`
	Public               bool     `json:"public"`
	AddedOn              string   `json:"added_on"`
}

type AssetListResponse struct {
	Assets []AssetResponse `json:"assets"`
	Total  int             `json:"total"`
}

type AssetQuery struct {
	OwnerID int64 `form:"owner_id" binding:"required"`
	Limit   int   `form:"limit"`
	Offset  int   `form:"offset"`
}

// EnqueueRequest schedules one file for enrichment.
type EnqueueRequest struct {
	OwnerID    int64  `json:"owner_id" binding:"required"`
	SourcePath string `json:"source_path" binding:"required"`
	Video      bool   `json:"video"`
}

type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

// ScanRequest walks a directory and schedules every media file in it.
type ScanRequest struct {
	OwnerID int64  `json:"owner_id" binding:"required"`
	Root    string `json:"root" binding:"required"`
}

type ScanResponse struct {
	Enqueued int `json:"enqueued"`
	Skipped  int `json:"skipped"`
}
