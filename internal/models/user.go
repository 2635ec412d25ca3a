package models

// MetadataExport controls whether in-app edits are written back to the
// source file's metadata on save.
type MetadataExport string

const (
	MetadataExportOff       MetadataExport = "off"
	MetadataExportMediaFile MetadataExport = "media_file"
	MetadataExportSidecar   MetadataExport = "sidecar_file"
)

// User is an owning account. The numeric id is folded into asset identities.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`

	// Confidence is the scene-classifier confidence threshold for this user.
	Confidence float64 `json:"confidence" db:"confidence"`

	SaveMetadataToDisk MetadataExport `json:"save_metadata_to_disk" db:"save_metadata_to_disk"`
}
