package pipeline

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/tognee/librephotos/internal/models"
)

// Store is the entity-store contract the pipeline consumes. All album
// operations are scoped per (owner, key) and safe to re-invoke; the
// postgres implementation lives in internal/storage.
type Store interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)

	GetAsset(ctx context.Context, hash string) (*models.Asset, error)
	SaveAsset(ctx context.Context, a *models.Asset) error
	DeleteAsset(ctx context.Context, hash string) error

	GetOrCreatePerson(ctx context.Context, ownerID int64, name string) (*models.Person, error)

	FacesForAsset(ctx context.Context, hash string) ([]models.Face, error)
	CreateFace(ctx context.Context, f *models.Face, embedding []float32) error

	GetAlbumDate(ctx context.Context, ownerID int64, date string) (*models.AlbumDate, error)
	GetOrCreateAlbumDate(ctx context.Context, ownerID int64, date string) (*models.AlbumDate, error)
	SaveAlbumDate(ctx context.Context, a *models.AlbumDate) error
	AlbumDateContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error)
	AddToAlbumDate(ctx context.Context, albumID uuid.UUID, hash string) error
	RemoveFromAlbumDate(ctx context.Context, albumID uuid.UUID, hash string) error

	AlbumPlacesForAsset(ctx context.Context, ownerID int64, hash string) ([]models.AlbumPlace, error)
	GetOrCreateAlbumPlace(ctx context.Context, ownerID int64, title string) (*models.AlbumPlace, error)
	SaveAlbumPlace(ctx context.Context, a *models.AlbumPlace) error
	AlbumPlaceContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error)
	AddToAlbumPlace(ctx context.Context, albumID uuid.UUID, hash string) error
	RemoveFromAlbumPlace(ctx context.Context, albumID uuid.UUID, hash string) error

	GetOrCreateAlbumThing(ctx context.Context, ownerID int64, title string) (*models.AlbumThing, error)
	SaveAlbumThing(ctx context.Context, a *models.AlbumThing) error
	AlbumThingContains(ctx context.Context, albumID uuid.UUID, hash string) (bool, error)
	AddToAlbumThing(ctx context.Context, albumID uuid.UUID, hash string) error
}

// ArtifactStore holds derived binaries (thumbnails, face crops). Exists
// is the idempotence guard for synthesis.
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Read(ctx context.Context, key string) ([]byte, error)
}

// EventPublisher pushes enrichment results out for broadcast. A nil
// publisher disables events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ownerID int64, data interface{}) error
}

func artifactKey(variant, hash, ext string) string {
	return variant + "/" + hash + ext
}

func faceCropKey(hash string, idx int) string {
	return "faces/" + hash + "_" + strconv.Itoa(idx) + ".jpg"
}
