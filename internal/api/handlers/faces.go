package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tognee/librephotos/internal/storage"
	"github.com/tognee/librephotos/pkg/dto"
)

type FaceHandler struct {
	db *storage.PostgresStore

	// EmbedFn extracts a face embedding from image bytes. Nil when the
	// inference stack is unavailable.
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewFaceHandler(db *storage.PostgresStore) *FaceHandler {
	return &FaceHandler{db: db}
}

// ListForAsset returns the faces detected on one asset.
func (h *FaceHandler) ListForAsset(c *gin.Context) {
	faces, err := h.db.FacesForAsset(c.Request.Context(), c.Param("hash"))
	if err != nil {
		slog.Error("list faces", "hash", c.Param("hash"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list faces"})
		return
	}

	resp := dto.FaceListResponse{Faces: make([]dto.FaceResponse, 0, len(faces))}
	for _, f := range faces {
		item := dto.FaceResponse{
			ID:        f.ID,
			AssetHash: f.AssetHash,
			PersonID:  f.PersonID,
			Top:       f.Top,
			Right:     f.Right,
			Bottom:    f.Bottom,
			Left:      f.Left,
			CreatedAt: f.CreatedAt.Format(time.RFC3339),
		}
		if f.CropKey != "" {
			item.CropURL = "/v1/artifacts/" + f.CropKey
		}
		resp.Faces = append(resp.Faces, item)
	}
	resp.Total = len(resp.Faces)
	c.JSON(http.StatusOK, resp)
}

// Search finds identified faces similar to the face in the posted
// image. The request body is raw image bytes; owner, threshold and
// limit come from query parameters.
func (h *FaceHandler) Search(c *gin.Context) {
	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face search unavailable"})
		return
	}

	var q dto.FaceSearchRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Threshold <= 0 {
		q.Threshold = 0.5
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}

	imageData, err := io.ReadAll(io.LimitReader(c.Request.Body, 32<<20))
	if err != nil || len(imageData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image body"})
		return
	}

	embedding, err := h.EmbedFn(imageData)
	if err != nil {
		slog.Error("embed search image", "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	matches, err := h.db.SearchFaces(c.Request.Context(), embedding, q.OwnerID, q.Threshold, q.Limit)
	if err != nil {
		slog.Error("search faces", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search faces"})
		return
	}

	results := make([]dto.FaceSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.FaceSearchResult{
			FaceID:   m.FaceID,
			PersonID: m.PersonID,
			Name:     m.Name,
			Score:    m.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
