package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/queue"
	"github.com/tognee/librephotos/internal/scan"
	"github.com/tognee/librephotos/internal/storage"
	"github.com/tognee/librephotos/pkg/dto"
)

type AssetHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	scanner  *scan.Scanner
}

func NewAssetHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer, scanner *scan.Scanner) *AssetHandler {
	return &AssetHandler{db: db, minio: minio, producer: producer, scanner: scanner}
}

// List returns the owner's visible assets: not hidden and fully
// thumbnailed.
func (h *AssetHandler) List(c *gin.Context) {
	var q dto.AssetQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	assets, err := h.db.VisibleAssets(c.Request.Context(), q.OwnerID, q.Limit, q.Offset)
	if err != nil {
		slog.Error("list assets", "owner_id", q.OwnerID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list assets"})
		return
	}

	resp := dto.AssetListResponse{Assets: make([]dto.AssetResponse, 0, len(assets))}
	for i := range assets {
		resp.Assets = append(resp.Assets, toAssetResponse(&assets[i]))
	}
	resp.Total = len(resp.Assets)
	c.JSON(http.StatusOK, resp)
}

func (h *AssetHandler) Get(c *gin.Context) {
	asset, err := h.db.GetAsset(c.Request.Context(), c.Param("hash"))
	if err != nil {
		slog.Error("get asset", "hash", c.Param("hash"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get asset"})
		return
	}
	if asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, toAssetResponse(asset))
}

// Delete removes the asset record and its derived artifacts.
func (h *AssetHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	hash := c.Param("hash")

	asset, err := h.db.GetAsset(ctx, hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get asset"})
		return
	}
	if asset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	faces, err := h.db.FacesForAsset(ctx, hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load faces"})
		return
	}

	if err := h.db.DeleteAsset(ctx, hash); err != nil {
		slog.Error("delete asset", "hash", hash, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete asset"})
		return
	}

	keys := []string{asset.ThumbnailBig, asset.SquareThumbnail, asset.SquareThumbnailSmall}
	for _, f := range faces {
		keys = append(keys, f.CropKey)
	}
	if err := h.minio.DeleteAll(ctx, keys); err != nil {
		slog.Warn("delete asset artifacts", "hash", hash, "error", err)
	}

	c.Status(http.StatusNoContent)
}

// Enqueue schedules a single file for enrichment.
func (h *AssetHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &models.EnrichmentJob{
		JobID:      uuid.New(),
		OwnerID:    req.OwnerID,
		SourcePath: req.SourcePath,
		Video:      req.Video,
	}
	if err := h.producer.PublishJob(c.Request.Context(), req.OwnerID, job); err != nil {
		slog.Error("enqueue asset", "path", req.SourcePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, dto.EnqueueResponse{JobID: job.JobID.String()})
}

// Scan walks a directory and schedules every media file in it.
func (h *AssetHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enqueued, skipped, err := h.scanner.ScanDirectory(c.Request.Context(), req.OwnerID, req.Root)
	if err != nil {
		slog.Error("scan directory", "root", req.Root, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.ScanResponse{Enqueued: enqueued, Skipped: skipped})
}

// Artifact streams a derived binary (thumbnail or face crop) out of
// object storage.
func (h *AssetHandler) Artifact(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing artifact key"})
		return
	}

	data, err := h.minio.Read(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	c.Data(http.StatusOK, artifactContentType(key), data)
}

func artifactContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func toAssetResponse(a *models.Asset) dto.AssetResponse {
	resp := dto.AssetResponse{
		Hash:                 a.Hash,
		OwnerID:              a.OwnerID,
		SourcePaths:          a.SourcePaths,
		ThumbnailBig:         a.ThumbnailBig,
		SquareThumbnail:      a.SquareThumbnail,
		SquareThumbnailSmall: a.SquareThumbnailSmall,
		AspectRatio:          a.AspectRatio,
		GPSLat:               a.GPSLat,
		GPSLon:               a.GPSLon,
		SearchCaptions:       a.SearchCaptions,
		SearchLocation:       a.SearchLocation,
		Rating:               a.Rating,
		Video:                a.Video,
		Public:               a.Public,
		AddedOn:              a.AddedOn.Format(time.RFC3339),
	}
	if a.Timestamp != nil {
		resp.Timestamp = a.Timestamp.Format(time.RFC3339)
	}
	if a.DominantColor != nil {
		resp.DominantColor = a.DominantColor.String()
	}
	return resp
}
