package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tognee/librephotos/internal/api/handlers"
	"github.com/tognee/librephotos/internal/api/ws"
	"github.com/tognee/librephotos/internal/auth"
	"github.com/tognee/librephotos/internal/queue"
	"github.com/tognee/librephotos/internal/scan"
	"github.com/tognee/librephotos/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Scanner  *scan.Scanner
	Hub      *ws.Hub
	Cache    handlers.Pinger
	// EmbedFn extracts a face embedding from image bytes (from the
	// vision stack); nil disables face search.
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Cache)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Assets
	assetH := handlers.NewAssetHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Scanner)
	v1.GET("/assets", assetH.List)
	v1.GET("/assets/:hash", assetH.Get)
	v1.DELETE("/assets/:hash", assetH.Delete)
	v1.POST("/assets", assetH.Enqueue)
	v1.POST("/scan", assetH.Scan)
	v1.GET("/artifacts/*key", assetH.Artifact)

	// Faces
	faceH := handlers.NewFaceHandler(cfg.DB)
	faceH.EmbedFn = cfg.EmbedFn
	v1.GET("/assets/:hash/faces", faceH.ListForAsset)
	v1.POST("/search/faces", faceH.Search)

	return r
}
