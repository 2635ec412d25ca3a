package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/tognee/librephotos/internal/api"
	"github.com/tognee/librephotos/internal/api/ws"
	"github.com/tognee/librephotos/internal/cache"
	"github.com/tognee/librephotos/internal/config"
	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/observability"
	"github.com/tognee/librephotos/internal/queue"
	"github.com/tognee/librephotos/internal/scan"
	"github.com/tognee/librephotos/internal/storage"
	"github.com/tognee/librephotos/internal/vision"
	"github.com/tognee/librephotos/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Redis cache (readiness + invalidation generation)
	redisCache := cache.New(cfg.Redis, 15*time.Minute)
	defer redisCache.Close()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Broadcast enrichment results to connected clients.
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.EnrichmentEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		evtType := "asset_enriched"
		if event.Status != "enriched" {
			evtType = "asset_failed"
		}

		wsEvent := &dto.WSEvent{
			Type:      evtType,
			JobID:     event.JobID,
			OwnerID:   event.OwnerID,
			AssetHash: event.AssetHash,
			Faces:     event.Faces,
			Places:    event.Places,
			Error:     event.Error,
		}
		if event.Timestamp != nil {
			wsEvent.Timestamp = event.Timestamp.Format(time.RFC3339)
		}
		hub.BroadcastEvent(wsEvent)
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Face embedding for POST /v1/search/faces. Optional: the API runs
	// without the inference stack, only search degrades.
	var embedFn func([]byte) ([]float32, error)

	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, face search unavailable", "error", err)
	} else {
		detector, derr := vision.NewDetector(
			filepath.Join(cfg.Vision.ModelsDir, "det_10g.onnx"),
			float32(cfg.Vision.DetectionThreshold),
		)
		encoder, eerr := vision.NewEncoder(filepath.Join(cfg.Vision.ModelsDir, "w600k_r50.onnx"))
		if derr != nil || eerr != nil {
			slog.Warn("face models init failed, face search unavailable",
				"detector_error", derr, "encoder_error", eerr)
		} else {
			embedFn = faceEmbedFn(detector, encoder)
			defer detector.Close()
			defer encoder.Close()
			defer ort.DestroyEnvironment()
			slog.Info("face search ready")
		}
	}

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Scanner:  scan.NewScanner(producer),
		Hub:      hub,
		Cache:    redisCache,
		EmbedFn:  embedFn,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// faceEmbedFn detects the most prominent face in the image and returns
// its embedding.
func faceEmbedFn(detector *vision.Detector, encoder *vision.Encoder) func([]byte) ([]float32, error) {
	return func(imageData []byte) ([]float32, error) {
		img, _, err := image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		boxes, err := detector.DetectFaces(img)
		if err != nil {
			return nil, fmt.Errorf("detect faces: %w", err)
		}
		if len(boxes) == 0 {
			return nil, fmt.Errorf("no face found in image")
		}
		encodings, err := encoder.EncodeFaces(img, boxes[:1])
		if err != nil {
			return nil, fmt.Errorf("encode face: %w", err)
		}
		if len(encodings) == 0 || encodings[0] == nil {
			return nil, fmt.Errorf("face crop was empty")
		}
		return encodings[0], nil
	}
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
