package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/tognee/librephotos/internal/cache"
	"github.com/tognee/librephotos/internal/config"
	"github.com/tognee/librephotos/internal/geocode"
	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/observability"
	"github.com/tognee/librephotos/internal/pipeline"
	"github.com/tognee/librephotos/internal/queue"
	"github.com/tognee/librephotos/internal/storage"
	"github.com/tognee/librephotos/internal/vision"
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

	slog.Info("starting enrichment worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

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
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Redis-backed cache invalidation
	redisCache := cache.New(cfg.Redis, 15*time.Minute)
	defer redisCache.Close()

	// Metadata and geocoding adapters
	exiftool := metadata.NewExiftool(cfg.Metadata.ExiftoolPath)

	var geocoder geocode.Geocoder
	if cfg.Geocode.MapboxToken != "" {
		geocoder = geocode.NewMapbox(cfg.Geocode.BaseURL, cfg.Geocode.MapboxToken)
	} else {
		slog.Warn("no mapbox token configured, geolocation disabled")
	}

	tz, err := geocode.NewTZF()
	if err != nil {
		slog.Error("init timezone resolver", "error", err)
		os.Exit(1)
	}

	// Inference stack
	detector, err := vision.NewDetector(
		filepath.Join(cfg.Vision.ModelsDir, "det_10g.onnx"),
		float32(cfg.Vision.DetectionThreshold),
	)
	if err != nil {
		slog.Error("init face detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	encoder, err := vision.NewEncoder(filepath.Join(cfg.Vision.ModelsDir, "w600k_r50.onnx"))
	if err != nil {
		slog.Error("init face encoder", "error", err)
		os.Exit(1)
	}
	defer encoder.Close()

	classifier, err := vision.NewPlaces365(cfg.Vision.ModelsDir)
	if err != nil {
		slog.Error("init scene classifier", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()

	embedder, err := vision.NewCLIPEmbedder(filepath.Join(cfg.Vision.ModelsDir, "clip_visual.onnx"))
	if err != nil {
		slog.Error("init clip embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	var captioner vision.Captioner
	if cfg.Vision.CaptionerURL != "" {
		captioner = vision.NewHTTPCaptioner(cfg.Vision.CaptionerURL)
	} else {
		slog.Warn("no captioner url configured, prose captions disabled")
	}

	enricher := pipeline.New(pipeline.Config{
		Store:          db,
		Artifacts:      minioStore,
		Cache:          redisCache,
		Metadata:       exiftool,
		Geocoder:       geocoder,
		Timezone:       tz,
		Detector:       detector,
		Encoder:        encoder,
		Classifier:     classifier,
		Captioner:      captioner,
		Embedder:       embedder,
		Events:         producer,
		FFmpegPath:     cfg.Thumbnail.FFmpegPath,
		AnimatedLength: cfg.Thumbnail.AnimatedLength,
	})

	slog.Info("enrichment pipeline initialized")

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming enrichment jobs
	err = consumer.ConsumeJobs(ctx, "enrichment-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var job models.EnrichmentJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("unmarshal enrichment job", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := enricher.Process(ctx, &job); err != nil {
			return fmt.Errorf("process job %s: %w", job.JobID, err)
		}

		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start job consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
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
