package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librephotos",
		Name:      "assets_processed_total",
		Help:      "Total number of assets run through the enrichment pipeline",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "librephotos",
		Name:      "stage_duration_seconds",
		Help:      "Duration of enrichment pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	StageSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librephotos",
		Name:      "stage_skips_total",
		Help:      "Stages that soft-skipped after an error",
	}, []string{"stage"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "librephotos",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	ThumbnailsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "librephotos",
		Name:      "thumbnails_generated_total",
		Help:      "Thumbnails actually synthesized (existence-check misses)",
	}, []string{"variant"})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "librephotos",
		Name:      "cache_invalidations_total",
		Help:      "Full cache flushes triggered by reconcilers",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "librephotos",
		Name:      "queue_depth",
		Help:      "Number of pending enrichment jobs in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "librephotos",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "librephotos",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
