package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/chai2010/webp"

	"github.com/tognee/librephotos/internal/cache"
	"github.com/tognee/librephotos/internal/geocode"
	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/observability"
	"github.com/tognee/librephotos/internal/vision"
)

// Pipeline runs the enrichment stages for a single asset. Stages are
// idempotent: a redelivered job re-runs them and converges on the same
// state instead of duplicating derived data.
type Pipeline struct {
	store     Store
	artifacts ArtifactStore
	cache     cache.Invalidator
	meta      metadata.Reader
	geocoder  geocode.Geocoder
	tz        geocode.TimezoneResolver

	detector   vision.FaceDetector
	encoder    vision.FaceEncoder
	classifier vision.SceneClassifier
	captioner  vision.Captioner
	embedder   vision.Embedder

	events EventPublisher

	ffmpegPath     string
	animatedLength int
}

// Config wires the pipeline's collaborators. Inference fields may be
// nil, in which case the corresponding stage is skipped.
type Config struct {
	Store     Store
	Artifacts ArtifactStore
	Cache     cache.Invalidator
	Metadata  metadata.Reader
	Geocoder  geocode.Geocoder
	Timezone  geocode.TimezoneResolver

	Detector   vision.FaceDetector
	Encoder    vision.FaceEncoder
	Classifier vision.SceneClassifier
	Captioner  vision.Captioner
	Embedder   vision.Embedder

	Events EventPublisher

	FFmpegPath     string
	AnimatedLength int
}

func New(cfg Config) *Pipeline {
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.AnimatedLength <= 0 {
		cfg.AnimatedLength = 5
	}
	return &Pipeline{
		store:          cfg.Store,
		artifacts:      cfg.Artifacts,
		cache:          cfg.Cache,
		meta:           cfg.Metadata,
		geocoder:       cfg.Geocoder,
		tz:             cfg.Timezone,
		detector:       cfg.Detector,
		encoder:        cfg.Encoder,
		classifier:     cfg.Classifier,
		captioner:      cfg.Captioner,
		embedder:       cfg.Embedder,
		events:         cfg.Events,
		ffmpegPath:     cfg.FFmpegPath,
		animatedLength: cfg.AnimatedLength,
	}
}

// Process enriches the asset named by the job. Identity and thumbnail
// failures abort the job so the queue redelivers it; the remaining
// stages degrade to skips so one broken facet never starves the others.
func (p *Pipeline) Process(ctx context.Context, job *models.EnrichmentJob) error {
	start := time.Now()
	log := slog.With("job_id", job.JobID, "owner_id", job.OwnerID, "path", job.SourcePath)

	user, err := p.store.GetUser(ctx, job.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner %d: %w", job.OwnerID, err)
	}
	if user == nil {
		observability.AssetsProcessed.WithLabelValues("rejected").Inc()
		return fmt.Errorf("owner %d does not exist", job.OwnerID)
	}

	asset, err := p.resolveAsset(ctx, job)
	if err != nil {
		observability.AssetsProcessed.WithLabelValues("failed").Inc()
		return err
	}
	log = log.With("hash", asset.Hash)

	if err := p.timed("timestamp", func() error {
		return p.ResolveTimestamp(ctx, asset)
	}); err != nil {
		observability.AssetsProcessed.WithLabelValues("failed").Inc()
		return fmt.Errorf("resolve timestamp: %w", err)
	}

	if err := p.timed("thumbnails", func() error {
		return p.SynthesizeThumbnails(ctx, asset)
	}); err != nil {
		observability.AssetsProcessed.WithLabelValues("failed").Inc()
		return fmt.Errorf("synthesize thumbnails: %w", err)
	}

	p.softStage(log, "geolocate", func() error { return p.Geolocate(ctx, asset) })
	p.softStage(log, "faces", func() error { return p.ExtractFaces(ctx, asset) })
	p.softStage(log, "captions", func() error { return p.GenerateCaptions(ctx, asset, user) })
	p.softStage(log, "dominant_color", func() error { return p.ExtractDominantColor(ctx, asset) })
	p.softStage(log, "things", func() error { return p.ReconcileThings(ctx, asset) })
	p.softStage(log, "rating", func() error { return p.ExtractRating(ctx, asset) })

	observability.AssetsProcessed.WithLabelValues("processed").Inc()
	log.Info("asset enriched", "duration", time.Since(start))

	p.publishResult(ctx, job, asset)
	return nil
}

// resolveAsset loads the asset for the job, computing its identity hash
// and registering a fresh record on first sight of the file.
func (p *Pipeline) resolveAsset(ctx context.Context, job *models.EnrichmentJob) (*models.Asset, error) {
	hash := job.AssetHash
	if hash == "" {
		var err error
		hash, err = ComputeIdentity(job.SourcePath, job.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("compute identity: %w", err)
		}
	}

	asset, err := p.store.GetAsset(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", hash, err)
	}
	if asset == nil {
		asset = &models.Asset{
			Hash:        hash,
			OwnerID:     job.OwnerID,
			SourcePaths: []string{job.SourcePath},
			AddedOn:     time.Now().UTC(),
			Video:       job.Video,
		}
		if err := p.store.SaveAsset(ctx, asset); err != nil {
			return nil, fmt.Errorf("register asset %s: %w", hash, err)
		}
		return asset, nil
	}

	// A known hash seen under a new path gains an extra source path,
	// it never becomes a second asset.
	if !containsString(asset.SourcePaths, job.SourcePath) {
		asset.SourcePaths = append(asset.SourcePaths, job.SourcePath)
		if err := p.persistAsset(ctx, asset, false); err != nil {
			return nil, fmt.Errorf("record source path: %w", err)
		}
	}
	return asset, nil
}

func (p *Pipeline) timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// softStage runs a stage that must not fail the whole job: the error is
// logged, counted, and the next stage still runs.
func (p *Pipeline) softStage(log *slog.Logger, stage string, fn func() error) {
	if err := p.timed(stage, fn); err != nil {
		observability.StageSkips.WithLabelValues(stage).Inc()
		log.Error("stage failed", "stage", stage, "error", err)
	}
}

func (p *Pipeline) publishResult(ctx context.Context, job *models.EnrichmentJob, asset *models.Asset) {
	if p.events == nil {
		return
	}

	faces, err := p.store.FacesForAsset(ctx, asset.Hash)
	if err != nil {
		slog.Warn("count faces for event", "hash", asset.Hash, "error", err)
	}
	albums, err := p.store.AlbumPlacesForAsset(ctx, asset.OwnerID, asset.Hash)
	if err != nil {
		slog.Warn("list places for event", "hash", asset.Hash, "error", err)
	}
	places := make([]string, 0, len(albums))
	for _, a := range albums {
		places = append(places, a.Title)
	}

	event := &models.EnrichmentEvent{
		JobID:     job.JobID,
		AssetHash: asset.Hash,
		OwnerID:   asset.OwnerID,
		Status:    "enriched",
		Faces:     len(faces),
		Places:    places,
		Timestamp: asset.Timestamp,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.events.PublishEvent(ctx, asset.OwnerID, event); err != nil {
		slog.Warn("publish enrichment event", "hash", asset.Hash, "error", err)
	}
}

// readThumbnail loads and decodes the large thumbnail, the canonical
// input for every inference stage.
func (p *Pipeline) readThumbnail(ctx context.Context, asset *models.Asset) ([]byte, image.Image, error) {
	if asset.ThumbnailBig == "" {
		return nil, nil, fmt.Errorf("asset %s has no large thumbnail", asset.Hash)
	}
	data, err := p.artifacts.Read(ctx, asset.ThumbnailBig)
	if err != nil {
		return nil, nil, fmt.Errorf("read thumbnail %s: %w", asset.ThumbnailBig, err)
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, nil, fmt.Errorf("decode thumbnail %s: %w", asset.ThumbnailBig, err)
	}
	return data, img, nil
}

func decodeImage(data []byte) (image.Image, error) {
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
