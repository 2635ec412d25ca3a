package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tognee/librephotos/internal/models"
)

// JobPublisher schedules enrichment jobs; satisfied by queue.Producer.
type JobPublisher interface {
	PublishJob(ctx context.Context, ownerID int64, data interface{}) error
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
	".heic": true, ".heif": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".m4v": true, ".3gp": true,
}

// Scanner walks library directories and schedules one enrichment job
// per media file. Scheduling is fire-and-forget: the pipeline's
// idempotence makes rescanning the same tree harmless.
type Scanner struct {
	producer JobPublisher
}

func NewScanner(producer JobPublisher) *Scanner {
	return &Scanner{producer: producer}
}

// ScanDirectory walks root and enqueues every media file for ownerID.
// Hidden entries and sidecar files are skipped. Returns how many files
// were enqueued and how many were skipped.
func (s *Scanner) ScanDirectory(ctx context.Context, ownerID int64, root string) (int, int, error) {
	enqueued, skipped := 0, 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		isImage := imageExtensions[ext]
		isVideo := videoExtensions[ext]
		if !isImage && !isVideo {
			skipped++
			return nil
		}

		job := &models.EnrichmentJob{
			JobID:      uuid.New(),
			OwnerID:    ownerID,
			SourcePath: path,
			Video:      isVideo,
		}
		if err := s.producer.PublishJob(ctx, ownerID, job); err != nil {
			return fmt.Errorf("enqueue %s: %w", path, err)
		}
		enqueued++
		return nil
	})
	if err != nil {
		return enqueued, skipped, fmt.Errorf("scan %s: %w", root, err)
	}

	slog.Info("directory scanned", "root", root, "owner_id", ownerID,
		"enqueued", enqueued, "skipped", skipped)
	return enqueued, skipped, nil
}
