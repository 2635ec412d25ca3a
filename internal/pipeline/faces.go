package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/tognee/librephotos/internal/models"
	"github.com/tognee/librephotos/internal/observability"
	"github.com/tognee/librephotos/internal/vision"
)

// faceDedupMargin absorbs box jitter between detector runs: a new box
// within this many pixels of a stored one on all four sides is the same
// face redetected.
const faceDedupMargin = 2

// ExtractFaces detects faces on the large thumbnail, deduplicates
// against the faces already stored for the asset, and persists each new
// face with its embedding, crop artifact and an "unknown" person link.
func (p *Pipeline) ExtractFaces(ctx context.Context, asset *models.Asset) error {
	if p.detector == nil || p.encoder == nil {
		return nil
	}

	unknown, err := p.store.GetOrCreatePerson(ctx, asset.OwnerID, models.UnknownPersonName)
	if err != nil {
		return fmt.Errorf("resolve unknown person: %w", err)
	}

	_, img, err := p.readThumbnail(ctx, asset)
	if err != nil {
		return err
	}

	boxes, err := p.detector.DetectFaces(img)
	if err != nil {
		slog.Error("detect faces", "hash", asset.Hash, "error", err)
		return nil
	}
	if len(boxes) == 0 {
		return nil
	}

	encodings, err := p.encoder.EncodeFaces(img, boxes)
	if err != nil {
		slog.Error("encode faces", "hash", asset.Hash, "error", err)
		return nil
	}

	existing, err := p.store.FacesForAsset(ctx, asset.Hash)
	if err != nil {
		return fmt.Errorf("load stored faces: %w", err)
	}

	created := 0
	for i, box := range boxes {
		if encodings[i] == nil {
			continue
		}
		if duplicateFace(existing, box) {
			continue
		}

		crop := vision.CropBox(img, box)
		if crop == nil {
			continue
		}
		cropKey := faceCropKey(asset.Hash, len(existing)+created)
		if err := p.artifacts.Write(ctx, cropKey, vision.EncodeJPEG(crop, 85), "image/jpeg"); err != nil {
			return fmt.Errorf("write face crop %s: %w", cropKey, err)
		}

		face := &models.Face{
			AssetHash: asset.Hash,
			PersonID:  unknown.ID,
			Top:       box.Top,
			Right:     box.Right,
			Bottom:    box.Bottom,
			Left:      box.Left,
			Encoding:  encodeFaceEmbedding(encodings[i]),
			CropKey:   cropKey,
			CreatedAt: time.Now().UTC(),
		}
		if err := p.store.CreateFace(ctx, face, encodings[i]); err != nil {
			return fmt.Errorf("store face: %w", err)
		}
		observability.FacesDetected.Inc()
		created++
	}

	if created > 0 {
		p.cache.InvalidateAll(ctx)
	}
	return nil
}

func duplicateFace(existing []models.Face, box vision.Box) bool {
	for i := range existing {
		if existing[i].WithinTolerance(box.Top, box.Right, box.Bottom, box.Left, faceDedupMargin) {
			return true
		}
	}
	return false
}

// encodeFaceEmbedding serializes the embedding as hex little-endian
// float32s, the storage form shared with imported face archives.
func encodeFaceEmbedding(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return hex.EncodeToString(buf)
}
