package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tognee/librephotos/internal/models"
)

// DeleteWithFiles removes the asset record together with its derived
// artifacts. Faces and album memberships cascade with the record.
func (p *Pipeline) DeleteWithFiles(ctx context.Context, hash string) error {
	asset, err := p.store.GetAsset(ctx, hash)
	if err != nil {
		return fmt.Errorf("load asset %s: %w", hash, err)
	}
	if asset == nil {
		return nil
	}

	faces, err := p.store.FacesForAsset(ctx, hash)
	if err != nil {
		return fmt.Errorf("load faces for %s: %w", hash, err)
	}

	if err := p.store.DeleteAsset(ctx, hash); err != nil {
		return fmt.Errorf("delete asset %s: %w", hash, err)
	}

	// Artifacts go after the record: a crash mid-way leaves orphans in
	// object storage, never a record pointing at missing artifacts.
	keys := []string{asset.ThumbnailBig, asset.SquareThumbnail, asset.SquareThumbnailSmall}
	for _, f := range faces {
		keys = append(keys, f.CropKey)
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := deleteArtifact(ctx, p.artifacts, key); err != nil {
			slog.Warn("delete artifact", "key", key, "error", err)
		}
	}

	p.cache.InvalidateAll(ctx)
	return nil
}

// PruneMissingPaths drops source paths whose files no longer exist. An
// asset left with no paths at all is deleted outright, artifacts
// included.
func (p *Pipeline) PruneMissingPaths(ctx context.Context, asset *models.Asset) error {
	kept := asset.SourcePaths[:0]
	for _, path := range asset.SourcePaths {
		if _, err := os.Stat(path); err == nil {
			kept = append(kept, path)
		}
	}
	if len(kept) == len(asset.SourcePaths) {
		return nil
	}

	if len(kept) == 0 {
		return p.DeleteWithFiles(ctx, asset.Hash)
	}

	asset.SourcePaths = kept
	if err := p.persistAsset(ctx, asset, false); err != nil {
		return err
	}
	p.cache.InvalidateAll(ctx)
	return nil
}

// deleteArtifact tolerates stores without a Delete method.
func deleteArtifact(ctx context.Context, store ArtifactStore, key string) error {
	type deleter interface {
		Delete(ctx context.Context, key string) error
	}
	if d, ok := store.(deleter); ok {
		return d.Delete(ctx, key)
	}
	return nil
}
