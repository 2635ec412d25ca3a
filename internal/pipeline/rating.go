package pipeline

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tognee/librephotos/internal/metadata"
	"github.com/tognee/librephotos/internal/models"
)

// ExtractRating imports the XMP rating from file metadata. An absent or
// malformed tag keeps the stored rating; the save deliberately skips
// the metadata write-back so an import never echoes the value straight
// back into the file.
func (p *Pipeline) ExtractRating(ctx context.Context, asset *models.Asset) error {
	values, err := p.meta.ReadTags(ctx, asset.CanonicalPath(),
		[]string{metadata.TagRating}, true)
	if err != nil {
		slog.Warn("read rating tag", "hash", asset.Hash, "error", err)
		return nil
	}
	if values[0] == nil {
		return nil
	}
	rating, err := strconv.Atoi(*values[0])
	if err != nil {
		slog.Warn("parse rating tag", "hash", asset.Hash, "value", *values[0])
		return nil
	}
	if rating == asset.Rating {
		return nil
	}
	asset.Rating = rating
	return p.persistAsset(ctx, asset, false)
}
