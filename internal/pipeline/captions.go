package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tognee/librephotos/internal/models"
)

// GenerateCaptions runs the three caption facets on the large
// thumbnail: scene classification, generated prose, and the semantic
// embedding. Each facet degrades independently.
func (p *Pipeline) GenerateCaptions(ctx context.Context, asset *models.Asset, user *models.User) error {
	data, img, err := p.readThumbnail(ctx, asset)
	if err != nil {
		return err
	}

	dirty := false

	if p.classifier != nil && asset.Captions.Places365 == nil {
		scene, err := p.classifier.ClassifyScene(img, user.Confidence)
		if err != nil {
			slog.Error("classify scene", "hash", asset.Hash, "error", err)
		} else if scene != nil {
			asset.Captions.Places365 = scene
			appendSceneSearchTerms(asset, scene)
			dirty = true
		}
	}

	if p.captioner != nil && asset.Captions.Im2txt == "" {
		caption, err := p.captioner.GenerateCaption(ctx, data)
		if err != nil {
			slog.Error("generate caption", "hash", asset.Hash, "error", err)
		} else if caption != "" {
			caption = cleanGeneratedCaption(caption)
			asset.Captions.Im2txt = caption
			asset.SearchCaptions += caption
			dirty = true
		}
	}

	if p.embedder != nil && len(asset.Embedding) == 0 {
		vec, magnitude, err := p.embedder.EmbedImage(img)
		if err != nil {
			slog.Error("embed image", "hash", asset.Hash, "error", err)
		} else {
			asset.Embedding = vec
			asset.EmbeddingMagnitude = &magnitude
			dirty = true
		}
	}

	if !dirty {
		return nil
	}
	return p.persistAsset(ctx, asset, true)
}

// appendSceneSearchTerms flattens categories and the environment label
// into the search text, comma-delimited. Attributes stay out of the
// search text; they only feed the thing albums.
func appendSceneSearchTerms(asset *models.Asset, scene *models.SceneCaption) {
	terms := make([]string, 0, len(scene.Categories)+1)
	terms = append(terms, scene.Categories...)
	if scene.Environment != "" {
		terms = append(terms, scene.Environment)
	}
	if len(terms) == 0 {
		return
	}
	joined := strings.Join(terms, " , ")
	if asset.SearchCaptions != "" {
		asset.SearchCaptions += " , " + joined
	} else {
		asset.SearchCaptions = joined
	}
}

// cleanGeneratedCaption strips the model's sequence markers and
// normalizes casing.
func cleanGeneratedCaption(caption string) string {
	caption = strings.ReplaceAll(caption, "<start>", "")
	caption = strings.ReplaceAll(caption, "<end>", "")
	return strings.ToLower(strings.TrimSpace(caption))
}
