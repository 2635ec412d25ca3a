package pipeline

import (
	"context"
	"fmt"

	"github.com/tognee/librephotos/internal/models"
)

// ReconcileThings mirrors the scene-classifier output into thing
// albums. Memberships are add-only: labels that vanish from a rerun
// keep their existing album links.
func (p *Pipeline) ReconcileThings(ctx context.Context, asset *models.Asset) error {
	scene := asset.Captions.Places365
	if scene == nil {
		return nil
	}

	changed := false
	for _, title := range scene.Attributes {
		added, err := p.addToThing(ctx, asset, title, models.ThingTypeAttribute)
		if err != nil {
			return err
		}
		changed = changed || added
	}
	for _, title := range scene.Categories {
		added, err := p.addToThing(ctx, asset, title, models.ThingTypeCategory)
		if err != nil {
			return err
		}
		changed = changed || added
	}

	if changed {
		p.cache.InvalidateAll(ctx)
	}
	return nil
}

func (p *Pipeline) addToThing(ctx context.Context, asset *models.Asset, title, thingType string) (bool, error) {
	if title == "" {
		return false, nil
	}
	album, err := p.store.GetOrCreateAlbumThing(ctx, asset.OwnerID, title)
	if err != nil {
		return false, fmt.Errorf("resolve thing album %q: %w", title, err)
	}
	contained, err := p.store.AlbumThingContains(ctx, album.ID, asset.Hash)
	if err != nil {
		return false, fmt.Errorf("check thing album %q: %w", title, err)
	}
	if contained {
		return false, nil
	}
	if album.ThingType != thingType {
		album.ThingType = thingType
		if err := p.store.SaveAlbumThing(ctx, album); err != nil {
			return false, fmt.Errorf("save thing album %q: %w", title, err)
		}
	}
	if err := p.store.AddToAlbumThing(ctx, album.ID, asset.Hash); err != nil {
		return false, fmt.Errorf("join thing album %q: %w", title, err)
	}
	return true, nil
}
