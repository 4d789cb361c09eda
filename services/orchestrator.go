package services

import (
	"context"
	"fmt"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"stylemeapi/models"
)

// LookComposer drives the full look pipeline: descriptor generation, item
// resolution, then concurrent per-look image composition. It is engine
// agnostic, so the same flow serves both the live and offline modes.
type LookComposer struct {
	Engine StylistEngine
}

func NewLookComposer(engine StylistEngine) *LookComposer {
	return &LookComposer{Engine: engine}
}

// GenerateLooks produces the finished looks for an occasion. The image stage
// runs one goroutine per look; the first failure cancels the rest and the
// whole call fails with that classified error.
func (c *LookComposer) GenerateLooks(ctx context.Context, profile models.StyleProfile, occasion string, candidates []models.CandidateItem) ([]models.Look, error) {
	descriptors, err := c.Engine.GenerateLookDescriptors(ctx, GenerateLooksIn{
		Profile:    profile,
		Occasion:   occasion,
		Candidates: candidates,
	})
	if err != nil {
		return nil, err
	}

	var baseImage EncodedImage
	if !c.Engine.Offline() {
		baseImage, err = FetchImageAsEncoded(profile.BaseImageURL)
		if err != nil {
			sentry.CaptureException(fmt.Errorf("[Looks] base photo fetch failed for profile %v: %w", profile.ID, err))
			return nil, err
		}
	}

	looks := make([]models.Look, len(descriptors))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, descriptor := range descriptors {
		group.Go(func() error {
			items := ResolveItems(descriptor.Items, candidates)

			var itemImages []EncodedImage
			if !c.Engine.Offline() {
				for _, item := range items {
					if item.ImageURL == "" {
						continue
					}
					encoded, err := FetchImageAsEncoded(item.ImageURL)
					if err != nil {
						// A single missing item photo should not sink the
						// look, the model composes from what it gets.
						fmt.Printf("[Looks] skipping item image %s: %v\n", item.ID, err)
						sentry.CaptureException(fmt.Errorf("[Looks] item image fetch failed %s: %w", item.ID, err))
						continue
					}
					itemImages = append(itemImages, encoded)
				}
			}

			imageRef, err := c.Engine.GenerateLookImage(groupCtx, baseImage, itemImages, descriptor.Explanation)
			if err != nil {
				return err
			}
			looks[i] = models.Look{
				ID:          descriptor.LookID,
				Name:        descriptor.Name,
				Description: descriptor.Explanation,
				Score:       descriptor.Affinity,
				ImageURL:    imageRef,
				Items:       items,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return looks, nil
}

// BuildCandidatePool implements the selection fallback: explicitly chosen
// items first, otherwise the whole wardrobe, otherwise the store catalog.
// resolveURL turns a stored object key into a fetchable URL.
func BuildCandidatePool(selected []models.CandidateItem, wardrobe []models.WardrobeItem, store []models.StoreProduct, resolveURL func(key string) string) []models.CandidateItem {
	if len(selected) > 0 {
		return models.TagProvenance(selected)
	}
	resolve := func(key *string) string {
		if key == nil || *key == "" {
			return ""
		}
		return resolveURL(*key)
	}
	if len(wardrobe) > 0 {
		pool := make([]models.CandidateItem, 0, len(wardrobe))
		for _, w := range wardrobe {
			pool = append(pool, models.CandidateFromWardrobe(w, resolve(w.ImageURL)))
		}
		return models.TagProvenance(pool)
	}
	pool := make([]models.CandidateItem, 0, len(store))
	for _, p := range store {
		pool = append(pool, models.CandidateFromProduct(p, resolve(p.ImageURL)))
	}
	return models.TagProvenance(pool)
}
