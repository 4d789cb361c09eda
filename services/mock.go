package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"stylemeapi/languageutil"
	"stylemeapi/models"
)

// MockStylistEngine is the degraded offline mode served when no API key is
// configured. It fabricates believable looks with deterministic placeholder
// imagery so the whole product flow stays demoable.
type MockStylistEngine struct {
	// LatencyUnit scales the simulated model latency. Tests set it to zero.
	LatencyUnit time.Duration
}

func NewMockStylistEngine() *MockStylistEngine {
	return &MockStylistEngine{LatencyUnit: time.Second}
}

func (e *MockStylistEngine) Offline() bool {
	return true
}

// pause simulates model latency without ignoring cancellation.
func (e *MockStylistEngine) pause(ctx context.Context, units float64) error {
	d := time.Duration(units * float64(e.LatencyUnit))
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *MockStylistEngine) GenerateLookDescriptors(ctx context.Context, in GenerateLooksIn) ([]LookDescriptor, error) {
	if err := e.pause(ctx, 1.5); err != nil {
		return nil, err
	}
	if len(in.Candidates) < 2 {
		return nil, NewStylistError(ErrGenerationDeclined,
			"At least two items are needed to put a look together", nil)
	}

	ref := func(c models.CandidateItem) LookItemRef {
		return LookItemRef{ID: c.ID, Name: c.Name, Source: c.Source}
	}
	first := []LookItemRef{ref(in.Candidates[0]), ref(in.Candidates[1])}
	second := first
	if len(in.Candidates) > 2 {
		second = []LookItemRef{ref(in.Candidates[0]), ref(in.Candidates[2])}
	}

	return []LookDescriptor{
		{
			LookID:      "mock1",
			Name:        "The Relaxed Classic",
			Explanation: fmt.Sprintf("An easy, polished pairing that fits a %s without trying too hard. Comfortable pieces, deliberate silhouette.", in.Occasion),
			Items:       first,
			Affinity:    9.5,
			Status:      "DRAFT",
		},
		{
			LookID:      "mock2",
			Name:        "The Statement Look",
			Explanation: fmt.Sprintf("A sharper take on %s, built around one standout piece that draws the eye. Confident and photograph-ready.", in.Occasion),
			Items:       second,
			Affinity:    9.2,
			Status:      "DRAFT",
		},
	}, nil
}

func (e *MockStylistEngine) GenerateLookImage(ctx context.Context, base EncodedImage, items []EncodedImage, description string) (string, error) {
	if err := e.pause(ctx, 2); err != nil {
		return "", err
	}
	// Seeded placeholder keeps the same description rendering the same image.
	seed := languageutil.Slugify(description)
	return fmt.Sprintf("https://picsum.photos/seed/%s/400/600", seed), nil
}

func (e *MockStylistEngine) AnalyzeBody(ctx context.Context, image EncodedImage) (BodyAnalysis, error) {
	if err := e.pause(ctx, 1); err != nil {
		return BodyAnalysis{}, err
	}
	return BodyAnalysis{
		BodyType: "rectangle",
		Measurements: models.Measurements{
			Bust:   90,
			Waist:  75,
			Hips:   95,
			Height: 170,
		},
	}, nil
}

// mockItemNames is the small fixed vocabulary the offline classifier draws
// from.
var mockItemNames = []string{"Cotton Shirt", "Slim Fit Jeans", "Casual Sneakers", "Leather Jacket"}

func (e *MockStylistEngine) ClassifyItem(ctx context.Context, image EncodedImage) (ItemClassification, error) {
	if err := e.pause(ctx, 1); err != nil {
		return ItemClassification{}, err
	}
	return ItemClassification{
		Name:     mockItemNames[rand.Intn(len(mockItemNames))],
		Category: models.ClothingCategories[rand.Intn(len(models.ClothingCategories))],
	}, nil
}
