package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stylemeapi/models"
)

// stubEngine lets tests script descriptor output without a model call.
type stubEngine struct {
	descriptors []LookDescriptor
	descErr     error
	imageErr    error
}

func (s *stubEngine) GenerateLookDescriptors(ctx context.Context, in GenerateLooksIn) ([]LookDescriptor, error) {
	return s.descriptors, s.descErr
}

func (s *stubEngine) GenerateLookImage(ctx context.Context, base EncodedImage, items []EncodedImage, description string) (string, error) {
	if s.imageErr != nil {
		return "", s.imageErr
	}
	return "https://picsum.photos/seed/stub/400/600", nil
}

func (s *stubEngine) AnalyzeBody(ctx context.Context, image EncodedImage) (BodyAnalysis, error) {
	return BodyAnalysis{}, errors.New("not scripted")
}

func (s *stubEngine) ClassifyItem(ctx context.Context, image EncodedImage) (ItemClassification, error) {
	return ItemClassification{}, errors.New("not scripted")
}

func (s *stubEngine) Offline() bool { return true }

func brunchCandidates() []models.CandidateItem {
	return []models.CandidateItem{
		{ID: "closet-1", Name: "White Linen Blouse", Category: "Blouses", Source: models.SourceCloset},
		{ID: "closet-2", Name: "High-Waist Jeans", Category: "Pants", Source: models.SourceCloset},
		{ID: "closet-3", Name: "Ballet Flats", Category: "Shoes", Source: models.SourceCloset},
	}
}

func TestGenerateLooksBrunchScenario(t *testing.T) {
	composer := NewLookComposer(instantMock())

	looks, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "casual Sunday brunch", brunchCandidates())
	assert.NoError(t, err)
	assert.Len(t, looks, 2)

	assert.Equal(t, "mock1", looks[0].ID)
	assert.Equal(t, "The Relaxed Classic", looks[0].Name)
	assert.Equal(t, 9.5, looks[0].Score)
	assert.Equal(t, "mock2", looks[1].ID)
	assert.Equal(t, 9.2, looks[1].Score)

	// Items come back resolved to the actual candidates.
	assert.Len(t, looks[0].Items, 2)
	assert.Equal(t, "closet-1", looks[0].Items[0].ID)
	assert.Equal(t, "closet-2", looks[0].Items[1].ID)
	assert.Len(t, looks[1].Items, 2)
	assert.Equal(t, "closet-1", looks[1].Items[0].ID)
	assert.Equal(t, "closet-3", looks[1].Items[1].ID)

	// Offline imagery is a deterministic seeded placeholder.
	assert.Contains(t, looks[0].ImageURL, "https://picsum.photos/seed/")

	again, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "casual Sunday brunch", brunchCandidates())
	assert.NoError(t, err)
	assert.Equal(t, looks, again)
}

func TestGenerateLooksDropsUnknownItemIDs(t *testing.T) {
	engine := &stubEngine{descriptors: []LookDescriptor{
		{LookID: "lk_mixed_1", Name: "Mixed", Explanation: "Some ids are real.", Affinity: 8, Status: "DRAFT",
			Items: []LookItemRef{{ID: "closet-1"}, {ID: "closet-99"}, {ID: "closet-3"}}},
	}}
	composer := NewLookComposer(engine)

	looks, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "brunch", brunchCandidates())
	assert.NoError(t, err)
	assert.Len(t, looks, 1)
	assert.Len(t, looks[0].Items, 2)
	assert.Equal(t, "closet-1", looks[0].Items[0].ID)
	assert.Equal(t, "closet-3", looks[0].Items[1].ID)
}

func TestGenerateLooksAllUnknownIDsYieldsEmptyItems(t *testing.T) {
	engine := &stubEngine{descriptors: []LookDescriptor{
		{LookID: "lk_hallucinated_1", Name: "Hallucinated", Explanation: "No id is real.", Affinity: 7, Status: "DRAFT",
			Items: []LookItemRef{{ID: "store-404"}, {ID: "closet-500"}}},
	}}
	composer := NewLookComposer(engine)

	looks, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "brunch", brunchCandidates())
	assert.NoError(t, err)
	assert.Len(t, looks, 1)
	assert.Empty(t, looks[0].Items)
	assert.NotEmpty(t, looks[0].ImageURL)
}

func TestGenerateLooksPropagatesDescriptorFailure(t *testing.T) {
	engine := &stubEngine{descErr: NewStylistError(ErrQuotaExceeded, "quota", nil)}
	composer := NewLookComposer(engine)

	_, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "brunch", brunchCandidates())
	assert.Error(t, err)
	assert.Equal(t, ErrQuotaExceeded, ErrorKindOf(err))
}

func TestGenerateLooksFirstImageFailureAborts(t *testing.T) {
	engine := &stubEngine{
		descriptors: []LookDescriptor{
			{LookID: "lk_one", Name: "One", Explanation: "First.", Affinity: 8, Status: "DRAFT", Items: []LookItemRef{{ID: "closet-1"}}},
			{LookID: "lk_two", Name: "Two", Explanation: "Second.", Affinity: 9, Status: "DRAFT", Items: []LookItemRef{{ID: "closet-2"}}},
		},
		imageErr: NewStylistError(ErrNoImageReturned, "no image", nil),
	}
	composer := NewLookComposer(engine)

	_, err := composer.GenerateLooks(context.Background(), promptFixtureProfile(), "brunch", brunchCandidates())
	assert.Error(t, err)
	assert.Equal(t, ErrNoImageReturned, ErrorKindOf(err))
}

func TestBuildCandidatePoolFallback(t *testing.T) {
	resolve := func(key string) string { return "https://cdn.example.com/" + key }
	selected := []models.CandidateItem{{ID: "closet-7", Name: "Chosen", Category: "Dresses", Source: models.SourceCloset}}
	wardrobe := []models.WardrobeItem{{Name: "Blouse", Category: "Blouses", ImageURL: StrPointer("w/1.png")}}
	store := []models.StoreProduct{{Name: "Tote", Category: "Accessories", Brand: "Aurelle", Price: 129, ImageURL: StrPointer("s/1.png")}}

	pool := BuildCandidatePool(selected, wardrobe, store, resolve)
	assert.Equal(t, selected, pool)

	pool = BuildCandidatePool(nil, wardrobe, store, resolve)
	assert.Len(t, pool, 1)
	assert.Equal(t, models.SourceCloset, pool[0].Source)
	assert.Equal(t, "https://cdn.example.com/w/1.png", pool[0].ImageURL)

	pool = BuildCandidatePool(nil, nil, store, resolve)
	assert.Len(t, pool, 1)
	assert.Equal(t, models.SourceStore, pool[0].Source)
	assert.Equal(t, "Aurelle", *pool[0].Brand)
}
