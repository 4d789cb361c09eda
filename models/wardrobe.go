package models

import "fmt"

// Fixed category vocabulary the classifier is allowed to answer with.
var ClothingCategories = []string{
	"Blouses",
	"Shirts",
	"T-Shirts",
	"Polos",
	"Tank Tops",
	"Pants",
	"Jeans",
	"Shorts",
	"Skirts",
	"Dresses",
	"Jumpsuits",
	"Jackets & Coats",
	"Shoes",
	"Accessories",
}

func ValidClothingCategory(category string) bool {
	for _, c := range ClothingCategories {
		if c == category {
			return true
		}
	}
	return false
}

type WardrobeItem struct {
	JsonModel
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Owner           UserAccount `json:"-"`
	OwnerID         uint        `json:"-"`
	ImageURL        *string     `json:"image_url"`
	IsFavorite      bool        `gorm:"default:false" json:"is_favorite"`
	CreationYear    int         `json:"creation_year"`
	ManualTechnique string      `json:"manual_technique"` // tailoring, crochet, industrial
	FiberOrigin     string      `json:"fiber_origin"`     // organic, recycled, synthetic
	ItemStatus      string      `json:"item_status"`      // legacy, in_progress, ready

	// auto-classification bookkeeping
	ProcessingStatus    string  `json:"processing_status"` // idle, pending, completed, failed
	ProcessRetryTimes   int     `json:"process_retry_times"`
	ProcessErrorMessage *string `json:"process_error_message"`
}

type StoreProduct struct {
	JsonModel
	Name     string  `json:"name"`
	Category string  `json:"category"`
	ImageURL *string `json:"image_url"`
	Brand    string  `json:"brand"`
	Price    float64 `json:"price"`
}

// Item provenance for generation requests.
const (
	SourceCloset = "closet"
	SourceStore  = "store"
)

// CandidateItem is the in-memory union of a wardrobe item and a store
// product, as seen by one generation request. Source is attached exactly once
// at ingestion (brand present means store) and carried from there on; the
// model only ever references items by ID.
type CandidateItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
	Source   string `json:"source"`

	// store product fields
	Brand *string  `json:"brand,omitempty"`
	Price *float64 `json:"price,omitempty"`

	// wardrobe item fields
	IsFavorite      bool   `json:"is_favorite,omitempty"`
	CreationYear    int    `json:"creation_year,omitempty"`
	ManualTechnique string `json:"manual_technique,omitempty"`
	FiberOrigin     string `json:"fiber_origin,omitempty"`
	ItemStatus      string `json:"item_status,omitempty"`
}

func CandidateFromWardrobe(w WardrobeItem, imageURL string) CandidateItem {
	return CandidateItem{
		ID:              fmt.Sprintf("closet-%d", w.ID),
		Name:            w.Name,
		Category:        w.Category,
		ImageURL:        imageURL,
		IsFavorite:      w.IsFavorite,
		CreationYear:    w.CreationYear,
		ManualTechnique: w.ManualTechnique,
		FiberOrigin:     w.FiberOrigin,
		ItemStatus:      w.ItemStatus,
	}
}

func CandidateFromProduct(p StoreProduct, imageURL string) CandidateItem {
	brand := p.Brand
	price := p.Price
	return CandidateItem{
		ID:       fmt.Sprintf("store-%d", p.ID),
		Name:     p.Name,
		Category: p.Category,
		ImageURL: imageURL,
		Brand:    &brand,
		Price:    &price,
	}
}

// TagProvenance derives the source tag structurally: anything carrying a
// brand came from the catalog, everything else from the user's closet.
func TagProvenance(items []CandidateItem) []CandidateItem {
	tagged := make([]CandidateItem, len(items))
	for i, item := range items {
		if item.Brand != nil {
			item.Source = SourceStore
		} else {
			item.Source = SourceCloset
		}
		tagged[i] = item
	}
	return tagged
}
