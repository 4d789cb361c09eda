package models

import "encoding/json"

// Look is the final assembled outfit proposal: resolved items, the composite
// try-on image reference and the body affinity score. Immutable once returned
// by the orchestrator; ownership passes to the caller.
type Look struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Score       float64         `json:"score"`
	Items       []CandidateItem `json:"items"`
}

// SavedLook persists a look the user chose to keep. Items are stored as a
// JSON snapshot of the candidate records at save time.
type SavedLook struct {
	JsonModel
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	LookID      string      `json:"look_id"`
	Name        string      `json:"name"`
	Description *string     `gorm:"type:text" json:"description"`
	ImageURL    string      `gorm:"type:text" json:"image_url"`
	Score       float64     `json:"score"`
	ItemsJSON   string      `gorm:"type:text" json:"-"`
}

func (s *SavedLook) SetItems(items []CandidateItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	s.ItemsJSON = string(data)
	return nil
}

func (s SavedLook) Items() ([]CandidateItem, error) {
	var items []CandidateItem
	if s.ItemsJSON == "" {
		return items, nil
	}
	err := json.Unmarshal([]byte(s.ItemsJSON), &items)
	return items, err
}

// LookGeneration tracks one background generation request end to end.
type LookGeneration struct {
	JsonModel
	UserAccountID uint        `json:"-"`
	UserAccount   UserAccount `json:"user_account"`

	OccasionPrompt string `gorm:"type:text" json:"occasion_prompt"`
	// selected candidate ids, JSON arrays; empty means "use the whole closet"
	WardrobeItemIDsJSON string `gorm:"type:text" json:"-"`
	StoreProductIDsJSON string `gorm:"type:text" json:"-"`

	// profile snapshot at the point of generation
	GeneratedWithAvatarURL string `gorm:"type:text" json:"generated_with_avatar_url"`

	Status                 string  `json:"status"` // pending, completed, failed
	ResultJSON             *string `gorm:"type:text" json:"-"`
	GenerationRetryTimes   int     `json:"generation_retry_times"`
	GenerationErrorMessage *string `json:"generation_error_message"`
	ErrorKind              *string `json:"error_kind"`
	LLMModel               *string `json:"llm_model"`
	Duration               *float64 `json:"duration"` // in seconds
}

func (g *LookGeneration) SetSelection(wardrobeIDs, productIDs []uint) error {
	w, err := json.Marshal(wardrobeIDs)
	if err != nil {
		return err
	}
	p, err := json.Marshal(productIDs)
	if err != nil {
		return err
	}
	g.WardrobeItemIDsJSON = string(w)
	g.StoreProductIDsJSON = string(p)
	return nil
}

func (g LookGeneration) Selection() (wardrobeIDs, productIDs []uint, err error) {
	if g.WardrobeItemIDsJSON != "" {
		if err = json.Unmarshal([]byte(g.WardrobeItemIDsJSON), &wardrobeIDs); err != nil {
			return nil, nil, err
		}
	}
	if g.StoreProductIDsJSON != "" {
		if err = json.Unmarshal([]byte(g.StoreProductIDsJSON), &productIDs); err != nil {
			return nil, nil, err
		}
	}
	return wardrobeIDs, productIDs, nil
}

func (g *LookGeneration) SetResult(looks []Look) error {
	data, err := json.Marshal(looks)
	if err != nil {
		return err
	}
	result := string(data)
	g.ResultJSON = &result
	return nil
}

func (g LookGeneration) Result() ([]Look, error) {
	var looks []Look
	if g.ResultJSON == nil {
		return looks, nil
	}
	err := json.Unmarshal([]byte(*g.ResultJSON), &looks)
	return looks, err
}
