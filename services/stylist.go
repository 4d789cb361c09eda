package services

import (
	"context"
	"encoding/json"
	"fmt"

	"stylemeapi/models"
)

// LookItemRef is a single wardrobe/store reference returned by the stylist
// model. IDs are the request-scoped candidate IDs, so they resolve without a
// second lookup round trip.
type LookItemRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// LookDescriptor is the structured outfit the model must return before any
// image work starts: what the look is, why it works for this body, how
// strong the match is, and which candidate items compose it.
type LookDescriptor struct {
	LookID      string        `json:"look_id"`
	Name        string        `json:"name"`
	Explanation string        `json:"explanation"`
	Items       []LookItemRef `json:"items"`
	Affinity    float64       `json:"body_affinity_index"`
	Status      string        `json:"status"`
}

// DescriptorEnvelope is the model's top-level response: either a set of
// looks, or a reason it could not style any.
type DescriptorEnvelope struct {
	Looks  []LookDescriptor `json:"looks"`
	Reason string           `json:"reason,omitempty"`
}

// BodyAnalysis is the model's read of a full-body photo.
type BodyAnalysis struct {
	BodyType     string              `json:"bodyType"`
	Measurements models.Measurements `json:"measurements"`
}

// ItemClassification is the model's read of a single garment photo.
type ItemClassification struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// GenerateLooksIn carries everything the descriptor stage needs: the user's
// styling profile, the occasion text, and the candidate pool the model may
// pick from.
type GenerateLooksIn struct {
	Profile    models.StyleProfile
	Occasion   string
	Candidates []models.CandidateItem
}

// StylistEngine is the capability boundary around the generative model. The
// live implementation talks to Gemini; the offline one fabricates plausible
// results so the rest of the product keeps working without a key.
type StylistEngine interface {
	// GenerateLookDescriptors runs the structured-output stage and returns
	// validated outfit descriptors referencing candidate IDs.
	GenerateLookDescriptors(ctx context.Context, in GenerateLooksIn) ([]LookDescriptor, error)

	// GenerateLookImage composes the user's base photo with the look's item
	// images and returns a displayable image reference (a data URL from the
	// live engine).
	GenerateLookImage(ctx context.Context, base EncodedImage, items []EncodedImage, description string) (string, error)

	// AnalyzeBody estimates body type and measurements from a full body photo.
	AnalyzeBody(ctx context.Context, image EncodedImage) (BodyAnalysis, error)

	// ClassifyItem names and categorizes a single clothing photo.
	ClassifyItem(ctx context.Context, image EncodedImage) (ItemClassification, error)

	// Offline reports whether the engine is the degraded no-key mode.
	Offline() bool
}

// DecodeDescriptorEnvelope parses a structured-output payload and applies
// the soft-failure contract: a populated reason is the model declining to
// style, not a broken response, and so is a parseable envelope with no
// looks in it.
func DecodeDescriptorEnvelope(raw []byte) ([]LookDescriptor, error) {
	var envelope DescriptorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, NewStylistError(ErrContractViolation,
			"The stylist response could not be parsed", err)
	}
	if envelope.Reason != "" {
		return nil, NewStylistError(ErrGenerationDeclined, envelope.Reason, nil)
	}
	if err := ValidateDescriptors(envelope.Looks); err != nil {
		return nil, err
	}
	return envelope.Looks, nil
}

// ValidateDescriptors enforces the structured-output contract. No looks at
// all means the model gave up on these items (a decline the caller can show
// the user); looks with missing look_ids, duplicate look_ids, empty names or
// explanations, or out-of-range affinities are contract violations, same as
// unparseable JSON.
func ValidateDescriptors(descriptors []LookDescriptor) error {
	if len(descriptors) == 0 {
		return NewStylistError(ErrGenerationDeclined,
			"The stylist could not generate looks with the given items, try a different combination", nil)
	}
	seen := make(map[string]bool, len(descriptors))
	for i, d := range descriptors {
		if d.LookID == "" {
			return NewStylistError(ErrContractViolation,
				fmt.Sprintf("The stylist returned a look without a look_id (index %d)", i), nil)
		}
		if seen[d.LookID] {
			return NewStylistError(ErrContractViolation,
				fmt.Sprintf("The stylist reused look_id %q", d.LookID), nil)
		}
		seen[d.LookID] = true
		if d.Name == "" {
			return NewStylistError(ErrContractViolation,
				fmt.Sprintf("The stylist returned look %q without a name", d.LookID), nil)
		}
		if d.Explanation == "" {
			return NewStylistError(ErrContractViolation,
				fmt.Sprintf("The stylist returned look %q without an explanation", d.Name), nil)
		}
		if d.Affinity < 0 || d.Affinity > 10 {
			return NewStylistError(ErrContractViolation,
				fmt.Sprintf("The stylist scored look %q outside 0-10: %v", d.Name, d.Affinity), nil)
		}
	}
	return nil
}

// ResolveItems maps descriptor item references back onto the request's
// candidate pool. Unknown IDs are dropped silently, matching the tolerant
// contract: a partially hallucinated list still produces a usable look.
func ResolveItems(refs []LookItemRef, candidates []models.CandidateItem) []models.CandidateItem {
	byID := make(map[string]models.CandidateItem, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	resolved := make([]models.CandidateItem, 0, len(refs))
	for _, ref := range refs {
		if item, ok := byID[ref.ID]; ok {
			resolved = append(resolved, item)
		}
	}
	return resolved
}
