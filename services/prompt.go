package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"stylemeapi/models"
)

// promptCandidate is the trimmed item view embedded in the stylist prompt.
// Only fields the model needs to reason about make it into the JSON.
type promptCandidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
	Brand    *string  `json:"brand,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

const lookCount = 2

// BuildLookPrompt renders the descriptor-stage prompt. It is deliberately
// deterministic: the same profile, occasion and candidate order always
// produce byte-identical text, so prompts are reproducible and cacheable.
func BuildLookPrompt(profile models.StyleProfile, occasion string, candidates []models.CandidateItem) string {
	items := make([]promptCandidate, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, promptCandidate{
			ID:       c.ID,
			Name:     c.Name,
			Category: c.Category,
			Source:   c.Source,
			Brand:    c.Brand,
			Price:    c.Price,
		})
	}
	itemsJSON, _ := json.Marshal(items)

	m := profile.Measurements()
	var b strings.Builder
	b.WriteString("You are an expert personal fashion stylist.\n\n")
	fmt.Fprintf(&b, "Client profile:\n")
	fmt.Fprintf(&b, "- Personal style: %s\n", profile.PersonalStyle)
	fmt.Fprintf(&b, "- Body type: %s\n", profile.BodyType)
	fmt.Fprintf(&b, "- Measurements: bust %vcm, waist %vcm, hips %vcm, height %vcm\n\n", m.Bust, m.Waist, m.Hips, m.Height)
	fmt.Fprintf(&b, "Occasion: %s\n\n", occasion)
	fmt.Fprintf(&b, "Available items (JSON):\n%s\n\n", string(itemsJSON))
	b.WriteString("Styling directives:\n")
	b.WriteString("1. Visual compensation: when the waist and hips measure close together, choose pieces that build structure at the shoulders or lightly define the waist without tightening it.\n")
	b.WriteString("2. Piece priority: treat the client's own pieces (source \"closet\") as the key pieces and build each look around them, completing the outfit preferentially from the closet.\n")
	b.WriteString("3. Technical upselling: suggest a store piece (source \"store\") only when it solves a proportion problem or elevates the base style.\n")
	fmt.Fprintf(&b, "4. Tone: professional, direct and consultative. Every explanation must state the technical reason for the choice, grounded in the measurements %v, %v and %v.\n", m.Bust, m.Waist, m.Hips)
	fmt.Fprintf(&b, "5. Generate at most %d looks. Use only item ids from the list above, never invent ids, and score each look's body affinity from 0 to 10.\n\n", lookCount)
	b.WriteString("Required output (JSON): an object with a \"looks\" array, or, if no look can be made from these items, an object with a \"reason\" string explaining why.\n")
	b.WriteString(`Each look must follow exactly: {"look_id": "unique string (format lk_look_name_random)", "name": "string", "explanation": "string", "items": [{"id": "string", "name": "string", "source": "closet|store"}], "body_affinity_index": 0.0-10.0, "status": "DRAFT"}` + "\n")
	return b.String()
}

// BuildCompositionPrompt is the instruction that accompanies the base photo
// and item images on the image-generation stage.
func BuildCompositionPrompt(description string) string {
	return fmt.Sprintf(
		"The first image is the person. The remaining images are clothing items. "+
			"Generate a photorealistic image of this exact person wearing the outfit described below, "+
			"keeping their face, pose and body unchanged. Plain studio background.\n\nOutfit: %s",
		description)
}

// BuildBodyAnalysisPrompt asks for a structured body read from a photo.
func BuildBodyAnalysisPrompt() string {
	return "Analyze the full-body photo and estimate the person's body type " +
		"(one of: hourglass, rectangle, pear, apple, inverted-triangle) and their " +
		"measurements in centimeters (bust, waist, hips, height). Respond with JSON only."
}

// BuildClassifyPrompt asks for a name and category for a garment photo.
func BuildClassifyPrompt() string {
	return fmt.Sprintf(
		"Identify the clothing item in the photo. Give it a short shoppable name "+
			"and assign exactly one category from this list: %s. Respond with JSON only.",
		strings.Join(models.ClothingCategories, ", "))
}
