package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI model to use for a given stage.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

// GoogleStylistEngine is the live StylistEngine backed by the Gemini API.
// Descriptor, analysis and classification stages use structured JSON output;
// the composition stage uses the image-capable model.
type GoogleStylistEngine struct {
	client     *genai.Client
	TextModel  LLMModelName
	ImageModel LLMModelName
}

// NewStylistEngine decides the serving mode once, at construction. Without a
// GOOGLE_API_KEY the product stays usable on the offline engine instead of
// failing every request at call time.
func NewStylistEngine(ctx context.Context) (StylistEngine, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		fmt.Println("[Stylist] GOOGLE_API_KEY not set, serving offline mock engine")
		return NewMockStylistEngine(), nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %v", err)
	}
	return &GoogleStylistEngine{
		client:     client,
		TextModel:  Flash25,
		ImageModel: Flash25Image,
	}, nil
}

func (e *GoogleStylistEngine) Offline() bool {
	return false
}

// lookDescriptorSchema is the looks/reason envelope: the model either fills
// "looks" or explains itself in "reason", never both.
var lookDescriptorSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"looks": {
			Type: "array",
			Items: &genai.Schema{
				Type: "object",
				Properties: map[string]*genai.Schema{
					"look_id":     {Type: "string"},
					"name":        {Type: "string"},
					"explanation": {Type: "string"},
					"items": {
						Type: "array",
						Items: &genai.Schema{
							Type: "object",
							Properties: map[string]*genai.Schema{
								"id":     {Type: "string"},
								"name":   {Type: "string"},
								"source": {Type: "string"},
							},
							Required: []string{"id", "name", "source"},
						},
					},
					"body_affinity_index": {Type: "number"},
					"status":              {Type: "string"},
				},
				Required: []string{"look_id", "name", "explanation", "items", "body_affinity_index", "status"},
			},
		},
		"reason": {Type: "string"},
	},
}

var bodyAnalysisSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"bodyType": {Type: "string"},
		"measurements": {
			Type: "object",
			Properties: map[string]*genai.Schema{
				"bust":   {Type: "number"},
				"waist":  {Type: "number"},
				"hips":   {Type: "number"},
				"height": {Type: "number"},
			},
			Required: []string{"bust", "waist", "hips", "height"},
		},
	},
	Required: []string{"bodyType", "measurements"},
}

var itemClassificationSchema = &genai.Schema{
	Type: "object",
	Properties: map[string]*genai.Schema{
		"name":     {Type: "string"},
		"category": {Type: "string"},
	},
	Required: []string{"name", "category"},
}

// cleanAIResponseText strips markdown code fences some model versions wrap
// around JSON even in structured-output mode.
func cleanAIResponseText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func (e *GoogleStylistEngine) GenerateLookDescriptors(ctx context.Context, in GenerateLooksIn) ([]LookDescriptor, error) {
	prompt := BuildLookPrompt(in.Profile, in.Occasion, in.Candidates)

	result, err := e.client.Models.GenerateContent(ctx, e.TextModel.String(),
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   lookDescriptorSchema,
			CandidateCount:   1,
			MaxOutputTokens:  20000,
			Temperature:      floatPointer(0.8),
		})
	if err != nil {
		fmt.Println("[Stylist] Error in GenerateContent:", err)
		return nil, ClassifyTransportError(err)
	}
	if result.PromptFeedback != nil {
		fmt.Println("[Stylist] Prompt blocked:", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
		return nil, NewStylistError(ErrGenerationDeclined,
			"The stylist declined this request: "+result.PromptFeedback.BlockReasonMessage, nil)
	}

	raw := cleanAIResponseText(result.Text())
	descriptors, err := DecodeDescriptorEnvelope([]byte(raw))
	if err != nil {
		fmt.Println("[Stylist] Descriptor payload rejected:", err)
		return nil, err
	}
	return descriptors, nil
}

func (e *GoogleStylistEngine) GenerateLookImage(ctx context.Context, base EncodedImage, items []EncodedImage, description string) (string, error) {
	parts := []*genai.Part{{
		InlineData: &genai.Blob{MIMEType: base.MimeType, Data: base.Data},
	}}
	for _, item := range items {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: item.MimeType, Data: item.Data},
		})
	}
	parts = append(parts, &genai.Part{Text: BuildCompositionPrompt(description)})

	result, err := e.client.Models.GenerateContent(ctx, e.ImageModel.String(),
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			CandidateCount:  1,
			MaxOutputTokens: 50000,
			Temperature:     floatPointer(1),
		})
	if err != nil {
		fmt.Println("[Stylist] Error in GenerateContent (image):", err)
		return "", ClassifyTransportError(err)
	}
	if result.PromptFeedback != nil {
		fmt.Println("[Stylist] Image prompt blocked:", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
		return "", NewStylistError(ErrGenerationDeclined,
			"The image request was declined: "+result.PromptFeedback.BlockReasonMessage, nil)
	}

	images, err := getAllInlineImages(result)
	if err != nil {
		return "", NewStylistError(ErrGenerationDeclined, "The image request was declined", err)
	}
	if len(images) == 0 {
		// A textual answer in place of an image is the model refusing; silence
		// is a broken response.
		if text := cleanAIResponseText(result.Text()); text != "" {
			fmt.Println("[Stylist] Model answered with text instead of an image:", text)
			return "", NewStylistError(ErrGenerationDeclined,
				"The stylist declined to compose this look: "+text, nil)
		}
		return "", NewStylistError(ErrNoImageReturned,
			"The stylist returned no image for this look", nil)
	}
	return EncodedImage{MimeType: "image/png", Data: images[0]}.DataURL(), nil
}

func (e *GoogleStylistEngine) AnalyzeBody(ctx context.Context, image EncodedImage) (BodyAnalysis, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: image.MimeType, Data: image.Data}},
		{Text: BuildBodyAnalysisPrompt()},
	}
	result, err := e.client.Models.GenerateContent(ctx, e.TextModel.String(),
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   bodyAnalysisSchema,
			CandidateCount:   1,
			MaxOutputTokens:  5000,
			Temperature:      floatPointer(0.4),
		})
	if err != nil {
		fmt.Println("[Stylist] Error in GenerateContent (analyze):", err)
		return BodyAnalysis{}, ClassifyTransportError(err)
	}
	if result.PromptFeedback != nil {
		return BodyAnalysis{}, NewStylistError(ErrGenerationDeclined,
			"The photo could not be analyzed: "+result.PromptFeedback.BlockReasonMessage, nil)
	}
	var analysis BodyAnalysis
	if err := json.Unmarshal([]byte(cleanAIResponseText(result.Text())), &analysis); err != nil {
		return BodyAnalysis{}, NewStylistError(ErrContractViolation,
			"The body analysis response could not be parsed", err)
	}
	return analysis, nil
}

func (e *GoogleStylistEngine) ClassifyItem(ctx context.Context, image EncodedImage) (ItemClassification, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: image.MimeType, Data: image.Data}},
		{Text: BuildClassifyPrompt()},
	}
	result, err := e.client.Models.GenerateContent(ctx, e.TextModel.String(),
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   itemClassificationSchema,
			CandidateCount:   1,
			MaxOutputTokens:  2000,
			Temperature:      floatPointer(0.4),
		})
	if err != nil {
		fmt.Println("[Stylist] Error in GenerateContent (classify):", err)
		return ItemClassification{}, ClassifyTransportError(err)
	}
	if result.PromptFeedback != nil {
		return ItemClassification{}, NewStylistError(ErrGenerationDeclined,
			"The item photo could not be classified: "+result.PromptFeedback.BlockReasonMessage, nil)
	}
	var classification ItemClassification
	if err := json.Unmarshal([]byte(cleanAIResponseText(result.Text())), &classification); err != nil {
		return ItemClassification{}, NewStylistError(ErrContractViolation,
			"The classification response could not be parsed", err)
	}
	return classification, nil
}

func getAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("nil response")
	}
	var allImageData [][]byte
	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}
		for _, part := range cand.Content.Parts {
			inlineData := part.InlineData
			if inlineData == nil {
				continue
			}
			if strings.HasPrefix(inlineData.MIMEType, "image/") && len(inlineData.Data) > 0 {
				allImageData = append(allImageData, inlineData.Data)
			}
		}
	}
	return allImageData, nil
}
