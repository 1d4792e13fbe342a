package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/annlab/internal/models"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

const systemInstruction = `You are a data generator for a vector database visualization.
Generate distinct items based on the user's prompt.
Map each item to a 2D coordinate system (x, y) where x and y are between 5 and 95.
Ensure the distribution helps visualize clustering (some close together, some far apart).`

// contentGenerator is the part of *genai.Models the source calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSource generates labelled 2D items from a prompt with Gemini structured output.
type GeminiSource struct {
	models contentGenerator
	model  string
}

// NewGeminiSource creates a Gemini-backed source. An empty apiKey yields a source whose
// Generate always fails with ErrUpstreamUnavailable, so callers can fall back.
func NewGeminiSource(ctx context.Context, apiKey, model string) (*GeminiSource, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	model = strings.TrimPrefix(model, "models/")
	if apiKey == "" {
		return &GeminiSource{model: model}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSource{models: client.Models, model: model}, nil
}

// Name implements Source.
func (g *GeminiSource) Name() string { return SourceGemini }

// Generate implements Source.
func (g *GeminiSource) Generate(ctx context.Context, prompt string) ([]models.Point, error) {
	if g.models == nil {
		return nil, fmt.Errorf("%w: gemini api key not configured", models.ErrUpstreamUnavailable)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", models.ErrInvalidParameter)
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), generateConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", models.ErrUpstreamUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", models.ErrUpstreamUnavailable)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned an empty response", models.ErrUpstreamUnavailable)
	}
	var items []Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("%w: decode gemini response: %w", models.ErrUpstreamUnavailable, err)
	}
	// Upstream ids are not trusted; positions are.
	for i := range items {
		items[i].ID = ""
	}
	return ToPoints(items)
}

func generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"label":       {Type: genai.TypeString, Description: "Short name of the item (e.g. Movie Title)"},
					"description": {Type: genai.TypeString, Description: "Very short description (5-10 words)"},
					"x":           {Type: genai.TypeNumber, Description: "X coordinate (0-100)"},
					"y":           {Type: genai.TypeNumber, Description: "Y coordinate (0-100)"},
				},
				Required: []string{"label", "x", "y", "description"},
			},
		},
	}
}
