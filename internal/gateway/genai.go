package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
)

const composerSystemInstruction = `You are an expert AI composer. Generate a structured JSON musical score.
- The output must be compatible with Tone.js Part sequencing.
- Create a loopable 4-bar progression (Measure:Beat:Sixteenth format, from 0:0:0 to 3:3:0).
- Use "synth" for melody/harmony, "metal" for hi-hats/cymbals, "membrane" for kicks/toms.
- Ensure rhythmic interest appropriate for the genre.`

// GenAIService wraps the official SDK for the narrow helper endpoints that
// do not need the hand-rolled chat transport.
type GenAIService struct {
	client *genai.Client
	model  string
}

// NewGenAIService creates a new SDK-backed service.
func NewGenAIService(ctx context.Context, apiKey, model string) (*GenAIService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIService{client: client, model: model}, nil
}

// EnhancePrompt rewrites a user prompt for a code generator. Fails open: any
// error returns the original prompt unchanged.
func (s *GenAIService) EnhancePrompt(ctx context.Context, originalPrompt string) string {
	instruction := fmt.Sprintf(`You are an expert prompt engineer. Rewrite the following user prompt to be clear, precise, and optimized for an AI code generator. Keep the intent but add necessary technical details if implied. Return ONLY the rewritten prompt. Prompt: %q`, originalPrompt)

	contents := []*genai.Content{
		genai.NewContentFromText(instruction, genai.RoleUser),
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		logging.GatewayError("EnhancePrompt failed, keeping original: %v", err)
		return originalPrompt
	}

	enhanced := strings.TrimSpace(result.Text())
	if enhanced == "" {
		return originalPrompt
	}
	return enhanced
}

// GenerateMusicalScore produces a 4-bar loop as a structured note sequence.
func (s *GenAIService) GenerateMusicalScore(ctx context.Context, prompt, genre string) (*MusicalScore, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(
			fmt.Sprintf("Generate a 4-bar musical loop suitable for Tone.js playback. Genre: %s. Description: %s", genre, prompt),
			genai.RoleUser,
		),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(composerSystemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    musicalScoreSchema(),
	}

	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		logging.GatewayError("GenerateMusicalScore failed: %v", err)
		return nil, fmt.Errorf("music generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		text = "{}"
	}

	var score MusicalScore
	if err := json.Unmarshal([]byte(text), &score); err != nil {
		clean := strings.ReplaceAll(text, "```json", "")
		clean = strings.ReplaceAll(clean, "```", "")
		if err := json.Unmarshal([]byte(strings.TrimSpace(clean)), &score); err != nil {
			return nil, fmt.Errorf("malformed score: %w", err)
		}
	}
	return &score, nil
}

func musicalScoreSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":         {Type: genai.TypeString},
			"detectedGenre": {Type: genai.TypeString},
			"bpm":           {Type: genai.TypeInteger},
			"tracks": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type": {Type: genai.TypeString, Enum: []string{"synth", "metal", "membrane"}},
						"notes": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type: genai.TypeObject,
								Properties: map[string]*genai.Schema{
									"time":     {Type: genai.TypeString},
									"note":     {Type: genai.TypeString},
									"duration": {Type: genai.TypeString},
								},
								Required: []string{"time", "note", "duration"},
							},
						},
					},
					Required: []string{"type", "notes"},
				},
			},
		},
		Required: []string{"title", "detectedGenre", "bpm", "tracks"},
	}
}
