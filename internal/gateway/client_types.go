package gateway

import (
	"time"

	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// ClientConfig holds configuration for the HTTP Gemini client.
type ClientConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	Timeout            time.Duration
	MaxOutputTokens    int
	EnableGoogleSearch bool
	HistoryWindow      int // prior turns sent as chat context (default 10)
}

// Attachment is a binary payload sent alongside a prompt, already base64
// encoded. The payload is consumed by the current turn only and never
// persisted in history.
type Attachment struct {
	MimeType string
	Data     string
}

// FileOp is one file mutation proposed by the model.
type FileOp struct {
	Operation string `json:"operation"` // create, update, delete
	Path      string `json:"path"`
	Code      string `json:"code"`
}

// ChatResponse is the structured reply for one chat turn.
type ChatResponse struct {
	Message        string                `json:"message"`
	Files          []FileOp              `json:"files"`
	Commands       []string              `json:"commands,omitempty"`
	GroundingLinks []types.GroundingLink `json:"groundingLinks,omitempty"`
}

// MusicalScore is a structured note sequence suitable for step sequencing.
type MusicalScore struct {
	Title         string       `json:"title"`
	DetectedGenre string       `json:"detectedGenre"`
	BPM           int          `json:"bpm"`
	Tracks        []ScoreTrack `json:"tracks"`
}

// ScoreTrack is one instrument lane of a MusicalScore.
type ScoreTrack struct {
	Type  string      `json:"type"` // synth, metal, membrane
	Notes []ScoreNote `json:"notes"`
}

// ScoreNote is a single timed note event.
type ScoreNote struct {
	Time     string `json:"time"` // Measure:Beat:Sixteenth
	Note     string `json:"note"`
	Duration string `json:"duration"`
}

// =============================================================================
// GEMINI REST WIRE TYPES
// =============================================================================

// GeminiContent represents content in the request.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of the content.
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inlineData,omitempty"`
}

// GeminiInlineData carries a base64-encoded attachment payload.
type GeminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiGenerationConfig represents generation parameters.
// Note: Gemini REST API uses snake_case for the structured-output fields.
type GeminiGenerationConfig struct {
	Temperature      float64                `json:"temperature,omitempty"`
	MaxOutputTokens  int                    `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string                 `json:"response_mime_type,omitempty"`
	ResponseSchema   map[string]interface{} `json:"response_schema,omitempty"`
}

// GeminiRequest represents the Gemini API request.
type GeminiRequest struct {
	Contents          []GeminiContent        `json:"contents"`
	SystemInstruction *GeminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  GeminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []GeminiTool           `json:"tools,omitempty"`
}

// GeminiTool enables a built-in tool for the request.
type GeminiTool struct {
	GoogleSearch *GeminiGoogleSearch `json:"googleSearch,omitempty"`
}

// GeminiGoogleSearch enables Google Search grounding (empty object in JSON).
type GeminiGoogleSearch struct{}

// GeminiResponse represents the API response.
type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []GeminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason      string                   `json:"finishReason"`
		GroundingMetadata *GeminiGroundingMetadata `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// GeminiGroundingMetadata carries search-grounding citations.
type GeminiGroundingMetadata struct {
	GroundingChunks []struct {
		Web *struct {
			URI   string `json:"uri"`
			Title string `json:"title"`
		} `json:"web,omitempty"`
	} `json:"groundingChunks"`
	WebSearchQueries []string `json:"webSearchQueries,omitempty"`
}
