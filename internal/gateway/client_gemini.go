// Package gateway is the stateless bridge to the Gemini API. The chat
// endpoint is a hand-rolled REST client (structured JSON output plus search
// grounding); the narrow helper endpoints ride the official SDK, see genai.go.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

const chatSystemInstruction = `You are AETHER, a high-performance creative coding engine.

CONTEXT:
You are writing code for a user's web project (HTML/JS/CSS).
The code you generate runs in an iframe.

YOUR MISSION:
Receive the user's request (e.g., "Make a 3D car game") and IMMEDIATELY generate the fully functional source code for that application.

CRITICAL RULES:
1. NO META-INTERFACES: DO NOT generate code that says "Thinking...", "Initializing...", "Aether AI", or "Cognitive Override". DO NOT generate a UI about the AI itself.
2. ACTUAL APPLICATION: If asked for a car game, generate a canvas, a Three.js scene, a car mesh, controls, and a game loop.
3. COMPLETE FILES: Return the FULL content for every file you touch (index.html, script.js, style.css). Do not use placeholders.
4. LIBRARIES: Use CDN links for libraries (Three.js, GSAP, etc.).
5. AESTHETICS: Make the user's app look professional and polished (unless requested otherwise).
6. JSON OUTPUT: You must strictly return JSON matching the schema.

Current Project State:
%s`

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	apiKey             string
	baseURL            string
	model              string
	maxOutputTokens    int
	enableGoogleSearch bool
	historyWindow      int
	httpClient         *http.Client
	mu                 sync.Mutex
	lastRequest        time.Time
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:             apiKey,
		BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
		Model:              "gemini-3-flash-preview",
		Timeout:            2 * time.Minute,
		MaxOutputTokens:    65536,
		EnableGoogleSearch: true,
		HistoryWindow:      10,
	}
}

// NewClient creates a new Gemini client with the given config.
func NewClient(config ClientConfig) *Client {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens <= 0 {
		maxOutputTokens = 65536
	}
	historyWindow := config.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = 10
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		apiKey:             config.APIKey,
		baseURL:            baseURL,
		model:              model,
		maxOutputTokens:    maxOutputTokens,
		enableGoogleSearch: config.EnableGoogleSearch,
		historyWindow:      historyWindow,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// workspaceManifest renders the project state for the system instruction.
// Text files are inlined whole; binary assets appear as name-only markers so
// data URLs never reach the prompt.
func workspaceManifest(files []types.FileNode) string {
	entries := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsBinary {
			entries = append(entries, fmt.Sprintf("[ASSET]: %s", f.Name))
			continue
		}
		entries = append(entries, fmt.Sprintf("[FILE]: %s\n%s", f.Name, f.Content))
	}
	return strings.Join(entries, "\n\n")
}

// buildChatRequest assembles the request body for one chat turn: windowed
// text-only history, then the user prompt with any inline attachments.
func (c *Client) buildChatRequest(prompt string, files []types.FileNode, history []types.ChatMessage, attachments []Attachment) GeminiRequest {
	if len(history) > c.historyWindow {
		history = history[len(history)-c.historyWindow:]
	}

	contents := make([]GeminiContent, 0, len(history)+1)
	for _, msg := range history {
		contents = append(contents, GeminiContent{
			Role:  string(msg.Role),
			Parts: []GeminiPart{{Text: msg.Text}},
		})
	}

	userParts := []GeminiPart{{Text: fmt.Sprintf("REQUEST: %s", prompt)}}
	for _, att := range attachments {
		userParts = append(userParts, GeminiPart{
			InlineData: &GeminiInlineData{MimeType: att.MimeType, Data: att.Data},
		})
	}
	contents = append(contents, GeminiContent{Role: "user", Parts: userParts})

	req := GeminiRequest{
		Contents: contents,
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: fmt.Sprintf(chatSystemInstruction, workspaceManifest(files))}},
		},
		GenerationConfig: GeminiGenerationConfig{
			MaxOutputTokens:  c.maxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   chatResponseSchema(),
		},
	}
	if c.enableGoogleSearch {
		req.Tools = []GeminiTool{{GoogleSearch: &GeminiGoogleSearch{}}}
	}
	return req
}

// Chat sends one turn to the model and returns the parsed structured reply.
// The call is stateless: the full context (files, history, attachments) is
// rebuilt by the caller every turn.
func (c *Client) Chat(ctx context.Context, prompt string, files []types.FileNode, history []types.ChatMessage, attachments []Attachment) (*ChatResponse, error) {
	startTime := time.Now()
	logging.GatewayDebug("Chat: model=%s prompt_len=%d files=%d history=%d attachments=%d",
		c.model, len(prompt), len(files), len(history), len(attachments))

	if c.apiKey == "" {
		logging.GatewayError("Chat: API key not configured")
		return nil, fmt.Errorf("API key not configured")
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := c.buildChatRequest(prompt, files, history, attachments)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	// Retry loop for rate limits
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var geminiResp GeminiResponse
		if err := json.Unmarshal(body, &geminiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if geminiResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", geminiResp.Error.Message)
		}

		if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
			return nil, fmt.Errorf("no completion returned")
		}

		var result strings.Builder
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			result.WriteString(part.Text)
		}

		parsed, err := parseChatResponse(result.String())
		if err != nil {
			logging.GatewayError("Chat: unparseable structured reply: %v", err)
			return nil, err
		}

		parsed.GroundingLinks = extractGroundingLinks(&geminiResp)

		logging.Gateway("Chat: completed in %v message_len=%d file_ops=%d commands=%d grounding=%d",
			time.Since(startTime), len(parsed.Message), len(parsed.Files), len(parsed.Commands), len(parsed.GroundingLinks))
		return parsed, nil
	}

	logging.GatewayError("Chat: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseChatResponse decodes the model's JSON reply. A strict parse is tried
// first; on failure the markdown code fences some models wrap JSON in are
// stripped and the parse retried once. Anything else is a hard error.
func parseChatResponse(text string) (*ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "{}"
	}

	var parsed ChatResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("malformed structured reply: %w", err)
	}
	return &parsed, nil
}

// extractGroundingLinks maps search-grounding citations to links. Chunks
// without a web URI are skipped; a missing title falls back to "Source".
func extractGroundingLinks(resp *GeminiResponse) []types.GroundingLink {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	gm := resp.Candidates[0].GroundingMetadata
	var links []types.GroundingLink
	for _, chunk := range gm.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = "Source"
		}
		links = append(links, types.GroundingLink{URI: chunk.Web.URI, Title: title})
	}
	if len(links) > 0 {
		logging.GatewayDebug("Chat: grounding sources=%d queries=%v", len(links), gm.WebSearchQueries)
	}
	return links
}
