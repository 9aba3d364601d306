package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// candidateBody wraps model text in the REST response envelope.
func candidateBody(text string) string {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func testClient(serverURL string) *Client {
	cfg := DefaultClientConfig("test-key")
	cfg.BaseURL = serverURL
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestChatParsesStructuredReply(t *testing.T) {
	reply := `{"message":"Built your game.","files":[{"operation":"create","path":"game.js","code":"// game"}],"commands":["npm start"]}`

	var captured GeminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, candidateBody(reply))
	}))
	defer server.Close()

	c := testClient(server.URL)
	resp, err := c.Chat(context.Background(), "make a game", nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Built your game.", resp.Message)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "create", resp.Files[0].Operation)
	assert.Equal(t, "game.js", resp.Files[0].Path)
	assert.Equal(t, []string{"npm start"}, resp.Commands)

	// Request shape: structured output with search grounding enabled
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
	assert.NotNil(t, captured.GenerationConfig.ResponseSchema)
	require.Len(t, captured.Tools, 1)
	assert.NotNil(t, captured.Tools[0].GoogleSearch)
	require.NotNil(t, captured.SystemInstruction)
	assert.Contains(t, captured.SystemInstruction.Parts[0].Text, "AETHER")
}

func TestChatRepairsFencedReply(t *testing.T) {
	fenced := "```json\n{\"message\":\"ok\",\"files\":[]}\n```"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateBody(fenced))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Chat(context.Background(), "hi", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
}

func TestChatRejectsGarbageReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateBody("sure, here is the code you asked for"))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Chat(context.Background(), "hi", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed structured reply")
}

func TestChatExtractsGroundingLinks(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "{\"message\":\"done\",\"files\":[]}"}]},
			"finishReason": "STOP",
			"groundingMetadata": {
				"groundingChunks": [
					{"web": {"uri": "https://example.com/a", "title": "Example A"}},
					{"web": {"uri": "https://example.com/b"}},
					{"web": {"uri": ""}}
				]
			}
		}]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Chat(context.Background(), "hi", nil, nil, nil)
	require.NoError(t, err)

	require.Len(t, resp.GroundingLinks, 2)
	assert.Equal(t, types.GroundingLink{URI: "https://example.com/a", Title: "Example A"}, resp.GroundingLinks[0])
	assert.Equal(t, "Source", resp.GroundingLinks[1].Title)
}

func TestChatSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"bad schema"}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Chat(context.Background(), "hi", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestChatRetriesRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, candidateBody(`{"message":"ok","files":[]}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Chat(context.Background(), "hi", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
	assert.Equal(t, 2, calls)
}

func TestChatRequiresAPIKey(t *testing.T) {
	cfg := DefaultClientConfig("")
	_, err := NewClient(cfg).Chat(context.Background(), "hi", nil, nil, nil)
	require.Error(t, err)
}

func TestBuildChatRequestWindowsHistory(t *testing.T) {
	c := NewClient(DefaultClientConfig("k"))

	history := make([]types.ChatMessage, 15)
	for i := range history {
		history[i] = types.ChatMessage{Role: types.RoleUser, Text: fmt.Sprintf("msg %d", i)}
	}

	req := c.buildChatRequest("latest", nil, history, nil)

	// 10 history turns plus the live prompt
	require.Len(t, req.Contents, 11)
	assert.Equal(t, "msg 5", req.Contents[0].Parts[0].Text)
	assert.Equal(t, "REQUEST: latest", req.Contents[10].Parts[0].Text)
}

func TestBuildChatRequestInlinesAttachments(t *testing.T) {
	c := NewClient(DefaultClientConfig("k"))

	req := c.buildChatRequest("look at this", nil, nil, []Attachment{
		{MimeType: "image/png", Data: "aGVsbG8="},
	})

	parts := req.Contents[len(req.Contents)-1].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, "aGVsbG8=", parts[1].InlineData.Data)
}

func TestWorkspaceManifest(t *testing.T) {
	files := []types.FileNode{
		{Name: "index.html", Content: "<html></html>"},
		{Name: "logo.png", Content: "data:image/png;base64,xyz", IsBinary: true},
	}

	manifest := workspaceManifest(files)

	assert.Contains(t, manifest, "[FILE]: index.html\n<html></html>")
	assert.Contains(t, manifest, "[ASSET]: logo.png")
	assert.NotContains(t, manifest, "data:image/png")
}

func TestParseChatResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
		wantErr bool
	}{
		{"strict", `{"message":"hi","files":[]}`, "hi", false},
		{"fenced", "```json\n{\"message\":\"hi\",\"files\":[]}\n```", "hi", false},
		{"bare fence", "```\n{\"message\":\"hi\",\"files\":[]}\n```", "hi", false},
		{"empty", "", "", false},
		{"garbage", "not json at all", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChatResponse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestParseChatResponseDoesNotMangleFenceInsideCode(t *testing.T) {
	// A strict parse must win before any fence stripping touches the payload.
	reply := `{"message":"added readme","files":[{"operation":"create","path":"README.md","code":"` + "use \\u0060\\u0060\\u0060 blocks" + `"}]}`
	got, err := parseChatResponse(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got.Files[0].Code, "```") {
		t.Errorf("code fence lost from file content: %q", got.Files[0].Code)
	}
}
