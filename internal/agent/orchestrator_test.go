package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/spaceboy92/Aether-IDE/internal/gateway"
	"github.com/spaceboy92/Aether-IDE/internal/session"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// TestMain ensures no goroutines leak across the orchestrator tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// memStore is an in-memory ProjectFiles.
type memStore struct {
	mu    sync.Mutex
	files map[string][]types.FileNode
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]types.FileNode)}
}

func (s *memStore) GetFiles(projectID string) ([]types.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneFiles(s.files[projectID]), nil
}

func (s *memStore) SaveFile(projectID string, file types.FileNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.files[projectID]
	for i := range list {
		if list[i].ID == file.ID {
			list[i] = file
			return nil
		}
	}
	s.files[projectID] = append(list, file)
	return nil
}

func (s *memStore) DeleteFile(projectID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.files[projectID]
	out := list[:0]
	for _, f := range list {
		if f.ID != fileID {
			out = append(out, f)
		}
	}
	s.files[projectID] = out
	return nil
}

func (s *memStore) DeleteProject(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, projectID)
	return nil
}

// fakeGateway scripts gateway replies.
type fakeGateway struct {
	mu       sync.Mutex
	resp     *gateway.ChatResponse
	err      error
	block    time.Duration // simulate a slow model honoring ctx
	calls    int
	lastText string
}

func (g *fakeGateway) Chat(ctx context.Context, prompt string, files []types.FileNode, history []types.ChatMessage, attachments []gateway.Attachment) (*gateway.ChatResponse, error) {
	g.mu.Lock()
	g.calls++
	g.lastText = prompt
	block, resp, err := g.block, g.resp, g.err
	g.mu.Unlock()

	if block > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(block):
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func newTestOrchestrator(t *testing.T, gw ChatGateway) (*Orchestrator, *session.Manager, *memStore) {
	t.Helper()
	store := newMemStore()
	sessions := session.NewManager(store)
	o := NewOrchestrator(store, gw, sessions, time.Minute)
	return o, sessions, store
}

// roles extracts the role sequence from a session transcript.
func roles(sess types.ChatSession) []types.Role {
	out := make([]types.Role, len(sess.Messages))
	for i, m := range sess.Messages {
		out[i] = m.Role
	}
	return out
}

func TestSendMessageHappyPath(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.ChatResponse{
		Message: "Done!",
		Files: []gateway.FileOp{
			{Operation: "create", Path: "app.js", Code: "// app"},
		},
		Commands:       []string{"npm install"},
		GroundingLinks: []types.GroundingLink{{URI: "https://x", Title: "X"}},
	}}
	o, sessions, store := newTestOrchestrator(t, gw)

	if _, err := sessions.Create(""); err != nil {
		t.Fatal(err)
	}
	if err := o.SendMessage(context.Background(), "build an app", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sess, _ := sessions.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(sess.Messages))
	}
	if sess.Messages[0].Role != types.RoleUser || sess.Messages[1].Role != types.RoleAssistant {
		t.Errorf("roles = %v", roles(sess))
	}
	if sess.Messages[1].Text != "Done!" {
		t.Errorf("assistant text = %q", sess.Messages[1].Text)
	}
	if len(sess.Messages[1].GroundingLinks) != 1 {
		t.Error("grounding links not carried into transcript")
	}

	files, _ := store.GetFiles(sess.ID)
	if len(files) != 1 || files[0].Name != "app.js" {
		t.Errorf("actions not applied: %+v", files)
	}
	if o.IsProcessing() {
		t.Error("processing flag not cleared")
	}
}

func TestSendMessageRejectsWhenBusy(t *testing.T) {
	gw := &fakeGateway{block: 500 * time.Millisecond, resp: &gateway.ChatResponse{Message: "slow"}}
	o, sessions, _ := newTestOrchestrator(t, gw)
	sessions.Create("")

	done := make(chan error, 1)
	go func() {
		done <- o.SendMessage(context.Background(), "first", nil)
	}()

	// Wait until the first turn holds the flag
	deadline := time.After(2 * time.Second)
	for !o.IsProcessing() {
		select {
		case <-deadline:
			t.Fatal("first turn never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := o.SendMessage(context.Background(), "second", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// The rejected send must leave no trace in the transcript
	sess, _ := sessions.Active()
	if len(sess.Messages) != 2 {
		t.Errorf("messages = %d, want 2 (one full turn)", len(sess.Messages))
	}
}

func TestSendMessageRequiresActiveSession(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &fakeGateway{resp: &gateway.ChatResponse{Message: "x"}})

	err := o.SendMessage(context.Background(), "hello", nil)
	if !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
	if o.IsProcessing() {
		t.Error("processing flag stuck after rejection")
	}
}

func TestSendMessageGatewayFailureYieldsNotice(t *testing.T) {
	gw := &fakeGateway{err: fmt.Errorf("boom")}
	o, sessions, _ := newTestOrchestrator(t, gw)
	sessions.Create("")

	if err := o.SendMessage(context.Background(), "hi", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sess, _ := sessions.Active()
	if len(sess.Messages) != 2 {
		t.Fatalf("messages = %d, want user + notice", len(sess.Messages))
	}
	if sess.Messages[0].Role != types.RoleUser {
		t.Error("user message missing before notice")
	}
	if sess.Messages[1].Text != failureMessage {
		t.Errorf("notice = %q", sess.Messages[1].Text)
	}
	if o.IsProcessing() {
		t.Error("processing flag stuck after failure")
	}
}

func TestSendMessageTimeoutYieldsTimeoutNotice(t *testing.T) {
	gw := &fakeGateway{block: time.Second, resp: &gateway.ChatResponse{Message: "late"}}
	store := newMemStore()
	sessions := session.NewManager(store)
	o := NewOrchestrator(store, gw, sessions, 20*time.Millisecond)
	sessions.Create("")

	if err := o.SendMessage(context.Background(), "hi", nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	sess, _ := sessions.Active()
	if sess.Messages[1].Text != timeoutMessage {
		t.Errorf("notice = %q, want timeout notice", sess.Messages[1].Text)
	}
	if o.IsProcessing() {
		t.Error("processing flag stuck after timeout")
	}
}

func TestTurnSymmetryAcrossOutcomes(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.ChatResponse{Message: "ok"}}
	o, sessions, _ := newTestOrchestrator(t, gw)
	sessions.Create("")

	o.SendMessage(context.Background(), "one", nil)
	gw.mu.Lock()
	gw.err = fmt.Errorf("down")
	gw.mu.Unlock()
	o.SendMessage(context.Background(), "two", nil)

	sess, _ := sessions.Active()
	want := []types.Role{types.RoleUser, types.RoleAssistant, types.RoleUser, types.RoleAssistant}
	got := roles(sess)
	if len(got) != len(want) {
		t.Fatalf("roles = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("roles = %v, want %v", got, want)
		}
	}
}

func TestSendMessageStripsAttachmentPayloads(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.ChatResponse{Message: "ok"}}
	o, sessions, _ := newTestOrchestrator(t, gw)
	sessions.Create("")

	atts := []gateway.Attachment{
		{MimeType: "image/png", Data: "hugedata"},
		{MimeType: "application/pdf", Data: "more"},
	}
	o.SendMessage(context.Background(), "look", atts)

	sess, _ := sessions.Active()
	meta := sess.Messages[0].Attachments
	if len(meta) != 2 {
		t.Fatalf("attachment meta = %+v", meta)
	}
	if meta[0].Type != "image" || meta[1].Type != "file" {
		t.Errorf("types = %s, %s", meta[0].Type, meta[1].Type)
	}
}

func TestNewSessionSendsInitialPrompt(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.ChatResponse{Message: "welcome"}}
	o, sessions, _ := newTestOrchestrator(t, gw)

	sess, err := o.NewSession(context.Background(), "make a blog")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if gw.calls != 1 || gw.lastText != "make a blog" {
		t.Errorf("initial prompt not sent: calls=%d text=%q", gw.calls, gw.lastText)
	}

	got, _ := sessions.Active()
	if got.ID != sess.ID {
		t.Error("new session not active")
	}
	if len(got.Messages) != 2 {
		t.Errorf("messages = %d, want the initial turn", len(got.Messages))
	}
}

func TestNewSessionWithoutPromptSendsNothing(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.ChatResponse{Message: "x"}}
	o, sessions, _ := newTestOrchestrator(t, gw)

	if _, err := o.NewSession(context.Background(), ""); err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times for empty prompt", gw.calls)
	}
	sess, _ := sessions.Active()
	if len(sess.Messages) != 0 {
		t.Error("empty prompt produced messages")
	}
}
