package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaceboy92/Aether-IDE/internal/gateway"
	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/session"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

// Rejection sentinels for SendMessage.
var (
	ErrBusy            = errors.New("a turn is already in flight")
	ErrNoActiveSession = errors.New("no active session")
)

const (
	failureMessage = "I couldn't process that request. Connection interrupted."
	timeoutMessage = "The request timed out. Please try again."
)

// ChatGateway is the model call the orchestrator drives each turn.
type ChatGateway interface {
	Chat(ctx context.Context, prompt string, files []types.FileNode, history []types.ChatMessage, attachments []gateway.Attachment) (*gateway.ChatResponse, error)
}

// ProjectFiles is the store surface a turn needs: hydrate before the model
// call, persist action mutations after it.
type ProjectFiles interface {
	FileWriter
	GetFiles(projectID string) ([]types.FileNode, error)
}

// Orchestrator runs the chat turn lifecycle: append the user message, call
// the gateway under a deadline, apply the proposed actions, append the
// assistant message. At most one turn is in flight at a time.
type Orchestrator struct {
	store    ProjectFiles
	gw       ChatGateway
	sessions *session.Manager
	applier  *Applier
	timeout  time.Duration

	mu         sync.Mutex
	processing bool
}

// NewOrchestrator wires the turn loop. timeout bounds each gateway call; a
// non-positive value falls back to two minutes.
func NewOrchestrator(store ProjectFiles, gw ChatGateway, sessions *session.Manager, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Orchestrator{
		store:    store,
		gw:       gw,
		sessions: sessions,
		applier:  NewApplier(store),
		timeout:  timeout,
	}
}

// IsProcessing reports whether a turn is currently in flight.
func (o *Orchestrator) IsProcessing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processing
}

// begin claims the processing flag, rejecting concurrent turns.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return ErrBusy
	}
	o.processing = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.processing = false
	o.mu.Unlock()
}

// SendMessage runs one full chat turn against the active session. The user
// message is appended before the model call; exactly one assistant message
// follows it, carrying either the model's reply or a failure notice. Gateway
// failures are surfaced in the transcript, not returned.
func (o *Orchestrator) SendMessage(ctx context.Context, text string, attachments []gateway.Attachment) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.end()

	sess, ok := o.sessions.Active()
	if !ok {
		return ErrNoActiveSession
	}

	logging.Agent("Turn start: session=%s text_len=%d attachments=%d", sess.ID, len(text), len(attachments))

	// Optimistic user append: visible even if the model call fails
	sess.Messages = append(sess.Messages, types.ChatMessage{
		ID:          fmt.Sprintf("u_%s", uuid.NewString()),
		Role:        types.RoleUser,
		Text:        text,
		Timestamp:   types.NowMillis(),
		Attachments: attachmentMeta(attachments),
	})
	o.sessions.Update(sess)

	files, err := o.store.GetFiles(sess.ID)
	if err != nil {
		logging.AgentError("Turn hydration failed: %v", err)
		o.appendAssistant(sess, failureMessage, nil)
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.gw.Chat(callCtx, text, files, sess.Messages, attachments)
	if err != nil {
		notice := failureMessage
		if errors.Is(err, context.DeadlineExceeded) {
			notice = timeoutMessage
		}
		logging.AgentError("Turn gateway call failed: %v", err)
		o.appendAssistant(sess, notice, nil)
		return nil
	}

	actions := responseActions(resp)
	if len(actions) > 0 {
		_, results := o.applier.Apply(sess.ID, files, actions)
		for _, r := range results {
			if !r.OK {
				logging.AgentError("Action %s %q not applied: %v", r.Action.Kind, r.Action.Path, r.Err)
			}
		}
	}

	o.appendAssistant(sess, resp.Message, resp.GroundingLinks)
	logging.Agent("Turn complete: session=%s actions=%d", sess.ID, len(actions))
	return nil
}

// NewSession creates and activates a session, then immediately sends the
// initial prompt when one is given.
func (o *Orchestrator) NewSession(ctx context.Context, initialPrompt string) (types.ChatSession, error) {
	sess, err := o.sessions.Create(initialPrompt)
	if err != nil {
		return types.ChatSession{}, err
	}

	if prompt, ok := o.sessions.TakePendingPrompt(); ok {
		if err := o.SendMessage(ctx, prompt, nil); err != nil {
			return sess, err
		}
	}
	return sess, nil
}

// appendAssistant re-reads the session (the user append above replaced it)
// and adds the closing assistant message of the turn.
func (o *Orchestrator) appendAssistant(sess types.ChatSession, text string, links []types.GroundingLink) {
	if current, ok := o.sessions.Active(); ok && current.ID == sess.ID {
		sess = current
	}
	sess.Messages = append(sess.Messages, types.ChatMessage{
		ID:             fmt.Sprintf("b_%s", uuid.NewString()),
		Role:           types.RoleAssistant,
		Text:           text,
		Timestamp:      types.NowMillis(),
		GroundingLinks: links,
	})
	sess.LastUpdated = types.NowMillis()
	o.sessions.Update(sess)
}

// responseActions flattens a gateway reply into the ordered action list:
// file operations first, then proposed commands.
func responseActions(resp *gateway.ChatResponse) []types.AgentAction {
	actions := make([]types.AgentAction, 0, len(resp.Files)+len(resp.Commands))
	for _, f := range resp.Files {
		actions = append(actions, types.AgentAction{
			Kind:    types.ActionKind(f.Operation),
			Path:    f.Path,
			Content: f.Code,
		})
	}
	for _, cmd := range resp.Commands {
		actions = append(actions, types.AgentAction{
			Kind:    types.ActionTerminalCommand,
			Command: cmd,
		})
	}
	return actions
}

// attachmentMeta strips payloads down to the type/name stubs persisted in
// history. The base64 data never enters the transcript.
func attachmentMeta(attachments []gateway.Attachment) []types.AttachmentMeta {
	if len(attachments) == 0 {
		return nil
	}
	meta := make([]types.AttachmentMeta, len(attachments))
	for i, a := range attachments {
		kind := "file"
		if strings.HasPrefix(a.MimeType, "image/") {
			kind = "image"
		}
		meta[i] = types.AttachmentMeta{Type: kind, Name: "Attachment"}
	}
	return meta
}
