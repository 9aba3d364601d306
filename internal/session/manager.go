// Package session manages the ordered list of chat sessions and the single
// active selection. Each session doubles as a project id in the file store,
// so deleting a session cascades to its files and snapshots.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spaceboy92/Aether-IDE/internal/logging"
	"github.com/spaceboy92/Aether-IDE/internal/types"
)

const defaultTitle = "New Node"

// titleLimit is how much of the first prompt survives into the session title.
const titleLimit = 30

// ProjectStore is the slice of the file store the manager needs: seeding on
// create and cascade removal on delete.
type ProjectStore interface {
	GetFiles(projectID string) ([]types.FileNode, error)
	DeleteProject(projectID string) error
}

// Manager owns the session list, newest first. At most one session is active
// at a time.
type Manager struct {
	mu            sync.RWMutex
	store         ProjectStore
	sessions      []types.ChatSession
	activeID      string
	pendingPrompt string
}

// NewManager creates a session manager backed by the given store.
func NewManager(store ProjectStore) *Manager {
	return &Manager{store: store}
}

// deriveTitle builds a session title from the first prompt, truncated.
func deriveTitle(initialPrompt string) string {
	if initialPrompt == "" {
		return defaultTitle
	}
	runes := []rune(initialPrompt)
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	return string(runes) + "..."
}

// Create makes a new session, prepends it, activates it, and seeds its
// project files. A non-empty initialPrompt is held as the pending prompt for
// the orchestrator to send once the session is hydrated.
func (m *Manager) Create(initialPrompt string) (types.ChatSession, error) {
	s := types.ChatSession{
		ID:          fmt.Sprintf("s_%s", uuid.NewString()),
		Title:       deriveTitle(initialPrompt),
		Messages:    []types.ChatMessage{},
		LastUpdated: types.NowMillis(),
	}

	// Seed the project before the session becomes visible
	if _, err := m.store.GetFiles(s.ID); err != nil {
		return types.ChatSession{}, fmt.Errorf("failed to seed project: %w", err)
	}

	m.mu.Lock()
	m.sessions = append([]types.ChatSession{s}, m.sessions...)
	m.activeID = s.ID
	m.pendingPrompt = initialPrompt
	m.mu.Unlock()

	logging.Session("Created session %s (%q)", s.ID, s.Title)
	return s.Clone(), nil
}

// Update replaces the stored session with a matching id wholesale. Unknown
// ids are ignored.
func (m *Manager) Update(s types.ChatSession) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.sessions {
		if m.sessions[i].ID == s.ID {
			m.sessions[i] = s.Clone()
			logging.SessionDebug("Updated session %s (%d messages)", s.ID, len(s.Messages))
			return
		}
	}
	logging.SessionDebug("Update for unknown session %s ignored", s.ID)
}

// Delete removes a session and cascades to its project files and snapshots.
// Deleting the active session clears the selection.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	filtered := m.sessions[:0]
	found := false
	for _, s := range m.sessions {
		if s.ID == sessionID {
			found = true
			continue
		}
		filtered = append(filtered, s)
	}
	m.sessions = filtered
	if m.activeID == sessionID {
		m.activeID = ""
		m.pendingPrompt = ""
	}
	m.mu.Unlock()

	if !found {
		return nil
	}

	if err := m.store.DeleteProject(sessionID); err != nil {
		return fmt.Errorf("failed to delete project for session %s: %w", sessionID, err)
	}

	logging.Session("Deleted session %s", sessionID)
	return nil
}

// SetActive selects a session by id. An unknown id is an error and leaves
// the current selection untouched.
func (m *Manager) SetActive(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.ID == sessionID {
			m.activeID = sessionID
			logging.SessionDebug("Activated session %s", sessionID)
			return nil
		}
	}
	return fmt.Errorf("unknown session %s", sessionID)
}

// ClearActive deselects the current session.
func (m *Manager) ClearActive() {
	m.mu.Lock()
	m.activeID = ""
	m.mu.Unlock()
}

// Active returns a copy of the active session, or false if none is selected.
func (m *Manager) Active() (types.ChatSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.activeID == "" {
		return types.ChatSession{}, false
	}
	for _, s := range m.sessions {
		if s.ID == m.activeID {
			return s.Clone(), true
		}
	}
	return types.ChatSession{}, false
}

// Sessions returns a copy of the session list, newest first.
func (m *Manager) Sessions() []types.ChatSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ChatSession, len(m.sessions))
	for i, s := range m.sessions {
		out[i] = s.Clone()
	}
	return out
}

// TakePendingPrompt returns and clears the prompt a session was created
// with. The second return is false when nothing is pending.
func (m *Manager) TakePendingPrompt() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pendingPrompt == "" {
		return "", false
	}
	p := m.pendingPrompt
	m.pendingPrompt = ""
	return p, true
}
