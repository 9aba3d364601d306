// Package types provides shared type definitions used across Aether packages.
// This package exists to break import cycles between the store, gateway, and
// agent layers. Types in this package should be foundational data structures
// with no complex dependencies.
package types

import (
	"path"
	"strings"
	"time"
)

// =============================================================================
// FILE NODES
// =============================================================================

// FileNode is a single project artifact. Within one project no two live
// FileNodes share the same Name; Name is the key agent operations use,
// ID is the storage key.
type FileNode struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Content      string `json:"content"`
	Language     string `json:"language"`
	LastModified int64  `json:"lastModified"` // Unix milliseconds
	IsBinary     bool   `json:"isBinary,omitempty"`
}

// Clone returns a deep copy of the node.
func (f FileNode) Clone() FileNode {
	return f
}

// CloneFiles deep-copies a file list.
func CloneFiles(files []FileNode) []FileNode {
	out := make([]FileNode, len(files))
	copy(out, files)
	return out
}

// LanguageForPath infers a language tag from a file path's extension.
// Unknown extensions fall back to the extension itself; no extension
// falls back to "plaintext".
func LanguageForPath(p string) string {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return "plaintext"
	}
	switch strings.ToLower(ext) {
	case "js", "ts", "tsx", "jsx", "mjs":
		return "javascript"
	case "htm", "html":
		return "html"
	case "css":
		return "css"
	case "json":
		return "json"
	case "md":
		return "markdown"
	case "png", "jpg", "jpeg", "gif", "webp", "svg", "glb", "obj":
		return "image"
	default:
		return strings.ToLower(ext)
	}
}

// =============================================================================
// CHAT MESSAGES AND SESSIONS
// =============================================================================

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "model"
)

// GroundingLink is a citation attached to an assistant reply by the
// provider's search-grounding feature.
type GroundingLink struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// AttachmentMeta describes an attachment on a message. The binary payload
// is never persisted in history; only the type and name survive.
type AttachmentMeta struct {
	Type string `json:"type"` // "image" or "file"
	Name string `json:"name"`
}

// ChatMessage is one turn in a conversation. Messages are append-only:
// never edited or reordered after creation except by whole-session
// replacement.
type ChatMessage struct {
	ID             string           `json:"id"`
	Role           Role             `json:"role"`
	Text           string           `json:"text"`
	Timestamp      int64            `json:"timestamp"` // Unix milliseconds
	Attachments    []AttachmentMeta `json:"attachments,omitempty"`
	GroundingLinks []GroundingLink  `json:"groundingLinks,omitempty"`
}

// ChatSession is one conversation container. Each session maps 1:1 to a
// File Store project id (the session id doubles as the project id).
type ChatSession struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Messages    []ChatMessage `json:"messages"`
	LastUpdated int64         `json:"lastUpdated"` // Unix milliseconds
}

// Clone returns a deep copy of the session, including its message list.
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]ChatMessage, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// =============================================================================
// AGENT ACTIONS
// =============================================================================

// ActionKind is the discriminator for AgentAction variants.
type ActionKind string

const (
	ActionCreate          ActionKind = "create"
	ActionUpdate          ActionKind = "update"
	ActionDelete          ActionKind = "delete"
	ActionTerminalCommand ActionKind = "terminal_command"
)

// AgentAction is a declarative instruction to mutate the file set or
// environment. Path is required for create/update/delete; Content defaults
// to the empty string when omitted.
type AgentAction struct {
	Kind    ActionKind `json:"action"`
	Path    string     `json:"path,omitempty"`
	Content string     `json:"content,omitempty"`
	Command string     `json:"command,omitempty"`
}

// ActionResult reports the outcome of applying a single AgentAction.
// Failures are isolated per action; a batch never aborts early, so callers
// receive one result per attempted action, in order.
type ActionResult struct {
	Action AgentAction `json:"action"`
	OK     bool        `json:"ok"`
	Err    error       `json:"-"`
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot is a timestamped deep copy of a project's file list, kept in a
// capped newest-first history for manual rollback.
type Snapshot struct {
	ID          string     `json:"id"`
	Timestamp   int64      `json:"timestamp"` // Unix milliseconds
	Description string     `json:"description"`
	Files       []FileNode `json:"files"`
}

// NowMillis returns the current wall clock as Unix milliseconds, the
// timestamp unit used throughout the persisted layout.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
