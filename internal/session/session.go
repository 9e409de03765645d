// Package session provides per-conversation state keyed by an opaque session
// ID: conversation history, a free-form context map, and user preferences.
//
// The backing store is two-tiered: a Redis cache with a per-entry idle TTL,
// degrading transparently to an in-process map when the cache is unreachable.
// The tier decision lives entirely inside Store; callers see a single access
// contract. Sessions outlive any one connection and expire after the idle TTL.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn fragment in a session's history. Owned exclusively by
// its session; never shared across sessions.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a generated ID and the current timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Session is the server-side state for one logical conversation.
//
// Invariants: History is append-only within a session's lifetime; Context
// merges shallowly on update and is only replaced wholesale by an explicit
// reset.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId,omitempty"`
	History      []Message         `json:"history"`
	Context      map[string]any    `json:"context"`
	Preferences  map[string]string `json:"preferences"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
}

// defaultPreferences seeds a new session's preferences map.
func defaultPreferences() map[string]string {
	return map[string]string{
		"theme":    "system",
		"language": "en",
		"model":    "gemini",
	}
}

// newSession builds a session with defaults.
func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		History:      []Message{},
		Context:      map[string]any{},
		Preferences:  defaultPreferences(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Update is a partial session mutation applied by Store.Update.
// Context and Preferences merge shallowly into the existing maps; nil fields
// are left untouched.
type Update struct {
	UserID      *string
	Context     map[string]any
	Preferences map[string]string
}
