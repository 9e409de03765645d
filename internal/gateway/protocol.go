package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/pagepal/pagepal/internal/session"
)

// Inbound event types (client -> server).
const (
	EventUserMessage = "user_message"
	EventMessage     = "message" // legacy alias for user_message
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventGetHistory  = "get_history"
)

// Outbound event types (server -> client).
const (
	EventSessionConnected    = "session_connected"
	EventAgentThinking       = "agent_thinking"
	EventAgentResponse       = "agent_response"
	EventConversationHistory = "conversation_history"
	EventUserTyping          = "user_typing"
	EventError               = "error"
)

// Envelope is the wire frame for every socket event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Data: data})
}

// UserMessagePayload is the normalized inbound chat message. The legacy
// client sends a bare string for the "message" event; UnmarshalJSON folds
// both shapes into one.
type UserMessagePayload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (p *UserMessagePayload) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		p.Content = bare
		p.Metadata = nil
		return nil
	}

	type alias UserMessagePayload
	var full alias
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*p = UserMessagePayload(full)
	return nil
}

// SessionConnectedPayload announces a successful bind with the state the
// client needs to render the conversation.
type SessionConnectedPayload struct {
	SessionID           string            `json:"sessionId"`
	ConversationHistory []session.Message `json:"conversationHistory"`
	Preferences         map[string]string `json:"preferences"`
}

// ThinkingPayload toggles the client's typing indicator for the agent.
type ThinkingPayload struct {
	Thinking bool `json:"thinking"`
}

// AgentResponsePayload carries a reply or a processing failure. Type is
// "agent_response" on success and "error" when the turn failed.
type AgentResponsePayload struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HistoryPayload answers a get_history request.
type HistoryPayload struct {
	History   []session.Message `json:"history"`
	SessionID string            `json:"sessionId"`
}

// TypingPayload relays another participant's typing state.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// ErrorPayload is the generic error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
