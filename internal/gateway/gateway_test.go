package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepal/pagepal/internal/agent"
	"github.com/pagepal/pagepal/internal/session"
)

// stubOrchestrator returns a fixed reply and records the requests it saw.
type stubOrchestrator struct {
	mu    sync.Mutex
	reply *agent.Reply
	err   error
	reqs  []agent.Request
}

func (s *stubOrchestrator) ProcessMessage(ctx context.Context, req agent.Request) (*agent.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func (s *stubOrchestrator) requests() []agent.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Request(nil), s.reqs...)
}

func (s *stubOrchestrator) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type gatewayFixture struct {
	store  *session.Store
	orch   *stubOrchestrator
	server *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	store := session.NewStore(nil, 30*time.Minute, nil)
	orch := &stubOrchestrator{
		reply: &agent.Reply{
			Content:        "stub reply",
			Metadata:       map[string]any{"intent": "general_conversation"},
			UpdatedContext: map[string]any{"lastIntent": "general_conversation"},
		},
	}

	g := New(hub, store, orch, []string{"*"}, nil)
	server := httptest.NewServer(http.HandlerFunc(g.HandleWS))
	t.Cleanup(server.Close)

	return &gatewayFixture{store: store, orch: orch, server: server}
}

func (f *gatewayFixture) dial(t *testing.T, sessionID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?sessionId=" + sessionID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, ws.ReadJSON(&env))
	return env
}

func sendEvent(t *testing.T, ws *websocket.Conn, eventType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(Envelope{Type: eventType, Data: data}))
}

func TestConnectWithoutSessionIDRejected(t *testing.T) {
	f := newGatewayFixture(t)

	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http"), nil)
	assert.Error(t, err, "upgrade must be refused without a session id")
}

func TestConnectEmitsSessionConnected(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")

	env := readEvent(t, ws)
	require.Equal(t, EventSessionConnected, env.Type)

	var payload SessionConnectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "sess-1", payload.SessionID)
	assert.Empty(t, payload.ConversationHistory)
	assert.Equal(t, "en", payload.Preferences["language"])
}

func TestUserMessageTurn(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws) // session_connected

	sendEvent(t, ws, EventUserMessage, UserMessagePayload{Content: "hello"})

	env := readEvent(t, ws)
	require.Equal(t, EventAgentThinking, env.Type)
	var thinking ThinkingPayload
	require.NoError(t, json.Unmarshal(env.Data, &thinking))
	assert.True(t, thinking.Thinking)

	env = readEvent(t, ws)
	require.Equal(t, EventAgentResponse, env.Type)
	var resp AgentResponsePayload
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "agent_response", resp.Type)
	assert.Equal(t, "stub reply", resp.Content)

	env = readEvent(t, ws)
	require.Equal(t, EventAgentThinking, env.Type)
	require.NoError(t, json.Unmarshal(env.Data, &thinking))
	assert.False(t, thinking.Thinking, "thinking must stop after the reply")

	// Both turns persisted, context merged.
	sess, err := f.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, session.RoleUser, sess.History[0].Role)
	assert.Equal(t, "hello", sess.History[0].Content)
	assert.Equal(t, session.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "general_conversation", sess.Context["lastIntent"])
}

func TestBareStringMessageNormalized(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"message","data":"just a plain string"}`)))

	readEvent(t, ws) // thinking true
	env := readEvent(t, ws)
	require.Equal(t, EventAgentResponse, env.Type)

	reqs := f.orch.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "just a plain string", reqs[0].Content)
}

func TestOrchestratorErrorEmitsErrorResponse(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws)

	f.orch.setErr(assert.AnError)
	sendEvent(t, ws, EventUserMessage, UserMessagePayload{Content: "boom"})

	readEvent(t, ws) // thinking true
	env := readEvent(t, ws)
	require.Equal(t, EventAgentResponse, env.Type)
	var resp AgentResponsePayload
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "error", resp.Type)
	assert.NotEmpty(t, resp.Content)

	env = readEvent(t, ws)
	assert.Equal(t, EventAgentThinking, env.Type, "thinking must stop even when the turn fails")
}

func TestUserMessageOnDeletedSession(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws)

	require.NoError(t, f.store.Delete(context.Background(), "sess-1"))
	sendEvent(t, ws, EventUserMessage, UserMessagePayload{Content: "hello?"})

	env := readEvent(t, ws)
	require.Equal(t, EventError, env.Type)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "Session not found", payload.Message)

	assert.Empty(t, f.orch.requests(), "no orchestration on a missing session")
}

func TestGetHistory(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws)

	sendEvent(t, ws, EventUserMessage, UserMessagePayload{Content: "hello"})
	for range 3 {
		readEvent(t, ws) // thinking, response, thinking
	}

	sendEvent(t, ws, EventGetHistory, nil)
	env := readEvent(t, ws)
	require.Equal(t, EventConversationHistory, env.Type)

	var payload HistoryPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "sess-1", payload.SessionID)
	assert.Len(t, payload.History, 2)
}

func TestTypingRelay(t *testing.T) {
	f := newGatewayFixture(t)
	sender := f.dial(t, "sess-1")
	peer := f.dial(t, "sess-1")
	readEvent(t, sender)
	readEvent(t, peer)

	sendEvent(t, sender, EventTypingStart, nil)

	env := readEvent(t, peer)
	require.Equal(t, EventUserTyping, env.Type)
	var payload TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.True(t, payload.Typing)
}

func TestUnknownEventType(t *testing.T) {
	f := newGatewayFixture(t)
	ws := f.dial(t, "sess-1")
	readEvent(t, ws)

	sendEvent(t, ws, "bogus_event", nil)

	env := readEvent(t, ws)
	require.Equal(t, EventError, env.Type)
}

func TestUserMessagePayloadUnmarshal(t *testing.T) {
	var p UserMessagePayload
	require.NoError(t, json.Unmarshal([]byte(`"bare text"`), &p))
	assert.Equal(t, "bare text", p.Content)

	require.NoError(t, json.Unmarshal([]byte(`{"content":"structured","metadata":{"page":"docs"}}`), &p))
	assert.Equal(t, "structured", p.Content)
	assert.Equal(t, "docs", p.Metadata["page"])
}
