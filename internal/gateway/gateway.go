// Package gateway is the WebSocket front door: it binds each connection to a
// session, relays chat turns through the conversation agent, and fans events
// out to every connection sharing the session room.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagepal/pagepal/internal/agent"
	"github.com/pagepal/pagepal/internal/log"
	"github.com/pagepal/pagepal/internal/session"
)

// processingErrorReply is what the client sees when a turn fails before the
// agent's own fallbacks could engage.
const processingErrorReply = "I'm sorry, I ran into a problem handling that message. Please try again."

// orchestrator is the slice of the agent the gateway needs.
type orchestrator interface {
	ProcessMessage(ctx context.Context, req agent.Request) (*agent.Reply, error)
}

// Gateway upgrades HTTP requests to WebSocket connections and drives the
// per-connection read/write loops.
type Gateway struct {
	hub      *Hub
	store    *session.Store
	agent    orchestrator
	upgrader websocket.Upgrader
	logger   log.Logger
}

// New creates a Gateway. allowedOrigins follows the usual CORS convention:
// a literal "*" entry allows any origin.
func New(hub *Hub, store *session.Store, orch orchestrator, allowedOrigins []string, logger log.Logger) *Gateway {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gateway{
		hub:    hub,
		store:  store,
		agent:  orch,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	allowAll := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin header; let them through.
		return origin == "" || set[origin]
	}
}

// HandleWS upgrades the request and binds it to the session named in the
// sessionId query parameter. A missing session ID rejects the connection
// before the upgrade.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess, err := g.store.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		g.logger.Error("session bind failed", "session", sessionID, "error", err)
		ws.Close()
		return
	}

	conn := g.hub.NewConnection(ws, sessionID)
	g.hub.Register(conn)

	if err := g.hub.SendEvent(conn, EventSessionConnected, SessionConnectedPayload{
		SessionID:           sess.ID,
		ConversationHistory: sess.History,
		Preferences:         sess.Preferences,
	}); err != nil {
		g.logger.Warn("failed to queue session_connected", "conn", conn.ID, "error", err)
	}

	go g.writePump(conn)
	go g.readPump(conn)
}

func (g *Gateway) readPump(conn *Connection) {
	defer func() {
		g.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", "conn", conn.ID, "error", err)
			}
			return
		}
		g.handleEvent(conn, data)
	}
}

func (g *Gateway) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) handleEvent(conn *Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.sendError(conn, "Invalid message format")
		return
	}

	switch env.Type {
	case EventUserMessage, EventMessage:
		var payload UserMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			g.sendError(conn, "Invalid message format")
			return
		}
		g.handleUserMessage(conn, payload)

	case EventTypingStart:
		g.hub.RelayEvent(conn, EventUserTyping, TypingPayload{Typing: true})

	case EventTypingStop:
		g.hub.RelayEvent(conn, EventUserTyping, TypingPayload{Typing: false})

	case EventGetHistory:
		g.handleGetHistory(conn)

	default:
		g.sendError(conn, "Unknown event type: "+env.Type)
	}
}

// handleUserMessage runs one chat turn. The thinking-stopped signal goes out
// unconditionally, whatever happens in between.
func (g *Gateway) handleUserMessage(conn *Connection, payload UserMessagePayload) {
	ctx := context.Background()

	sess, err := g.store.Get(ctx, conn.SessionID)
	if err != nil {
		g.sendError(conn, "Session not found")
		return
	}

	userMsg := session.NewMessage(session.RoleUser, payload.Content)
	userMsg.Metadata = payload.Metadata
	if err := g.store.AddMessage(ctx, sess.ID, userMsg); err != nil {
		g.sendError(conn, "Session not found")
		return
	}

	g.hub.BroadcastEvent(sess.ID, EventAgentThinking, ThinkingPayload{Thinking: true})
	defer g.hub.BroadcastEvent(sess.ID, EventAgentThinking, ThinkingPayload{Thinking: false})

	reply, err := g.agent.ProcessMessage(ctx, agent.Request{
		Content:  payload.Content,
		History:  append(sess.History, userMsg),
		Context:  sess.Context,
		Metadata: payload.Metadata,
	})
	if err != nil {
		g.logger.Error("message processing failed", "session", sess.ID, "error", err)
		g.hub.BroadcastEvent(sess.ID, EventAgentResponse, AgentResponsePayload{
			Type:    "error",
			Content: processingErrorReply,
		})
		return
	}

	assistantMsg := session.NewMessage(session.RoleAssistant, reply.Content)
	assistantMsg.Metadata = reply.Metadata
	if err := g.store.AddMessage(ctx, sess.ID, assistantMsg); err != nil {
		g.logger.Warn("failed to persist assistant reply", "session", sess.ID, "error", err)
	}

	if len(reply.UpdatedContext) > 0 {
		if _, err := g.store.Update(ctx, sess.ID, session.Update{Context: reply.UpdatedContext}); err != nil {
			g.logger.Warn("failed to merge updated context", "session", sess.ID, "error", err)
		}
	}

	g.hub.BroadcastEvent(sess.ID, EventAgentResponse, AgentResponsePayload{
		Type:     "agent_response",
		Content:  reply.Content,
		Metadata: reply.Metadata,
	})
}

func (g *Gateway) handleGetHistory(conn *Connection) {
	sess, err := g.store.Get(context.Background(), conn.SessionID)
	if err != nil {
		g.sendError(conn, "Session not found")
		return
	}

	g.hub.SendEvent(conn, EventConversationHistory, HistoryPayload{
		History:   sess.History,
		SessionID: sess.ID,
	})
}

func (g *Gateway) sendError(conn *Connection, message string) {
	if err := g.hub.SendEvent(conn, EventError, ErrorPayload{Message: message}); err != nil {
		g.logger.Warn("failed to queue error event", "conn", conn.ID, "error", err)
	}
}
