package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pagepal/pagepal/internal/log"
)

// sendBufferSize is the per-connection outbound queue. A client that cannot
// drain this many frames is disconnected rather than allowed to stall the hub.
const sendBufferSize = 256

// ErrBufferFull is returned when a connection's send queue is saturated.
var ErrBufferFull = errors.New("send buffer full")

// Connection is one WebSocket client bound to a session room.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte

	mu sync.Mutex
}

// WriteMessage serializes writes to the underlying socket.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// roomMessage is a frame addressed to a session room, optionally excluding
// the connection that produced it (typing relays).
type roomMessage struct {
	sessionID string
	exclude   string
	data      []byte
}

// Hub tracks connections and their session rooms. All membership mutation
// funnels through the Run loop's channels; reads take the shared lock.
type Hub struct {
	connections map[string]*Connection
	sessions    map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *roomMessage

	mu     sync.RWMutex
	logger log.Logger
}

// NewHub creates a hub. Call Run before registering connections.
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *roomMessage, 256),
		logger:      logger,
	}
}

// Run processes membership and broadcast events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if conn.SessionID != "" {
				if h.sessions[conn.SessionID] == nil {
					h.sessions[conn.SessionID] = make(map[string]bool)
				}
				h.sessions[conn.SessionID][conn.ID] = true
			}
			h.mu.Unlock()
			h.logger.Debug("connection registered", "conn", conn.ID, "session", conn.SessionID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if conn.SessionID != "" && h.sessions[conn.SessionID] != nil {
					delete(h.sessions[conn.SessionID], conn.ID)
					if len(h.sessions[conn.SessionID]) == 0 {
						delete(h.sessions, conn.SessionID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			h.logger.Debug("connection unregistered", "conn", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.sessions[msg.sessionID] {
				if connID == msg.exclude {
					continue
				}
				conn, ok := h.connections[connID]
				if !ok {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					h.logger.Warn("send buffer full, dropping connection", "conn", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection wraps a raw socket; the caller must Register it.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, sendBufferSize),
	}
}

// Register adds the connection to the hub and its session room.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes the connection and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Send queues a frame to one connection. Fails fast when the buffer is full.
func (h *Hub) Send(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendEvent marshals and queues an event envelope to one connection.
func (h *Hub) SendEvent(conn *Connection, eventType string, payload any) error {
	data, err := newEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return h.Send(conn, data)
}

// BroadcastEvent sends an event to every connection in a session room.
func (h *Hub) BroadcastEvent(sessionID, eventType string, payload any) error {
	return h.broadcastEvent(sessionID, "", eventType, payload)
}

// RelayEvent sends an event to a session room excluding the originating
// connection. Used for typing indicators, which must not echo to self.
func (h *Hub) RelayEvent(from *Connection, eventType string, payload any) error {
	return h.broadcastEvent(from.SessionID, from.ID, eventType, payload)
}

func (h *Hub) broadcastEvent(sessionID, exclude, eventType string, payload any) error {
	data, err := newEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	h.broadcast <- &roomMessage{sessionID: sessionID, exclude: exclude, data: data}
	return nil
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SessionCount returns the number of session rooms with at least one
// connection.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// pingPeriod must be shorter than pongWait so the peer answers in time.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)
