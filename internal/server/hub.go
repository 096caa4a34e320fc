package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rccm-quiz/sessionguard/internal/session"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
)

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

func newWSClient(conn *websocket.Conn, sessionID string) *wsClient {
	c := &wsClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *wsClient) close() {
	close(c.send)
}

// Hub fans status pushes out to the connections of each session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
	seq     atomic.Uint64
	log     *slog.Logger
	onCount func(int)
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*wsClient]bool),
		log:     log,
	}
}

// Add registers a connection and queues the initial status.
func (h *Hub) Add(conn *websocket.Conn, sessionID string, initial session.Status) *wsClient {
	c := newWSClient(conn, sessionID)
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.count(n)

	if data, ok := h.encode(MsgStatus, initial); ok {
		select {
		case c.send <- data:
		default:
		}
	}
	return c
}

func (h *Hub) Remove(c *wsClient) {
	h.mu.Lock()
	removed := false
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		removed = true
	}
	n := len(h.clients)
	h.mu.Unlock()
	if removed {
		h.count(n)
	}
}

// Push sends st to every connection of sessionID.
func (h *Hub) Push(sessionID string, st session.Status) {
	data, ok := h.encode(MsgStatus, st)
	if !ok {
		return
	}
	for _, c := range h.snapshot() {
		if c.sessionID == sessionID {
			h.deliver(c, data)
		}
	}
}

// PushAll sends each connection the status returned by statusOf. Sessions
// whose lookup fails are skipped.
func (h *Hub) PushAll(statusOf func(sessionID string) (session.Status, bool)) {
	cache := make(map[string][]byte)
	for _, c := range h.snapshot() {
		data, seen := cache[c.sessionID]
		if !seen {
			st, ok := statusOf(c.sessionID)
			if ok {
				data, ok = h.encode(MsgStatus, st)
			}
			if !ok {
				data = nil
			}
			cache[c.sessionID] = data
		}
		if data != nil {
			h.deliver(c, data)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll drops every connection.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		h.Remove(c)
	}
}

func (h *Hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) deliver(c *wsClient, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("ws client too slow, disconnecting", "session_id", c.sessionID)
		h.Remove(c)
	}
}

func (h *Hub) encode(t MessageType, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(WSMessage{Type: t, Seq: h.seq.Add(1), Payload: payload})
	if err != nil {
		h.log.Error("ws marshal failed", "error", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) count(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
