package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// EventPublisher mirrors session-wide events to an external feed (e.g. Redis pub/sub).
// Implementations must not block.
type EventPublisher interface {
	PublishSessionEvent(sessionKey string, event string, payload []byte) error
}

// Hub maintains session_key -> set of connections and fans events out to them.
// Each connection has its own buffered queue; a connection whose queue is full is
// evicted rather than left with a gap in its event stream.
type Hub struct {
	// sessionKey -> map[clientID]*Client
	sessions map[string]map[string]*Client
	mu       sync.RWMutex
	logger   *zap.Logger
	mirror   EventPublisher
}

// NewHub creates a new WebSocket hub. mirror may be nil.
func NewHub(logger *zap.Logger, mirror EventPublisher) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[string]*Client),
		logger:   logger,
		mirror:   mirror,
	}
}

// Register adds a client to its session room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionKey] == nil {
		h.sessions[c.SessionKey] = make(map[string]*Client)
	}
	h.sessions[c.SessionKey][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session", zap.String("client_id", c.ID), zap.String("session_key", c.SessionKey))
}

// Unregister removes a client from its session room and closes its send queue.
// Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c.SessionKey, c.ID, c)
	h.mu.Unlock()
	if removed {
		h.logger.Debug("client left session", zap.String("client_id", c.ID), zap.String("session_key", c.SessionKey))
	}
}

// Evict closes a connection's send queue after the events already queued for it;
// its write pump then sends a close frame and the read pump tears the connection down.
func (h *Hub) Evict(sessionKey, connID string) {
	h.mu.Lock()
	removed := h.removeLocked(sessionKey, connID, nil)
	h.mu.Unlock()
	if removed {
		h.logger.Info("client evicted", zap.String("client_id", connID), zap.String("session_key", sessionKey))
	}
}

// removeLocked deletes the client and closes its queue; want, if non-nil, must match.
func (h *Hub) removeLocked(sessionKey, connID string, want *Client) bool {
	m, ok := h.sessions[sessionKey]
	if !ok {
		return false
	}
	c, ok := m[connID]
	if !ok || (want != nil && c != want) {
		return false
	}
	delete(m, connID)
	close(c.send)
	if len(m) == 0 {
		delete(h.sessions, sessionKey)
	}
	return true
}

// BroadcastToSession sends an event to every connection in a session.
func (h *Hub) BroadcastToSession(sessionKey, event string, payload interface{}) {
	h.broadcast(sessionKey, "", event, payload)
}

// BroadcastToSessionExcept sends an event to every connection in a session but one.
func (h *Hub) BroadcastToSessionExcept(sessionKey, exceptConnID, event string, payload interface{}) {
	h.broadcast(sessionKey, exceptConnID, event, payload)
}

func (h *Hub) broadcast(sessionKey, except, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	var slow []*Client
	h.mu.RLock()
	for id, c := range h.sessions[sessionKey] {
		if id == except {
			continue
		}
		if !c.enqueue(msg) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("client send buffer full, evicting", zap.String("client_id", c.ID), zap.String("session_key", sessionKey))
		h.Unregister(c)
	}

	if h.mirror != nil {
		if err := h.mirror.PublishSessionEvent(sessionKey, event, data); err != nil {
			h.logger.Warn("mirror publish failed", zap.String("event", event), zap.Error(err))
		}
	}
}

// SendToClient sends an event to a single connection in a session.
func (h *Hub) SendToClient(sessionKey, connID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	c, ok := h.sessions[sessionKey][connID]
	sent := ok && c.enqueue(WSMessage{Event: event, Data: data})
	h.mu.RUnlock()
	if ok && !sent {
		h.logger.Warn("client send buffer full, evicting", zap.String("client_id", connID), zap.String("session_key", sessionKey))
		h.Unregister(c)
	}
}

// ConnectionCount returns the number of connected clients in a session.
func (h *Hub) ConnectionCount(sessionKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionKey])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil
	default:
		return json.Marshal(payload)
	}
}
