// Package polls serves the read-only HTTP view of live sessions and their polls.
package polls

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/livepoll/internal/models"
	"github.com/aura-webinar/livepoll/internal/session"
	"github.com/aura-webinar/livepoll/pkg/response"
)

// ConnectionCounter reports open connections per session.
type ConnectionCounter interface {
	ConnectionCount(sessionKey string) int
}

// Handler handles session summary HTTP endpoints.
type Handler struct {
	registry *session.Registry
	conns    ConnectionCounter
}

// NewHandler creates a session summary handler.
func NewHandler(registry *session.Registry, conns ConnectionCounter) *Handler {
	return &Handler{registry: registry, conns: conns}
}

// List handles GET /sessions.
func (h *Handler) List(c *gin.Context) {
	keys := h.registry.Keys()
	out := make([]models.SessionSummary, 0, len(keys))
	for _, key := range keys {
		if sess, ok := h.registry.Lookup(key); ok {
			out = append(out, h.summary(sess))
		}
	}
	response.OK(c, out)
}

// Get handles GET /sessions/:key. Unknown keys are not created.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	if key == "" || session.ValidateKey(key) != nil {
		response.BadRequest(c, "invalid session key")
		return
	}
	sess, ok := h.registry.Lookup(key)
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, h.summary(sess))
}

func (h *Handler) summary(sess *session.Session) models.SessionSummary {
	s := sess.Summary()
	if h.conns != nil {
		s.Connections = h.conns.ConnectionCount(s.SessionKey)
	}
	return s
}
