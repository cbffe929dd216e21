// Package widget is the web-widget transport: a registry of open websocket
// sessions that outbound messages and refresh notifications are pushed to.
package widget

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
)

// ErrSessionNotConnected is returned when delivery targets a widget session
// with no open connection. The dispatcher treats this as a transport failure.
var ErrSessionNotConnected = errors.New("widget session is not connected")

// conn is one open widget connection. Writes are serialized per connection.
type conn struct {
	sock *websocket.Conn
	mu   sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sock.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.sock.WriteJSON(v)
}

// Hub maps widget session ids to their open websocket connections.
type Hub struct {
	log *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*conn
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:      log.Component("widget"),
		sessions: make(map[string]*conn),
	}
}

// Register attaches a websocket to a session id, replacing and closing any
// previous connection for the same session.
func (h *Hub) Register(sessionID string, sock *websocket.Conn) {
	h.mu.Lock()
	prev := h.sessions[sessionID]
	h.sessions[sessionID] = &conn{sock: sock}
	h.mu.Unlock()

	if prev != nil {
		prev.sock.Close()
	}
	h.log.Info().Str("session", sessionID).Msg("widget session connected")
}

// Unregister detaches a websocket. A newer connection for the same session is
// left in place.
func (h *Hub) Unregister(sessionID string, sock *websocket.Conn) {
	h.mu.Lock()
	if cur, ok := h.sessions[sessionID]; ok && cur.sock == sock {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	h.log.Info().Str("session", sessionID).Msg("widget session disconnected")
}

// Connected reports whether a session currently has an open connection.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// Send pushes a message frame to one widget session.
func (h *Hub) Send(sessionID string, role models.SenderRole, text string) error {
	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrSessionNotConnected
	}

	frame := models.WidgetFrame{
		Type: "message",
		Role: role,
		Text: text,
		At:   time.Now().UTC(),
	}
	if err := c.writeJSON(frame); err != nil {
		return errors.Join(ErrSessionNotConnected, err)
	}
	return nil
}

// Refresh pushes a refresh frame to one session. Used by the per-connection
// bus subscription so a widget refetches after its thread changed elsewhere.
func (h *Hub) Refresh(sessionID, intent string) error {
	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrSessionNotConnected
	}
	frame := models.WidgetFrame{Type: "refresh", Intent: intent, At: time.Now().UTC()}
	if err := c.writeJSON(frame); err != nil {
		return errors.Join(ErrSessionNotConnected, err)
	}
	return nil
}

// NotifyRefresh tells every open session in scope that records changed and a
// refetch is needed. The frame carries no row data on purpose.
func (h *Hub) NotifyRefresh(intent string) {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.sessions))
	for _, c := range h.sessions {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	frame := models.WidgetFrame{Type: "refresh", Intent: intent, At: time.Now().UTC()}
	for _, c := range conns {
		if err := c.writeJSON(frame); err != nil {
			h.log.Debug().Err(err).Msg("refresh push failed")
		}
	}
}
