package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wassist-backend/internal/bus"
	"wassist-backend/internal/integrations/widget"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/services"
)

// WidgetHandlers handles the embeddable chat widget's websocket endpoint.
type WidgetHandlers struct {
	hub      *widget.Hub
	dispatch *services.DispatchService
	bus      *bus.Bus
	log      *logging.Logger
	upgrader websocket.Upgrader
}

// NewWidgetHandlers creates a new WidgetHandlers instance.
func NewWidgetHandlers(hub *widget.Hub, ds *services.DispatchService, b *bus.Bus, log *logging.Logger) *WidgetHandlers {
	return &WidgetHandlers{
		hub:      hub,
		dispatch: ds,
		bus:      b,
		log:      log.Component("widget-handler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is embedded on tenant sites; origin is unrestricted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebsocket upgrades the connection, registers the session with the
// hub, and runs the read loop. Inbound frames feed the same dispatch pipeline
// as the WhatsApp webhook; bus events for the session's scope come back as
// refresh frames.
func (h *WidgetHandlers) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.URL.Query().Get("org"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid org query parameter")
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		RespondWithError(w, http.StatusBadRequest, "session query parameter is required")
		return
	}
	intent := r.URL.Query().Get("intent")
	if intent == "" {
		intent = defaultIntent
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.hub.Register(sessionID, sock)
	defer func() {
		h.hub.Unregister(sessionID, sock)
		sock.Close()
	}()

	events, cancel := h.bus.Subscribe(orgID, intent)
	defer cancel()
	go func() {
		for ev := range events {
			if err := h.hub.Refresh(sessionID, ev.Intent); err != nil {
				return
			}
		}
	}()

	// The connection outlives the request timeout middleware; dispatch calls
	// must not inherit its deadline.
	ctx := context.WithoutCancel(r.Context())

	for {
		var frame models.WidgetFrame
		if err := sock.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("session", sessionID).Msg("widget read loop ended")
			}
			return
		}
		if frame.Type != "message" || frame.Text == "" {
			continue
		}

		sid := sessionID
		p := models.Participant{SessionID: &sid}
		if _, err := h.dispatch.HandleInbound(ctx, orgID, intent, p, frame.Text, time.Now().UTC()); err != nil {
			h.log.Error().Err(err).Str("session", sessionID).Msg("inbound widget message failed")
		}
	}
}
