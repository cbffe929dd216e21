package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/services"
)

// defaultIntent scopes inbound traffic that does not name a conversation
// grouping explicitly.
const defaultIntent = "client"

// WhatsAppWebhookHandlers handles the Cloud API webhook: the one-time
// subscription handshake and the inbound message events.
type WhatsAppWebhookHandlers struct {
	dispatch    *services.DispatchService
	verifyToken string
	appSecret   string
	log         *logging.Logger
}

// NewWhatsAppWebhookHandlers creates a new WhatsAppWebhookHandlers instance.
// verifyToken answers the GET handshake; appSecret, when non-empty, enforces
// the X-Hub-Signature-256 check on event deliveries.
func NewWhatsAppWebhookHandlers(ds *services.DispatchService, verifyToken, appSecret string, log *logging.Logger) *WhatsAppWebhookHandlers {
	return &WhatsAppWebhookHandlers{
		dispatch:    ds,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		log:         log.Component("whatsapp-webhook"),
	}
}

// HandleVerify answers the Cloud API subscription handshake: echo
// hub.challenge when hub.verify_token matches.
func (h *WhatsAppWebhookHandlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.verifyToken || h.verifyToken == "" {
		RespondWithError(w, http.StatusForbidden, "Verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(q.Get("hub.challenge")))
}

// HandleEvent ingests inbound message events. The org is addressed in the
// URL; the webhook URL registered with Meta is per-tenant. Always returns
// 200 for structurally valid deliveries so the Cloud API does not retry
// events we have already recorded.
func (h *WhatsAppWebhookHandlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid organization ID in URL")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	if !h.signatureValid(r.Header.Get("X-Hub-Signature-256"), body) {
		h.log.Warn().Str("org", orgID.String()).Msg("webhook signature check failed")
		RespondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var payload models.WhatsAppWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid webhook payload: "+err.Error())
		return
	}

	intent := r.URL.Query().Get("intent")
	if intent == "" {
		intent = defaultIntent
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.From == "" {
					continue
				}
				receivedAt := time.Now().UTC()
				if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					receivedAt = time.Unix(secs, 0).UTC()
				}
				from := msg.From
				p := models.Participant{PhoneNumber: &from}
				if _, err := h.dispatch.HandleInbound(r.Context(), orgID, intent, p, msg.Text.Body, receivedAt); err != nil {
					// The event is acknowledged regardless; a retry from Meta
					// would only duplicate what is already recorded.
					h.log.Error().Err(err).Str("org", orgID.String()).Msg("inbound whatsapp message failed")
				}
			}
		}
	}

	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// signatureValid checks X-Hub-Signature-256 ("sha256=<hex>") against the app
// secret. An empty configured secret disables the check (local development).
func (h *WhatsAppWebhookHandlers) signatureValid(header string, body []byte) bool {
	if h.appSecret == "" {
		return true
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}
