package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wassist-backend/internal/models"
	"wassist-backend/internal/services"
	"wassist-backend/internal/store"
)

// ConversationHandlers handles HTTP requests for conversation reads, manual
// sends, enrichment and bulk deletion.
type ConversationHandlers struct {
	conversations *services.ConversationService
	dispatch      *services.DispatchService
	retention     *services.RetentionService
}

// NewConversationHandlers creates a new ConversationHandlers instance.
func NewConversationHandlers(cs *services.ConversationService, ds *services.DispatchService, rs *services.RetentionService) *ConversationHandlers {
	return &ConversationHandlers{
		conversations: cs,
		dispatch:      ds,
		retention:     rs,
	}
}

// HandleListConversations returns the materialized threads for an intent,
// most recently active first. A failed reconciliation pass degrades to the
// last synchronized view with the stale flag set, never to an empty result.
func (h *ConversationHandlers) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	intent := r.URL.Query().Get("intent")
	if intent == "" {
		RespondWithError(w, http.StatusBadRequest, "intent query parameter is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			RespondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}

	threads, err := h.conversations.ListConversations(r.Context(), orgID, intent, limit)
	stale := false
	if err != nil {
		if !errors.Is(err, services.ErrStaleView) {
			RespondWithError(w, http.StatusInternalServerError, "Failed to list conversations: "+err.Error())
			return
		}
		stale = true
	}

	resp := models.ListConversationsResponse{
		Threads: make([]models.ThreadResponse, 0, len(threads)),
		Stale:   stale,
	}
	for _, t := range threads {
		resp.Threads = append(resp.Threads, toThreadResponse(t))
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// HandleGetThread returns one participant's thread, identified by either a
// phone or a session query parameter.
func (h *ConversationHandlers) HandleGetThread(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	intent := r.URL.Query().Get("intent")
	if intent == "" {
		RespondWithError(w, http.StatusBadRequest, "intent query parameter is required")
		return
	}

	p := participantFromQuery(r)
	thread, err := h.conversations.GetThread(r.Context(), orgID, intent, p)
	if err != nil {
		if errors.Is(err, models.ErrInvalidParticipant) {
			RespondWithError(w, http.StatusBadRequest, "Exactly one of phone or session is required")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to get thread: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toThreadResponse(*thread))
}

// HandleSendManualMessage injects an operator-authored message into a thread.
func (h *ConversationHandlers) HandleSendManualMessage(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.SendManualMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Intent == "" {
		RespondWithError(w, http.StatusBadRequest, "intent is required")
		return
	}

	msg, err := h.dispatch.SendManual(r.Context(), orgID, req.Intent, req.Participant, req.Text)
	if err != nil {
		if errors.Is(err, models.ErrInvalidParticipant) {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg != nil {
			// Delivery failed after validation; the failed attempt is on
			// record. Surface the transport failure.
			RespondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":   "Delivery failed: " + err.Error(),
				"message": toConversationMessage(*msg),
			})
			return
		}
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	RespondWithJSON(w, http.StatusCreated, models.SendManualMessageResponse{Message: toConversationMessage(*msg)})
}

// HandleEnrichMessage writes asynchronous classification fields onto an
// existing message.
func (h *ConversationHandlers) HandleEnrichMessage(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	var req struct {
		MessageType *string `json:"message_type"`
		Subject     *string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.conversations.EnrichMessage(r.Context(), orgID, messageID, req.MessageType, req.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Message not found")
			return
		}
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleDeleteConversations performs scoped bulk deletion. Selection
// validation failures are 400s; execution failures come back in the result
// body with success=false.
func (h *ConversationHandlers) HandleDeleteConversations(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.DeleteConversationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.retention.Delete(r.Context(), orgID, req)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

func participantFromQuery(r *http.Request) models.Participant {
	var p models.Participant
	if phone := r.URL.Query().Get("phone"); phone != "" {
		p.PhoneNumber = &phone
	}
	if session := r.URL.Query().Get("session"); session != "" {
		p.SessionID = &session
	}
	return p
}

func toConversationMessage(m models.Message) models.ConversationMessage {
	return models.ConversationMessage{
		ID:             m.ID,
		Intent:         m.Intent,
		Participant:    m.Participant,
		Role:           m.Role,
		Content:        m.Content,
		MessageType:    m.MessageType,
		Subject:        m.Subject,
		DeliveryStatus: m.DeliveryStatus,
		MatchedRuleID:  m.MatchedRuleID,
		CreatedAt:      m.CreatedAt,
	}
}

func toThreadResponse(t models.Thread) models.ThreadResponse {
	resp := models.ThreadResponse{
		Participant:  t.Participant,
		Intent:       t.Intent,
		Messages:     make([]models.ConversationMessage, 0, len(t.Messages)),
		LastActivity: t.LastActivity(),
	}
	for _, m := range t.Messages {
		resp.Messages = append(resp.Messages, toConversationMessage(m))
	}
	return resp
}
