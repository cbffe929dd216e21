package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"wassist-backend/internal/models"
	"wassist-backend/internal/services"
	"wassist-backend/internal/store"
)

// CredentialsHandlers handles HTTP requests for per-tenant transport
// credentials. Secret material is write-only through this surface.
type CredentialsHandlers struct {
	credentials *services.CredentialsService
	store       store.Store
}

// NewCredentialsHandlers creates a new CredentialsHandlers instance.
func NewCredentialsHandlers(cs *services.CredentialsService, st store.Store) *CredentialsHandlers {
	return &CredentialsHandlers{credentials: cs, store: st}
}

// HandleSetWhatsAppCredential stores (or replaces) the organization's
// WhatsApp Cloud API access.
func (h *CredentialsHandlers) HandleSetWhatsAppCredential(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.SetWhatsAppCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cred, err := h.credentials.SetWhatsAppCredential(r.Context(), orgID, req)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

// HandleGetWhatsAppCredential returns the credential's metadata. The sealed
// secret is never included.
func (h *CredentialsHandlers) HandleGetWhatsAppCredential(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cred, err := h.store.GetChannelCredential(r.Context(), orgID, models.ChannelWhatsApp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "No WhatsApp credential configured")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to get credential: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toCredentialResponse(*cred))
}

func toCredentialResponse(c models.ChannelCredential) models.ChannelCredentialResponse {
	return models.ChannelCredentialResponse{
		ID:        c.ID,
		Channel:   c.Channel,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
