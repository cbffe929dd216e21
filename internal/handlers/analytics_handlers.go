package handlers

import (
	"net/http"

	"wassist-backend/internal/services"
)

// AnalyticsHandlers handles HTTP requests for on-demand metrics.
type AnalyticsHandlers struct {
	analytics *services.AnalyticsService
}

// NewAnalyticsHandlers creates a new AnalyticsHandlers instance.
func NewAnalyticsHandlers(as *services.AnalyticsService) *AnalyticsHandlers {
	return &AnalyticsHandlers{analytics: as}
}

// HandleGetAnalytics computes and returns the metrics snapshot for one intent.
func (h *AnalyticsHandlers) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
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

	snapshot, err := h.analytics.Snapshot(r.Context(), orgID, intent)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to compute analytics: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, snapshot)
}
