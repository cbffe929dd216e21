package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"wassist-backend/internal/auth"
)

// RespondWithError responds with an error message.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithJSON responds with a JSON payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// GetOrgIDFromContext extracts the organization ID injected by the auth
// middleware. Every tenant-scoped handler goes through this; there is no
// other source of org identity.
func GetOrgIDFromContext(ctx context.Context) (uuid.UUID, error) {
	orgID, ok := auth.OrgIDFromContext(ctx)
	if !ok || orgID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("organization id not found in context")
	}
	return orgID, nil
}
