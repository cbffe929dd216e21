package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wassist-backend/internal/models"
	"wassist-backend/internal/services"
	"wassist-backend/internal/store"
)

// RuleHandlers handles HTTP requests for auto-reply rule management.
type RuleHandlers struct {
	rules *services.RulesService
}

// NewRuleHandlers creates a new RuleHandlers instance.
func NewRuleHandlers(rs *services.RulesService) *RuleHandlers {
	return &RuleHandlers{rules: rs}
}

// HandleCreateRule handles requests to create a new auto-reply rule.
func (h *RuleHandlers) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.rules.CreateRule(r.Context(), orgID, req)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusCreated, toRuleResponse(*rule))
}

// HandleListRules returns all of the organization's rules, inactive included.
func (h *RuleHandlers) HandleListRules(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rules, err := h.rules.ListRules(r.Context(), orgID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to list rules: "+err.Error())
		return
	}

	resp := models.ListRulesResponse{Rules: make([]models.RuleResponse, 0, len(rules))}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, toRuleResponse(rule))
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

// HandleGetRule fetches one rule by ID.
func (h *RuleHandlers) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	rule, err := h.rules.GetRule(r.Context(), orgID, ruleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to get rule: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toRuleResponse(*rule))
}

// HandleUpdateRule applies a partial update to a rule.
func (h *RuleHandlers) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	var req models.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := h.rules.UpdateRule(r.Context(), orgID, ruleID, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toRuleResponse(*rule))
}

// HandleUpdateRuleStatus toggles a rule in or out of evaluation.
func (h *RuleHandlers) HandleUpdateRuleStatus(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		RespondWithError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	rule, err := h.rules.SetRuleActive(r.Context(), orgID, ruleID, *req.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to update rule status: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, toRuleResponse(*rule))
}

// HandleDeleteRule removes a rule permanently.
func (h *RuleHandlers) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	orgID, err := GetOrgIDFromContext(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	if err := h.rules.DeleteRule(r.Context(), orgID, ruleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondWithError(w, http.StatusNotFound, "Rule not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to delete rule: "+err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toRuleResponse(r models.AutoReplyRule) models.RuleResponse {
	return models.RuleResponse{
		ID:           r.ID,
		TriggerWords: r.TriggerWords,
		Response:     r.Response,
		Priority:     r.Priority,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
