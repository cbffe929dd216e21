package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wassist-backend/internal/bus"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/rules"
	"wassist-backend/internal/store"
)

// RulesService owns auto-reply rule CRUD. Rules are mutated only here, never
// by the engine; every write is gated by the owning organization and
// validated before it reaches storage.
type RulesService struct {
	store store.Store
	bus   *bus.Bus
	log   *logging.Logger
}

// NewRulesService creates a RulesService.
func NewRulesService(st store.Store, b *bus.Bus, log *logging.Logger) *RulesService {
	return &RulesService{store: st, bus: b, log: log.Component("rules")}
}

// CreateRule validates and stores a new rule.
func (s *RulesService) CreateRule(ctx context.Context, orgID uuid.UUID, req models.CreateRuleRequest) (*models.AutoReplyRule, error) {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	candidate := models.AutoReplyRule{
		TriggerWords: req.TriggerWords,
		Response:     req.Response,
		Priority:     req.Priority,
	}
	if err := rules.Validate(&candidate); err != nil {
		return nil, err
	}

	created, err := s.store.CreateRule(ctx, store.CreateRuleParams{
		OrganizationID: orgID,
		TriggerWords:   candidate.TriggerWords,
		Response:       candidate.Response,
		Priority:       candidate.Priority,
		IsActive:       isActive,
	})
	if err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}
	s.publish(ctx, orgID)
	return created, nil
}

// GetRule fetches one rule by id.
func (s *RulesService) GetRule(ctx context.Context, orgID, id uuid.UUID) (*models.AutoReplyRule, error) {
	return s.store.GetRuleByID(ctx, id, orgID)
}

// ListRules returns the organization's rules. Inactive rules are included;
// they are retained for audit and editing even though evaluation skips them.
func (s *RulesService) ListRules(ctx context.Context, orgID uuid.UUID) ([]models.AutoReplyRule, error) {
	return s.store.ListRules(ctx, orgID, false)
}

// UpdateRule applies a partial update. The merged result is re-validated so a
// rule can never be edited into an invalid state.
func (s *RulesService) UpdateRule(ctx context.Context, orgID, id uuid.UUID, req models.UpdateRuleRequest) (*models.AutoReplyRule, error) {
	existing, err := s.store.GetRuleByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}

	merged := *existing
	if req.TriggerWords != nil {
		merged.TriggerWords = req.TriggerWords
	}
	if req.Response != nil {
		merged.Response = *req.Response
	}
	if req.Priority != nil {
		merged.Priority = *req.Priority
	}
	if err := rules.Validate(&merged); err != nil {
		return nil, err
	}

	var triggers []string
	if req.TriggerWords != nil {
		triggers = merged.TriggerWords
	}
	var response *string
	if req.Response != nil {
		response = &merged.Response
	}

	updated, err := s.store.UpdateRule(ctx, store.UpdateRuleParams{
		ID:             id,
		OrganizationID: orgID,
		TriggerWords:   triggers,
		Response:       response,
		Priority:       req.Priority,
		IsActive:       req.IsActive,
	})
	if err != nil {
		return nil, fmt.Errorf("updating rule: %w", err)
	}
	s.publish(ctx, orgID)
	return updated, nil
}

// SetRuleActive toggles a rule in or out of evaluation without losing it.
func (s *RulesService) SetRuleActive(ctx context.Context, orgID, id uuid.UUID, active bool) (*models.AutoReplyRule, error) {
	updated, err := s.store.UpdateRule(ctx, store.UpdateRuleParams{
		ID:             id,
		OrganizationID: orgID,
		IsActive:       &active,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orgID)
	return updated, nil
}

// DeleteRule removes a rule permanently.
func (s *RulesService) DeleteRule(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.store.DeleteRule(ctx, id, orgID); err != nil {
		return err
	}
	s.publish(ctx, orgID)
	return nil
}

func (s *RulesService) publish(ctx context.Context, orgID uuid.UUID) {
	if s.bus != nil {
		s.bus.Publish(ctx, bus.Event{OrganizationID: orgID, Kind: bus.KindRules})
	}
}
