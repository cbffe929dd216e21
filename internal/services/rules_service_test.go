package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/rules"
	"wassist-backend/internal/store"
)

func TestCreateRule_NormalizesAndDefaultsActive(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	created, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"  Facture ", "FACTURE", "aide"},
		Response:     "Contactez le support",
		Priority:     5,
	})
	require.NoError(t, err)

	assert.True(t, created.IsActive)
	assert.Equal(t, []string{"facture", "aide"}, created.TriggerWords)
}

func TestCreateRule_Invalid(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	_, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"  ", ""},
		Response:     "réponse",
	})
	assert.ErrorIs(t, err, rules.ErrNoTriggerWords)

	_, err = svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"facture"},
		Response:     "",
	})
	assert.ErrorIs(t, err, rules.ErrEmptyResponse)
}

func TestUpdateRule_PartialMergeRevalidates(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	created, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"facture"},
		Response:     "Contactez le support",
		Priority:     5,
	})
	require.NoError(t, err)

	newPriority := 10
	updated, err := svc.UpdateRule(context.Background(), orgID, created.ID, models.UpdateRuleRequest{
		Priority: &newPriority,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Priority)
	assert.Equal(t, []string{"facture"}, updated.TriggerWords)
	assert.Equal(t, "Contactez le support", updated.Response)

	// A partial update cannot strip the response out from under the rule.
	empty := ""
	_, err = svc.UpdateRule(context.Background(), orgID, created.ID, models.UpdateRuleRequest{
		Response: &empty,
	})
	assert.ErrorIs(t, err, rules.ErrEmptyResponse)
}

func TestUpdateRule_OrgScoped(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	created, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"facture"},
		Response:     "Contactez le support",
	})
	require.NoError(t, err)

	p := 1
	_, err = svc.UpdateRule(context.Background(), uuid.New(), created.ID, models.UpdateRuleRequest{Priority: &p})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetRuleActive_Toggle(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	created, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"facture"},
		Response:     "Contactez le support",
	})
	require.NoError(t, err)

	disabled, err := svc.SetRuleActive(context.Background(), orgID, created.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)

	// Disabled rules stay listed but leave active-only evaluation.
	all, err := svc.ListRules(context.Background(), orgID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := f.ListRules(context.Background(), orgID, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteRule(t *testing.T) {
	f := newFakeStore()
	svc := NewRulesService(f, nil, logging.Nop())
	orgID := uuid.New()

	created, err := svc.CreateRule(context.Background(), orgID, models.CreateRuleRequest{
		TriggerWords: []string{"facture"},
		Response:     "Contactez le support",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRule(context.Background(), orgID, created.ID))
	assert.ErrorIs(t, svc.DeleteRule(context.Background(), orgID, created.ID), store.ErrNotFound)
}
