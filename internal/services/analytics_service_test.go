package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
)

func TestSnapshot_MeanResponseTime(t *testing.T) {
	f := newFakeStore()
	svc := NewAnalyticsService(f, logging.Nop())
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(time.Hour) }

	p := phoneP("221771234567")
	seedMessage(t, f, orgID, "client", p, models.RoleCustomer, "bonjour", base, true)
	seedMessage(t, f, orgID, "client", p, models.RoleBot, "bienvenue", base.Add(10*time.Second), true)
	seedMessage(t, f, orgID, "client", p, models.RoleCustomer, "ma facture", base.Add(time.Minute), true)
	seedMessage(t, f, orgID, "client", p, models.RoleAgent, "je regarde", base.Add(time.Minute+30*time.Second), true)

	snap, err := svc.Snapshot(context.Background(), orgID, "client")
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalMessages)
	assert.Equal(t, 1, snap.ThreadCount)
	// Pairs of 10s and 30s.
	assert.InDelta(t, 20.0, snap.MeanResponseSeconds, 0.001)
	assert.Equal(t, 1, snap.ActiveThreads)
	assert.InDelta(t, 1.0, snap.ResolutionRate, 0.001)
}

func TestSnapshot_ReplyPairsWithImmediatelyPrecedingCustomerMessage(t *testing.T) {
	f := newFakeStore()
	svc := NewAnalyticsService(f, logging.Nop())
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(time.Hour) }

	p := phoneP("221771234567")
	// Two customer messages before one reply: only the second anchors the pair.
	seedMessage(t, f, orgID, "client", p, models.RoleCustomer, "bonjour", base, true)
	seedMessage(t, f, orgID, "client", p, models.RoleCustomer, "vous êtes là?", base.Add(50*time.Second), true)
	seedMessage(t, f, orgID, "client", p, models.RoleAgent, "oui", base.Add(time.Minute), true)

	snap, err := svc.Snapshot(context.Background(), orgID, "client")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, snap.MeanResponseSeconds, 0.001)
}

func TestSnapshot_UnansweredMessagesExcluded(t *testing.T) {
	f := newFakeStore()
	svc := NewAnalyticsService(f, logging.Nop())
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(time.Hour) }

	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "bonjour", base, true)
	seedMessage(t, f, orgID, "client", sessionP("web-1"), models.RoleCustomer, "allô", base.Add(time.Minute), true)

	snap, err := svc.Snapshot(context.Background(), orgID, "client")
	require.NoError(t, err)

	// No replies anywhere: zero pairs yields a zero mean, not an error.
	assert.Zero(t, snap.MeanResponseSeconds)
	assert.Equal(t, 2, snap.ThreadCount)
	assert.Zero(t, snap.ResolutionRate)
}

func TestSnapshot_ActiveThreadsTrailingWindow(t *testing.T) {
	f := newFakeStore()
	svc := NewAnalyticsService(f, logging.Nop())
	orgID := uuid.New()
	now := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// One thread active two hours ago, one gone quiet three days ago.
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "récent", now.Add(-2*time.Hour), true)
	seedMessage(t, f, orgID, "client", sessionP("web-1"), models.RoleCustomer, "ancien", now.Add(-72*time.Hour), true)
	seedMessage(t, f, orgID, "client", sessionP("web-1"), models.RoleBot, "bienvenue", now.Add(-72*time.Hour).Add(5*time.Second), true)

	snap, err := svc.Snapshot(context.Background(), orgID, "client")
	require.NoError(t, err)

	assert.Equal(t, 2, snap.ThreadCount)
	assert.Equal(t, 1, snap.ActiveThreads)
	// Only the quiet thread got a reply.
	assert.InDelta(t, 0.5, snap.ResolutionRate, 0.001)
}

func TestSnapshot_EmptyScope(t *testing.T) {
	f := newFakeStore()
	svc := NewAnalyticsService(f, logging.Nop())

	snap, err := svc.Snapshot(context.Background(), uuid.New(), "client")
	require.NoError(t, err)

	assert.Zero(t, snap.TotalMessages)
	assert.Zero(t, snap.ThreadCount)
	assert.Zero(t, snap.ActiveThreads)
	assert.Zero(t, snap.MeanResponseSeconds)
	assert.Zero(t, snap.ResolutionRate)
}
