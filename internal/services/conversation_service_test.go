package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

func phoneP(n string) models.Participant {
	return models.Participant{PhoneNumber: &n}
}

func sessionP(id string) models.Participant {
	return models.Participant{SessionID: &id}
}

func seedMessage(t *testing.T, f *fakeStore, orgID uuid.UUID, intent string, p models.Participant, role models.SenderRole, content string, at time.Time, synced bool) models.Message {
	t.Helper()
	m, err := f.AppendMessage(context.Background(), store.AppendMessageParams{
		OrganizationID: orgID,
		Intent:         intent,
		Participant:    p,
		Role:           role,
		Content:        content,
		DeliveryStatus: models.DeliveryReceived,
		Synchronized:   synced,
		CreatedAt:      at,
	})
	require.NoError(t, err)
	return *m
}

func TestReconcile_KeepsEarliestOfCrossTransportDuplicates(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// The same "Bonjour" arrives via both transports, two seconds apart.
	earliest := seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base, false)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base.Add(2*time.Second), false)

	require.NoError(t, svc.Reconcile(context.Background(), orgID, "client"))

	msgs, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, earliest.ID, msgs[0].ID)
	assert.True(t, msgs[0].Synchronized)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base, false)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base.Add(2*time.Second), false)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "autre chose", base.Add(time.Minute), false)

	require.NoError(t, svc.Reconcile(context.Background(), orgID, "client"))
	first, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)

	require.NoError(t, svc.Reconcile(context.Background(), orgID, "client"))
	second, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestReconcile_EarlierTimestampedDuplicateOfSynchronizedCopy(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// The first delivery was already reconciled; a retransmission of the same
	// logical event then arrives carrying an earlier sender timestamp.
	canonical := seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base, true)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base.Add(-2*time.Second), false)

	require.NoError(t, svc.Reconcile(context.Background(), orgID, "client"))

	msgs, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, canonical.ID, msgs[0].ID)
	assert.True(t, msgs[0].Synchronized)
}

func TestReconcile_DistinctEventsSurvive(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// Same content but outside the tolerance window: a genuine repeat, not a
	// transport duplicate.
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base, false)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base.Add(time.Minute), false)
	// Same timestamps but different participants.
	seedMessage(t, f, orgID, "client", sessionP("web-1"), models.RoleCustomer, "Bonjour", base, false)
	// Same participant and time but different role.
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleAgent, "Bonjour", base.Add(time.Second), true)

	require.NoError(t, svc.Reconcile(context.Background(), orgID, "client"))

	msgs, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestListConversations_ThreadsMostRecentFirst(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "premier", base, true)
	seedMessage(t, f, orgID, "client", sessionP("web-1"), models.RoleCustomer, "deuxième", base.Add(time.Hour), true)
	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleAgent, "réponse", base.Add(2*time.Hour), true)

	threads, err := svc.ListConversations(context.Background(), orgID, "client", 0)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// The phone thread got the latest activity.
	assert.Equal(t, "tel:221771234567", threads[0].Participant.Key())
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, "premier", threads[0].Messages[0].Content)
	assert.Equal(t, "réponse", threads[0].Messages[1].Content)

	limited, err := svc.ListConversations(context.Background(), orgID, "client", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListConversations_StaleFallbackOnReconcileFailure(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "Bonjour", base, true)
	f.listUnsyncErr = errors.New("connection refused")

	threads, err := svc.ListConversations(context.Background(), orgID, "client", 0)
	require.ErrorIs(t, err, ErrStaleView)
	// Stale, not empty: the last known-synchronized rows still come back.
	require.Len(t, threads, 1)
	assert.Equal(t, "Bonjour", threads[0].Messages[0].Content)
}

func TestEnrichMessage(t *testing.T) {
	f := newFakeStore()
	svc := NewConversationService(f, nil, logging.Nop(), 5*time.Second)
	orgID := uuid.New()

	m := seedMessage(t, f, orgID, "client", phoneP("221771234567"), models.RoleCustomer, "ma facture est fausse", time.Now().UTC(), true)

	mt := "complaint"
	subject := "billing"
	require.NoError(t, svc.EnrichMessage(context.Background(), orgID, m.ID, &mt, &subject))

	msgs, err := f.ListMessages(context.Background(), store.MessageFilter{OrganizationID: orgID, Intent: "client"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].MessageType)
	assert.Equal(t, "complaint", *msgs[0].MessageType)

	err = svc.EnrichMessage(context.Background(), orgID, m.ID, nil, nil)
	assert.Error(t, err)

	err = svc.EnrichMessage(context.Background(), orgID, uuid.New(), &mt, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
