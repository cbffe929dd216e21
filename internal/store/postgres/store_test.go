package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

func TestBuildListMessagesQuery_NoLimit(t *testing.T) {
	orgID := uuid.New()
	query, args := buildListMessagesQuery(store.MessageFilter{
		OrganizationID: orgID,
		Intent:         "client",
	})

	assert.Contains(t, query, "ORDER BY created_at ASC, id ASC")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []any{orgID, "client"}, args)
}

func TestBuildListMessagesQuery_LimitPushedIntoSQL(t *testing.T) {
	orgID := uuid.New()
	query, args := buildListMessagesQuery(store.MessageFilter{
		OrganizationID: orgID,
		Intent:         "client",
		Limit:          50,
	})

	// The database ships at most N rows, newest first.
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC LIMIT $3")
	assert.Equal(t, []any{orgID, "client", 50}, args)
}

func TestBuildListMessagesQuery_ParticipantAndLimitPlaceholders(t *testing.T) {
	orgID := uuid.New()
	phone := "221771234567"
	query, args := buildListMessagesQuery(store.MessageFilter{
		OrganizationID: orgID,
		Intent:         "client",
		Participant:    &models.Participant{PhoneNumber: &phone},
		Limit:          10,
	})

	assert.Contains(t, query, "AND phone_number = $3")
	assert.Contains(t, query, "LIMIT $4")
	assert.Equal(t, []any{orgID, "client", phone, 10}, args)
}
