package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// MessageFilter narrows message reads. OrganizationID and Intent are always
// required; the rest are optional.
type MessageFilter struct {
	OrganizationID uuid.UUID
	Intent         string
	Participant    *models.Participant // restrict to one thread
	Limit          int                 // 0 means no limit
}

// AppendMessageParams contains parameters for appending one message to the
// conversation log. CreatedAt zero means "now" (store-assigned).
type AppendMessageParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Intent         string
	Participant    models.Participant
	Role           models.SenderRole
	Content        string
	DeliveryStatus models.DeliveryStatus
	MatchedRuleID  *uuid.UUID
	Synchronized   bool
	CreatedAt      time.Time
}

// CreateRuleParams contains parameters for creating an auto-reply rule.
// Trigger words are expected pre-normalized (lowercase, non-empty).
type CreateRuleParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TriggerWords   []string
	Response       string
	Priority       int
	IsActive       bool
}

// UpdateRuleParams contains parameters for updating a rule. Pointer fields
// allow partial updates.
type UpdateRuleParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	TriggerWords   []string // nil leaves triggers untouched
	Response       *string
	Priority       *int
	IsActive       *bool
}

// UpsertChannelCredentialParams stores a tenant's sealed transport secrets.
type UpsertChannelCredentialParams struct {
	ID                   uuid.UUID
	OrganizationID       uuid.UUID
	Channel              models.Channel
	EncryptedCredentials []byte
	Status               string
}

// Store defines the persistence interface for the automation core.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// Conversation log. The messages table is append-only: rows are inserted
	// once, optionally enriched, and removed only through the deletion calls.
	AppendMessage(ctx context.Context, arg AppendMessageParams) (*models.Message, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error)
	ListUnsynchronizedMessages(ctx context.Context, orgID uuid.UUID, intent string) ([]models.Message, error)
	MarkMessagesSynchronized(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error
	UpdateMessageEnrichment(ctx context.Context, orgID, id uuid.UUID, messageType, subject *string) error
	DeleteMessagesByIDs(ctx context.Context, orgID uuid.UUID, intent string, ids []uuid.UUID) (int64, error)
	DeleteMessagesInRange(ctx context.Context, orgID uuid.UUID, intent string, from, to time.Time) (int64, error)
	DeleteAllMessages(ctx context.Context, orgID uuid.UUID, intent string) (int64, error)

	// Auto-reply rules, gated by owning organization.
	CreateRule(ctx context.Context, arg CreateRuleParams) (*models.AutoReplyRule, error)
	GetRuleByID(ctx context.Context, id, orgID uuid.UUID) (*models.AutoReplyRule, error)
	ListRules(ctx context.Context, orgID uuid.UUID, activeOnly bool) ([]models.AutoReplyRule, error)
	UpdateRule(ctx context.Context, arg UpdateRuleParams) (*models.AutoReplyRule, error)
	DeleteRule(ctx context.Context, id, orgID uuid.UUID) error

	// Channel credentials (one per org and channel).
	UpsertChannelCredential(ctx context.Context, arg UpsertChannelCredentialParams) (*models.ChannelCredential, error)
	GetChannelCredential(ctx context.Context, orgID uuid.UUID, channel models.Channel) (*models.ChannelCredential, error)
}
