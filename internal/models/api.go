package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Shared ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- Conversation DTOs ---

// ConversationMessage is the API representation of a stored message.
type ConversationMessage struct {
	ID             uuid.UUID      `json:"id"`
	Intent         string         `json:"intent"`
	Participant    Participant    `json:"participant"`
	Role           SenderRole     `json:"role"`
	Content        string         `json:"content"`
	MessageType    *string        `json:"message_type,omitempty"`
	Subject        *string        `json:"subject,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	MatchedRuleID  *uuid.UUID     `json:"matched_rule_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ThreadResponse is one materialized conversation thread.
type ThreadResponse struct {
	Participant  Participant           `json:"participant"`
	Intent       string                `json:"intent"`
	Messages     []ConversationMessage `json:"messages"`
	LastActivity time.Time             `json:"last_activity"`
}

// ListConversationsResponse is the payload for the conversation list query.
// Stale is set when the reconciliation pass failed and the rows reflect the
// last known-synchronized state.
type ListConversationsResponse struct {
	Threads []ThreadResponse `json:"threads"`
	Stale   bool             `json:"stale,omitempty"`
}

// SendManualMessageRequest is an operator-injected message for a participant.
type SendManualMessageRequest struct {
	Intent      string      `json:"intent"`
	Participant Participant `json:"participant"`
	Text        string      `json:"text"`
}

// SendManualMessageResponse reports the outcome of a manual send.
type SendManualMessageResponse struct {
	Message ConversationMessage `json:"message"`
}

// --- Retention DTOs ---

// Timeframe enumerates the supported bulk-deletion windows.
type Timeframe string

const (
	TimeframeHour Timeframe = "hour"
	TimeframeDay  Timeframe = "day"
	TimeframeWeek Timeframe = "week"
	TimeframeAll  Timeframe = "all"
)

// Valid reports whether the timeframe is a known variant.
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeHour, TimeframeDay, TimeframeWeek, TimeframeAll:
		return true
	}
	return false
}

// DeleteConversationsRequest selects records for bulk deletion: exactly one of
// MessageIDs or Timeframe must be provided. Timeframe deletion computes its
// cutoff at execution time, so a retried timeframe request is NOT idempotent;
// callers needing idempotent retries should resolve the window to explicit ids
// first.
type DeleteConversationsRequest struct {
	Intent     string      `json:"intent"`
	MessageIDs []uuid.UUID `json:"message_ids,omitempty"`
	Timeframe  *Timeframe  `json:"timeframe,omitempty"`
}

// DeletionResult reports what a deletion actually did. Failures are returned
// as data so the caller can decide whether to retry or surface them.
type DeletionResult struct {
	Success bool   `json:"success"`
	Deleted int64  `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// --- Analytics DTOs ---

// AnalyticsSnapshot is the on-demand operational metrics view for one intent.
type AnalyticsSnapshot struct {
	Intent              string    `json:"intent"`
	TotalMessages       int       `json:"total_messages"`
	MeanResponseSeconds float64   `json:"mean_response_seconds"`
	ActiveThreads       int       `json:"active_threads"`
	ThreadCount         int       `json:"thread_count"`
	ResolutionRate      float64   `json:"resolution_rate"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// --- Rule DTOs ---

// CreateRuleRequest defines the body for creating an auto-reply rule.
type CreateRuleRequest struct {
	TriggerWords []string `json:"trigger_words"`
	Response     string   `json:"response"`
	Priority     int      `json:"priority"`
	IsActive     *bool    `json:"is_active,omitempty"` // defaults to true
}

// UpdateRuleRequest defines the body for updating a rule. Pointer fields allow
// partial updates.
type UpdateRuleRequest struct {
	TriggerWords []string `json:"trigger_words,omitempty"`
	Response     *string  `json:"response,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

// RuleResponse is the API representation of an auto-reply rule.
type RuleResponse struct {
	ID           uuid.UUID `json:"id"`
	TriggerWords []string  `json:"trigger_words"`
	Response     string    `json:"response"`
	Priority     int       `json:"priority"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListRulesResponse wraps the rule list.
type ListRulesResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// --- Channel credential DTOs ---

// SetWhatsAppCredentialRequest configures the tenant's WhatsApp Cloud API
// access. The raw secrets are encrypted before storage and never returned.
type SetWhatsAppCredentialRequest struct {
	AccessToken   string `json:"access_token"`
	PhoneNumberID string `json:"phone_number_id"`
}

// ChannelCredentialResponse excludes the sealed secret material.
type ChannelCredentialResponse struct {
	ID        uuid.UUID `json:"id"`
	Channel   Channel   `json:"channel"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Webhook / widget wire shapes ---

// WhatsAppWebhookPayload mirrors the Cloud API event envelope down to the
// fields the inbound pipeline consumes.
type WhatsAppWebhookPayload struct {
	Object string                 `json:"object"`
	Entry  []WhatsAppWebhookEntry `json:"entry"`
}

type WhatsAppWebhookEntry struct {
	ID      string                  `json:"id"`
	Changes []WhatsAppWebhookChange `json:"changes"`
}

type WhatsAppWebhookChange struct {
	Field string               `json:"field"`
	Value WhatsAppWebhookValue `json:"value"`
}

type WhatsAppWebhookValue struct {
	MessagingProduct string                   `json:"messaging_product"`
	Messages         []WhatsAppInboundMessage `json:"messages"`
}

// WhatsAppInboundMessage is one customer message delivered by the webhook.
type WhatsAppInboundMessage struct {
	From      string `json:"from"` // E.164 phone number without '+'
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // unix seconds, as a string
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

// WidgetFrame is the JSON frame exchanged with an open widget session.
type WidgetFrame struct {
	Type    string     `json:"type"` // "message", "refresh"
	Role    SenderRole `json:"role,omitempty"`
	Text    string     `json:"text,omitempty"`
	Intent  string     `json:"intent,omitempty"`
	At      time.Time  `json:"at,omitempty"`
}
