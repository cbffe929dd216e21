package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SenderRole identifies who authored a conversation message.
type SenderRole string

const (
	RoleCustomer SenderRole = "customer"
	RoleBot      SenderRole = "bot"
	RoleAgent    SenderRole = "agent"
)

// Valid reports whether the role is one of the known variants.
func (r SenderRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleBot, RoleAgent:
		return true
	}
	return false
}

// IsResponse reports whether a message from this role counts as a reply to a
// customer (both automated and human responses do).
func (r SenderRole) IsResponse() bool {
	return r == RoleBot || r == RoleAgent
}

// Channel identifies the transport a participant is reachable on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWidget   Channel = "widget"
)

// DeliveryStatus records the outcome of the transport step for a message.
type DeliveryStatus string

const (
	// DeliveryReceived marks inbound messages; no outbound delivery applies.
	DeliveryReceived DeliveryStatus = "received"
	// DeliveryDelivered marks outbound messages confirmed by the transport.
	DeliveryDelivered DeliveryStatus = "delivered"
	// DeliveryFailed marks outbound attempts kept for audit only.
	DeliveryFailed DeliveryStatus = "failed"
)

// ErrInvalidParticipant is returned when a participant identity does not have
// exactly one of phone number or widget session id set.
var ErrInvalidParticipant = errors.New("participant must have exactly one of phone_number or session_id")

// Participant is one end user's identity within a thread: either a WhatsApp
// phone number or a web-widget session id, never both and never neither.
type Participant struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
	SessionID   *string `json:"session_id,omitempty"`
}

// Validate enforces the exactly-one invariant.
func (p Participant) Validate() error {
	hasPhone := p.PhoneNumber != nil && *p.PhoneNumber != ""
	hasSession := p.SessionID != nil && *p.SessionID != ""
	if hasPhone == hasSession {
		return ErrInvalidParticipant
	}
	return nil
}

// Channel returns the transport this participant is reachable on.
func (p Participant) Channel() Channel {
	if p.PhoneNumber != nil && *p.PhoneNumber != "" {
		return ChannelWhatsApp
	}
	return ChannelWidget
}

// Key returns a stable identifier used to group messages into threads.
func (p Participant) Key() string {
	if p.PhoneNumber != nil && *p.PhoneNumber != "" {
		return "tel:" + *p.PhoneNumber
	}
	if p.SessionID != nil && *p.SessionID != "" {
		return "web:" + *p.SessionID
	}
	return ""
}

// Message is one record in the append-only conversation log.
// Identity fields are immutable after creation; MessageType and Subject may be
// enriched later by the asynchronous classifier.
type Message struct {
	ID             uuid.UUID      `db:"id"`
	OrganizationID uuid.UUID      `db:"organization_id"`
	Intent         string         `db:"intent"` // e.g. "client" for customer service
	Participant    Participant    `db:"-"`
	Role           SenderRole     `db:"role"`
	Content        string         `db:"content"`
	MessageType    *string        `db:"message_type"` // enrichment, nullable
	Subject        *string        `db:"subject"`      // enrichment, nullable
	DeliveryStatus DeliveryStatus `db:"delivery_status"`
	MatchedRuleID  *uuid.UUID     `db:"matched_rule_id"` // audit trail for auto replies
	Synchronized   bool           `db:"synchronized"`
	CreatedAt      time.Time      `db:"created_at"`
}

// Thread is the materialized, time-ordered message history for one
// participant within one intent. Threads are derived on read, never stored.
type Thread struct {
	Participant Participant `json:"participant"`
	Intent      string      `json:"intent"`
	Messages    []Message   `json:"messages"`
}

// LastActivity returns the timestamp of the newest message in the thread.
func (t Thread) LastActivity() time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[len(t.Messages)-1].CreatedAt
}

// AutoReplyRule is an operator-owned auto-reply rule. TriggerWords are stored
// lowercase; evaluation order is (priority desc, id asc).
type AutoReplyRule struct {
	ID             uuid.UUID `db:"id"`
	OrganizationID uuid.UUID `db:"organization_id"`
	TriggerWords   []string  `db:"trigger_words"`
	Response       string    `db:"response"`
	Priority       int       `db:"priority"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ChannelCredential holds a tenant's WhatsApp Cloud API access, encrypted at
// rest. EncryptedCredentials holds the AES-GCM sealed JSON payload.
type ChannelCredential struct {
	ID                   uuid.UUID `db:"id"`
	OrganizationID       uuid.UUID `db:"organization_id"`
	Channel              Channel   `db:"channel"`
	EncryptedCredentials []byte    `db:"encrypted_credentials"`
	Status               string    `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}
