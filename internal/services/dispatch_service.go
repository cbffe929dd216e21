package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/bus"
	"wassist-backend/internal/integrations/whatsapp"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/rules"
	"wassist-backend/internal/store"
)

// WhatsAppSender is the outbound WhatsApp transport consumed by the
// dispatcher. Satisfied by *whatsapp.Client.
type WhatsAppSender interface {
	SendText(ctx context.Context, creds whatsapp.Credentials, to, text string) error
}

// WidgetSender is the outbound web-widget transport. Satisfied by *widget.Hub.
type WidgetSender interface {
	Send(sessionID string, role models.SenderRole, text string) error
}

// DispatchService runs the inbound message pipeline (append, rule evaluation,
// auto-reply delivery) and the manual agent override path. Both share the
// same template resolution and transport routing so conversational state
// stays consistent no matter who replies.
type DispatchService struct {
	store       store.Store
	credentials *CredentialsService
	whatsApp    WhatsAppSender
	widget      WidgetSender
	bus         *bus.Bus
	log         *logging.Logger
}

// NewDispatchService creates a DispatchService.
func NewDispatchService(st store.Store, creds *CredentialsService, wa WhatsAppSender, w WidgetSender, b *bus.Bus, log *logging.Logger) *DispatchService {
	return &DispatchService{
		store:       st,
		credentials: creds,
		whatsApp:    wa,
		widget:      w,
		bus:         b,
		log:         log.Component("dispatch"),
	}
}

// InboundResult reports what the pipeline did with one inbound message.
type InboundResult struct {
	Customer  *models.Message // the appended customer record
	AutoReply *models.Message // nil when no rule matched
}

// HandleInbound processes one customer message from either transport:
// append to the log (unsynchronized, the reconciliation pass will coalesce
// cross-transport copies), evaluate the tenant's active rules, and on a match
// deliver and record the automatic response. No matching rule is a normal
// outcome, not an error; the message is left for manual handling.
func (s *DispatchService) HandleInbound(ctx context.Context, orgID uuid.UUID, intent string, p models.Participant, text string, receivedAt time.Time) (*InboundResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	customer, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		OrganizationID: orgID,
		Intent:         intent,
		Participant:    p,
		Role:           models.RoleCustomer,
		Content:        text,
		DeliveryStatus: models.DeliveryReceived,
		Synchronized:   false,
		CreatedAt:      receivedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("appending inbound message: %w", err)
	}
	s.publish(ctx, orgID, intent)

	result := &InboundResult{Customer: customer}

	ruleSet, err := s.store.ListRules(ctx, orgID, true)
	if err != nil {
		// The customer message is already recorded; evaluation can be
		// retried on the next inbound. Surface the failure.
		return result, fmt.Errorf("loading active rules: %w", err)
	}

	match, ok := rules.Evaluate(text, ruleSet, participantVars(p))
	if !ok {
		return result, nil
	}

	reply, err := s.sendAndRecord(ctx, orgID, intent, p, models.RoleBot, match.Response, &match.RuleID)
	result.AutoReply = reply
	if err != nil {
		return result, fmt.Errorf("delivering auto reply: %w", err)
	}
	return result, nil
}

// SendManual injects an operator-authored message into a participant's
// thread, bypassing rule evaluation. The text runs through the same template
// resolution as automatic replies, is delivered on the transport matching the
// participant's channel, and is appended as delivered only after the
// transport confirms. A failed delivery is persisted as a failed-status audit
// record and returned as an error.
func (s *DispatchService) SendManual(ctx context.Context, orgID uuid.UUID, intent string, p models.Participant, text string) (*models.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("manual message text must not be empty")
	}

	resolved := rules.ResolveVars(text, participantVars(p))
	return s.sendAndRecord(ctx, orgID, intent, p, models.RoleAgent, resolved, nil)
}

// sendAndRecord delivers outbound text and appends the resulting record. The
// append happens strictly after the transport result is known so the log
// never claims a delivery that did not happen.
func (s *DispatchService) sendAndRecord(ctx context.Context, orgID uuid.UUID, intent string, p models.Participant, role models.SenderRole, text string, ruleID *uuid.UUID) (*models.Message, error) {
	deliveryErr := s.deliver(ctx, orgID, p, role, text)

	status := models.DeliveryDelivered
	if deliveryErr != nil {
		status = models.DeliveryFailed
		s.log.Warn().Err(deliveryErr).Str("channel", string(p.Channel())).Msg("outbound delivery failed")
	}

	msg, err := s.store.AppendMessage(ctx, store.AppendMessageParams{
		OrganizationID: orgID,
		Intent:         intent,
		Participant:    p,
		Role:           role,
		Content:        text,
		DeliveryStatus: status,
		MatchedRuleID:  ruleID,
		// Outbound records originate locally; nothing to reconcile.
		Synchronized: true,
	})
	if err != nil {
		if deliveryErr != nil {
			return nil, fmt.Errorf("delivery failed (%v) and audit append failed: %w", deliveryErr, err)
		}
		return nil, fmt.Errorf("appending outbound message: %w", err)
	}
	s.publish(ctx, orgID, intent)

	if deliveryErr != nil {
		return msg, deliveryErr
	}
	return msg, nil
}

// deliver routes outbound text to the transport matching the participant's
// channel: a phone number means WhatsApp, otherwise the web widget.
func (s *DispatchService) deliver(ctx context.Context, orgID uuid.UUID, p models.Participant, role models.SenderRole, text string) error {
	switch p.Channel() {
	case models.ChannelWhatsApp:
		creds, err := s.credentials.WhatsAppCredentials(ctx, orgID)
		if err != nil {
			return fmt.Errorf("loading whatsapp credentials: %w", err)
		}
		return s.whatsApp.SendText(ctx, creds, *p.PhoneNumber, text)
	default:
		return s.widget.Send(*p.SessionID, role, text)
	}
}

func (s *DispatchService) publish(ctx context.Context, orgID uuid.UUID, intent string) {
	if s.bus != nil {
		s.bus.Publish(ctx, bus.Event{OrganizationID: orgID, Intent: intent, Kind: bus.KindMessages})
	}
}

// participantVars is the closed set of template variables resolvable in
// responses. Unknown tokens stay literal.
func participantVars(p models.Participant) map[string]string {
	vars := make(map[string]string, 2)
	if p.PhoneNumber != nil {
		vars["phone"] = *p.PhoneNumber
	}
	if p.SessionID != nil {
		vars["session"] = *p.SessionID
	}
	return vars
}
