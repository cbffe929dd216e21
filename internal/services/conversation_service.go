package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/bus"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// ErrStaleView indicates the reconciliation pass failed and the returned
// threads reflect the last known-synchronized state. Recoverable: the caller
// should surface staleness, not an empty result.
var ErrStaleView = errors.New("conversation view is stale")

// ConversationService owns thread reads and the cross-transport
// reconciliation pass that precedes them.
type ConversationService struct {
	store       store.Store
	bus         *bus.Bus
	log         *logging.Logger
	dedupWindow time.Duration
}

// NewConversationService creates a ConversationService. dedupWindow is the
// timestamp tolerance for treating two transport deliveries as one logical
// event (absorbs clock skew and retransmission).
func NewConversationService(st store.Store, b *bus.Bus, log *logging.Logger, dedupWindow time.Duration) *ConversationService {
	return &ConversationService{
		store:       st,
		bus:         b,
		log:         log.Component("conversations"),
		dedupWindow: dedupWindow,
	}
}

// dedupKey groups messages that can only be duplicates of each other.
type dedupKey struct {
	participant string
	role        models.SenderRole
	content     string
}

// Reconcile merges messages that arrived from independent transports into the
// canonical per-thread ordering: duplicates (same participant, role and
// content within the tolerance window) are collapsed onto the earliest
// record, the later copies are physically deleted, and survivors are marked
// synchronized. Running it twice over the same input is a no-op.
func (s *ConversationService) Reconcile(ctx context.Context, orgID uuid.UUID, intent string) error {
	pending, err := s.store.ListUnsynchronizedMessages(ctx, orgID, intent)
	if err != nil {
		return fmt.Errorf("loading unsynchronized messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	all, err := s.store.ListMessages(ctx, store.MessageFilter{OrganizationID: orgID, Intent: intent})
	if err != nil {
		return fmt.Errorf("loading messages for reconciliation: %w", err)
	}

	groups := make(map[dedupKey][]models.Message)
	for _, m := range all {
		k := dedupKey{participant: m.Participant.Key(), role: m.Role, content: m.Content}
		groups[k] = append(groups[k], m)
	}

	var toDelete []uuid.UUID
	duplicate := make(map[uuid.UUID]bool)
	for _, group := range groups {
		// Rows arrive ordered by (created_at, id); the first survivor anchors
		// the window.
		lastKept := group[0]
		for _, m := range group[1:] {
			if m.CreatedAt.Sub(lastKept.CreatedAt) <= s.dedupWindow {
				// Same logical event delivered twice. An unsynchronized copy
				// always loses, whichever side of the window it sits on; a
				// synchronized row is canonical and never discarded.
				switch {
				case !m.Synchronized:
					toDelete = append(toDelete, m.ID)
					duplicate[m.ID] = true
					continue
				case !lastKept.Synchronized:
					// A retransmission can carry an earlier timestamp than
					// the synchronized copy. The synchronized row wins.
					toDelete = append(toDelete, lastKept.ID)
					duplicate[lastKept.ID] = true
				}
			}
			lastKept = m
		}
	}

	var toMark []uuid.UUID
	for _, m := range pending {
		if !duplicate[m.ID] {
			toMark = append(toMark, m.ID)
		}
	}

	if len(toDelete) > 0 {
		if _, err := s.store.DeleteMessagesByIDs(ctx, orgID, intent, toDelete); err != nil {
			return fmt.Errorf("discarding duplicate messages: %w", err)
		}
		s.log.Debug().Int("duplicates", len(toDelete)).Str("intent", intent).Msg("discarded cross-transport duplicates")
	}
	if err := s.store.MarkMessagesSynchronized(ctx, orgID, toMark); err != nil {
		return fmt.Errorf("marking messages synchronized: %w", err)
	}

	if len(toDelete) > 0 && s.bus != nil {
		s.bus.Publish(ctx, bus.Event{OrganizationID: orgID, Intent: intent, Kind: bus.KindMessages})
	}
	return nil
}

// ListConversations returns the materialized threads for an intent, most
// recently active first, up to limit threads. A reconciliation pass runs
// first; if it fails, the last known-synchronized rows are returned together
// with an ErrStaleView-wrapped error so the caller can flag staleness.
func (s *ConversationService) ListConversations(ctx context.Context, orgID uuid.UUID, intent string, limit int) ([]models.Thread, error) {
	var staleErr error
	if err := s.Reconcile(ctx, orgID, intent); err != nil {
		s.log.Warn().Err(err).Str("intent", intent).Msg("reconciliation failed, serving stale view")
		staleErr = fmt.Errorf("%w: %v", ErrStaleView, err)
	}

	msgs, err := s.store.ListMessages(ctx, store.MessageFilter{OrganizationID: orgID, Intent: intent})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	threads := materializeThreads(msgs, intent)
	if limit > 0 && len(threads) > limit {
		threads = threads[:limit]
	}
	return threads, staleErr
}

// GetThread returns one participant's thread.
func (s *ConversationService) GetThread(ctx context.Context, orgID uuid.UUID, intent string, p models.Participant) (*models.Thread, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, store.MessageFilter{
		OrganizationID: orgID,
		Intent:         intent,
		Participant:    &p,
	})
	if err != nil {
		return nil, fmt.Errorf("listing thread messages: %w", err)
	}
	return &models.Thread{Participant: p, Intent: intent, Messages: msgs}, nil
}

// EnrichMessage writes the asynchronous classification fields (type/subject)
// onto an existing message. Identity fields are never touched.
func (s *ConversationService) EnrichMessage(ctx context.Context, orgID, id uuid.UUID, messageType, subject *string) error {
	if messageType == nil && subject == nil {
		return fmt.Errorf("enrichment requires at least one of message_type or subject")
	}
	if err := s.store.UpdateMessageEnrichment(ctx, orgID, id, messageType, subject); err != nil {
		return err
	}
	return nil
}

// materializeThreads groups messages into per-participant threads ordered by
// last activity, newest first. Threads are a read-time view, never persisted.
func materializeThreads(msgs []models.Message, intent string) []models.Thread {
	byParticipant := make(map[string]*models.Thread)
	var order []string
	for _, m := range msgs {
		key := m.Participant.Key()
		t, ok := byParticipant[key]
		if !ok {
			t = &models.Thread{Participant: m.Participant, Intent: intent}
			byParticipant[key] = t
			order = append(order, key)
		}
		t.Messages = append(t.Messages, m)
	}

	threads := make([]models.Thread, 0, len(order))
	for _, key := range order {
		threads = append(threads, *byParticipant[key])
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivity().After(threads[j].LastActivity())
	})
	return threads
}
