package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// activeWindow is the trailing window used for the active-thread count.
const activeWindow = 24 * time.Hour

// AnalyticsService derives operational metrics from the conversation log on
// demand. Reads only; snapshots are safe to retry or abandon.
type AnalyticsService struct {
	store store.Store
	log   *logging.Logger
	now   func() time.Time
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(st store.Store, log *logging.Logger) *AnalyticsService {
	return &AnalyticsService{store: st, log: log.Component("analytics"), now: time.Now}
}

// Snapshot computes the current metrics for one intent:
//   - total message count in scope
//   - mean response time over (customer message, next bot/agent reply) pairs
//     within the same thread; unanswered trailing customer messages are
//     excluded, and zero qualifying pairs yields a mean of zero, not an error
//   - active threads (at least one message within the trailing 24 hours)
//   - resolution rate: share of threads with at least one bot/agent reply
func (s *AnalyticsService) Snapshot(ctx context.Context, orgID uuid.UUID, intent string) (*models.AnalyticsSnapshot, error) {
	msgs, err := s.store.ListMessages(ctx, store.MessageFilter{OrganizationID: orgID, Intent: intent})
	if err != nil {
		return nil, fmt.Errorf("loading messages for analytics: %w", err)
	}

	now := s.now().UTC()
	threads := materializeThreads(msgs, intent)

	var (
		responseTotal time.Duration
		responsePairs int
		activeThreads int
		resolved      int
	)
	for _, t := range threads {
		if now.Sub(t.LastActivity()) <= activeWindow {
			activeThreads++
		}

		hasReply := false
		var pendingCustomer *time.Time
		for i := range t.Messages {
			m := t.Messages[i]
			switch {
			case m.Role == models.RoleCustomer:
				// A reply pairs with the immediately preceding customer
				// message, so a follow-up replaces the pending anchor.
				pendingCustomer = &m.CreatedAt
			case m.Role.IsResponse():
				hasReply = true
				if pendingCustomer != nil {
					responseTotal += m.CreatedAt.Sub(*pendingCustomer)
					responsePairs++
					pendingCustomer = nil
				}
			}
		}
		if hasReply {
			resolved++
		}
	}

	snapshot := &models.AnalyticsSnapshot{
		Intent:        intent,
		TotalMessages: len(msgs),
		ActiveThreads: activeThreads,
		ThreadCount:   len(threads),
		GeneratedAt:   now,
	}
	if responsePairs > 0 {
		snapshot.MeanResponseSeconds = responseTotal.Seconds() / float64(responsePairs)
	}
	if len(threads) > 0 {
		snapshot.ResolutionRate = float64(resolved) / float64(len(threads))
	}
	return snapshot, nil
}
