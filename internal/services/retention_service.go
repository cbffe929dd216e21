package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/bus"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// Selection validation errors. These reject a request before any store
// mutation; the controller never deletes without an explicit selection.
var (
	ErrEmptySelection     = errors.New("deletion requires an explicit selection (message ids or timeframe)")
	ErrAmbiguousSelection = errors.New("deletion selection must be either message ids or a timeframe, not both")
	ErrInvalidTimeframe   = errors.New("unknown deletion timeframe")
	ErrMissingIntent      = errors.New("deletion requires an intent scope")
)

// RetentionService performs scoped bulk deletion of conversation records.
// Deletion is destructive and irreversible; confirmation is the caller's
// concern, an explicit non-defaultable selection is this service's.
type RetentionService struct {
	store store.Store
	bus   *bus.Bus
	log   *logging.Logger
	now   func() time.Time
}

// NewRetentionService creates a RetentionService.
func NewRetentionService(st store.Store, b *bus.Bus, log *logging.Logger) *RetentionService {
	return &RetentionService{store: st, bus: b, log: log.Component("retention"), now: time.Now}
}

// Delete removes the selected messages and reports the count actually
// deleted. Validation failures are returned as an error before any mutation;
// execution failures come back inside the result so the caller can decide
// whether to retry or surface them.
//
// Delete-by-ids is naturally idempotent. Delete-by-timeframe is not: the
// cutoff is computed here, at execution time, so a retried request covers a
// shifted window. Callers needing idempotent retries must resolve the window
// to explicit ids first.
func (s *RetentionService) Delete(ctx context.Context, orgID uuid.UUID, req models.DeleteConversationsRequest) (models.DeletionResult, error) {
	if req.Intent == "" {
		return models.DeletionResult{}, ErrMissingIntent
	}
	hasIDs := len(req.MessageIDs) > 0
	hasTimeframe := req.Timeframe != nil
	if !hasIDs && !hasTimeframe {
		return models.DeletionResult{}, ErrEmptySelection
	}
	if hasIDs && hasTimeframe {
		return models.DeletionResult{}, ErrAmbiguousSelection
	}
	if hasTimeframe && !req.Timeframe.Valid() {
		return models.DeletionResult{}, ErrInvalidTimeframe
	}

	var (
		deleted int64
		err     error
	)
	if hasIDs {
		deleted, err = s.store.DeleteMessagesByIDs(ctx, orgID, req.Intent, req.MessageIDs)
	} else if *req.Timeframe == models.TimeframeAll {
		deleted, err = s.store.DeleteAllMessages(ctx, orgID, req.Intent)
	} else {
		// The window is [now-d, now]; the upper bound keeps records with
		// future sender timestamps (clock skew) out of the sweep.
		now := s.now().UTC()
		deleted, err = s.store.DeleteMessagesInRange(ctx, orgID, req.Intent, now.Add(-timeframeDuration(*req.Timeframe)), now)
	}
	if err != nil {
		s.log.Error().Err(err).Str("intent", req.Intent).Msg("bulk deletion failed")
		return models.DeletionResult{Success: false, Deleted: deleted, Error: err.Error()}, nil
	}

	s.log.Info().Int64("deleted", deleted).Str("intent", req.Intent).Msg("conversations deleted")
	if deleted > 0 && s.bus != nil {
		s.bus.Publish(ctx, bus.Event{OrganizationID: orgID, Intent: req.Intent, Kind: bus.KindMessages})
	}
	return models.DeletionResult{Success: true, Deleted: deleted}, nil
}

func timeframeDuration(t models.Timeframe) time.Duration {
	switch t {
	case models.TimeframeHour:
		return time.Hour
	case models.TimeframeDay:
		return 24 * time.Hour
	case models.TimeframeWeek:
		return 7 * 24 * time.Hour
	}
	return 0
}
