package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const messageColumns = `id, organization_id, intent, phone_number, session_id, role, content,
	message_type, subject, delivery_status, matched_rule_id, synchronized, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.Intent,
		&m.Participant.PhoneNumber,
		&m.Participant.SessionID,
		&m.Role,
		&m.Content,
		&m.MessageType,
		&m.Subject,
		&m.DeliveryStatus,
		&m.MatchedRuleID,
		&m.Synchronized,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const appendMessage = `
INSERT INTO messages (
	id, organization_id, intent, phone_number, session_id, role, content,
	delivery_status, matched_rule_id, synchronized, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + messageColumns + `;`

// AppendMessage inserts one message into the conversation log. The log is
// append-only; no update path exists for identity fields.
func (s *PostgresStore) AppendMessage(ctx context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	if err := arg.Participant.Validate(); err != nil {
		return nil, err
	}
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := arg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row := s.db.QueryRow(ctx, appendMessage,
		id,
		arg.OrganizationID,
		arg.Intent,
		arg.Participant.PhoneNumber,
		arg.Participant.SessionID,
		arg.Role,
		arg.Content,
		arg.DeliveryStatus,
		arg.MatchedRuleID,
		arg.Synchronized,
		createdAt,
	)
	m, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("database error appending message: %w", err)
	}
	return m, nil
}

// buildListMessagesQuery assembles the filtered read. Without a limit, rows
// come back ascending. With a limit, the newest N are fetched descending so
// the database never ships more than N rows; the caller restores ascending
// order in memory.
func buildListMessagesQuery(filter store.MessageFilter) (string, []any) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE organization_id = $1 AND intent = $2`
	args := []any{filter.OrganizationID, filter.Intent}

	if filter.Participant != nil {
		if filter.Participant.PhoneNumber != nil {
			args = append(args, *filter.Participant.PhoneNumber)
			query += fmt.Sprintf(" AND phone_number = $%d", len(args))
		} else if filter.Participant.SessionID != nil {
			args = append(args, *filter.Participant.SessionID)
			query += fmt.Sprintf(" AND session_id = $%d", len(args))
		}
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))
	} else {
		query += " ORDER BY created_at ASC, id ASC"
	}
	return query, args
}

// ListMessages returns messages in scope ordered by creation time ascending.
// With a limit set, the newest N rows are returned (still ascending).
func (s *PostgresStore) ListMessages(ctx context.Context, filter store.MessageFilter) ([]models.Message, error) {
	query, args := buildListMessagesQuery(filter)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error listing messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error iterating messages: %w", err)
	}

	if filter.Limit > 0 {
		// Rows were fetched newest-first; flip back to ascending.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

const listUnsynchronized = `
SELECT ` + messageColumns + `
FROM messages
WHERE organization_id = $1 AND intent = $2 AND synchronized = FALSE
ORDER BY created_at ASC, id ASC;`

func (s *PostgresStore) ListUnsynchronizedMessages(ctx context.Context, orgID uuid.UUID, intent string) ([]models.Message, error) {
	rows, err := s.db.Query(ctx, listUnsynchronized, orgID, intent)
	if err != nil {
		return nil, fmt.Errorf("database error listing unsynchronized messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

const markSynchronized = `
UPDATE messages SET synchronized = TRUE
WHERE organization_id = $1 AND id = ANY($2);`

func (s *PostgresStore) MarkMessagesSynchronized(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, markSynchronized, orgID, ids); err != nil {
		return fmt.Errorf("database error marking messages synchronized: %w", err)
	}
	return nil
}

const updateEnrichment = `
UPDATE messages
SET message_type = COALESCE($3, message_type),
    subject = COALESCE($4, subject)
WHERE organization_id = $1 AND id = $2;`

// UpdateMessageEnrichment writes the asynchronous classification fields.
// Identity fields stay immutable.
func (s *PostgresStore) UpdateMessageEnrichment(ctx context.Context, orgID, id uuid.UUID, messageType, subject *string) error {
	tag, err := s.db.Exec(ctx, updateEnrichment, orgID, id, messageType, subject)
	if err != nil {
		return fmt.Errorf("database error updating message enrichment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const deleteByIDs = `
DELETE FROM messages
WHERE organization_id = $1 AND intent = $2 AND id = ANY($3);`

func (s *PostgresStore) DeleteMessagesByIDs(ctx context.Context, orgID uuid.UUID, intent string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, deleteByIDs, orgID, intent, ids)
	if err != nil {
		return 0, fmt.Errorf("database error deleting messages by ids: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteInRange = `
DELETE FROM messages
WHERE organization_id = $1 AND intent = $2 AND created_at >= $3 AND created_at <= $4;`

// DeleteMessagesInRange deletes messages created within [from, to]. The upper
// bound matters: inbound records trust sender timestamps, which can sit ahead
// of this server's clock, and those must not be swept by a trailing window.
func (s *PostgresStore) DeleteMessagesInRange(ctx context.Context, orgID uuid.UUID, intent string, from, to time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteInRange, orgID, intent, from, to)
	if err != nil {
		return 0, fmt.Errorf("database error deleting messages by timeframe: %w", err)
	}
	return tag.RowsAffected(), nil
}

const deleteAll = `
DELETE FROM messages
WHERE organization_id = $1 AND intent = $2;`

func (s *PostgresStore) DeleteAllMessages(ctx context.Context, orgID uuid.UUID, intent string) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteAll, orgID, intent)
	if err != nil {
		return 0, fmt.Errorf("database error deleting messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// mapNotFound converts pgx.ErrNoRows into the store sentinel.
func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
