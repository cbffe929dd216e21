package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

const ruleColumns = `id, organization_id, trigger_words, response, priority, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*models.AutoReplyRule, error) {
	var r models.AutoReplyRule
	err := row.Scan(
		&r.ID,
		&r.OrganizationID,
		&r.TriggerWords,
		&r.Response,
		&r.Priority,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const createRule = `
INSERT INTO auto_reply_rules (
	id, organization_id, trigger_words, response, priority, is_active
) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + ruleColumns + `;`

func (s *PostgresStore) CreateRule(ctx context.Context, arg store.CreateRuleParams) (*models.AutoReplyRule, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := s.db.QueryRow(ctx, createRule,
		id,
		arg.OrganizationID,
		arg.TriggerWords,
		arg.Response,
		arg.Priority,
		arg.IsActive,
	)
	r, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("database error creating rule: %w", err)
	}
	return r, nil
}

const getRuleByID = `
SELECT ` + ruleColumns + `
FROM auto_reply_rules
WHERE id = $1 AND organization_id = $2;`

func (s *PostgresStore) GetRuleByID(ctx context.Context, id, orgID uuid.UUID) (*models.AutoReplyRule, error) {
	r, err := scanRule(s.db.QueryRow(ctx, getRuleByID, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching rule: %w", err)
	}
	return r, nil
}

const listRules = `
SELECT ` + ruleColumns + `
FROM auto_reply_rules
WHERE organization_id = $1 AND ($2::boolean = FALSE OR is_active)
ORDER BY priority DESC, id ASC;`

func (s *PostgresStore) ListRules(ctx context.Context, orgID uuid.UUID, activeOnly bool) ([]models.AutoReplyRule, error) {
	rows, err := s.db.Query(ctx, listRules, orgID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("database error listing rules: %w", err)
	}
	defer rows.Close()

	var out []models.AutoReplyRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const updateRule = `
UPDATE auto_reply_rules
SET trigger_words = COALESCE($3, trigger_words),
    response = COALESCE($4, response),
    priority = COALESCE($5, priority),
    is_active = COALESCE($6, is_active),
    updated_at = NOW()
WHERE id = $1 AND organization_id = $2
RETURNING ` + ruleColumns + `;`

func (s *PostgresStore) UpdateRule(ctx context.Context, arg store.UpdateRuleParams) (*models.AutoReplyRule, error) {
	var triggers any
	if arg.TriggerWords != nil {
		triggers = arg.TriggerWords
	}
	row := s.db.QueryRow(ctx, updateRule,
		arg.ID,
		arg.OrganizationID,
		triggers,
		arg.Response,
		arg.Priority,
		arg.IsActive,
	)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error updating rule: %w", err)
	}
	return r, nil
}

const deleteRule = `
DELETE FROM auto_reply_rules
WHERE id = $1 AND organization_id = $2;`

func (s *PostgresStore) DeleteRule(ctx context.Context, id, orgID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteRule, id, orgID)
	if err != nil {
		return fmt.Errorf("database error deleting rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
