package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

const credentialColumns = `id, organization_id, channel, encrypted_credentials, status, created_at, updated_at`

const upsertChannelCredential = `
INSERT INTO channel_credentials (
	id, organization_id, channel, encrypted_credentials, status
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (organization_id, channel) DO UPDATE
SET encrypted_credentials = EXCLUDED.encrypted_credentials,
    status = EXCLUDED.status,
    updated_at = NOW()
RETURNING ` + credentialColumns + `;`

func (s *PostgresStore) UpsertChannelCredential(ctx context.Context, arg store.UpsertChannelCredentialParams) (*models.ChannelCredential, error) {
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var c models.ChannelCredential
	err := s.db.QueryRow(ctx, upsertChannelCredential,
		id,
		arg.OrganizationID,
		arg.Channel,
		arg.EncryptedCredentials,
		arg.Status,
	).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Channel,
		&c.EncryptedCredentials,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("database error upserting channel credential: %w", err)
	}
	return &c, nil
}

const getChannelCredential = `
SELECT ` + credentialColumns + `
FROM channel_credentials
WHERE organization_id = $1 AND channel = $2;`

func (s *PostgresStore) GetChannelCredential(ctx context.Context, orgID uuid.UUID, channel models.Channel) (*models.ChannelCredential, error) {
	var c models.ChannelCredential
	err := s.db.QueryRow(ctx, getChannelCredential, orgID, channel).Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Channel,
		&c.EncryptedCredentials,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, mapCredentialErr(err)
	}
	return &c, nil
}

func mapCredentialErr(err error) error {
	if mapped := mapNotFound(err); mapped == store.ErrNotFound {
		return store.ErrNotFound
	}
	return fmt.Errorf("database error fetching channel credential: %w", err)
}
