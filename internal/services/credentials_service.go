package services

import (
	"context"
	"crypto/cipher"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"wassist-backend/internal/crypto"
	"wassist-backend/internal/integrations/whatsapp"
	"wassist-backend/internal/logging"
	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// CredentialsService manages per-tenant transport credentials. Secrets are
// sealed with AES-GCM before storage and only unsealed at dispatch time.
type CredentialsService struct {
	store store.Store
	aead  cipher.AEAD
	log   *logging.Logger
}

// NewCredentialsService creates a CredentialsService.
func NewCredentialsService(st store.Store, aead cipher.AEAD, log *logging.Logger) *CredentialsService {
	return &CredentialsService{store: st, aead: aead, log: log.Component("credentials")}
}

// SetWhatsAppCredential seals and stores the organization's WhatsApp Cloud
// API access, replacing any previous credential for the channel.
func (s *CredentialsService) SetWhatsAppCredential(ctx context.Context, orgID uuid.UUID, req models.SetWhatsAppCredentialRequest) (*models.ChannelCredential, error) {
	if req.AccessToken == "" || req.PhoneNumberID == "" {
		return nil, fmt.Errorf("access_token and phone_number_id are required")
	}

	plaintext, err := json.Marshal(whatsapp.Credentials{
		AccessToken:   req.AccessToken,
		PhoneNumberID: req.PhoneNumberID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling credentials: %w", err)
	}
	sealed, err := crypto.Seal(s.aead, plaintext)
	if err != nil {
		return nil, fmt.Errorf("sealing credentials: %w", err)
	}

	cred, err := s.store.UpsertChannelCredential(ctx, store.UpsertChannelCredentialParams{
		OrganizationID:       orgID,
		Channel:              models.ChannelWhatsApp,
		EncryptedCredentials: sealed,
		Status:               "ACTIVE",
	})
	if err != nil {
		return nil, fmt.Errorf("storing channel credential: %w", err)
	}
	s.log.Info().Str("org", orgID.String()).Msg("whatsapp credential updated")
	return cred, nil
}

// WhatsAppCredentials unseals the organization's WhatsApp access for an
// outbound send. Returns store.ErrNotFound when the org never connected a
// number.
func (s *CredentialsService) WhatsAppCredentials(ctx context.Context, orgID uuid.UUID) (whatsapp.Credentials, error) {
	cred, err := s.store.GetChannelCredential(ctx, orgID, models.ChannelWhatsApp)
	if err != nil {
		return whatsapp.Credentials{}, err
	}
	plaintext, err := crypto.Open(s.aead, cred.EncryptedCredentials)
	if err != nil {
		return whatsapp.Credentials{}, fmt.Errorf("unsealing whatsapp credentials: %w", err)
	}
	var creds whatsapp.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return whatsapp.Credentials{}, fmt.Errorf("decoding whatsapp credentials: %w", err)
	}
	return creds, nil
}
