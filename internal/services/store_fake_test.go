package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wassist-backend/internal/models"
	"wassist-backend/internal/store"
)

// fakeStore is an in-memory store.Store used by the service tests. It keeps
// the same ordering contract as the Postgres implementation (created_at asc,
// id asc) and supports error injection per call family.
type fakeStore struct {
	mu          sync.Mutex
	messages    map[uuid.UUID]models.Message
	rules       map[uuid.UUID]models.AutoReplyRule
	credentials map[string]models.ChannelCredential // orgID|channel

	listUnsyncErr error
	listErr       error
	deleteErr     error
	appendErr     error
}

var _ store.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:    make(map[uuid.UUID]models.Message),
		rules:       make(map[uuid.UUID]models.AutoReplyRule),
		credentials: make(map[string]models.ChannelCredential),
	}
}

func (f *fakeStore) sortedMessages(orgID uuid.UUID, intent string) []models.Message {
	var out []models.Message
	for _, m := range f.messages {
		if m.OrganizationID == orgID && m.Intent == intent {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (f *fakeStore) AppendMessage(_ context.Context, arg store.AppendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return nil, f.appendErr
	}
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
	m := models.Message{
		ID:             id,
		OrganizationID: arg.OrganizationID,
		Intent:         arg.Intent,
		Participant:    arg.Participant,
		Role:           arg.Role,
		Content:        arg.Content,
		DeliveryStatus: arg.DeliveryStatus,
		MatchedRuleID:  arg.MatchedRuleID,
		Synchronized:   arg.Synchronized,
		CreatedAt:      createdAt,
	}
	f.messages[id] = m
	return &m, nil
}

func (f *fakeStore) ListMessages(_ context.Context, filter store.MessageFilter) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := f.sortedMessages(filter.OrganizationID, filter.Intent)
	if filter.Participant != nil {
		key := filter.Participant.Key()
		filtered := out[:0]
		for _, m := range out {
			if m.Participant.Key() == key {
				filtered = append(filtered, m)
			}
		}
		out = filtered
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (f *fakeStore) ListUnsynchronizedMessages(_ context.Context, orgID uuid.UUID, intent string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listUnsyncErr != nil {
		return nil, f.listUnsyncErr
	}
	var out []models.Message
	for _, m := range f.sortedMessages(orgID, intent) {
		if !m.Synchronized {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkMessagesSynchronized(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if m, ok := f.messages[id]; ok && m.OrganizationID == orgID {
			m.Synchronized = true
			f.messages[id] = m
		}
	}
	return nil
}

func (f *fakeStore) UpdateMessageEnrichment(_ context.Context, orgID, id uuid.UUID, messageType, subject *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok || m.OrganizationID != orgID {
		return store.ErrNotFound
	}
	if messageType != nil {
		m.MessageType = messageType
	}
	if subject != nil {
		m.Subject = subject
	}
	f.messages[id] = m
	return nil
}

func (f *fakeStore) DeleteMessagesByIDs(_ context.Context, orgID uuid.UUID, intent string, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for _, id := range ids {
		if m, ok := f.messages[id]; ok && m.OrganizationID == orgID && m.Intent == intent {
			delete(f.messages, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteMessagesInRange(_ context.Context, orgID uuid.UUID, intent string, from, to time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for id, m := range f.messages {
		if m.OrganizationID == orgID && m.Intent == intent && !m.CreatedAt.Before(from) && !m.CreatedAt.After(to) {
			delete(f.messages, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteAllMessages(_ context.Context, orgID uuid.UUID, intent string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for id, m := range f.messages {
		if m.OrganizationID == orgID && m.Intent == intent {
			delete(f.messages, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateRule(_ context.Context, arg store.CreateRuleParams) (*models.AutoReplyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	r := models.AutoReplyRule{
		ID:             id,
		OrganizationID: arg.OrganizationID,
		TriggerWords:   arg.TriggerWords,
		Response:       arg.Response,
		Priority:       arg.Priority,
		IsActive:       arg.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.rules[id] = r
	return &r, nil
}

func (f *fakeStore) GetRuleByID(_ context.Context, id, orgID uuid.UUID) (*models.AutoReplyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OrganizationID != orgID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) ListRules(_ context.Context, orgID uuid.UUID, activeOnly bool) ([]models.AutoReplyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AutoReplyRule
	for _, r := range f.rules {
		if r.OrganizationID != orgID {
			continue
		}
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (f *fakeStore) UpdateRule(_ context.Context, arg store.UpdateRuleParams) (*models.AutoReplyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[arg.ID]
	if !ok || r.OrganizationID != arg.OrganizationID {
		return nil, store.ErrNotFound
	}
	if arg.TriggerWords != nil {
		r.TriggerWords = arg.TriggerWords
	}
	if arg.Response != nil {
		r.Response = *arg.Response
	}
	if arg.Priority != nil {
		r.Priority = *arg.Priority
	}
	if arg.IsActive != nil {
		r.IsActive = *arg.IsActive
	}
	r.UpdatedAt = time.Now().UTC()
	f.rules[arg.ID] = r
	return &r, nil
}

func (f *fakeStore) DeleteRule(_ context.Context, id, orgID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok || r.OrganizationID != orgID {
		return store.ErrNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) credKey(orgID uuid.UUID, channel models.Channel) string {
	return orgID.String() + "|" + string(channel)
}

func (f *fakeStore) UpsertChannelCredential(_ context.Context, arg store.UpsertChannelCredentialParams) (*models.ChannelCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := arg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	c := models.ChannelCredential{
		ID:                   id,
		OrganizationID:       arg.OrganizationID,
		Channel:              arg.Channel,
		EncryptedCredentials: arg.EncryptedCredentials,
		Status:               arg.Status,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	f.credentials[f.credKey(arg.OrganizationID, arg.Channel)] = c
	return &c, nil
}

func (f *fakeStore) GetChannelCredential(_ context.Context, orgID uuid.UUID, channel models.Channel) (*models.ChannelCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[f.credKey(orgID, channel)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}
