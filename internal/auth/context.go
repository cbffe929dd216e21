package auth

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type used for context keys to avoid collisions.
type contextKey string

const (
	UserIDKey contextKey = "userID"
	OrgIDKey  contextKey = "orgID"
)

// WithIdentity returns a context carrying the operator's user and org ids.
func WithIdentity(ctx context.Context, userID, orgID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// UserIDFromContext retrieves the operator's user id from the request context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// OrgIDFromContext retrieves the tenant (organization) id from the request
// context. The core never infers ownership from message content; this is the
// only source of tenant scoping.
func OrgIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(OrgIDKey).(uuid.UUID)
	return orgID, ok
}
