package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"wassist-backend/internal/auth"
	"wassist-backend/pkg/httputil"
)

// AuthMiddleware verifies the caller's identity and injects UserID and OrgID
// into the request context.
//
// Two credential forms are accepted: a bearer JWT issued by the account
// service, or (when operatorKeyHash is configured) an operator API key in the
// X-API-Key header together with an X-Org-ID header naming the tenant. The
// latter exists for service-to-service callers that cannot hold a JWT.
func AuthMiddleware(jwtSecret, operatorKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" && operatorKeyHash != "" {
				if !auth.CheckAPIKey(apiKey, operatorKeyHash) {
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				orgID, err := uuid.Parse(r.Header.Get("X-Org-ID"))
				if err != nil || orgID == uuid.Nil {
					httputil.RespondError(w, http.StatusBadRequest, "X-Org-ID header required with API key auth")
					return
				}
				ctx := auth.WithIdentity(r.Context(), uuid.Nil, orgID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
				return
			}

			claims, err := auth.ParseToken(parts[1], jwtSecret)
			if err != nil {
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, jwt.ErrTokenMalformed):
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				default:
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			ctx := auth.WithIdentity(r.Context(), claims.UserID, claims.OrgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
