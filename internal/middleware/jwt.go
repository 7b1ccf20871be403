// Package middleware provides HTTP middleware for the reference backend.
//
// Middleware in this package:
//   - Bearer token authentication
//   - Structured request/response logging with correlation IDs
//   - Prometheus metrics collection
//   - Rate limiting per IP address (Redis-backed)
//
// All middleware is designed to be composable with Chi router.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/pkg/utils"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// AccountIDKey is the context key for the authenticated account's ID.
	AccountIDKey contextKey = "account_id"

	// AccountEmailKey is the context key for the authenticated account's email.
	AccountEmailKey contextKey = "email"
)

// JWTAuth rejects requests without a valid "Authorization: Bearer <token>"
// header with 401 and otherwise stores the account in the request context.
//
// Usage:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.JWTAuth(issuer))
//	    r.Get("/api/profiles", profileHandler.List)
//	})
func JWTAuth(issuer *backend.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				log.Warn().Str("path", r.URL.Path).Msg("Missing authorization token")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := issuer.Validate(strings.TrimSpace(token))
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				utils.RespondWithError(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, claims.AccountID)
			ctx = context.WithValue(ctx, AccountEmailKey, claims.Email)

			log.Debug().
				Str("account_id", claims.AccountID).
				Msg("Account authenticated via JWT")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID extracts the authenticated account's ID from the context.
func GetAccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountIDKey).(string)
	return id, ok
}

// GetAccountEmail extracts the authenticated account's email from the context.
func GetAccountEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(AccountEmailKey).(string)
	return email, ok
}
