package middleware

import (
	"context"
	"net/http"
	"strings"

	"cardms/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	principal, ok := ctx.Value(principalKey).(auth.Principal)
	return principal, ok
}

// WithPrincipal is used by tests and by the websocket upgrade path, which
// authenticates outside this middleware.
func WithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

type CapabilityStore interface {
	ListForUser(ctx context.Context, userID string) (auth.CapabilitySet, error)
}

// Auth validates the bearer token and resolves the caller into a Principal
// carrying its capability set. Capabilities are loaded per request so a
// revoked grant takes effect immediately.
func Auth(secret string, caps CapabilityStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			set, err := caps.ListForUser(r.Context(), claims.UserID)
			if err != nil {
				http.Error(w, "unable to resolve permissions", http.StatusInternalServerError)
				return
			}
			principal := auth.Principal{UserID: claims.UserID, Capabilities: set}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
