package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/mptx4869/store/internal/domain"
)

type ctxKey int

const identityKey ctxKey = iota

// AuthService validates bearer tokens.
type AuthService interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// AuthMiddleware resolves the Authorization header to a validated identity.
// Requests without a valid token are rejected before reaching the handler.
func AuthMiddleware(auth AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, *id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin routes. Runs after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		if !id.IsAdmin() {
			respondError(w, r, http.StatusForbidden, "FORBIDDEN", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func identityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}
