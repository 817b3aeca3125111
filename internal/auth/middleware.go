package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mattgrd/watchcrew/internal/httputil"
)

type contextKey string

const ContextUser contextKey = "user"

type ContextUserData struct {
	UserID uuid.UUID
}

type Middleware struct {
	verifier *Verifier
}

func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth verifies the bearer token and stores the caller identity in the
// request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		claims, err := m.verifier.Verify(token)
		if errors.Is(err, ErrTokenExpired) {
			httputil.WriteError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired")
			return
		}
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUser, ContextUserData{UserID: claims.UserID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated caller, or nil outside
// RequireAuth.
func UserFromContext(ctx context.Context) *ContextUserData {
	user, ok := ctx.Value(ContextUser).(ContextUserData)
	if !ok {
		return nil
	}
	return &user
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
