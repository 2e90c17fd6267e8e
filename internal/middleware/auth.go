package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/identity"
)

type userKey string

const currentUserKey userKey = "current_user"

// Auth verifies the bearer credential against the identity service and
// stores the resolved user on the request context. Requests without a
// valid credential are rejected before reaching any handler.
func Auth(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization")
				return
			}
			user, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "details": details})
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(currentUserKey).(*domain.User); ok {
		return u
	}
	return nil
}

// ContextWithUser attaches an authenticated user to the context.
func ContextWithUser(ctx context.Context, user *domain.User) context.Context {
	if user == nil || user.ID == "" {
		return ctx
	}
	return context.WithValue(ctx, currentUserKey, user)
}
