package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tasklist/internal/api"

	"github.com/go-chi/chi/v5"
)

type ctxKey string

const identityKey ctxKey = "identity"

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth extracts the Bearer token, verifies it, and stores the
// resulting identity in the request context.
func RequireAuth(tokens *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, api.CodeMissingToken, api.MsgSessionExpired)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			id, err := tokens.Verify(token)
			if err != nil {
				code := api.CodeInvalidToken
				if errors.Is(err, ErrTokenExpired) {
					code = api.CodeExpiredToken
				}
				api.Error(w, http.StatusUnauthorized, code, api.MsgSessionExpired)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner compares the verified subject against the user_id path
// parameter. A mismatch is Forbidden, not NotFound: resource existence
// is not hidden from an authenticated caller with the wrong identity.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, api.CodeMissingToken, api.MsgSessionExpired)
			return
		}

		owner, err := strconv.ParseUint(chi.URLParam(r, "user_id"), 10, 64)
		if err != nil {
			api.Error(w, http.StatusBadRequest, api.CodeValidation, "user_id: must be a positive integer")
			return
		}
		if owner != id.UserID {
			api.Error(w, http.StatusForbidden, api.CodeForbidden, "cannot access another user's resources")
			return
		}

		next.ServeHTTP(w, r)
	})
}
