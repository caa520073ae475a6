package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/freeeve/polite-conquest/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware returns an HTTP middleware that requires a bearer access token
// and stores its user ID in the request context. The user ID doubles as the
// player ID inside games.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w, r, err.Error())
				return
			}

			claims, err := jwtMgr.ValidateToken(token)
			if err != nil {
				unauthorized(w, r, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), claims.UserID)))
		})
	}
}

var errBadScheme = errors.New("invalid authorization format")

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errBadScheme
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	l := logger.ForRequest(r.Context())
	l.Debug().Str("path", r.URL.Path).Str("reason", reason).Msg("Rejected unauthenticated request")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + reason + `"}`))
}

// ContextWithUserID returns ctx carrying an authenticated user ID.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
