package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

type contextKey string

const userContextKey contextKey = "authUser"

// TokenVerifier resolves a bearer token to the user it belongs to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*types.UserPublic, error)
}

// Authenticate rejects requests without a valid session token and stores the
// verified user in the request context.
func Authenticate(logger *slog.Logger, verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.DebugContext(ctx, "Missing Authorization header")
				unauthorized(w, r, "Authorization header required")
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenString) == "" {
				l.DebugContext(ctx, "Invalid Authorization header format")
				unauthorized(w, r, "Authorization header format must be Bearer {token}")
				return
			}

			user, err := verifier.VerifyToken(ctx, strings.TrimSpace(tokenString))
			if err != nil {
				if errors.Is(err, ErrInvalidOrExpiredToken) {
					unauthorized(w, r, "Invalid or expired token")
					return
				}
				l.ErrorContext(ctx, "Token verification failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, *user)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	api.ErrorResponse(w, r, http.StatusUnauthorized, msg)
}

// RequireRole lets the request through only when the authenticated user has one of roles.
// It must run after Authenticate.
func RequireRole(roles ...types.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				unauthorized(w, r, "Authentication required")
				return
			}
			if !slices.Contains(roles, user.Role) {
				api.ErrorResponse(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user types.UserPublic) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the user stored by Authenticate.
func GetUserFromContext(ctx context.Context) (types.UserPublic, bool) {
	user, ok := ctx.Value(userContextKey).(types.UserPublic)
	return user, ok
}

// GetUserIDFromContext returns the authenticated user's id as a string.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return "", false
	}
	return user.ID.String(), true
}
