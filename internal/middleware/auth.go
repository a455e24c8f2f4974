package middleware

import (
	"context"
	"net/http"
	"strings"

	"payments/internal/auth"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userTypeKey contextKey = "user_type"
)

func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}

func UserTypeFromContext(ctx context.Context) (string, bool) {
	userType, ok := ctx.Value(userTypeKey).(string)
	return userType, ok
}

// RequireUser rejects tokens that were not minted for a regular user, so
// admin tokens cannot read user-scoped routes for whichever user shares
// their numeric id.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userType, ok := UserTypeFromContext(r.Context())
			if !ok || userType != auth.UserTypeUser {
				http.Error(w, "user privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Auth(secret string) func(http.Handler) http.Handler {
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
			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, userTypeKey, claims.UserType)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
