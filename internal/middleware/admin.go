package middleware

import (
	"context"
	"net/http"

	"payments/internal/auth"
)

type AdminStore interface {
	Exists(ctx context.Context, adminID int64) (bool, error)
}

// RequireAdmin accepts only tokens minted for the admin table. The claim
// alone is not enough: the admin row must still exist.
func RequireAdmin(adminStore AdminStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userType, ok := UserTypeFromContext(r.Context())
			if !ok || userType != auth.UserTypeAdmin {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			exists, err := adminStore.Exists(r.Context(), adminID)
			if err != nil {
				http.Error(w, "unable to verify admin", http.StatusInternalServerError)
				return
			}
			if !exists {
				http.Error(w, "admin privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
