package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nlagree/cryptochat/internal/auth"
	"github.com/nlagree/cryptochat/internal/metrics"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Auth validates the bearer token and stores the resolved user id in the
// request context.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			metrics.AuthFailures.WithLabelValues("token").Inc()
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user id put there by Auth, or 0.
func UserID(r *http.Request) int {
	id, _ := r.Context().Value(UserIDKey).(int)
	return id
}
