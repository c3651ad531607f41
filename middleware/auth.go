package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Dosada05/chess-arena/services"
)

type contextKey string

const userContextKey contextKey = "user"

// Authenticate requires a valid bearer token and stores the authenticated
// username in the request context.
func Authenticate(authService services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			username, err := authService.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the username placed there by Authenticate.
func UsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(userContextKey).(string)
	if !ok || username == "" {
		return "", errors.New("no authenticated user in context")
	}
	return username, nil
}
