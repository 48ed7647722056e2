package client

import (
	"log/slog"
	"net/http"
)

// RequireAuth rejects requests that carry no resolved AuthUser.
// Must be used after AuthUserMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			slog.Debug("Unauthenticated request to protected resource")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
