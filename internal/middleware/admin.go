package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/mediakit/backend/internal/api/response"
)

// AdminOnly guards operator routes with a static bearer token. The token is
// deployment configuration, not a user credential; routes using this guard
// are never mounted when the token is unset.
func AdminOnly(token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Admin-Token")
			if presented == "" {
				response.Unauthorized(w, "Admin token required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				response.Unauthorized(w, "Invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
