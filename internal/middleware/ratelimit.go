package middleware

import (
	"log"
	"net/http"
	"strconv"

	"github.com/mediakit/backend/internal/api/response"
	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/ratelimit"
)

// RateLimit enforces the tier-keyed per-minute burst ceiling. Authenticated
// requests are keyed by user ID, anonymous ones by client IP with the
// free-tier ceiling. A limiter backend failure lets the request through: the
// burst limiter is protective and must not take the API down with Redis.
func RateLimit(limiter *ratelimit.Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier, tier := identifierAndTier(r)

			allowed, remaining, err := limiter.Allow(r.Context(), identifier, tier)
			if err != nil {
				log.Printf("[ratelimit] check failed, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.LimitForTier(tier)))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Retry-After", "60")
				response.TooManyRequests(w, "Too many requests. Please slow down.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// identifierAndTier keys the window by user when authenticated, IP otherwise
func identifierAndTier(r *http.Request) (string, string) {
	if user := auth.GetUser(r.Context()); user != nil {
		return user.ID, user.Tier
	}
	return clientIP(r), models.TierFree
}

// clientIP extracts the client IP address from the request
func clientIP(r *http.Request) string {
	// X-Forwarded-For first (proxies/load balancers), first IP in the chain
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
		if addr[i] == ']' {
			break
		}
	}
	return addr
}
