// Package request holds small helpers for reading request parameters.
package request

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// GetQueryString returns a string query parameter or the default value
func GetQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// GetQueryDate parses a date query parameter. Accepts the canonical day
// bucket format (YYYY-MM-DD) or full RFC3339.
func GetQueryDate(r *http.Request, key string) *time.Time {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}

	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		t, err = time.Parse(time.RFC3339, val)
		if err != nil {
			return nil
		}
	}

	return &t
}

// GetURLParam returns a URL parameter from chi router
func GetURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
