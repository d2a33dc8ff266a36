package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mediakit/backend/internal/api/response"
	"github.com/mediakit/backend/internal/cache"
	"github.com/mediakit/backend/internal/database"
)

// healthTimeout bounds each dependency probe so a hung connection cannot
// stall the health endpoint.
const healthTimeout = 5 * time.Second

// HealthChecker reports connectivity of the service's backing dependencies.
type HealthChecker struct {
	checks map[string]func(context.Context) error
}

func NewHealthChecker(db *database.DB, redis *cache.Redis) *HealthChecker {
	return &HealthChecker{
		checks: map[string]func(context.Context) error{
			"database": db.Ping,
			"redis":    redis.Health,
		},
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// run probes every dependency and reports per-service state.
func (h *HealthChecker) run(ctx context.Context) (map[string]string, bool) {
	services := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = "unhealthy"
			healthy = false
		} else {
			services[name] = "healthy"
		}
	}
	return services, healthy
}

// Health handles GET /health
func (h *HealthChecker) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	services, healthy := h.run(ctx)

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	response.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}

// LivenessProbe handles GET /health/live. It only proves the process is
// serving requests, so it never touches dependencies.
func LivenessProbe(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// ReadinessProbe handles GET /health/ready. Unlike Health it fails on the
// first broken dependency; the load balancer only needs a yes or no.
func (h *HealthChecker) ReadinessProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			response.Error(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}

	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
