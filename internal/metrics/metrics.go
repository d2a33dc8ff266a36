// Package metrics exposes Prometheus instrumentation for the usage gate and
// the HTTP surface.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mediakit/backend/internal/models"
)

// GateRecorder counts gate decisions by action, tier, and outcome
type GateRecorder struct {
	checks     *prometheus.CounterVec
	increments *prometheus.CounterVec
}

// NewGateRecorder registers the gate counters on the given registerer.
// Passing prometheus.DefaultRegisterer is the usual call.
func NewGateRecorder(reg prometheus.Registerer) *GateRecorder {
	factory := promauto.With(reg)
	return &GateRecorder{
		checks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediakit",
			Subsystem: "usage",
			Name:      "checks_total",
			Help:      "Read-only quota checks by action, tier, and whether the limit was reached.",
		}, []string{"action", "tier", "limit_reached"}),
		increments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediakit",
			Subsystem: "usage",
			Name:      "increments_total",
			Help:      "Quota consumption attempts by action, tier, and whether they were admitted.",
		}, []string{"action", "tier", "allowed"}),
	}
}

// ObserveCheck records one read-only gate check
func (r *GateRecorder) ObserveCheck(action models.ActionType, tier string, limitReached bool) {
	r.checks.WithLabelValues(string(action), tier, strconv.FormatBool(limitReached)).Inc()
}

// ObserveIncrement records one quota consumption attempt
func (r *GateRecorder) ObserveIncrement(action models.ActionType, tier string, allowed bool) {
	r.increments.WithLabelValues(string(action), tier, strconv.FormatBool(allowed)).Inc()
}
