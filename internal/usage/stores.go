package usage

import (
	"context"

	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
)

// CounterStore is the persistence contract for day-bucketed usage counters.
// Implementations are keyed by (user_id, action_type, usage_date); at most
// one row exists per triple.
type CounterStore interface {
	// Count returns today's tally for the triple, with 0 for an absent
	// row. A store that cannot be reached must return an error, never a
	// fabricated zero.
	Count(ctx context.Context, userID string, action models.ActionType, date string) (int, error)

	// Increment atomically bumps the counter by one unless the ceiling is
	// already consumed, creating the row at count 1 on first use of the
	// day. It returns the new count and whether the increment was
	// allowed. The compare and the write happen in a single store round
	// trip so concurrent callers cannot race past the ceiling.
	Increment(ctx context.Context, userID string, action models.ActionType, date string, ceiling limits.Limit) (newCount int, allowed bool, err error)
}

// OverrideStore is the persistence contract for per-user custom limit rows.
type OverrideStore interface {
	// Get returns the user's override row, or (nil, nil) when none
	// exists.
	Get(ctx context.Context, userID string) (*models.CustomLimitOverride, error)

	// Create inserts an override row with every per-action field null. It
	// must be insert-if-absent: when a concurrent caller won the insert,
	// implementations return an error and the gate falls back to tier
	// defaults for the request.
	Create(ctx context.Context, userID, note string) (*models.CustomLimitOverride, error)
}

// Recorder observes gate decisions. The prometheus-backed implementation
// lives in internal/metrics; a nil Recorder is a no-op.
type Recorder interface {
	ObserveCheck(action models.ActionType, tier string, limitReached bool)
	ObserveIncrement(action models.ActionType, tier string, allowed bool)
}
