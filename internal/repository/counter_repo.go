package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mediakit/backend/internal/database"
	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
)

// CounterRepository persists day-bucketed usage counters. The
// (user_id, action_type, usage_date) triple is the primary key, so at most
// one row exists per user per action per day.
type CounterRepository struct {
	db *database.DB
}

// NewCounterRepository creates a new usage counter repository
func NewCounterRepository(db *database.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Count returns today's tally for the triple. An absent row reads as 0; any
// other failure propagates so a store outage never silently grants usage.
func (r *CounterRepository) Count(ctx context.Context, userID string, action models.ActionType, date string) (int, error) {
	query := `
		SELECT count
		FROM usage_counters
		WHERE user_id = $1 AND action_type = $2 AND usage_date = $3
	`
	var count int
	err := r.db.QueryRow(ctx, query, userID, string(action), date).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}

	return count, nil
}

// Increment bumps the counter by one in a single statement, creating the row
// at count 1 on first use of the day. The ceiling comparison happens inside
// the conflict update, so two concurrent increments for the same triple
// serialize on the row and cannot both slip past the quota. A bounded
// ceiling that is already consumed updates no row, which reports as not
// allowed.
func (r *CounterRepository) Increment(ctx context.Context, userID string, action models.ActionType, date string, ceiling limits.Limit) (int, bool, error) {
	query := `
		INSERT INTO usage_counters (user_id, action_type, usage_date, count, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $5, $5)
		ON CONFLICT (user_id, action_type, usage_date)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = $5
		WHERE $4 < 0 OR usage_counters.count < $4
		RETURNING count
	`
	var newCount int
	err := r.db.QueryRow(ctx, query, userID, string(action), date, ceiling.Value(), time.Now()).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict update filtered out: ceiling already consumed.
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	return newCount, true, nil
}

// PruneOlderThan deletes counter rows for day buckets older than the cutoff.
// Counters expire implicitly at day rollover by never being queried again;
// this is housekeeping for table size, run by the retention worker.
func (r *CounterRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM usage_counters WHERE usage_date < $1`
	deleted, err := r.db.Exec(ctx, query, models.UsageDate(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage counters: %w", err)
	}

	return deleted, nil
}
