package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mediakit/backend/internal/database"
	"github.com/mediakit/backend/internal/models"
)

// ErrOverrideExists is returned when an override row already exists for the
// user, typically because a concurrent request won the bootstrap insert.
var ErrOverrideExists = errors.New("custom limit override already exists")

// OverrideRepository persists per-user custom limit rows, one row per user
type OverrideRepository struct {
	db *database.DB
}

// NewOverrideRepository creates a new custom limit override repository
func NewOverrideRepository(db *database.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Get returns the user's override row, or (nil, nil) when none exists
func (r *OverrideRepository) Get(ctx context.Context, userID string) (*models.CustomLimitOverride, error) {
	query := `
		SELECT user_id, processes_per_day, conversions_per_day, enhancements_per_day,
		       compressions_per_day, identifications_per_day, metadata_edits_per_day,
		       note, created_at, updated_at
		FROM custom_limits
		WHERE user_id = $1
	`
	var o models.CustomLimitOverride
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&o.UserID, &o.ProcessesPerDay, &o.ConversionsPerDay, &o.EnhancementsPerDay,
		&o.CompressionsPerDay, &o.IdentificationsPerDay, &o.MetadataEditsPerDay,
		&o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get custom limits: %w", err)
	}

	return &o, nil
}

// Create inserts an all-null override row for the user. Insert-if-absent: a
// row inserted concurrently leaves this insert a no-op and the call returns
// ErrOverrideExists, which the gate tolerates by falling back to tier
// defaults.
func (r *OverrideRepository) Create(ctx context.Context, userID, note string) (*models.CustomLimitOverride, error) {
	now := time.Now()
	query := `
		INSERT INTO custom_limits (user_id, note, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING user_id, processes_per_day, conversions_per_day, enhancements_per_day,
		          compressions_per_day, identifications_per_day, metadata_edits_per_day,
		          note, created_at, updated_at
	`
	var o models.CustomLimitOverride
	err := r.db.QueryRow(ctx, query, userID, note, now).Scan(
		&o.UserID, &o.ProcessesPerDay, &o.ConversionsPerDay, &o.EnhancementsPerDay,
		&o.CompressionsPerDay, &o.IdentificationsPerDay, &o.MetadataEditsPerDay,
		&o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOverrideExists
		}
		return nil, fmt.Errorf("failed to create custom limits: %w", err)
	}

	return &o, nil
}

// Update replaces the per-action fields of an existing override row. Used by
// operator tooling; the gate itself never mutates overrides after bootstrap.
func (r *OverrideRepository) Update(ctx context.Context, o *models.CustomLimitOverride) error {
	o.UpdatedAt = time.Now()

	query := `
		UPDATE custom_limits
		SET processes_per_day = $2, conversions_per_day = $3, enhancements_per_day = $4,
		    compressions_per_day = $5, identifications_per_day = $6, metadata_edits_per_day = $7,
		    note = $8, updated_at = $9
		WHERE user_id = $1
	`
	rowsAffected, err := r.db.Exec(ctx, query,
		o.UserID, o.ProcessesPerDay, o.ConversionsPerDay, o.EnhancementsPerDay,
		o.CompressionsPerDay, o.IdentificationsPerDay, o.MetadataEditsPerDay,
		o.Note, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update custom limits: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("no custom limits row for user %s", o.UserID)
	}

	return nil
}
