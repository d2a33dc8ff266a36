package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mediakit/backend/internal/database"
	"github.com/mediakit/backend/internal/models"
)

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when trying to create a user that already exists
	ErrUserExists = errors.New("user already exists")
)

// UserRepository handles user database operations
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Tier == "" {
		user.Tier = models.TierFree
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, tier, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Tier,
		user.StripeCustomerID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, tier, stripe_customer_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, tier, stripe_customer_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

// GetByStripeCustomerID retrieves the user linked to a Stripe customer
func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, tier, stripe_customer_id, created_at, updated_at
		FROM users
		WHERE stripe_customer_id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, customerID))
}

// SetStripeCustomerID links a user to a Stripe customer
func (r *UserRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	query := `UPDATE users SET stripe_customer_id = $2, updated_at = $3 WHERE id = $1`
	rowsAffected, err := r.db.Exec(ctx, query, userID, customerID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateTier updates a user's subscription tier. Only the billing webhook
// handler calls this; the usage gate never writes tiers.
func (r *UserRepository) UpdateTier(ctx context.Context, userID string, tier string) error {
	if !models.IsValidTier(tier) {
		return fmt.Errorf("invalid tier: %s", tier)
	}

	query := `UPDATE users SET tier = $2, updated_at = $3 WHERE id = $1`
	rowsAffected, err := r.db.Exec(ctx, query, userID, tier, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tier: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// Delete deletes a user along with their API keys, usage counters, and
// custom limit row
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	for _, cleanup := range []string{
		"DELETE FROM api_keys WHERE user_id = $1",
		"DELETE FROM usage_counters WHERE user_id = $1",
		"DELETE FROM custom_limits WHERE user_id = $1",
	} {
		if _, err := r.db.Exec(ctx, cleanup, id); err != nil {
			return fmt.Errorf("failed to delete user records: %w", err)
		}
	}

	rowsAffected, err := r.db.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) scanOne(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Tier,
		&user.StripeCustomerID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// isUniqueViolation checks if an error is a unique constraint violation
func isUniqueViolation(err error) bool {
	// PostgreSQL unique violation error code is 23505
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "duplicate key") || strings.Contains(errMsg, "23505")
}
