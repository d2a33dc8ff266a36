package models

import (
	"time"
)

// User represents a user account in the system. Tier is only ever written by
// the billing webhook; the usage gate reads it.
type User struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Tier             string    `json:"tier" db:"tier"`
	StripeCustomerID string    `json:"-" db:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// APIKey represents an API key for a user
type APIKey struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	KeyHash   string    `json:"-" db:"key_hash"`
	KeyPrefix string    `json:"key_prefix" db:"key_prefix"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	LastUsed  time.Time `json:"last_used,omitempty" db:"last_used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Subscription tier constants
const (
	TierFree       = "free"
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// IsValidTier checks if a tier is one of the four known subscription tiers
func IsValidTier(tier string) bool {
	switch tier {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

// TierHierarchy returns the hierarchy level of a tier (higher = more privileges)
func TierHierarchy(tier string) int {
	switch tier {
	case TierEnterprise:
		return 4
	case TierPro:
		return 3
	case TierBasic:
		return 2
	case TierFree:
		return 1
	default:
		return 0
	}
}
