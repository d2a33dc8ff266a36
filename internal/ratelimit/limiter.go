// Package ratelimit implements a per-minute burst limiter over Redis. It
// smooths request spikes per user and is a separate concern from the daily
// entitlement gate, which accounts quota in Postgres.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediakit/backend/internal/cache"
	"github.com/mediakit/backend/internal/models"
)

// PerMinuteLimits defines the burst ceiling per subscription tier
var PerMinuteLimits = map[string]int{
	models.TierFree:       10,
	models.TierBasic:      30,
	models.TierPro:        60,
	models.TierEnterprise: 300,
}

// Limiter enforces tier-keyed per-minute request ceilings using a Redis
// sliding window
type Limiter struct {
	cache  *cache.Redis
	limits map[string]int
}

// NewLimiter creates a burst limiter with the default tier ceilings
func NewLimiter(c *cache.Redis) *Limiter {
	return &Limiter{cache: c, limits: PerMinuteLimits}
}

// LimitForTier returns the per-minute ceiling for a tier. Unknown tiers get
// the free-tier ceiling; the burst limiter is protective, not entitlement.
func (l *Limiter) LimitForTier(tier string) int {
	if limit, ok := l.limits[tier]; ok {
		return limit
	}
	return l.limits[models.TierFree]
}

// Allow records one request for the identifier and reports whether it fits
// in the current minute window, along with the remaining budget.
func (l *Limiter) Allow(ctx context.Context, identifier, tier string) (bool, int, error) {
	limit := l.LimitForTier(tier)
	key := fmt.Sprintf("ratelimit:minute:%s", identifier)

	now := time.Now()
	windowStart := now.Add(-time.Minute).UnixMicro()

	client := l.cache.Client()
	pipe := client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count >= limit {
		return false, 0, nil
	}

	// Microsecond timestamps keep members unique under rapid requests.
	member := strconv.FormatInt(now.UnixMicro(), 10)
	if err := client.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member}).Err(); err != nil {
		return false, 0, fmt.Errorf("failed to add rate limit entry: %w", err)
	}
	_ = client.Expire(ctx, key, time.Minute+time.Second).Err()

	remaining := limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, nil
}

// Remaining reports the current-minute budget without recording a request
func (l *Limiter) Remaining(ctx context.Context, identifier, tier string) (int, error) {
	limit := l.LimitForTier(tier)
	key := fmt.Sprintf("ratelimit:minute:%s", identifier)

	windowStart := time.Now().Add(-time.Minute).UnixMicro()
	count, err := l.cache.Client().ZCount(ctx, key, strconv.FormatInt(windowStart, 10), "+inf").Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to get rate limit count: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for an identifier
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	key := fmt.Sprintf("ratelimit:minute:%s", identifier)
	if err := l.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
