// Package usage implements the request-time quota gate shared by every tool
// route: a read-only check before offering an action, and an atomic
// increment that consumes one unit of the user's daily quota.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
)

var (
	// ErrLimitExceeded is returned when an increment would pass the
	// user's daily quota. It is an expected, user-facing condition, not a
	// server error; routes map it to 429.
	ErrLimitExceeded = errors.New("daily usage limit exceeded")

	// ErrUnknownTier is returned when the caller supplies a tier outside
	// the four known subscription tiers. This is a configuration error
	// and never resolves to a default quota.
	ErrUnknownTier = errors.New("unknown subscription tier")
)

// bootstrapNote annotates auto-created override rows so an operator can tell
// them apart from hand-tuned ones.
const bootstrapNote = "auto-created on first use; null fields fall back to tier defaults"

// Status is the outcome of a gate decision for one (user, action) pair on
// the current day. Limit and Remaining use -1 for unlimited.
type Status struct {
	Tier         string            `json:"tier"`
	Action       models.ActionType `json:"action_type"`
	Limit        int               `json:"limit"`
	Used         int               `json:"used"`
	Remaining    int               `json:"remaining"`
	LimitReached bool              `json:"limit_reached"`
	Unlimited    bool              `json:"unlimited"`
	CustomLimit  bool              `json:"custom_limit"`
}

// Gate decides whether a gated action may proceed and accounts for consumed
// units. It owns override bootstrapping; the stores are per-user scoped so
// contention only happens within one user's own concurrent requests.
type Gate struct {
	counters  CounterStore
	overrides OverrideStore
	recorder  Recorder
	now       func() time.Time
}

// NewGate creates a usage gate over the given stores. recorder may be nil.
func NewGate(counters CounterStore, overrides OverrideStore, recorder Recorder) *Gate {
	return &Gate{
		counters:  counters,
		overrides: overrides,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Check reports the user's standing for an action without consuming a unit.
// Calling it any number of times leaves the counter untouched.
func (g *Gate) Check(ctx context.Context, userID, tier string, action models.ActionType) (*Status, error) {
	if !models.IsValidTier(tier) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	override, err := g.resolveOverride(ctx, userID)
	if err != nil {
		return nil, err
	}

	date := models.UsageDate(g.now())
	used, err := g.counters.Count(ctx, userID, action, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage counter: %w", err)
	}

	limit := limits.EffectiveLimit(tier, action, override)
	st := g.status(tier, action, limit, used, override)
	if g.recorder != nil {
		g.recorder.ObserveCheck(action, tier, st.LimitReached)
	}
	return st, nil
}

// Increment consumes one unit of the user's daily quota for an action. When
// the quota is already consumed it returns ErrLimitExceeded together with
// the current standing, and the counter is not mutated. The compare and the
// bump happen atomically at the store layer, so the quota holds as a hard
// ceiling even under concurrent requests from the same user.
func (g *Gate) Increment(ctx context.Context, userID, tier string, action models.ActionType) (*Status, error) {
	if !models.IsValidTier(tier) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	override, err := g.resolveOverride(ctx, userID)
	if err != nil {
		return nil, err
	}

	date := models.UsageDate(g.now())
	limit := limits.EffectiveLimit(tier, action, override)

	// A zero limit can never admit a first increment; the store primitive
	// creates rows at count 1, so reject before touching it.
	if !limit.IsUnlimited() && limit.Value() == 0 {
		if g.recorder != nil {
			g.recorder.ObserveIncrement(action, tier, false)
		}
		used, err := g.counters.Count(ctx, userID, action, date)
		if err != nil {
			log.Printf("[usage] counter read for denied increment failed for user %s action %s: %v", userID, action, err)
			used = 0
		}
		return g.status(tier, action, limit, used, override), ErrLimitExceeded
	}

	newCount, allowed, err := g.counters.Increment(ctx, userID, action, date, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage counter: %w", err)
	}

	if g.recorder != nil {
		g.recorder.ObserveIncrement(action, tier, allowed)
	}

	if !allowed {
		used, err := g.counters.Count(ctx, userID, action, date)
		if err != nil {
			log.Printf("[usage] counter read for denied increment failed for user %s action %s: %v", userID, action, err)
			used = limit.Value()
		}
		return g.status(tier, action, limit, used, override), ErrLimitExceeded
	}

	return g.status(tier, action, limit, newCount, override), nil
}

// Summary reports today's standing for every action type at once, for the
// dashboard usage page. Read-only, like Check.
func (g *Gate) Summary(ctx context.Context, userID, tier string) ([]Status, error) {
	if !models.IsValidTier(tier) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	override, err := g.resolveOverride(ctx, userID)
	if err != nil {
		return nil, err
	}

	date := models.UsageDate(g.now())
	statuses := make([]Status, 0, len(models.AllActionTypes))
	for _, action := range models.AllActionTypes {
		used, err := g.counters.Count(ctx, userID, action, date)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage counter: %w", err)
		}
		limit := limits.EffectiveLimit(tier, action, override)
		statuses = append(statuses, *g.status(tier, action, limit, used, override))
	}
	return statuses, nil
}

// resolveOverride fetches the user's override row, lazily creating an
// all-null row on first use. Losing the create race to a concurrent request
// is tolerated: that single request proceeds on tier defaults, which is
// always safe.
func (g *Gate) resolveOverride(ctx context.Context, userID string) (*models.CustomLimitOverride, error) {
	override, err := g.overrides.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read custom limits: %w", err)
	}
	if override != nil {
		return override, nil
	}

	created, err := g.overrides.Create(ctx, userID, bootstrapNote)
	if err != nil {
		log.Printf("[usage] custom limit bootstrap for user %s failed, using tier defaults: %v", userID, err)
		return nil, nil
	}
	return created, nil
}

func (g *Gate) status(tier string, action models.ActionType, limit limits.Limit, used int, override *models.CustomLimitOverride) *Status {
	return &Status{
		Tier:         tier,
		Action:       action,
		Limit:        limit.Value(),
		Used:         used,
		Remaining:    limit.Remaining(used),
		LimitReached: limit.Reached(used),
		Unlimited:    limit.IsUnlimited(),
		CustomLimit:  override.ForAction(action) != nil,
	}
}
