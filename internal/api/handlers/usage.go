package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mediakit/backend/internal/auth"
	"github.com/mediakit/backend/internal/cache"
	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/repository"
	"github.com/mediakit/backend/internal/usage"
)

// UserDirectory resolves a user ID to the current user row. Satisfied by
// repository.UserRepository; handlers re-read the tier per request because
// the billing webhook may have changed it since the JWT was issued.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UsageHandler exposes the quota gate over HTTP: a read-only check, the
// consuming increment, and the per-action usage summary.
type UsageHandler struct {
	gate     *usage.Gate
	userRepo UserDirectory
	cache    *cache.Redis
	cacheTTL int
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(gate *usage.Gate, userRepo UserDirectory, redisCache *cache.Redis, cacheTTL int) *UsageHandler {
	return &UsageHandler{
		gate:     gate,
		userRepo: userRepo,
		cache:    redisCache,
		cacheTTL: cacheTTL,
	}
}

// GateRequest is the body for check and increment calls
type GateRequest struct {
	ActionType string `json:"action_type"`
}

// Check reports the user's standing for an action without consuming quota.
// The UI calls this to preflight and warn before an expensive operation.
// POST /api/v1/usage/check
func (h *UsageHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, tier, action, ok := h.gateInputs(w, r)
	if !ok {
		return
	}

	status, err := h.gate.Check(r.Context(), userID, tier, action)
	if err != nil {
		log.Printf("[usage] check failed for user %s action %s: %v", userID, action, err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to check usage limits")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Increment consumes one unit of quota for an action. Routes call this
// before delegating the actual media work, so a failed conversion still
// consumes quota (consume-on-attempt).
// POST /api/v1/usage/increment
func (h *UsageHandler) Increment(w http.ResponseWriter, r *http.Request) {
	userID, tier, action, ok := h.gateInputs(w, r)
	if !ok {
		return
	}

	status, err := h.gate.Increment(r.Context(), userID, tier, action)
	if err != nil {
		if errors.Is(err, usage.ErrLimitExceeded) {
			writeLimitExceeded(w, status)
			return
		}
		log.Printf("[usage] increment failed for user %s action %s: %v", userID, action, err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// GetUsage returns today's standing for every action type.
// GET /api/v1/user/usage
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	statuses, err := h.gate.Summary(r.Context(), user.ID, user.Tier)
	if err != nil {
		log.Printf("[usage] summary failed for user %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tier":    user.Tier,
		"actions": statuses,
	})
}

// GetTierInfo returns the static tier catalog with quotas and ceilings. The
// catalog only changes on deploy, so it is served from a short Redis cache.
// GET /api/v1/tiers
func (h *UsageHandler) GetTierInfo(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "tiers:catalog"

	if h.cache != nil {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil && cached != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
	}

	tiers := make([]map[string]interface{}, 0, len(limits.TierLimits))
	for _, tier := range []string{models.TierFree, models.TierBasic, models.TierPro, models.TierEnterprise} {
		tiers = append(tiers, map[string]interface{}{
			"name":   tier,
			"limits": limits.ForTier(tier),
		})
	}

	payload := map[string]interface{}{"tiers": tiers}

	if h.cache != nil {
		if data, err := json.Marshal(payload); err == nil {
			_ = h.cache.Set(r.Context(), cacheKey, data, time.Duration(h.cacheTTL)*time.Second)
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

// gateInputs resolves the authenticated identity, the current tier, and the
// requested action. Identity failures deny the request outright; the gate
// never defaults an unauthenticated caller to a permissive tier.
func (h *UsageHandler) gateInputs(w http.ResponseWriter, r *http.Request) (string, string, models.ActionType, bool) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return "", "", "", false
	}

	var req GateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return "", "", "", false
	}

	action, err := models.ParseActionType(req.ActionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_action_type", err.Error())
		return "", "", "", false
	}

	return user.ID, user.Tier, action, true
}

// currentUser resolves the authenticated user and re-reads the tier from the
// database: the billing webhook may have changed it since the JWT was
// issued.
func (h *UsageHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return nil, false
	}

	fullUser, err := h.userRepo.GetByID(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unknown user")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to fetch user data")
		return nil, false
	}

	return fullUser, true
}

// writeLimitExceeded maps the gate's limit condition to 429 with a
// distinguished error code so clients can show upgrade messaging.
func writeLimitExceeded(w http.ResponseWriter, status *usage.Status) {
	body := map[string]interface{}{
		"error":   "limit_exceeded",
		"message": "Daily limit reached for this action. Upgrade your plan for higher limits.",
	}
	if status != nil {
		body["usage"] = status
	}
	writeJSON(w, http.StatusTooManyRequests, body)
}
