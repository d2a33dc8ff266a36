package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mediakit/backend/internal/api/request"
	"github.com/mediakit/backend/internal/api/response"
	"github.com/mediakit/backend/internal/limits"
	"github.com/mediakit/backend/internal/models"
	"github.com/mediakit/backend/internal/repository"
)

// AdminHandler exposes operator tooling for per-user limit overrides and
// usage inspection. These routes sit behind the static admin token and are
// support tooling, not part of the user-facing product surface.
type AdminHandler struct {
	userRepo     *repository.UserRepository
	overrideRepo *repository.OverrideRepository
	counterRepo  *repository.CounterRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(userRepo *repository.UserRepository, overrideRepo *repository.OverrideRepository, counterRepo *repository.CounterRepository) *AdminHandler {
	return &AdminHandler{
		userRepo:     userRepo,
		overrideRepo: overrideRepo,
		counterRepo:  counterRepo,
	}
}

// UpdateLimitsRequest carries the override fields to apply. Absent fields
// clear back to the tier default; -1 grants explicit unlimited; 0 is a hard
// block.
type UpdateLimitsRequest struct {
	ProcessesPerDay       *int   `json:"processes_per_day"`
	ConversionsPerDay     *int   `json:"conversions_per_day"`
	EnhancementsPerDay    *int   `json:"enhancements_per_day"`
	CompressionsPerDay    *int   `json:"compressions_per_day"`
	IdentificationsPerDay *int   `json:"identifications_per_day"`
	MetadataEditsPerDay   *int   `json:"metadata_edits_per_day"`
	Note                  string `json:"note"`
}

// GetUserLimits returns a user's override row alongside the effective
// per-action limits.
// GET /api/v1/admin/users/{userID}/limits
func (h *AdminHandler) GetUserLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}

	override, err := h.overrideRepo.Get(r.Context(), user.ID)
	if err != nil {
		log.Printf("[admin] failed to read overrides for user %s: %v", user.ID, err)
		response.InternalError(w, "Failed to read custom limits")
		return
	}

	response.Success(w, map[string]interface{}{
		"user_id":   user.ID,
		"tier":      user.Tier,
		"override":  override,
		"effective": h.effectiveLimits(user.Tier, override),
	})
}

// UpdateUserLimits replaces a user's override fields. The row is created
// first when the user has never hit the gate.
// PUT /api/v1/admin/users/{userID}/limits
func (h *AdminHandler) UpdateUserLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}

	var req UpdateLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	override, err := h.overrideRepo.Get(r.Context(), user.ID)
	if err != nil {
		log.Printf("[admin] failed to read overrides for user %s: %v", user.ID, err)
		response.InternalError(w, "Failed to read custom limits")
		return
	}
	if override == nil {
		override, err = h.overrideRepo.Create(r.Context(), user.ID, "")
		if err != nil && !errors.Is(err, repository.ErrOverrideExists) {
			log.Printf("[admin] failed to create overrides for user %s: %v", user.ID, err)
			response.InternalError(w, "Failed to create custom limits")
			return
		}
		if override == nil {
			// Lost the insert race to a live request; re-read the row.
			override, err = h.overrideRepo.Get(r.Context(), user.ID)
			if err != nil || override == nil {
				response.InternalError(w, "Failed to read custom limits")
				return
			}
		}
	}

	override.ProcessesPerDay = req.ProcessesPerDay
	override.ConversionsPerDay = req.ConversionsPerDay
	override.EnhancementsPerDay = req.EnhancementsPerDay
	override.CompressionsPerDay = req.CompressionsPerDay
	override.IdentificationsPerDay = req.IdentificationsPerDay
	override.MetadataEditsPerDay = req.MetadataEditsPerDay
	override.Note = req.Note

	if err := h.overrideRepo.Update(r.Context(), override); err != nil {
		log.Printf("[admin] failed to update overrides for user %s: %v", user.ID, err)
		response.InternalError(w, "Failed to update custom limits")
		return
	}

	log.Printf("[admin] custom limits updated for user %s", user.ID)

	response.Success(w, map[string]interface{}{
		"user_id":   user.ID,
		"tier":      user.Tier,
		"override":  override,
		"effective": h.effectiveLimits(user.Tier, override),
	})
}

// GetUserUsage returns a user's counters for one day bucket, today by
// default. ?date=YYYY-MM-DD selects a past bucket; ?action= filters to one
// action type.
// GET /api/v1/admin/users/{userID}/usage
func (h *AdminHandler) GetUserUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookupUser(w, r)
	if !ok {
		return
	}

	day := time.Now()
	if t := request.GetQueryDate(r, "date"); t != nil {
		day = *t
	}
	date := models.UsageDate(day)

	actions := models.AllActionTypes
	if raw := request.GetQueryString(r, "action", ""); raw != "" {
		action, err := models.ParseActionType(raw)
		if err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		actions = []models.ActionType{action}
	}

	counts := make(map[string]int, len(actions))
	for _, action := range actions {
		count, err := h.counterRepo.Count(r.Context(), user.ID, action, date)
		if err != nil {
			log.Printf("[admin] failed to read counter for user %s action %s: %v", user.ID, action, err)
			response.InternalError(w, "Failed to read usage counters")
			return
		}
		counts[string(action)] = count
	}

	response.Success(w, map[string]interface{}{
		"user_id":    user.ID,
		"tier":       user.Tier,
		"usage_date": date,
		"counts":     counts,
	})
}

// lookupUser resolves the {userID} path parameter to a user row
func (h *AdminHandler) lookupUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID := request.GetURLParam(r, "userID")
	if userID == "" {
		response.BadRequest(w, "User ID is required")
		return nil, false
	}

	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return nil, false
		}
		log.Printf("[admin] failed to fetch user %s: %v", userID, err)
		response.InternalError(w, "Failed to fetch user")
		return nil, false
	}

	return user, true
}

// effectiveLimits resolves the per-action limits an override yields on top
// of the tier defaults
func (h *AdminHandler) effectiveLimits(tier string, override *models.CustomLimitOverride) map[string]int {
	effective := make(map[string]int, len(models.AllActionTypes))
	for _, action := range models.AllActionTypes {
		effective[string(action)] = limits.EffectiveLimit(tier, action, override).Value()
	}
	return effective
}
