package limits

import (
	"github.com/mediakit/backend/internal/models"
)

// EffectiveLimit resolves the quota that actually applies to one action for
// one user: the override field wins verbatim when present (including an
// explicit -1 for unlimited, or a 0 stricter than the tier default),
// otherwise the tier default applies.
//
// This function is pure. The caller fetches or bootstraps the override; a
// nil override means tier defaults across the board.
func EffectiveLimit(tier string, action models.ActionType, override *models.CustomLimitOverride) Limit {
	if v := override.ForAction(action); v != nil {
		return FromValue(*v)
	}
	return ForTier(tier).ForAction(action)
}
