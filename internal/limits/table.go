package limits

import (
	"github.com/mediakit/backend/internal/models"
)

// LimitSet holds the daily quotas and file ceilings for one subscription
// tier. A value of -1 on any field means unlimited.
type LimitSet struct {
	ProcessesPerDay        int `json:"processes_per_day"`
	ConversionsPerDay      int `json:"conversions_per_day"`
	EnhancementsPerDay     int `json:"enhancements_per_day"`
	CompressionsPerDay     int `json:"compressions_per_day"`
	IdentificationsPerDay  int `json:"identifications_per_day"`
	MetadataEditsPerDay    int `json:"metadata_edits_per_day"`
	MaxFileSizeMB          int `json:"max_file_size_mb"`
	BatchMaxFiles          int `json:"batch_max_files"`
	GIFMaxDurationSeconds  int `json:"gif_max_duration_seconds"`
}

// TierLimits maps each subscription tier to its default quotas. This table
// is static configuration; tier changes come only from the billing webhook.
var TierLimits = map[string]LimitSet{
	models.TierFree: {
		ProcessesPerDay:       3,
		ConversionsPerDay:     3,
		EnhancementsPerDay:    2,
		CompressionsPerDay:    3,
		IdentificationsPerDay: 3,
		MetadataEditsPerDay:   5,
		MaxFileSizeMB:         50,
		BatchMaxFiles:         1,
		GIFMaxDurationSeconds: 10,
	},
	models.TierBasic: {
		ProcessesPerDay:       20,
		ConversionsPerDay:     20,
		EnhancementsPerDay:    10,
		CompressionsPerDay:    20,
		IdentificationsPerDay: 20,
		MetadataEditsPerDay:   50,
		MaxFileSizeMB:         200,
		BatchMaxFiles:         5,
		GIFMaxDurationSeconds: 30,
	},
	models.TierPro: {
		ProcessesPerDay:       100,
		ConversionsPerDay:     100,
		EnhancementsPerDay:    50,
		CompressionsPerDay:    100,
		IdentificationsPerDay: 100,
		MetadataEditsPerDay:   250,
		MaxFileSizeMB:         500,
		BatchMaxFiles:         20,
		GIFMaxDurationSeconds: 60,
	},
	models.TierEnterprise: {
		ProcessesPerDay:       UnlimitedSentinel,
		ConversionsPerDay:     UnlimitedSentinel,
		EnhancementsPerDay:    UnlimitedSentinel,
		CompressionsPerDay:    UnlimitedSentinel,
		IdentificationsPerDay: UnlimitedSentinel,
		MetadataEditsPerDay:   UnlimitedSentinel,
		MaxFileSizeMB:         UnlimitedSentinel,
		BatchMaxFiles:         UnlimitedSentinel,
		GIFMaxDurationSeconds: UnlimitedSentinel,
	},
}

// ForTier returns the limit set for a tier. Unknown tiers are a
// configuration error and must be rejected by the caller before lookup;
// this falls back to the free tier rather than granting anything.
func ForTier(tier string) LimitSet {
	if ls, ok := TierLimits[tier]; ok {
		return ls
	}
	return TierLimits[models.TierFree]
}

// ForAction returns the daily quota of one action type within the set
func (ls LimitSet) ForAction(action models.ActionType) Limit {
	switch action {
	case models.ActionProcess:
		return FromValue(ls.ProcessesPerDay)
	case models.ActionConversion:
		return FromValue(ls.ConversionsPerDay)
	case models.ActionEnhancement:
		return FromValue(ls.EnhancementsPerDay)
	case models.ActionCompression:
		return FromValue(ls.CompressionsPerDay)
	case models.ActionIdentification:
		return FromValue(ls.IdentificationsPerDay)
	case models.ActionMetadataEdit:
		return FromValue(ls.MetadataEditsPerDay)
	default:
		return Limited(0)
	}
}

// MaxFileSize returns the upload ceiling as a Limit (value in megabytes)
func (ls LimitSet) MaxFileSize() Limit {
	return FromValue(ls.MaxFileSizeMB)
}

// GIFMaxDuration returns the GIF duration ceiling as a Limit (in seconds)
func (ls LimitSet) GIFMaxDuration() Limit {
	return FromValue(ls.GIFMaxDurationSeconds)
}
