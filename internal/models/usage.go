package models

import (
	"fmt"
	"time"
)

// ActionType categorizes a gated media operation
type ActionType string

// Action type constants. Every tool route declares which action it consumes
// before performing work.
const (
	ActionProcess        ActionType = "process"
	ActionConversion     ActionType = "conversion"
	ActionEnhancement    ActionType = "enhancement"
	ActionCompression    ActionType = "compression"
	ActionIdentification ActionType = "identification"
	ActionMetadataEdit   ActionType = "metadata_edit"
)

// AllActionTypes lists every known action type in a stable order
var AllActionTypes = []ActionType{
	ActionProcess,
	ActionConversion,
	ActionEnhancement,
	ActionCompression,
	ActionIdentification,
	ActionMetadataEdit,
}

// ParseActionType validates a raw action type string. An unknown action is a
// caller bug and fails loudly rather than resolving to a default limit.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionProcess, ActionConversion, ActionEnhancement,
		ActionCompression, ActionIdentification, ActionMetadataEdit:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("unknown action type: %q", s)
	}
}

// UsageCounter is the running tally for one (user, action, day) triple.
// The triple is unique; count is monotonic within a day and never decremented.
type UsageCounter struct {
	UserID     string     `json:"user_id" db:"user_id"`
	ActionType ActionType `json:"action_type" db:"action_type"`
	UsageDate  string     `json:"usage_date" db:"usage_date"` // YYYY-MM-DD in UTC
	Count      int        `json:"count" db:"count"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// CustomLimitOverride is a per-user exception to the tier defaults. One row
// per user; nil fields fall back to the tier default, a non-nil value
// (including -1 for explicit unlimited, or 0 for a harder cap) wins verbatim.
type CustomLimitOverride struct {
	UserID                 string    `json:"user_id" db:"user_id"`
	ProcessesPerDay        *int      `json:"processes_per_day" db:"processes_per_day"`
	ConversionsPerDay      *int      `json:"conversions_per_day" db:"conversions_per_day"`
	EnhancementsPerDay     *int      `json:"enhancements_per_day" db:"enhancements_per_day"`
	CompressionsPerDay     *int      `json:"compressions_per_day" db:"compressions_per_day"`
	IdentificationsPerDay  *int      `json:"identifications_per_day" db:"identifications_per_day"`
	MetadataEditsPerDay    *int      `json:"metadata_edits_per_day" db:"metadata_edits_per_day"`
	Note                   string    `json:"note,omitempty" db:"note"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// ForAction returns the override value for one action, or nil when the tier
// default applies.
func (o *CustomLimitOverride) ForAction(action ActionType) *int {
	if o == nil {
		return nil
	}
	switch action {
	case ActionProcess:
		return o.ProcessesPerDay
	case ActionConversion:
		return o.ConversionsPerDay
	case ActionEnhancement:
		return o.EnhancementsPerDay
	case ActionCompression:
		return o.CompressionsPerDay
	case ActionIdentification:
		return o.IdentificationsPerDay
	case ActionMetadataEdit:
		return o.MetadataEditsPerDay
	default:
		return nil
	}
}

// UsageDate formats a point in time as the canonical counter day bucket.
// Check and increment must agree on the bucket, so both derive it here: UTC,
// YYYY-MM-DD.
func UsageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
