package models

import (
	"testing"
	"time"
)

func TestParseActionType(t *testing.T) {
	for _, action := range AllActionTypes {
		got, err := ParseActionType(string(action))
		if err != nil {
			t.Errorf("ParseActionType(%q) failed: %v", action, err)
		}
		if got != action {
			t.Errorf("ParseActionType(%q) = %q", action, got)
		}
	}
}

func TestParseActionType_Unknown(t *testing.T) {
	for _, raw := range []string{"", "transcode", "CONVERSION", "conversion "} {
		if _, err := ParseActionType(raw); err == nil {
			t.Errorf("ParseActionType(%q): expected error", raw)
		}
	}
}

func TestUsageDate_UTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)

	if got := UsageDate(local); got != "2026-03-15" {
		t.Errorf("UsageDate = %q, want 2026-03-15", got)
	}
}

func TestUsageDate_Format(t *testing.T) {
	if got := UsageDate(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)); got != "2026-01-02" {
		t.Errorf("UsageDate = %q, want 2026-01-02", got)
	}
}

func TestCustomLimitOverride_ForAction_NilReceiver(t *testing.T) {
	var o *CustomLimitOverride
	for _, action := range AllActionTypes {
		if o.ForAction(action) != nil {
			t.Errorf("nil override should yield nil for %s", action)
		}
	}
}

func TestIsValidTier(t *testing.T) {
	for _, tier := range []string{TierFree, TierBasic, TierPro, TierEnterprise} {
		if !IsValidTier(tier) {
			t.Errorf("IsValidTier(%q) = false", tier)
		}
	}
	for _, tier := range []string{"", "platinum", "Free"} {
		if IsValidTier(tier) {
			t.Errorf("IsValidTier(%q) = true", tier)
		}
	}
}
