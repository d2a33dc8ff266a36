package limits

import (
	"testing"

	"github.com/mediakit/backend/internal/models"
)

func intp(n int) *int { return &n }

func TestEffectiveLimit_NilOverrideUsesTierDefault(t *testing.T) {
	got := EffectiveLimit(models.TierFree, models.ActionConversion, nil)
	if got.Value() != 3 {
		t.Errorf("expected free tier default 3, got %d", got.Value())
	}
}

func TestEffectiveLimit_NullFieldFallsThrough(t *testing.T) {
	// Row exists but the conversion field was never set.
	override := &models.CustomLimitOverride{
		UserID:          "u1",
		ProcessesPerDay: intp(50),
	}

	got := EffectiveLimit(models.TierFree, models.ActionConversion, override)
	if got.Value() != 3 {
		t.Errorf("null field: expected tier default 3, got %d", got.Value())
	}
}

func TestEffectiveLimit_OverrideWinsVerbatim(t *testing.T) {
	tests := []struct {
		name          string
		tier          string
		value         int
		wantValue     int
		wantUnlimited bool
	}{
		{"raised above default", models.TierFree, 500, 500, false},
		{"lowered below default", models.TierPro, 1, 1, false},
		{"explicit unlimited", models.TierFree, -1, UnlimitedSentinel, true},
		{"explicit zero blocks", models.TierEnterprise, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			override := &models.CustomLimitOverride{
				UserID:            "u1",
				ConversionsPerDay: intp(tt.value),
			}

			got := EffectiveLimit(tt.tier, models.ActionConversion, override)
			if got.IsUnlimited() != tt.wantUnlimited {
				t.Errorf("IsUnlimited() = %v, want %v", got.IsUnlimited(), tt.wantUnlimited)
			}
			if got.Value() != tt.wantValue {
				t.Errorf("Value() = %d, want %d", got.Value(), tt.wantValue)
			}
		})
	}
}

func TestEffectiveLimit_OverrideScopedToItsAction(t *testing.T) {
	override := &models.CustomLimitOverride{
		UserID:            "u1",
		ConversionsPerDay: intp(100),
	}

	if got := EffectiveLimit(models.TierFree, models.ActionEnhancement, override); got.Value() != 2 {
		t.Errorf("enhancement should keep tier default 2, got %d", got.Value())
	}
}
