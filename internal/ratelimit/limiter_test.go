package ratelimit

import (
	"testing"

	"github.com/mediakit/backend/internal/models"
)

func TestLimitForTier(t *testing.T) {
	l := NewLimiter(nil)

	tests := []struct {
		tier string
		want int
	}{
		{models.TierFree, 10},
		{models.TierBasic, 30},
		{models.TierPro, 60},
		{models.TierEnterprise, 300},
		{"", 10},
		{"platinum", 10},
	}

	for _, tt := range tests {
		if got := l.LimitForTier(tt.tier); got != tt.want {
			t.Errorf("LimitForTier(%q) = %d, want %d", tt.tier, got, tt.want)
		}
	}
}
