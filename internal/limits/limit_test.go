package limits

import "testing"

func TestFromValue_NegativeIsUnlimited(t *testing.T) {
	for _, n := range []int{-1, -5, -100} {
		l := FromValue(n)
		if !l.IsUnlimited() {
			t.Errorf("FromValue(%d): expected unlimited", n)
		}
		if l.Value() != UnlimitedSentinel {
			t.Errorf("FromValue(%d).Value(): expected %d, got %d", n, UnlimitedSentinel, l.Value())
		}
	}
}

func TestFromValue_Bounded(t *testing.T) {
	l := FromValue(3)
	if l.IsUnlimited() {
		t.Error("FromValue(3): expected bounded limit")
	}
	if l.Value() != 3 {
		t.Errorf("FromValue(3).Value(): expected 3, got %d", l.Value())
	}
}

func TestLimit_Reached(t *testing.T) {
	tests := []struct {
		name  string
		limit Limit
		used  int
		want  bool
	}{
		{"under limit", Limited(3), 2, false},
		{"at limit", Limited(3), 3, true},
		{"over limit", Limited(3), 5, true},
		{"zero limit always reached", Limited(0), 0, true},
		{"unlimited never reached", Unlimited(), 1000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limit.Reached(tt.used); got != tt.want {
				t.Errorf("Reached(%d) = %v, want %v", tt.used, got, tt.want)
			}
		})
	}
}

func TestLimit_Remaining(t *testing.T) {
	tests := []struct {
		name  string
		limit Limit
		used  int
		want  int
	}{
		{"fresh", Limited(5), 0, 5},
		{"partially used", Limited(5), 3, 2},
		{"exhausted", Limited(5), 5, 0},
		{"never negative when over", Limited(5), 9, 0},
		{"unlimited reports sentinel", Unlimited(), 123, UnlimitedSentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limit.Remaining(tt.used); got != tt.want {
				t.Errorf("Remaining(%d) = %d, want %d", tt.used, got, tt.want)
			}
		})
	}
}
