// Package limits defines the static tier quota table and the entitlement
// resolver that applies per-user overrides on top of it.
package limits

// UnlimitedSentinel is the persisted representation of "no maximum". It is
// never used in arithmetic directly; callers go through the Limit type.
const UnlimitedSentinel = -1

// Limit is a daily quota for one action type. It is a tagged value rather
// than a bare int so that "unlimited" never leaks into subtraction or
// comparison with a real count.
type Limit struct {
	n int
}

// Limited returns a bounded limit of n per day
func Limited(n int) Limit {
	return Limit{n: n}
}

// Unlimited returns the limit that is never reached
func Unlimited() Limit {
	return Limit{n: UnlimitedSentinel}
}

// FromValue converts a persisted limit value into a Limit. Any negative
// value is treated as unlimited.
func FromValue(n int) Limit {
	if n < 0 {
		return Unlimited()
	}
	return Limited(n)
}

// IsUnlimited reports whether the limit can never be reached
func (l Limit) IsUnlimited() bool {
	return l.n < 0
}

// Value returns the persisted form of the limit: the bound, or -1 for
// unlimited.
func (l Limit) Value() int {
	if l.n < 0 {
		return UnlimitedSentinel
	}
	return l.n
}

// Reached reports whether used has consumed the whole limit. Unlimited is
// never reached, whatever the count.
func (l Limit) Reached(used int) bool {
	if l.IsUnlimited() {
		return false
	}
	return used >= l.n
}

// Remaining returns how many units are left at the given usage, or -1 for
// unlimited. Never negative for a bounded limit.
func (l Limit) Remaining(used int) int {
	if l.IsUnlimited() {
		return UnlimitedSentinel
	}
	if used >= l.n {
		return 0
	}
	return l.n - used
}
