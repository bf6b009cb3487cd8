package domain

import "fmt"

// ============================================================
// Balance tiers
// ============================================================

// BalanceTier is a coarse bucket of outstanding debt used to scope which
// plans an account is eligible for.
type BalanceTier string

const (
	TierUnder3000   BalanceTier = "under_3000"
	Tier3000To5000  BalanceTier = "3000_to_5000"
	Tier5000To10000 BalanceTier = "5000_to_10000"
	TierOver10000   BalanceTier = "over_10000"
)

// Tier boundaries in cents.
const (
	tierBoundary3000  int64 = 300000
	tierBoundary5000  int64 = 500000
	tierBoundary10000 int64 = 1000000
)

// AllBalanceTiers returns the tiers in ascending balance order.
func AllBalanceTiers() []BalanceTier {
	return []BalanceTier{TierUnder3000, Tier3000To5000, Tier5000To10000, TierOver10000}
}

// ParseBalanceTier maps a raw string to a known tier.
func ParseBalanceTier(s string) (BalanceTier, bool) {
	switch t := BalanceTier(s); t {
	case TierUnder3000, Tier3000To5000, Tier5000To10000, TierOver10000:
		return t, true
	default:
		return "", false
	}
}

// RangeForTier returns the half-open balance range [minCents, maxCents) covered
// by a tier. bounded is false for the top tier, whose range has no upper limit.
func RangeForTier(tier BalanceTier) (minCents, maxCents int64, bounded bool) {
	switch tier {
	case TierUnder3000:
		return 0, tierBoundary3000, true
	case Tier3000To5000:
		return tierBoundary3000, tierBoundary5000, true
	case Tier5000To10000:
		return tierBoundary5000, tierBoundary10000, true
	case TierOver10000:
		return tierBoundary10000, 0, false
	default:
		panic(fmt.Sprintf("domain: unknown balance tier %q", string(tier)))
	}
}

// Contains reports whether a balance in cents falls inside the tier.
func (t BalanceTier) Contains(balanceCents int64) bool {
	lo, hi, bounded := RangeForTier(t)
	if balanceCents < lo {
		return false
	}
	return !bounded || balanceCents < hi
}

// TierForBalance returns the tier a non-negative balance belongs to.
// Negative balances are treated as zero.
func TierForBalance(balanceCents int64) BalanceTier {
	for _, t := range AllBalanceTiers() {
		if t.Contains(balanceCents) {
			return t
		}
	}
	return TierUnder3000
}
