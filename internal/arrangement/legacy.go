package arrangement

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// MigrateLegacy rewrites older stored shapes into the canonical payload:
//
//   - settlementPaymentCount: 3   -> paymentCounts: [3]
//   - payoffPercentage: 60        -> payoffPercentageBasisPoints: 6000
//
// Canonical fields win when both are present. It reports whether anything changed.
func MigrateLegacy(p *domain.PlanPayload) bool {
	changed := false

	if c := p.LegacySettlementPaymentCount; c != nil {
		if len(p.PaymentCounts) == 0 && *c > 0 {
			p.PaymentCounts = []int{*c}
		}
		p.LegacySettlementPaymentCount = nil
		changed = true
	}

	if pct := p.LegacyPayoffPercentage; pct != nil {
		if p.PayoffPercentageBasisPoints == nil {
			bp := legacyBasisPoints(*pct)
			p.PayoffPercentageBasisPoints = &bp
		}
		p.LegacyPayoffPercentage = nil
		changed = true
	}

	return changed
}

// legacyBasisPoints converts a whole-percent value. Values that cannot be a
// payoff share map to 0, which the plan rebuild rejects as corrupt.
func legacyBasisPoints(pct float64) int {
	if math.IsNaN(pct) || pct <= 0 || pct > domain.MaxBasisPoints/100 {
		return 0
	}
	return int(decimal.NewFromFloat(pct).Shift(2).Round(0).IntPart())
}

// DecodeStored migrates a stored payload if needed and rebuilds the plan.
func DecodeStored(p domain.PlanPayload, tenantID string) (domain.StoredPlan, error) {
	MigrateLegacy(&p)
	return p.ToStoredPlan(tenantID)
}
