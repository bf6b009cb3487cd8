package domain

import (
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ============================================================
// Plan wire payload (create request / stored response)
// ============================================================

// PlanPayload is the flat JSON shape exchanged with the persistence layer and
// API clients. minBalance/maxBalance are always derived from the balance tier;
// maxBalance is null for the top tier.
//
// For range plans an absent monthlyPaymentMinCents is meaningful: the tenant's
// default minimum applies when the plan is offered.
type PlanPayload struct {
	ID          string      `json:"id,omitempty"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	BalanceTier BalanceTier `json:"balanceTier"`
	MinBalance  int64       `json:"minBalance"`
	MaxBalance  *int64      `json:"maxBalance"`
	PlanType    PlanType    `json:"planType"`

	MonthlyPaymentMinCents      *int64           `json:"monthlyPaymentMinCents,omitempty"`
	MonthlyPaymentMaxCents      *int64           `json:"monthlyPaymentMaxCents,omitempty"`
	MaxTermMonths               *int             `json:"maxTermMonths,omitempty"`
	FixedMonthlyPaymentCents    *int64           `json:"fixedMonthlyPaymentCents,omitempty"`
	PayoffPercentageBasisPoints *int             `json:"payoffPercentageBasisPoints,omitempty"`
	PaymentCounts               []int            `json:"paymentCounts,omitempty"`
	PaymentFrequency            PaymentFrequency `json:"paymentFrequency,omitempty"`
	OfferExpiresDate            *civil.Date      `json:"offerExpiresDate,omitempty"`
	TermsText                   string           `json:"termsText,omitempty"`
	CustomTermsText             string           `json:"customTermsText,omitempty"`
	MinimumPaymentCents         *int64           `json:"minimumPaymentCents,omitempty"`
	DueDate                     *civil.Date      `json:"dueDate,omitempty"`

	// Older records carried a single settlement payment count and a whole
	// percentage. They are read, never written.
	LegacySettlementPaymentCount *int     `json:"settlementPaymentCount,omitempty"`
	LegacyPayoffPercentage       *float64 `json:"payoffPercentage,omitempty"`
}

// PayloadFromPlan flattens a plan into its wire shape.
func PayloadFromPlan(p Plan) PlanPayload {
	minBalance, maxBalance, bounded := RangeForTier(p.BalanceTier)
	out := PlanPayload{
		Name:        p.Name,
		Description: p.Description,
		BalanceTier: p.BalanceTier,
		MinBalance:  minBalance,
		PlanType:    p.Type(),
	}
	if bounded {
		out.MaxBalance = &maxBalance
	}

	switch t := p.Terms.(type) {
	case RangeTerms:
		out.MonthlyPaymentMinCents = t.MonthlyPaymentMinCents
		out.MonthlyPaymentMaxCents = t.MonthlyPaymentMaxCents
		out.MaxTermMonths = t.MaxTermMonths
	case FixedMonthlyTerms:
		out.FixedMonthlyPaymentCents = &t.FixedMonthlyPaymentCents
		out.MaxTermMonths = t.MaxTermMonths
	case SettlementTerms:
		out.PayoffPercentageBasisPoints = &t.PayoffPercentageBasisPoints
		out.PaymentCounts = slices.Clone(t.PaymentCounts)
		out.PaymentFrequency = t.PaymentFrequency
		out.OfferExpiresDate = t.OfferExpiresDate
		out.TermsText = t.TermsText
	case CustomTerms:
		out.CustomTermsText = t.Text
	case OneTimePaymentTerms:
		out.MinimumPaymentCents = &t.MinimumPaymentCents
	case PayInFullTerms:
		out.PayoffPercentageBasisPoints = &t.PayoffPercentageBasisPoints
		out.DueDate = &t.DueDate
		out.TermsText = t.TermsText
	default:
		panic("domain: unhandled plan terms")
	}
	return out
}

// PayloadFromStored flattens a stored plan, including its identity.
func PayloadFromStored(sp StoredPlan) PlanPayload {
	out := PayloadFromPlan(sp.Plan)
	out.ID = sp.ID
	createdAt := sp.CreatedAt
	out.CreatedAt = &createdAt
	return out
}

// ToPlan rebuilds a plan from a canonical payload. Missing variant fields and
// values that break a plan invariant yield ErrCorruptRecord; legacy payloads
// must be migrated first.
func (p PlanPayload) ToPlan() (Plan, error) {
	tier, ok := ParseBalanceTier(string(p.BalanceTier))
	if !ok {
		return Plan{}, &ErrCorruptRecord{ID: p.ID, Reason: "unknown balance tier " + string(p.BalanceTier)}
	}
	plan := Plan{Name: p.Name, Description: p.Description, BalanceTier: tier}

	missing := func(field string) (Plan, error) {
		return Plan{}, &ErrCorruptRecord{ID: p.ID, Reason: "missing " + field}
	}

	switch p.PlanType {
	case PlanTypeRange:
		plan.Terms = RangeTerms{
			MonthlyPaymentMinCents: p.MonthlyPaymentMinCents,
			MonthlyPaymentMaxCents: p.MonthlyPaymentMaxCents,
			MaxTermMonths:          p.MaxTermMonths,
		}
	case PlanTypeFixedMonthly:
		if p.FixedMonthlyPaymentCents == nil {
			return missing("fixedMonthlyPaymentCents")
		}
		plan.Terms = FixedMonthlyTerms{
			FixedMonthlyPaymentCents: *p.FixedMonthlyPaymentCents,
			MaxTermMonths:            p.MaxTermMonths,
		}
	case PlanTypeSettlement:
		if p.PayoffPercentageBasisPoints == nil {
			return missing("payoffPercentageBasisPoints")
		}
		if len(p.PaymentCounts) == 0 {
			return missing("paymentCounts")
		}
		freq, ok := ParsePaymentFrequency(string(p.PaymentFrequency))
		if !ok {
			return missing("paymentFrequency")
		}
		plan.Terms = SettlementTerms{
			PayoffPercentageBasisPoints: *p.PayoffPercentageBasisPoints,
			PaymentCounts:               slices.Clone(p.PaymentCounts),
			PaymentFrequency:            freq,
			OfferExpiresDate:            p.OfferExpiresDate,
			TermsText:                   p.TermsText,
		}
	case PlanTypeCustomTerms:
		if p.CustomTermsText == "" {
			return missing("customTermsText")
		}
		plan.Terms = CustomTerms{Text: p.CustomTermsText}
	case PlanTypeOneTimePayment:
		if p.MinimumPaymentCents == nil {
			return missing("minimumPaymentCents")
		}
		plan.Terms = OneTimePaymentTerms{MinimumPaymentCents: *p.MinimumPaymentCents}
	case PlanTypePayInFull:
		if p.PayoffPercentageBasisPoints == nil {
			return missing("payoffPercentageBasisPoints")
		}
		if p.DueDate == nil {
			return missing("dueDate")
		}
		plan.Terms = PayInFullTerms{
			PayoffPercentageBasisPoints: *p.PayoffPercentageBasisPoints,
			DueDate:                     *p.DueDate,
			TermsText:                   p.TermsText,
		}
	default:
		return Plan{}, &ErrCorruptRecord{ID: p.ID, Reason: "unknown plan type " + string(p.PlanType)}
	}
	if reason := violation(plan); reason != "" {
		return Plan{}, &ErrCorruptRecord{ID: p.ID, Reason: reason}
	}
	return plan, nil
}

// violation returns the first invariant a rebuilt plan breaks, or "".
func violation(p Plan) string {
	if strings.TrimSpace(p.Name) == "" {
		return "empty name"
	}
	switch t := p.Terms.(type) {
	case RangeTerms:
		minC, maxC := t.MonthlyPaymentMinCents, t.MonthlyPaymentMaxCents
		if (minC != nil && *minC < 0) || (maxC != nil && *maxC < 0) {
			return "negative monthly payment"
		}
		if minC != nil && maxC != nil && *minC > *maxC {
			return "monthly minimum exceeds maximum"
		}
		return termViolation(t.MaxTermMonths)
	case FixedMonthlyTerms:
		if t.FixedMonthlyPaymentCents <= 0 {
			return "fixed monthly payment must be positive"
		}
		return termViolation(t.MaxTermMonths)
	case SettlementTerms:
		if !ValidBasisPoints(t.PayoffPercentageBasisPoints) {
			return "payoff percentage out of range"
		}
		for _, c := range t.PaymentCounts {
			if c <= 0 {
				return "payment counts must be positive"
			}
		}
		if t.OfferExpiresDate != nil && !t.OfferExpiresDate.IsValid() {
			return "invalid offer expiration date"
		}
	case CustomTerms:
		if strings.TrimSpace(t.Text) == "" {
			return "empty custom terms text"
		}
	case OneTimePaymentTerms:
		if t.MinimumPaymentCents <= 0 {
			return "minimum payment must be positive"
		}
	case PayInFullTerms:
		if !ValidBasisPoints(t.PayoffPercentageBasisPoints) {
			return "payoff percentage out of range"
		}
		if !t.DueDate.IsValid() {
			return "invalid due date"
		}
	}
	return ""
}

func termViolation(months *int) string {
	if months != nil && *months <= 0 {
		return "max term must be at least one month"
	}
	return ""
}

// ToStoredPlan rebuilds a stored plan owned by tenantID.
func (p PlanPayload) ToStoredPlan(tenantID string) (StoredPlan, error) {
	plan, err := p.ToPlan()
	if err != nil {
		return StoredPlan{}, err
	}
	sp := StoredPlan{Plan: plan, ID: p.ID, TenantID: tenantID}
	if p.CreatedAt != nil {
		sp.CreatedAt = *p.CreatedAt
	}
	return sp, nil
}
