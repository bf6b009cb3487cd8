package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// ============================================================
// Arrangement plans
// ============================================================

// PlanType discriminates the plan variants.
type PlanType string

const (
	PlanTypeRange          PlanType = "range"
	PlanTypeFixedMonthly   PlanType = "fixed_monthly"
	PlanTypeSettlement     PlanType = "settlement"
	PlanTypeCustomTerms    PlanType = "custom_terms"
	PlanTypeOneTimePayment PlanType = "one_time_payment"
	PlanTypePayInFull      PlanType = "pay_in_full"
)

// AllPlanTypes lists every plan variant.
func AllPlanTypes() []PlanType {
	return []PlanType{
		PlanTypeRange,
		PlanTypeFixedMonthly,
		PlanTypeSettlement,
		PlanTypeCustomTerms,
		PlanTypeOneTimePayment,
		PlanTypePayInFull,
	}
}

// ParsePlanType maps a raw discriminant to a known plan type.
func ParsePlanType(s string) (PlanType, bool) {
	for _, t := range AllPlanTypes() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// PaymentFrequency is the cadence of settlement payments.
type PaymentFrequency string

const (
	FrequencyWeekly   PaymentFrequency = "weekly"
	FrequencyBiweekly PaymentFrequency = "biweekly"
	FrequencyMonthly  PaymentFrequency = "monthly"
)

// ParsePaymentFrequency maps a raw string to a known frequency.
func ParsePaymentFrequency(s string) (PaymentFrequency, bool) {
	switch f := PaymentFrequency(s); f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return f, true
	default:
		return "", false
	}
}

// MaxBasisPoints is 100.00%.
const MaxBasisPoints = 10000

// ValidBasisPoints reports whether bp is a payoff share in (0%, 100%].
func ValidBasisPoints(bp int) bool {
	return bp > 0 && bp <= MaxBasisPoints
}

// Terms is the variant-specific payload of a plan. The set of implementations
// is closed: only the types in this file satisfy it.
type Terms interface {
	PlanType() PlanType
	isTerms()
}

// RangeTerms lets the consumer pick a monthly amount inside a window.
// A nil minimum means the tenant-wide default applies when the plan is offered.
type RangeTerms struct {
	MonthlyPaymentMinCents *int64
	MonthlyPaymentMaxCents *int64
	MaxTermMonths          *int
}

// FixedMonthlyTerms is a fixed monthly amount. A nil MaxTermMonths runs until paid.
type FixedMonthlyTerms struct {
	FixedMonthlyPaymentCents int64
	MaxTermMonths            *int
}

// SettlementTerms settles the balance for a percentage over a chosen number of payments.
type SettlementTerms struct {
	PayoffPercentageBasisPoints int
	PaymentCounts               []int
	PaymentFrequency            PaymentFrequency
	OfferExpiresDate            *civil.Date
	TermsText                   string
}

// CustomTerms carries free-form terms written by the agency.
type CustomTerms struct {
	Text string
}

// OneTimePaymentTerms accepts a single payment of at least the minimum.
type OneTimePaymentTerms struct {
	MinimumPaymentCents int64
}

// PayInFullTerms settles for a percentage paid in one installment by a due date.
type PayInFullTerms struct {
	PayoffPercentageBasisPoints int
	DueDate                     civil.Date
	TermsText                   string
}

func (RangeTerms) PlanType() PlanType          { return PlanTypeRange }
func (FixedMonthlyTerms) PlanType() PlanType   { return PlanTypeFixedMonthly }
func (SettlementTerms) PlanType() PlanType     { return PlanTypeSettlement }
func (CustomTerms) PlanType() PlanType         { return PlanTypeCustomTerms }
func (OneTimePaymentTerms) PlanType() PlanType { return PlanTypeOneTimePayment }
func (PayInFullTerms) PlanType() PlanType      { return PlanTypePayInFull }

func (RangeTerms) isTerms()          {}
func (FixedMonthlyTerms) isTerms()   {}
func (SettlementTerms) isTerms()     {}
func (CustomTerms) isTerms()         {}
func (OneTimePaymentTerms) isTerms() {}
func (PayInFullTerms) isTerms()      {}

// Plan is a validated arrangement plan. Build one through arrangement.Validate;
// a Plan with nil Terms is never valid.
type Plan struct {
	Name        string
	Description string
	BalanceTier BalanceTier
	Terms       Terms
}

// Type returns the plan's discriminant.
func (p Plan) Type() PlanType {
	return p.Terms.PlanType()
}

// StoredPlan is a plan as returned by a store.
type StoredPlan struct {
	Plan
	ID        string
	TenantID  string
	CreatedAt time.Time
}

// Summary is the consumer-facing text derived from a plan.
type Summary struct {
	Headline string  `json:"headline"`
	Detail   *string `json:"detail"`
}
