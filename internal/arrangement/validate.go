package arrangement

import (
	"fmt"
	"strings"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// Validate checks a form against the rules of planType and builds the plan.
// Business-rule failures come back as *domain.ErrValidation; the function
// never panics on user input. Passing a PlanType outside domain.AllPlanTypes
// is a programming error and panics.
func Validate(planType domain.PlanType, f PlanForm) (domain.Plan, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return domain.Plan{}, reject("name", domain.ReasonMissingField, "plan name is required")
	}

	rawTier := strings.TrimSpace(f.BalanceTier)
	if rawTier == "" {
		return domain.Plan{}, reject("balanceTier", domain.ReasonMissingField, "balance tier is required")
	}
	tier, ok := domain.ParseBalanceTier(rawTier)
	if !ok {
		return domain.Plan{}, reject("balanceTier", domain.ReasonUnknownValue, "unknown balance tier "+rawTier)
	}

	terms, err := validateTerms(planType, f)
	if err != nil {
		return domain.Plan{}, err
	}

	return domain.Plan{
		Name:        name,
		Description: strings.TrimSpace(f.Description),
		BalanceTier: tier,
		Terms:       terms,
	}, nil
}

func validateTerms(planType domain.PlanType, f PlanForm) (domain.Terms, error) {
	switch planType {
	case domain.PlanTypeRange:
		return validateRange(f)
	case domain.PlanTypeFixedMonthly:
		return validateFixedMonthly(f)
	case domain.PlanTypeSettlement:
		return validateSettlement(f)
	case domain.PlanTypeCustomTerms:
		return validateCustomTerms(f)
	case domain.PlanTypeOneTimePayment:
		return validateOneTimePayment(f)
	case domain.PlanTypePayInFull:
		return validatePayInFull(f)
	default:
		panic(fmt.Sprintf("arrangement: unhandled plan type %q", string(planType)))
	}
}

func validateRange(f PlanForm) (domain.Terms, error) {
	minCents, err := optionalCents("monthlyPaymentMin", f.MonthlyPaymentMin)
	if err != nil {
		return nil, err
	}
	maxCents, err := optionalCents("monthlyPaymentMax", f.MonthlyPaymentMax)
	if err != nil {
		return nil, err
	}
	if minCents != nil && *minCents < 0 {
		return nil, reject("monthlyPaymentMin", domain.ReasonOutOfRange, "minimum monthly payment cannot be negative")
	}
	if maxCents != nil && *maxCents < 0 {
		return nil, reject("monthlyPaymentMax", domain.ReasonOutOfRange, "maximum monthly payment cannot be negative")
	}
	if minCents != nil && maxCents != nil && *minCents > *maxCents {
		return nil, reject("monthlyPaymentMax", domain.ReasonInvalidRange, "minimum monthly payment cannot exceed the maximum")
	}
	term, err := maxTerm(f.MaxTerm)
	if err != nil {
		return nil, err
	}
	return domain.RangeTerms{
		MonthlyPaymentMinCents: minCents,
		MonthlyPaymentMaxCents: maxCents,
		MaxTermMonths:          term,
	}, nil
}

func validateFixedMonthly(f PlanForm) (domain.Terms, error) {
	payment, err := positiveCents("fixedMonthlyPayment", f.FixedMonthlyPayment, "fixed monthly payment")
	if err != nil {
		return nil, err
	}
	term, err := maxTerm(f.MaxTerm)
	if err != nil {
		return nil, err
	}
	return domain.FixedMonthlyTerms{FixedMonthlyPaymentCents: payment, MaxTermMonths: term}, nil
}

func validateSettlement(f PlanForm) (domain.Terms, error) {
	bp, err := payoffBasisPoints(f.PayoffPercentage)
	if err != nil {
		return nil, err
	}
	counts := ParsePaymentCounts(f.SettlementPaymentCounts)
	if len(counts) == 0 {
		return nil, reject("settlementPaymentCounts", domain.ReasonMissingField, "at least one payment count is required")
	}
	rawFreq := strings.TrimSpace(f.SettlementPaymentFrequency)
	if rawFreq == "" {
		return nil, reject("settlementPaymentFrequency", domain.ReasonMissingField, "payment frequency is required")
	}
	freq, ok := domain.ParsePaymentFrequency(rawFreq)
	if !ok {
		return nil, reject("settlementPaymentFrequency", domain.ReasonUnknownValue, "payment frequency must be weekly, biweekly or monthly")
	}

	terms := domain.SettlementTerms{
		PayoffPercentageBasisPoints: bp,
		PaymentCounts:               counts,
		PaymentFrequency:            freq,
		TermsText:                   strings.TrimSpace(f.TermsText),
	}
	// Past expiration dates are accepted; an offer may be stored already expired.
	if raw := strings.TrimSpace(f.OfferExpiresDate); raw != "" {
		d, ok := ParseDate(raw)
		if !ok {
			return nil, reject("offerExpiresDate", domain.ReasonMalformed, "offer expiration must be a valid YYYY-MM-DD date")
		}
		terms.OfferExpiresDate = &d
	}
	return terms, nil
}

func validateCustomTerms(f PlanForm) (domain.Terms, error) {
	text := strings.TrimSpace(f.CustomTermsText)
	if text == "" {
		return nil, reject("customTermsText", domain.ReasonMissingField, "custom terms text is required")
	}
	return domain.CustomTerms{Text: text}, nil
}

func validateOneTimePayment(f PlanForm) (domain.Terms, error) {
	minimum, err := positiveCents("minimumPayment", f.MinimumPayment, "minimum payment")
	if err != nil {
		return nil, err
	}
	return domain.OneTimePaymentTerms{MinimumPaymentCents: minimum}, nil
}

func validatePayInFull(f PlanForm) (domain.Terms, error) {
	bp, err := payoffBasisPoints(f.PayoffPercentage)
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(f.DueDate)
	if raw == "" {
		return nil, reject("dueDate", domain.ReasonMissingField, "due date is required")
	}
	due, ok := ParseDate(raw)
	if !ok {
		return nil, reject("dueDate", domain.ReasonMalformed, "due date must be a valid YYYY-MM-DD date")
	}
	return domain.PayInFullTerms{
		PayoffPercentageBasisPoints: bp,
		DueDate:                     due,
		TermsText:                   strings.TrimSpace(f.TermsText),
	}, nil
}

// ============================================================
// Field helpers
// ============================================================

func reject(field string, reason domain.RejectionReason, msg string) error {
	return &domain.ErrValidation{Field: field, Reason: reason, Message: msg}
}

func optionalCents(field, raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	cents, ok := ParseCurrency(raw)
	if !ok {
		return nil, reject(field, domain.ReasonMalformed, "not a valid dollar amount")
	}
	return &cents, nil
}

func positiveCents(field, raw, label string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, reject(field, domain.ReasonMissingField, label+" is required")
	}
	cents, ok := ParseCurrency(raw)
	if !ok {
		return 0, reject(field, domain.ReasonMalformed, "not a valid dollar amount")
	}
	if cents <= 0 {
		return 0, reject(field, domain.ReasonOutOfRange, label+" must be greater than zero")
	}
	return cents, nil
}

func payoffBasisPoints(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, reject("payoffPercentage", domain.ReasonMissingField, "payoff percentage is required")
	}
	bp, ok := ParsePercentage(raw)
	if !ok {
		return 0, reject("payoffPercentage", domain.ReasonMalformed, "not a valid percentage")
	}
	if !domain.ValidBasisPoints(bp) {
		return 0, reject("payoffPercentage", domain.ReasonOutOfRange, "payoff percentage must be greater than 0 and at most 100")
	}
	return bp, nil
}

func maxTerm(raw string) (*int, error) {
	months, ok := ParseMaxTerm(raw)
	if !ok {
		return nil, reject("maxTerm", domain.ReasonMalformed, "max term must be a number of months or until_paid")
	}
	if months != nil && *months <= 0 {
		return nil, reject("maxTerm", domain.ReasonOutOfRange, "max term must be at least one month")
	}
	return months, nil
}
