package arrangement

import (
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

func requireRejection(t *testing.T, err error, field string, reason domain.RejectionReason) {
	t.Helper()
	var verr *domain.ErrValidation
	require.True(t, errors.As(err, &verr), "expected *domain.ErrValidation, got %v", err)
	assert.Equal(t, field, verr.Field)
	assert.Equal(t, reason, verr.Reason)
}

func settlementForm() PlanForm {
	return PlanForm{
		Name:                       "Short Settlement",
		BalanceTier:                "3000_to_5000",
		PlanType:                   "settlement",
		PayoffPercentage:           "60",
		SettlementPaymentCounts:    "1,3,6",
		SettlementPaymentFrequency: "monthly",
	}
}

func TestValidate_CommonFields(t *testing.T) {
	f := settlementForm()
	f.Name = "   "
	_, err := ValidateForm(f)
	requireRejection(t, err, "name", domain.ReasonMissingField)

	f = settlementForm()
	f.BalanceTier = ""
	_, err = ValidateForm(f)
	requireRejection(t, err, "balanceTier", domain.ReasonMissingField)

	f = settlementForm()
	f.BalanceTier = "over_9000"
	_, err = ValidateForm(f)
	requireRejection(t, err, "balanceTier", domain.ReasonUnknownValue)

	f = settlementForm()
	f.PlanType = "lease"
	_, err = ValidateForm(f)
	requireRejection(t, err, "planType", domain.ReasonUnknownValue)
}

func TestValidate_UnknownPlanTypePanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Validate(domain.PlanType("lease"), settlementForm())
	})
}

func TestValidate_Range(t *testing.T) {
	base := PlanForm{Name: "Flexible", BalanceTier: "under_3000", PlanType: "range"}

	plan, err := ValidateForm(base)
	require.NoError(t, err)
	terms := plan.Terms.(domain.RangeTerms)
	assert.Nil(t, terms.MonthlyPaymentMinCents, "an absent minimum stays absent")
	assert.Nil(t, terms.MonthlyPaymentMaxCents)

	f := base
	f.MonthlyPaymentMin, f.MonthlyPaymentMax, f.MaxTerm = "50", "150.50", "24"
	plan, err = ValidateForm(f)
	require.NoError(t, err)
	terms = plan.Terms.(domain.RangeTerms)
	assert.Equal(t, int64(5000), *terms.MonthlyPaymentMinCents)
	assert.Equal(t, int64(15050), *terms.MonthlyPaymentMaxCents)
	assert.Equal(t, 24, *terms.MaxTermMonths)

	f = base
	f.MonthlyPaymentMin, f.MonthlyPaymentMax = "100", "50"
	_, err = ValidateForm(f)
	requireRejection(t, err, "monthlyPaymentMax", domain.ReasonInvalidRange)

	f = base
	f.MonthlyPaymentMin = "-1"
	_, err = ValidateForm(f)
	requireRejection(t, err, "monthlyPaymentMin", domain.ReasonOutOfRange)

	f = base
	f.MonthlyPaymentMax = "lots"
	_, err = ValidateForm(f)
	requireRejection(t, err, "monthlyPaymentMax", domain.ReasonMalformed)

	f = base
	f.MaxTerm = "0"
	_, err = ValidateForm(f)
	requireRejection(t, err, "maxTerm", domain.ReasonOutOfRange)
}

func TestValidate_FixedMonthly(t *testing.T) {
	base := PlanForm{Name: "Fixed", BalanceTier: "5000_to_10000", PlanType: "fixed_monthly"}

	_, err := ValidateForm(base)
	requireRejection(t, err, "fixedMonthlyPayment", domain.ReasonMissingField)

	f := base
	f.FixedMonthlyPayment = "0"
	_, err = ValidateForm(f)
	requireRejection(t, err, "fixedMonthlyPayment", domain.ReasonOutOfRange)

	f = base
	f.FixedMonthlyPayment, f.MaxTerm = "150", UntilPaid
	plan, err := ValidateForm(f)
	require.NoError(t, err)
	terms := plan.Terms.(domain.FixedMonthlyTerms)
	assert.Equal(t, int64(15000), terms.FixedMonthlyPaymentCents)
	assert.Nil(t, terms.MaxTermMonths)

	f.MaxTerm = "-3"
	_, err = ValidateForm(f)
	requireRejection(t, err, "maxTerm", domain.ReasonOutOfRange)
}

func TestValidate_Settlement(t *testing.T) {
	plan, err := ValidateForm(settlementForm())
	require.NoError(t, err)
	terms := plan.Terms.(domain.SettlementTerms)
	assert.Equal(t, 6000, terms.PayoffPercentageBasisPoints)
	assert.Equal(t, []int{1, 3, 6}, terms.PaymentCounts)
	assert.Equal(t, domain.FrequencyMonthly, terms.PaymentFrequency)
	assert.Nil(t, terms.OfferExpiresDate)

	f := settlementForm()
	f.PayoffPercentage = "100.01"
	_, err = ValidateForm(f)
	requireRejection(t, err, "payoffPercentage", domain.ReasonOutOfRange)

	f = settlementForm()
	f.PayoffPercentage = "0"
	_, err = ValidateForm(f)
	requireRejection(t, err, "payoffPercentage", domain.ReasonOutOfRange)

	f = settlementForm()
	f.SettlementPaymentCounts = " , 0, -2"
	_, err = ValidateForm(f)
	requireRejection(t, err, "settlementPaymentCounts", domain.ReasonMissingField)

	f = settlementForm()
	f.SettlementPaymentFrequency = "daily"
	_, err = ValidateForm(f)
	requireRejection(t, err, "settlementPaymentFrequency", domain.ReasonUnknownValue)

	f = settlementForm()
	f.OfferExpiresDate = "2024-02-30"
	_, err = ValidateForm(f)
	requireRejection(t, err, "offerExpiresDate", domain.ReasonMalformed)

	f = settlementForm()
	f.OfferExpiresDate = "2001-01-01"
	plan, err = ValidateForm(f)
	require.NoError(t, err, "past expiration dates are accepted")
	assert.Equal(t, civil.Date{Year: 2001, Month: 1, Day: 1}, *plan.Terms.(domain.SettlementTerms).OfferExpiresDate)
}

func TestValidate_CustomTerms(t *testing.T) {
	f := PlanForm{Name: "Custom", BalanceTier: "over_10000", PlanType: "custom_terms", CustomTermsText: "  \n "}
	_, err := ValidateForm(f)
	requireRejection(t, err, "customTermsText", domain.ReasonMissingField)

	f.CustomTermsText = " Call us to discuss. "
	plan, err := ValidateForm(f)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomTerms{Text: "Call us to discuss."}, plan.Terms)
}

func TestValidate_OneTimePayment(t *testing.T) {
	f := PlanForm{Name: "One shot", BalanceTier: "under_3000", PlanType: "one_time_payment", MinimumPayment: "-5"}
	_, err := ValidateForm(f)
	requireRejection(t, err, "minimumPayment", domain.ReasonOutOfRange)

	f.MinimumPayment = "250"
	plan, err := ValidateForm(f)
	require.NoError(t, err)
	assert.Equal(t, domain.OneTimePaymentTerms{MinimumPaymentCents: 25000}, plan.Terms)
}

func TestValidate_PayInFull(t *testing.T) {
	f := PlanForm{Name: "PIF", BalanceTier: "over_10000", PlanType: "pay_in_full", PayoffPercentage: "80"}
	_, err := ValidateForm(f)
	requireRejection(t, err, "dueDate", domain.ReasonMissingField)

	f.DueDate = "2026-13-01"
	_, err = ValidateForm(f)
	requireRejection(t, err, "dueDate", domain.ReasonMalformed)

	f.DueDate = "2026-03-01"
	plan, err := ValidateForm(f)
	require.NoError(t, err)
	terms := plan.Terms.(domain.PayInFullTerms)
	assert.Equal(t, 8000, terms.PayoffPercentageBasisPoints)
	assert.Equal(t, civil.Date{Year: 2026, Month: 3, Day: 1}, terms.DueDate)

	f.PayoffPercentage = ""
	_, err = ValidateForm(f)
	requireRejection(t, err, "payoffPercentage", domain.ReasonMissingField)
}

func TestValidate_EndToEndSettlement(t *testing.T) {
	f := PlanForm{
		Name:                       "Short Settlement",
		BalanceTier:                "3000_to_5000",
		PlanType:                   "settlement",
		PayoffPercentage:           "60",
		SettlementPaymentCounts:    "1,3",
		SettlementPaymentFrequency: "monthly",
	}

	plan, err := ValidateForm(f)
	require.NoError(t, err)

	payload := domain.PayloadFromPlan(plan)
	require.NotNil(t, payload.PayoffPercentageBasisPoints)
	assert.Equal(t, 6000, *payload.PayoffPercentageBasisPoints)
	assert.Equal(t, int64(300000), payload.MinBalance)
	require.NotNil(t, payload.MaxBalance)
	assert.Equal(t, int64(500000), *payload.MaxBalance)

	s := Summarize(plan)
	assert.Contains(t, s.Headline, "60%")
	assert.Contains(t, s.Headline, "1 or 3 payments")
	require.NotNil(t, s.Detail)
	assert.Contains(t, *s.Detail, "monthly")
}

func TestValidateForm_LengthLimits(t *testing.T) {
	f := settlementForm()
	f.Name = strings.Repeat("n", 201)
	_, err := ValidateForm(f)
	requireRejection(t, err, "name", domain.ReasonOutOfRange)

	f = settlementForm()
	f.TermsText = strings.Repeat("t", 10001)
	_, err = ValidateForm(f)
	requireRejection(t, err, "termsText", domain.ReasonOutOfRange)
}
