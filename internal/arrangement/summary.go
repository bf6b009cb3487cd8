package arrangement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// Summarize renders the headline and optional detail line for a valid plan.
// The output depends only on the plan, never on the current time.
func Summarize(p domain.Plan) domain.Summary {
	switch t := p.Terms.(type) {
	case domain.RangeTerms:
		return domain.Summary{Headline: rangeHeadline(t)}
	case domain.FixedMonthlyTerms:
		head := fmt.Sprintf("Pay %s/month", formatCents(t.FixedMonthlyPaymentCents))
		if t.MaxTermMonths == nil {
			head += " until paid in full"
		} else {
			head += " for " + pluralize(*t.MaxTermMonths, "month")
		}
		return domain.Summary{Headline: head}
	case domain.SettlementTerms:
		head := fmt.Sprintf("Settle for %s of your balance in %s",
			formatBasisPoints(t.PayoffPercentageBasisPoints), joinCounts(t.PaymentCounts))
		detail := fmt.Sprintf("Payments are made %s.", frequencyPhrase(t.PaymentFrequency))
		if t.OfferExpiresDate != nil {
			detail += " Offer expires " + formatDate(*t.OfferExpiresDate) + "."
		}
		return domain.Summary{Headline: head, Detail: &detail}
	case domain.CustomTerms:
		text := t.Text
		return domain.Summary{Headline: "Custom terms", Detail: &text}
	case domain.OneTimePaymentTerms:
		return domain.Summary{Headline: "One-time payment of at least " + formatCents(t.MinimumPaymentCents)}
	case domain.PayInFullTerms:
		s := domain.Summary{Headline: fmt.Sprintf("Pay %s of your balance by %s",
			formatBasisPoints(t.PayoffPercentageBasisPoints), formatDate(t.DueDate))}
		if t.TermsText != "" {
			text := t.TermsText
			s.Detail = &text
		}
		return s
	default:
		panic(fmt.Sprintf("arrangement: cannot summarize terms %T", p.Terms))
	}
}

func rangeHeadline(t domain.RangeTerms) string {
	var head string
	switch minC, maxC := t.MonthlyPaymentMinCents, t.MonthlyPaymentMaxCents; {
	case minC != nil && maxC != nil && *minC == *maxC:
		head = fmt.Sprintf("Pay %s/month", formatCents(*minC))
	case minC != nil && maxC != nil:
		head = fmt.Sprintf("Pay %s–%s/month", formatCents(*minC), formatCents(*maxC))
	case minC != nil:
		head = fmt.Sprintf("Pay as low as %s/month", formatCents(*minC))
	case maxC != nil:
		head = fmt.Sprintf("Pay up to %s/month", formatCents(*maxC))
	default:
		head = "Flexible monthly payments"
	}
	if t.MaxTermMonths == nil {
		return head + " until paid in full"
	}
	return head + " for up to " + pluralize(*t.MaxTermMonths, "month")
}

// ApplyTenantDefaults fills values a plan defers to tenant settings. Today that
// is only the minimum of a range plan stored without one.
func ApplyTenantDefaults(p domain.Plan, s domain.ArrangementSettings) domain.Plan {
	if t, ok := p.Terms.(domain.RangeTerms); ok && t.MonthlyPaymentMinCents == nil {
		def := s.DefaultMonthlyPaymentMinCents
		if t.MonthlyPaymentMaxCents != nil && def > *t.MonthlyPaymentMaxCents {
			def = *t.MonthlyPaymentMaxCents
		}
		t.MonthlyPaymentMinCents = &def
		p.Terms = t
	}
	return p
}

// ============================================================
// Formatting
// ============================================================

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	dollars := message.NewPrinter(language.AmericanEnglish).Sprintf("%d", cents/100)
	return fmt.Sprintf("%s$%s.%02d", sign, dollars, cents%100)
}

func formatBasisPoints(bp int) string {
	whole, frac := bp/100, bp%100
	if frac == 0 {
		return strconv.Itoa(whole) + "%"
	}
	s := fmt.Sprintf("%d.%02d", whole, frac)
	return strings.TrimRight(s, "0") + "%"
}

func formatDate(d civil.Date) string {
	return d.In(time.UTC).Format("January 2, 2006")
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

func joinCounts(counts []int) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = strconv.Itoa(c)
	}
	noun := "payments"
	if len(counts) == 1 && counts[0] == 1 {
		noun = "payment"
	}
	switch len(parts) {
	case 1:
		return parts[0] + " " + noun
	case 2:
		return parts[0] + " or " + parts[1] + " " + noun
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1] + " " + noun
	}
}

func frequencyPhrase(f domain.PaymentFrequency) string {
	switch f {
	case domain.FrequencyWeekly:
		return "weekly"
	case domain.FrequencyBiweekly:
		return "every two weeks"
	default:
		return "monthly"
	}
}
