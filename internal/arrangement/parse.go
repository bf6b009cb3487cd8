// Package arrangement holds the payment arrangement plan rules: parsing of
// user-entered form values, per-variant validation, and the consumer-facing
// summary derived from a plan.
//
// Everything here is pure and synchronous.
package arrangement

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// UntilPaid is the max-term sentinel meaning "no term limit".
const UntilPaid = "until_paid"

var (
	isoDateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	// Plain decimals only; exponent forms are rejected.
	plainDecimalRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)$`)
)

// maxNumericLen bounds the length of numeric input.
const maxNumericLen = 32

// ParseCurrency converts a decimal dollar string into cents. Rounding is done
// on the exact decimal, half away from zero, so "1.005" is 101 cents where a
// float64 computation of 1.005*100 would give 100. Negative amounts parse;
// rejecting them is the validator's job.
func ParseCurrency(s string) (int64, bool) {
	return parseHundredths(s)
}

// ParsePercentage converts a decimal percent string into basis points (60 -> 6000).
func ParsePercentage(s string) (int, bool) {
	bp, ok := parseHundredths(s)
	if !ok || bp > math.MaxInt32 || bp < math.MinInt32 {
		return 0, false
	}
	return int(bp), true
}

func parseHundredths(s string) (int64, bool) {
	d, ok := parsePlainDecimal(s)
	if !ok {
		return 0, false
	}
	scaled := d.Shift(2).Round(0).BigInt()
	if !scaled.IsInt64() {
		return 0, false
	}
	return scaled.Int64(), true
}

// ParseMaxTerm parses a maximum term in months. Empty input and UntilPaid
// yield nil (unbounded). Fractional months are truncated.
func ParseMaxTerm(s string) (*int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == UntilPaid {
		return nil, true
	}
	d, ok := parsePlainDecimal(s)
	if !ok {
		return nil, false
	}
	whole := d.Truncate(0).BigInt()
	if !whole.IsInt64() || whole.Int64() > math.MaxInt32 || whole.Int64() < math.MinInt32 {
		return nil, false
	}
	months := int(whole.Int64())
	return &months, true
}

// parsePlainDecimal accepts short, non-exponent decimal strings.
func parsePlainDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if len(s) > maxNumericLen || !plainDecimalRegex.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDate accepts a strict, calendar-valid YYYY-MM-DD date.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if !isoDateRegex.MatchString(s) {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}

// ParsePaymentCounts splits a comma list of payment counts, dropping blank,
// unparseable and non-positive entries. Order is preserved.
func ParsePaymentCounts(s string) []int {
	counts := []int{}
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil || n <= 0 {
			continue
		}
		counts = append(counts, n)
	}
	return counts
}
