package arrangement

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/boddenberg/arrangement-plans-go/internal/domain"
)

// formValidator enforces the length limits declared on PlanForm and reports
// fields by their JSON names.
var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PlanForm is the unsaved draft of a plan exactly as the administrator typed
// it. Every value is a raw string; Validate turns a form into a domain.Plan.
type PlanForm struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	BalanceTier string `json:"balanceTier"`
	PlanType    string `json:"planType"`

	MonthlyPaymentMin          string `json:"monthlyPaymentMin,omitempty"`
	MonthlyPaymentMax          string `json:"monthlyPaymentMax,omitempty"`
	MaxTerm                    string `json:"maxTerm,omitempty"`
	FixedMonthlyPayment        string `json:"fixedMonthlyPayment,omitempty"`
	PayoffPercentage           string `json:"payoffPercentage,omitempty"`
	SettlementPaymentCounts    string `json:"settlementPaymentCounts,omitempty"`
	SettlementPaymentFrequency string `json:"settlementPaymentFrequency,omitempty"`
	OfferExpiresDate           string `json:"offerExpiresDate,omitempty"`
	TermsText                  string `json:"termsText,omitempty" validate:"max=10000"`
	CustomTermsText            string `json:"customTermsText,omitempty" validate:"max=10000"`
	MinimumPayment             string `json:"minimumPayment,omitempty"`
	DueDate                    string `json:"dueDate,omitempty"`
}

// ValidateForm resolves the form's plan type and validates it. An unknown
// plan type string is a user error here, unlike in Validate.
func ValidateForm(f PlanForm) (domain.Plan, error) {
	planType, ok := domain.ParsePlanType(f.PlanType)
	if !ok {
		if f.PlanType == "" {
			return domain.Plan{}, reject("planType", domain.ReasonMissingField, "plan type is required")
		}
		return domain.Plan{}, reject("planType", domain.ReasonUnknownValue, "unknown plan type "+f.PlanType)
	}
	if err := checkLengths(f); err != nil {
		return domain.Plan{}, err
	}
	return Validate(planType, f)
}

func checkLengths(f PlanForm) error {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return reject(fe.Field(), domain.ReasonOutOfRange, fe.Field()+" must be at most "+fe.Param()+" characters")
	}
	return err
}
