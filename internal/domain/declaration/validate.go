package declaration

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Tolerance absorbs rounding when totals are cross-checked.
var Tolerance = decimal.New(1, -2)

type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	return i.Field + ": " + i.Reason
}

// Report lists every problem found, not only the first.
type Report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
	Issues []Issue  `json:"issues"`
}

func (r *Report) add(field, reason string) {
	r.Issues = append(r.Issues, Issue{Field: field, Reason: reason})
	r.Errors = append(r.Errors, field+": "+reason)
}

func (r Report) Has(field string) bool {
	for _, issue := range r.Issues {
		if issue.Field == field {
			return true
		}
	}
	return false
}

type validateOptions struct {
	now time.Time
}

type ValidateOption func(*validateOptions)

// WithNow fixes the reference date for future-date and period-year checks.
func WithNow(now time.Time) ValidateOption {
	return func(o *validateOptions) { o.now = now }
}

var maxLineCentimes = decimal.New(1, LineAmountDigits)
var maxTotalCentimes = decimal.New(1, TotalAmountDigits)

// Validate checks a declaration before encoding. Content problems go in the
// report; only a nil declaration is an error.
func Validate(d *Declaration, opts ...ValidateOption) (Report, error) {
	if d == nil {
		return Report{}, ErrNilDeclaration
	}
	o := validateOptions{now: time.Now().UTC()}
	for _, opt := range opts {
		opt(&o)
	}

	var r Report
	validateCompany(&r, d.Company)
	if d.Period.Month < 1 || d.Period.Month > 12 {
		r.add("period.month", "must be between 1 and 12")
	}
	if maxYear := o.now.Year() + 1; d.Period.Year < MinPeriodYear || d.Period.Year > maxYear {
		r.add("period.year", fmt.Sprintf("must be between %d and %d", MinPeriodYear, maxYear))
	}
	if !d.Ceiling.IsPositive() {
		r.add("ceiling", "must be positive")
	}

	if len(d.Lines) == 0 {
		r.add("lines", "must contain at least one line")
	}
	today := dateOnly(o.now)
	seenEmployee := map[string]int{}
	seenSSN := map[string]int{}
	for i, line := range d.Lines {
		validateLine(&r, i, line, d.Ceiling, today)
		if j, ok := seenEmployee[line.EmployeeID]; ok && line.EmployeeID != "" {
			r.add(lineField(i, "employeeId"), fmt.Sprintf("duplicates lines[%d]", j))
		} else {
			seenEmployee[line.EmployeeID] = i
		}
		if j, ok := seenSSN[line.SocialSecurityNumber]; ok && line.SocialSecurityNumber != "" {
			r.add(lineField(i, "socialSecurityNumber"), fmt.Sprintf("duplicates lines[%d]", j))
		} else {
			seenSSN[line.SocialSecurityNumber] = i
		}
	}

	validateTotals(&r, d.Totals, ComputeTotals(d.Lines))

	r.Valid = len(r.Issues) == 0
	return r, nil
}

func validateCompany(r *Report, c Company) {
	switch reg := c.RegistrationNumber; {
	case reg == "":
		r.add("company.registrationNumber", "is required")
	case len(reg) != 8 || !isDigits(reg):
		r.add("company.registrationNumber", "must be exactly 8 digits")
	}
	switch tax := c.TaxIdentifier; {
	case strings.TrimSpace(tax) == "":
		r.add("company.taxIdentifier", "is required")
	case utf8.RuneCountInString(tax) != 15:
		r.add("company.taxIdentifier", "must be exactly 15 characters")
	}
}

func validateLine(r *Report, i int, l Line, ceiling decimal.Decimal, today time.Time) {
	switch {
	case l.SocialSecurityNumber == "":
		r.add(lineField(i, "socialSecurityNumber"), "is required")
	case len(l.SocialSecurityNumber) != 9 || !isDigits(l.SocialSecurityNumber):
		r.add(lineField(i, "socialSecurityNumber"), "must be exactly 9 digits")
	}
	switch n := utf8.RuneCountInString(strings.TrimSpace(l.NationalID)); {
	case n == 0:
		r.add(lineField(i, "nationalId"), "is required")
	case n < 5 || n > 10:
		r.add(lineField(i, "nationalId"), "must be 5 to 10 characters")
	}
	if strings.TrimSpace(l.LastName) == "" {
		r.add(lineField(i, "lastName"), "is required")
	}
	if strings.TrimSpace(l.FirstName) == "" {
		r.add(lineField(i, "firstName"), "is required")
	}
	if _, ok := l.Situation.Code(); !ok {
		r.add(lineField(i, "situation"), fmt.Sprintf("unknown code %q", l.Situation))
	}
	if _, ok := ContractCode(l.ContractType); !ok {
		r.add(lineField(i, "contractType"), fmt.Sprintf("%q cannot be declared", l.ContractType))
	}

	if l.Gross.IsNegative() {
		r.add(lineField(i, "gross"), "must not be negative")
	}
	if l.CappedGross.IsNegative() {
		r.add(lineField(i, "cappedGross"), "must not be negative")
	}
	if l.CappedGross.GreaterThan(ceiling) {
		r.add(lineField(i, "cappedGross"), fmt.Sprintf("exceeds the ceiling %s", ceiling.StringFixed(2)))
	}
	if l.CappedGross.GreaterThan(l.Gross) {
		r.add(lineField(i, "cappedGross"), "exceeds gross")
	}
	for _, amount := range []struct {
		field string
		value decimal.Decimal
	}{{"gross", l.Gross}, {"cappedGross", l.CappedGross}} {
		if amount.value.Shift(2).Round(0).GreaterThanOrEqual(maxLineCentimes) {
			r.add(lineField(i, amount.field), fmt.Sprintf("does not fit in %d digits of centimes", LineAmountDigits))
		}
	}
	if l.WorkedDays < 0 || l.WorkedDays > 31 {
		r.add(lineField(i, "workedDays"), "must be between 0 and 31")
	}

	if l.HireDate.IsZero() {
		r.add(lineField(i, "hireDate"), "is required")
	} else if dateOnly(l.HireDate).After(today) {
		r.add(lineField(i, "hireDate"), "is in the future")
	}
	if l.DepartureDate != nil && !l.HireDate.IsZero() && dateOnly(*l.DepartureDate).Before(dateOnly(l.HireDate)) {
		r.add(lineField(i, "departureDate"), "is before the hire date")
	}
}

func validateTotals(r *Report, stored, recomputed Totals) {
	if stored.Headcount != recomputed.Headcount {
		r.add("totals.headcount", fmt.Sprintf("is %d, lines count %d", stored.Headcount, recomputed.Headcount))
	}
	for _, pair := range []struct {
		field            string
		stored, expected decimal.Decimal
	}{
		{"totals.gross", stored.Gross, recomputed.Gross},
		{"totals.cappedGross", stored.CappedGross, recomputed.CappedGross},
		{"totals.employeeContributions", stored.EmployeeContributions, recomputed.EmployeeContributions},
		{"totals.employerContributions", stored.EmployerContributions, recomputed.EmployerContributions},
		{"totals.familyAllowance", stored.FamilyAllowance, recomputed.FamilyAllowance},
		{"totals.trainingTax", stored.TrainingTax, recomputed.TrainingTax},
		{"totals.grandTotal", stored.GrandTotal, recomputed.GrandTotal},
	} {
		if pair.stored.Sub(pair.expected).Abs().GreaterThan(Tolerance) {
			r.add(pair.field, fmt.Sprintf("is %s, lines sum to %s", pair.stored.StringFixed(2), pair.expected.StringFixed(2)))
			continue
		}
		if pair.stored.Shift(2).Round(0).GreaterThanOrEqual(maxTotalCentimes) {
			r.add(pair.field, fmt.Sprintf("does not fit in %d digits of centimes", TotalAmountDigits))
		}
	}
}

func lineField(i int, name string) string {
	return fmt.Sprintf("lines[%d].%s", i, name)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
