package rates

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Validate checks that the table can drive a full calculation. The first
// problem found is returned as a *FieldError.
func (t Table) Validate() error {
	if t.Version == "" {
		return fieldError("version", "is required")
	}
	if !t.Ceiling.IsPositive() {
		return fieldError("ceiling", "must be positive")
	}
	rates := []struct {
		field string
		value decimal.Decimal
	}{
		{"employeeSocialRate", t.EmployeeSocialRate},
		{"employerSocialRate", t.EmployerSocialRate},
		{"familyAllowanceRate", t.FamilyAllowanceRate},
		{"employeeHealthRate", t.EmployeeHealthRate},
		{"employerHealthRate", t.EmployerHealthRate},
		{"trainingTaxRate", t.TrainingTaxRate},
		{"professionalExpenseRate", t.ProfessionalExpenseRate},
	}
	for _, r := range rates {
		if r.value.IsNegative() || r.value.GreaterThan(one) {
			return fieldError(r.field, "must be between 0 and 1")
		}
	}
	if t.ProfessionalExpenseCap.IsNegative() {
		return fieldError("professionalExpenseCap", "must not be negative")
	}
	if t.FamilyAbatementPerDependent.IsNegative() {
		return fieldError("familyAbatementPerDependent", "must not be negative")
	}
	if t.FamilyAbatementMax.IsNegative() {
		return fieldError("familyAbatementMax", "must not be negative")
	}
	if err := validateBrackets(t.IncomeTaxBrackets); err != nil {
		return err
	}
	for i, tier := range t.SeniorityTiers {
		if tier.FromMonths < 0 || tier.Rate.IsNegative() {
			return fieldError(fmt.Sprintf("seniorityTiers[%d]", i), "must not be negative")
		}
		if i > 0 && tier.FromMonths <= t.SeniorityTiers[i-1].FromMonths {
			return fieldError(fmt.Sprintf("seniorityTiers[%d]", i), "must be in increasing month order")
		}
	}
	for _, tier := range []OvertimeTier{Overtime25, Overtime50, Overtime100} {
		premium, ok := t.OvertimePremiums[tier]
		if !ok {
			return fieldError("overtimePremiums."+string(tier), "is required")
		}
		if premium.IsNegative() {
			return fieldError("overtimePremiums."+string(tier), "must not be negative")
		}
	}
	if !t.LegalMonthlyHours.IsPositive() {
		return fieldError("legalMonthlyHours", "must be positive")
	}
	if t.StandardWorkedDays <= 0 || t.StandardWorkedDays > 31 {
		return fieldError("standardWorkedDays", "must be between 1 and 31")
	}
	return nil
}

func validateBrackets(brackets []Bracket) error {
	if len(brackets) == 0 {
		return fieldError("incomeTaxBrackets", "is required")
	}
	if !brackets[0].From.IsZero() {
		return fieldError("incomeTaxBrackets[0].from", "must start at 0")
	}
	for i, b := range brackets {
		field := fmt.Sprintf("incomeTaxBrackets[%d]", i)
		if b.Rate.IsNegative() || b.Rate.GreaterThan(one) {
			return fieldError(field+".rate", "must be between 0 and 1")
		}
		last := i == len(brackets)-1
		if b.To == nil {
			if !last {
				return fieldError(field+".to", "only the last bracket may be open-ended")
			}
			continue
		}
		if !b.To.GreaterThan(b.From) {
			return fieldError(field+".to", "must be greater than from")
		}
		if last {
			return fieldError(field+".to", "last bracket must be open-ended")
		}
		if !brackets[i+1].From.Equal(*b.To) {
			return fieldError(fmt.Sprintf("incomeTaxBrackets[%d].from", i+1), "must equal the previous bracket upper bound")
		}
	}
	return nil
}

// IncomeTax applies the progressive table to an unrounded monthly net taxable
// income. Each bracket only taxes its own slice.
func (t Table) IncomeTax(netTaxable decimal.Decimal) decimal.Decimal {
	tax := decimal.Zero
	if !netTaxable.IsPositive() {
		return tax
	}
	for _, b := range t.IncomeTaxBrackets {
		if netTaxable.LessThanOrEqual(b.From) {
			break
		}
		upper := netTaxable
		if b.To != nil && b.To.LessThan(netTaxable) {
			upper = *b.To
		}
		tax = tax.Add(upper.Sub(b.From).Mul(b.Rate))
	}
	return tax
}

// SeniorityRate returns the bonus percentage for months of service.
func (t Table) SeniorityRate(months int) decimal.Decimal {
	tiers := make([]SeniorityTier, len(t.SeniorityTiers))
	copy(tiers, t.SeniorityTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].FromMonths < tiers[j].FromMonths })
	rate := decimal.Zero
	for _, tier := range tiers {
		if months < tier.FromMonths {
			break
		}
		rate = tier.Rate
	}
	return rate
}

// FamilyAbatement is the flat per-dependent tax credit, capped regardless of
// the number of dependents.
func (t Table) FamilyAbatement(dependents int) decimal.Decimal {
	if dependents <= 0 {
		return decimal.Zero
	}
	credit := t.FamilyAbatementPerDependent.Mul(decimal.NewFromInt(int64(dependents)))
	return decimal.Min(credit, t.FamilyAbatementMax)
}

// ProfessionalExpenses is the lesser of gross × statutory rate and the cap.
func (t Table) ProfessionalExpenses(taxableGross decimal.Decimal) decimal.Decimal {
	return decimal.Min(taxableGross.Mul(t.ProfessionalExpenseRate), t.ProfessionalExpenseCap)
}
