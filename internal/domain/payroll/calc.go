package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paie/internal/domain/rates"
)

var one = decimal.NewFromInt(1)

type options struct {
	now        func() time.Time
	newID      func() string
	supersedes string
	previous   func(employeeID string) string
}

type Option func(*options)

// WithClock fixes CalculatedAt, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// Supersedes links the new calculation to the one it replaces.
func Supersedes(previousID string) Option {
	return func(o *options) { o.supersedes = previousID }
}

// SupersedesFrom resolves the replaced calculation per employee, for batch
// recalculation of a period.
func SupersedesFrom(previous map[string]string) Option {
	return func(o *options) {
		o.previous = func(employeeID string) string { return previous[employeeID] }
	}
}

// Calculate turns one compensation profile into an itemised payslip for the
// period. Every input problem is reported; no partial result is returned.
func Calculate(profile CompensationProfile, period Period, table rates.Table, opts ...Option) (Calculation, error) {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.supersedes == "" && o.previous != nil {
		o.supersedes = o.previous(profile.EmployeeID)
	}

	if err := validateInputs(profile, period, table); err != nil {
		return Calculation{}, err
	}

	months := SeniorityMonths(profile.HireDate, period.End())
	seniorityRate := table.SeniorityRate(months)
	seniorityBonus := profile.BaseSalary.Mul(seniorityRate)

	overtime := overtimePay(profile.BaseSalary, profile.Overtime, table)
	taxableAllowances := profile.TaxableAllowances.Total()
	taxableGross := decimal.Sum(profile.BaseSalary, seniorityBonus, taxableAllowances, overtime)
	totalGross := taxableGross.Add(profile.NonTaxableAllowances)

	socialBase := decimal.Min(taxableGross, table.Ceiling)
	healthBase := taxableGross
	employeeSocial := socialBase.Mul(table.EmployeeSocialRate)
	employeeHealth := healthBase.Mul(table.EmployeeHealthRate)

	pension := voluntary(profile.SupplementaryPension, taxableGross)
	mutual := voluntary(profile.MutualInsurance, taxableGross)
	professional := table.ProfessionalExpenses(taxableGross)

	netTaxable := taxableGross.Sub(employeeSocial).Sub(employeeHealth).Sub(professional).Sub(pension).Sub(mutual)
	if netTaxable.IsNegative() {
		netTaxable = decimal.Zero
	}
	grossTax := table.IncomeTax(netTaxable)
	familyCredit := table.FamilyAbatement(profile.Dependents())
	netTax := grossTax.Sub(familyCredit)
	if netTax.IsNegative() {
		netTax = decimal.Zero
	}

	postTax := profile.PostTaxDeductions.Total()
	netPay := taxableGross.Sub(employeeSocial).Sub(employeeHealth).Sub(netTax).
		Sub(pension).Sub(mutual).Sub(postTax).Add(profile.NonTaxableAllowances)

	employerSocial := socialBase.Mul(table.EmployerSocialRate)
	familyAllowance := taxableGross.Mul(table.FamilyAllowanceRate)
	employerHealth := healthBase.Mul(table.EmployerHealthRate)
	trainingTax := totalGross.Mul(table.TrainingTaxRate)
	employerTotal := decimal.Sum(employerSocial, familyAllowance, employerHealth, trainingTax)

	return Calculation{
		ID:           o.newID(),
		Supersedes:   o.supersedes,
		EmployeeID:   profile.EmployeeID,
		Period:       period,
		RatesVersion: table.Version,
		CalculatedAt: o.now(),

		SeniorityMonths:      months,
		SeniorityRate:        seniorityRate,
		SeniorityBonus:       round(seniorityBonus),
		OvertimePay:          round(overtime),
		TaxableAllowances:    round(taxableAllowances),
		NonTaxableAllowances: round(profile.NonTaxableAllowances),
		TaxableGross:         round(taxableGross),
		TotalGross:           round(totalGross),

		SocialBase:           round(socialBase),
		HealthBase:           round(healthBase),
		EmployeeSocial:       round(employeeSocial),
		EmployeeHealth:       round(employeeHealth),
		SupplementaryPension: round(pension),
		MutualInsurance:      round(mutual),
		ProfessionalExpenses: round(professional),
		NetTaxableIncome:     round(netTaxable),
		GrossIncomeTax:       round(grossTax),
		FamilyCredit:         round(familyCredit),
		NetIncomeTax:         round(netTax),
		PostTaxDeductions:    round(postTax),
		NetPay:               round(netPay),

		EmployerSocial:          round(employerSocial),
		EmployerFamilyAllowance: round(familyAllowance),
		EmployerHealth:          round(employerHealth),
		TrainingTax:             round(trainingTax),
		EmployerContributions:   round(employerTotal),
		EmployerCost:            round(totalGross.Add(employerTotal)),
	}, nil
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func voluntary(v VoluntaryDeduction, taxableGross decimal.Decimal) decimal.Decimal {
	return taxableGross.Mul(v.Rate).Add(v.Amount)
}

// overtimePay applies each premium to the plain hourly rate; tiers do not
// compound on one another.
func overtimePay(base decimal.Decimal, ot Overtime, table rates.Table) decimal.Decimal {
	hourly := base.Div(table.LegalMonthlyHours)
	pay := decimal.Zero
	for _, tier := range []struct {
		hours decimal.Decimal
		tier  rates.OvertimeTier
	}{
		{ot.Hours25, rates.Overtime25},
		{ot.Hours50, rates.Overtime50},
		{ot.Hours100, rates.Overtime100},
	} {
		if tier.hours.IsZero() {
			continue
		}
		premium := one.Add(table.OvertimePremiums[tier.tier])
		pay = pay.Add(tier.hours.Mul(hourly).Mul(premium))
	}
	return pay
}

func validateInputs(p CompensationProfile, period Period, table rates.Table) error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &CalculationError{Field: field, Reason: reason})
	}
	notNegative := func(field string, d decimal.Decimal) {
		if d.IsNegative() {
			fail(field, "must not be negative")
		}
	}

	if err := table.Validate(); err != nil {
		var fe *rates.FieldError
		if errors.As(err, &fe) {
			fail("rates."+fe.Field, fe.Reason)
		} else {
			fail("rates", err.Error())
		}
	}
	if !period.Valid() {
		fail("period", fmt.Sprintf("%s is not a valid payroll month", period))
	}
	if p.EmployeeID == "" {
		fail("employeeId", "is required")
	}
	notNegative("baseSalary", p.BaseSalary)
	if !p.MaritalStatus.Valid() {
		fail("maritalStatus", fmt.Sprintf("unknown code %q", p.MaritalStatus))
	}
	if !p.ContractType.Valid() {
		fail("contractType", fmt.Sprintf("unknown code %q", p.ContractType))
	}
	switch {
	case p.DependentChildren == nil:
		fail("dependentChildren", "is required")
	case *p.DependentChildren < 0:
		fail("dependentChildren", "must not be negative")
	}
	switch {
	case p.HireDate.IsZero():
		fail("hireDate", "is required")
	case period.Valid() && dateOnly(p.HireDate).After(period.End()):
		fail("hireDate", "is after the end of the period")
	}
	if p.TerminationDate != nil && !p.HireDate.IsZero() && dateOnly(*p.TerminationDate).Before(dateOnly(p.HireDate)) {
		fail("terminationDate", "is before the hire date")
	}

	notNegative("taxableAllowances.transport", p.TaxableAllowances.Transport)
	notNegative("taxableAllowances.meal", p.TaxableAllowances.Meal)
	notNegative("taxableAllowances.representation", p.TaxableAllowances.Representation)
	notNegative("taxableAllowances.travel", p.TaxableAllowances.Travel)
	notNegative("taxableAllowances.other", p.TaxableAllowances.Other)
	notNegative("nonTaxableAllowances", p.NonTaxableAllowances)
	notNegative("overtime.hours25", p.Overtime.Hours25)
	notNegative("overtime.hours50", p.Overtime.Hours50)
	notNegative("overtime.hours100", p.Overtime.Hours100)
	for _, v := range []struct {
		field string
		VoluntaryDeduction
	}{
		{"supplementaryPension", p.SupplementaryPension},
		{"mutualInsurance", p.MutualInsurance},
	} {
		if v.Rate.IsNegative() || v.Rate.GreaterThan(one) {
			fail(v.field+".rate", "must be between 0 and 1")
		}
		notNegative(v.field+".amount", v.Amount)
	}
	notNegative("postTaxDeductions.salaryAdvance", p.PostTaxDeductions.SalaryAdvance)
	notNegative("postTaxDeductions.other", p.PostTaxDeductions.Other)
	if p.UnpaidLeaveDays < 0 {
		fail("unpaidLeaveDays", "must not be negative")
	}
	if p.WorkedDays != nil && (*p.WorkedDays < 0 || *p.WorkedDays > 31) {
		fail("workedDays", "must be between 0 and 31")
	}

	return errors.Join(errs...)
}
