package declaration

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
)

// Entry pairs a profile with the calculation produced from it.
type Entry struct {
	Profile     payroll.CompensationProfile
	Calculation payroll.Calculation
}

type assembleOptions struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type AssembleOption func(*assembleOptions)

func WithLogger(logger *slog.Logger) AssembleOption {
	return func(o *assembleOptions) { o.logger = logger }
}

func WithClock(now func() time.Time) AssembleOption {
	return func(o *assembleOptions) { o.now = now }
}

func WithIDGenerator(newID func() string) AssembleOption {
	return func(o *assembleOptions) { o.newID = newID }
}

// Assemble builds a DRAFT declaration for the period. Freelance contracts are
// left out and listed in Excluded. Lines are ordered by employee id.
func Assemble(company Company, period payroll.Period, entries []Entry, table rates.Table, opts ...AssembleOption) (Declaration, error) {
	o := assembleOptions{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		lines    []Line
		excluded []Exclusion
		errs     []error
	)
	for i, entry := range entries {
		profile, calc := entry.Profile, entry.Calculation
		if err := checkEntry(i, entry, period, table); err != nil {
			errs = append(errs, err)
			continue
		}
		if !profile.ContractType.SocialSecurityCovered() {
			exclusion := Exclusion{
				EmployeeID:   profile.EmployeeID,
				ContractType: profile.ContractType,
				Reason:       "contract type is not covered by the social security regime",
			}
			excluded = append(excluded, exclusion)
			o.logger.Info("declaration: employee excluded",
				"employee_id", profile.EmployeeID,
				"contract_type", profile.ContractType,
				"period", period.String(),
			)
			continue
		}
		lines = append(lines, buildLine(profile, calc, period, table))
	}
	if err := errors.Join(errs...); err != nil {
		return Declaration{}, err
	}

	sortLines(lines)
	return Declaration{
		ID:                  o.newID(),
		Company:             company,
		Period:              period,
		Status:              StatusDraft,
		RatesVersion:        table.Version,
		Ceiling:             table.Ceiling,
		FamilyAllowanceRate: table.FamilyAllowanceRate,
		Lines:               lines,
		Totals:              ComputeTotals(lines),
		Excluded:            excluded,
		CreatedAt:           o.now(),
	}, nil
}

func checkEntry(i int, entry Entry, period payroll.Period, table rates.Table) error {
	profile, calc := entry.Profile, entry.Calculation
	fail := func(format string, args ...any) error {
		return &EntryError{Index: i, EmployeeID: profile.EmployeeID, Reason: fmt.Sprintf(format, args...)}
	}
	switch {
	case !profile.ContractType.Valid():
		return fail("unknown contract type %q", profile.ContractType)
	case calc.EmployeeID != profile.EmployeeID:
		return fail("calculation belongs to employee %q", calc.EmployeeID)
	case calc.Period != period:
		return fail("calculation is for period %s, not %s", calc.Period, period)
	case calc.RatesVersion != table.Version:
		return fail("calculation used rates %q, declaration uses %q", calc.RatesVersion, table.Version)
	case profile.TerminationDate != nil && profile.TerminationDate.Before(period.Start()):
		return fail("employee left on %s, before the period", profile.TerminationDate.Format(time.DateOnly))
	}
	return nil
}

func buildLine(p payroll.CompensationProfile, calc payroll.Calculation, period payroll.Period, table rates.Table) Line {
	gross := calc.TaxableGross
	line := Line{
		EmployeeID:           p.EmployeeID,
		SocialSecurityNumber: p.SocialSecurityNumber,
		NationalID:           p.NationalID,
		LastName:             p.LastName,
		FirstName:            p.FirstName,
		BirthDate:            copyDate(p.BirthDate),
		HireDate:             p.HireDate,
		WorkedDays:           WorkedDays(p, period, table.StandardWorkedDays),
		Situation:            SituationFor(p, period),
		ContractType:         p.ContractType,
		Gross:                gross,
		CappedGross:          decimal.Min(gross, table.Ceiling),
		EmployeeContribution: calc.EmployeeSocial.Add(calc.EmployeeHealth),
		EmployerContribution: calc.EmployerSocial.Add(calc.EmployerHealth),
		FamilyAllowance:      calc.EmployerFamilyAllowance,
		TrainingTax:          calc.TrainingTax,
		CalculationID:        calc.ID,
	}
	if p.TerminationDate != nil && period.Contains(*p.TerminationDate) {
		line.DepartureDate = copyDate(p.TerminationDate)
	}
	return line
}

// SituationFor derives the declared situation. A departure in the period wins
// over unpaid leave.
func SituationFor(p payroll.CompensationProfile, period payroll.Period) Situation {
	if p.TerminationDate != nil && period.Contains(*p.TerminationDate) {
		return SituationDeparted
	}
	if p.OnUnpaidLeave {
		return SituationOnUnpaidLeave
	}
	return SituationActive
}

// WorkedDays returns the explicit override when present. Otherwise a full
// month counts standard days, a partial presence counts its Monday to
// Saturday days, and unpaid leave days are taken off.
func WorkedDays(p payroll.CompensationProfile, period payroll.Period, standard int) int {
	if p.WorkedDays != nil {
		return *p.WorkedDays
	}
	from, to := period.Start(), period.End()
	partial := false
	if hire := dateOnly(p.HireDate); hire.After(from) {
		from, partial = hire, true
	}
	if p.TerminationDate != nil && period.Contains(*p.TerminationDate) {
		to, partial = dateOnly(*p.TerminationDate), true
	}
	days := standard
	if partial {
		days = min(standard, workingDays(from, to))
	}
	days -= p.UnpaidLeaveDays
	return max(days, 0)
}

func workingDays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}

func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].EmployeeID < lines[j].EmployeeID })
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func copyDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}
