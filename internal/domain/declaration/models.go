package declaration

import (
	"time"

	"github.com/shopspring/decimal"

	"paie/internal/domain/payroll"
)

// Company is the employer registration block.
type Company struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registrationNumber"`
	TaxIdentifier      string `json:"taxIdentifier"`
}

// Line is one employee's declared values, copied from the profile and
// calculation that produced it.
type Line struct {
	EmployeeID           string               `json:"employeeId"`
	SocialSecurityNumber string               `json:"socialSecurityNumber"`
	NationalID           string               `json:"nationalId"`
	LastName             string               `json:"lastName"`
	FirstName            string               `json:"firstName"`
	BirthDate            *time.Time           `json:"birthDate,omitempty"`
	HireDate             time.Time            `json:"hireDate"`
	DepartureDate        *time.Time           `json:"departureDate,omitempty"`
	WorkedDays           int                  `json:"workedDays"`
	Situation            Situation            `json:"situation"`
	ContractType         payroll.ContractType `json:"contractType"`

	Gross                decimal.Decimal `json:"gross"`
	CappedGross          decimal.Decimal `json:"cappedGross"`
	EmployeeContribution decimal.Decimal `json:"employeeContribution"`
	EmployerContribution decimal.Decimal `json:"employerContribution"`
	FamilyAllowance      decimal.Decimal `json:"familyAllowance"`
	TrainingTax          decimal.Decimal `json:"trainingTax"`

	CalculationID string `json:"calculationId"`
}

// Due is everything owed for the line.
func (l Line) Due() decimal.Decimal {
	return decimal.Sum(l.EmployeeContribution, l.EmployerContribution, l.FamilyAllowance, l.TrainingTax)
}

type Totals struct {
	Headcount             int             `json:"headcount"`
	Gross                 decimal.Decimal `json:"gross"`
	CappedGross           decimal.Decimal `json:"cappedGross"`
	EmployeeContributions decimal.Decimal `json:"employeeContributions"`
	EmployerContributions decimal.Decimal `json:"employerContributions"`
	FamilyAllowance       decimal.Decimal `json:"familyAllowance"`
	TrainingTax           decimal.Decimal `json:"trainingTax"`
	GrandTotal            decimal.Decimal `json:"grandTotal"`
}

// Exclusion records an employee left out of the declaration.
type Exclusion struct {
	EmployeeID   string               `json:"employeeId"`
	ContractType payroll.ContractType `json:"contractType"`
	Reason       string               `json:"reason"`
}

// Declaration is the monthly aggregate. It is handled as a value: the
// helpers below return modified copies with totals recomputed.
type Declaration struct {
	ID                  string          `json:"id"`
	Company             Company         `json:"company"`
	Period              payroll.Period  `json:"period"`
	Status              Status          `json:"status"`
	RatesVersion        string          `json:"ratesVersion"`
	Ceiling             decimal.Decimal `json:"ceiling"`
	FamilyAllowanceRate decimal.Decimal `json:"familyAllowanceRate"`
	Lines               []Line          `json:"lines"`
	Totals              Totals          `json:"totals"`
	Excluded            []Exclusion     `json:"excluded,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// ComputeTotals sums the lines. It is the only source of Totals.
func ComputeTotals(lines []Line) Totals {
	t := Totals{
		Headcount:             len(lines),
		Gross:                 decimal.Zero,
		CappedGross:           decimal.Zero,
		EmployeeContributions: decimal.Zero,
		EmployerContributions: decimal.Zero,
		FamilyAllowance:       decimal.Zero,
		TrainingTax:           decimal.Zero,
	}
	for _, l := range lines {
		t.Gross = t.Gross.Add(l.Gross)
		t.CappedGross = t.CappedGross.Add(l.CappedGross)
		t.EmployeeContributions = t.EmployeeContributions.Add(l.EmployeeContribution)
		t.EmployerContributions = t.EmployerContributions.Add(l.EmployerContribution)
		t.FamilyAllowance = t.FamilyAllowance.Add(l.FamilyAllowance)
		t.TrainingTax = t.TrainingTax.Add(l.TrainingTax)
	}
	t.GrandTotal = decimal.Sum(t.EmployeeContributions, t.EmployerContributions, t.FamilyAllowance, t.TrainingTax)
	return t
}

func (d Declaration) clone() Declaration {
	out := d
	out.Lines = append([]Line(nil), d.Lines...)
	out.Excluded = append([]Exclusion(nil), d.Excluded...)
	return out
}

// WithLines replaces the lines of a draft and recomputes its totals.
func (d Declaration) WithLines(lines []Line) (Declaration, error) {
	if d.Status != StatusDraft {
		return Declaration{}, ErrNotDraft
	}
	out := d.clone()
	out.Lines = append([]Line(nil), lines...)
	sortLines(out.Lines)
	out.Totals = ComputeTotals(out.Lines)
	return out, nil
}

// WithoutEmployee drops an employee's line from a draft.
func (d Declaration) WithoutEmployee(employeeID string) (Declaration, error) {
	kept := make([]Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		if l.EmployeeID != employeeID {
			kept = append(kept, l)
		}
	}
	return d.WithLines(kept)
}

// Line looks up an employee's line.
func (d Declaration) Line(employeeID string) (Line, bool) {
	for _, l := range d.Lines {
		if l.EmployeeID == employeeID {
			return l, true
		}
	}
	return Line{}, false
}
