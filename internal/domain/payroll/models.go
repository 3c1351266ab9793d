package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period is a payroll month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: int(month)}
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the last calendar day of the month.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(p.Start()) && !day.After(p.End())
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

type Allowances struct {
	Transport      decimal.Decimal `json:"transport"`
	Meal           decimal.Decimal `json:"meal"`
	Representation decimal.Decimal `json:"representation"`
	Travel         decimal.Decimal `json:"travel"`
	Other          decimal.Decimal `json:"other"`
}

func (a Allowances) Total() decimal.Decimal {
	return decimal.Sum(a.Transport, a.Meal, a.Representation, a.Travel, a.Other)
}

// VoluntaryDeduction is withheld before tax as rate × taxable gross plus a
// fixed amount.
type VoluntaryDeduction struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type Overtime struct {
	Hours25  decimal.Decimal `json:"hours25"`
	Hours50  decimal.Decimal `json:"hours50"`
	Hours100 decimal.Decimal `json:"hours100"`
}

type PostTaxDeductions struct {
	SalaryAdvance decimal.Decimal `json:"salaryAdvance"`
	Other         decimal.Decimal `json:"other"`
}

func (d PostTaxDeductions) Total() decimal.Decimal {
	return d.SalaryAdvance.Add(d.Other)
}

// CompensationProfile is the immutable per-employee, per-period input.
// DependentChildren is mandatory: nil is rejected, never inferred.
type CompensationProfile struct {
	EmployeeID           string     `json:"employeeId"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	BirthDate            *time.Time `json:"birthDate,omitempty"`
	NationalID           string     `json:"nationalId"`
	SocialSecurityNumber string     `json:"socialSecurityNumber"`

	BaseSalary      decimal.Decimal `json:"baseSalary"`
	HireDate        time.Time       `json:"hireDate"`
	TerminationDate *time.Time      `json:"terminationDate,omitempty"`
	ContractType    ContractType    `json:"contractType"`

	MaritalStatus     MaritalStatus `json:"maritalStatus"`
	DependentChildren *int          `json:"dependentChildren"`

	TaxableAllowances    Allowances         `json:"taxableAllowances"`
	NonTaxableAllowances decimal.Decimal    `json:"nonTaxableAllowances"`
	SupplementaryPension VoluntaryDeduction `json:"supplementaryPension"`
	MutualInsurance      VoluntaryDeduction `json:"mutualInsurance"`
	Overtime             Overtime           `json:"overtime"`
	PostTaxDeductions    PostTaxDeductions  `json:"postTaxDeductions"`

	OnUnpaidLeave   bool `json:"onUnpaidLeave"`
	UnpaidLeaveDays int  `json:"unpaidLeaveDays"`
	WorkedDays      *int `json:"workedDays,omitempty"`
}

// Dependents counts the tax charges: children plus a spouse when married.
func (p CompensationProfile) Dependents() int {
	n := 0
	if p.DependentChildren != nil {
		n = *p.DependentChildren
	}
	if p.MaritalStatus == MaritalMarried {
		n++
	}
	return n
}

// Calculation is an itemised payslip. It is never mutated: a recalculation
// produces a new value whose Supersedes points at the previous ID.
type Calculation struct {
	ID           string    `json:"id"`
	Supersedes   string    `json:"supersedes,omitempty"`
	EmployeeID   string    `json:"employeeId"`
	Period       Period    `json:"period"`
	RatesVersion string    `json:"ratesVersion"`
	CalculatedAt time.Time `json:"calculatedAt"`

	SeniorityMonths      int             `json:"seniorityMonths"`
	SeniorityRate        decimal.Decimal `json:"seniorityRate"`
	SeniorityBonus       decimal.Decimal `json:"seniorityBonus"`
	OvertimePay          decimal.Decimal `json:"overtimePay"`
	TaxableAllowances    decimal.Decimal `json:"taxableAllowances"`
	NonTaxableAllowances decimal.Decimal `json:"nonTaxableAllowances"`
	TaxableGross         decimal.Decimal `json:"taxableGross"`
	TotalGross           decimal.Decimal `json:"totalGross"`

	SocialBase           decimal.Decimal `json:"socialBase"`
	HealthBase           decimal.Decimal `json:"healthBase"`
	EmployeeSocial       decimal.Decimal `json:"employeeSocial"`
	EmployeeHealth       decimal.Decimal `json:"employeeHealth"`
	SupplementaryPension decimal.Decimal `json:"supplementaryPension"`
	MutualInsurance      decimal.Decimal `json:"mutualInsurance"`
	ProfessionalExpenses decimal.Decimal `json:"professionalExpenses"`
	NetTaxableIncome     decimal.Decimal `json:"netTaxableIncome"`
	GrossIncomeTax       decimal.Decimal `json:"grossIncomeTax"`
	FamilyCredit         decimal.Decimal `json:"familyCredit"`
	NetIncomeTax         decimal.Decimal `json:"netIncomeTax"`
	PostTaxDeductions    decimal.Decimal `json:"postTaxDeductions"`
	NetPay               decimal.Decimal `json:"netPay"`

	EmployerSocial          decimal.Decimal `json:"employerSocial"`
	EmployerFamilyAllowance decimal.Decimal `json:"employerFamilyAllowance"`
	EmployerHealth          decimal.Decimal `json:"employerHealth"`
	TrainingTax             decimal.Decimal `json:"trainingTax"`
	EmployerContributions   decimal.Decimal `json:"employerContributions"`
	EmployerCost            decimal.Decimal `json:"employerCost"`
}
