package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

type OvertimeTier string

const (
	Overtime25  OvertimeTier = "25"
	Overtime50  OvertimeTier = "50"
	Overtime100 OvertimeTier = "100"
)

// Bracket is one slice of the progressive income-tax table. A nil To marks
// the open-ended top bracket.
type Bracket struct {
	From decimal.Decimal  `json:"from"`
	To   *decimal.Decimal `json:"to,omitempty"`
	Rate decimal.Decimal  `json:"rate"`
}

type SeniorityTier struct {
	FromMonths int             `json:"fromMonths"`
	Rate       decimal.Decimal `json:"rate"`
}

// Table is the jurisdiction rate table used by the salary calculator and the
// declaration assembler. Rates are fractions (0.0448 == 4.48%).
type Table struct {
	Version       string    `json:"version"`
	EffectiveFrom time.Time `json:"effectiveFrom"`

	Ceiling             decimal.Decimal `json:"ceiling"`
	EmployeeSocialRate  decimal.Decimal `json:"employeeSocialRate"`
	EmployerSocialRate  decimal.Decimal `json:"employerSocialRate"`
	FamilyAllowanceRate decimal.Decimal `json:"familyAllowanceRate"`
	EmployeeHealthRate  decimal.Decimal `json:"employeeHealthRate"`
	EmployerHealthRate  decimal.Decimal `json:"employerHealthRate"`
	TrainingTaxRate     decimal.Decimal `json:"trainingTaxRate"`

	ProfessionalExpenseRate decimal.Decimal `json:"professionalExpenseRate"`
	ProfessionalExpenseCap  decimal.Decimal `json:"professionalExpenseCap"`

	IncomeTaxBrackets           []Bracket       `json:"incomeTaxBrackets"`
	FamilyAbatementPerDependent decimal.Decimal `json:"familyAbatementPerDependent"`
	FamilyAbatementMax          decimal.Decimal `json:"familyAbatementMax"`

	SeniorityTiers     []SeniorityTier                  `json:"seniorityTiers"`
	OvertimePremiums   map[OvertimeTier]decimal.Decimal `json:"overtimePremiums"`
	LegalMonthlyHours  decimal.Decimal                  `json:"legalMonthlyHours"`
	StandardWorkedDays int                              `json:"standardWorkedDays"`
}
