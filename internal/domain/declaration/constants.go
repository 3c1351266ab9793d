package declaration

import "paie/internal/domain/payroll"

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusValidated   Status = "VALIDATED"
	StatusFrozen      Status = "FROZEN"
	StatusTransmitted Status = "TRANSMITTED"
)

type Situation string

const (
	SituationActive        Situation = "ACTIVE"
	SituationDeparted      Situation = "DEPARTED"
	SituationOnUnpaidLeave Situation = "ON_UNPAID_LEAVE"
)

// Code is the one-character BDS situation code.
func (s Situation) Code() (string, bool) {
	switch s {
	case SituationActive:
		return "3", true
	case SituationDeparted:
		return "2", true
	case SituationOnUnpaidLeave:
		return "4", true
	}
	return "", false
}

// ContractCode is the one-character BDS contract code. Freelance contracts
// have none since they are never declared.
func ContractCode(c payroll.ContractType) (string, bool) {
	switch c {
	case payroll.ContractPermanent:
		return "1", true
	case payroll.ContractFixedTerm:
		return "2", true
	case payroll.ContractInterim:
		return "3", true
	case payroll.ContractInternship:
		return "4", true
	}
	return "", false
}

const (
	MinPeriodYear = 2000

	// Widths of the BDS amount fields, in centimes.
	LineAmountDigits  = 12
	TotalAmountDigits = 15
)
