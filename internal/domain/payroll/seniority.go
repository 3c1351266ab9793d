package payroll

import "time"

// SeniorityMonths counts whole months of service between hire and asOf.
// A partial month is dropped unless asOf is the last day of its month, so
// an employee hired on the 31st completes a month at the end of February.
func SeniorityMonths(hire, asOf time.Time) int {
	hire = dateOnly(hire)
	asOf = dateOnly(asOf)
	if asOf.Before(hire) {
		return 0
	}
	months := (asOf.Year()-hire.Year())*12 + int(asOf.Month()) - int(hire.Month())
	if asOf.Day() < hire.Day() && !isLastDayOfMonth(asOf) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}
