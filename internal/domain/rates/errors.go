package rates

import (
	"errors"
	"fmt"
)

var (
	ErrNoRatesEffective = errors.New("rates: no rate table effective for date")
	ErrEmptySchedule    = errors.New("rates: schedule has no tables")
)

// FieldError names the rate-table field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("rates: %s %s", e.Field, e.Reason)
}

func fieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}
