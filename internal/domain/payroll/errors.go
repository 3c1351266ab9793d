package payroll

import (
	"errors"
	"fmt"
)

var ErrProfileNotFound = errors.New("compensation profile not found")

// CalculationError names the input field that prevented a calculation.
// Several of them may be joined with errors.Join.
type CalculationError struct {
	Field  string
	Reason string
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("payroll: %s %s", e.Field, e.Reason)
}

// FieldErrors unpacks every CalculationError contained in err.
func FieldErrors(err error) []*CalculationError {
	if err == nil {
		return nil
	}
	var out []*CalculationError
	var walk func(error)
	walk = func(e error) {
		if calcErr, ok := e.(*CalculationError); ok {
			out = append(out, calcErr)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		if wrapped := errors.Unwrap(e); wrapped != nil {
			walk(wrapped)
		}
	}
	walk(err)
	return out
}
