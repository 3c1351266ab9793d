package declaration

import "fmt"

type Event string

const (
	EventValidate Event = "validate"
	EventReopen   Event = "reopen"
	EventEncode   Event = "encode"
	EventTransmit Event = "transmit"
	EventReject   Event = "reject"
)

type edge struct {
	from  Status
	event Event
}

type rule struct {
	to    Status
	guard func(Declaration, []ValidateOption) error
}

var transitions = map[edge]rule{
	{StatusDraft, EventValidate}:     {to: StatusValidated, guard: mustBeValid},
	{StatusValidated, EventReopen}:   {to: StatusDraft},
	{StatusValidated, EventEncode}:   {to: StatusFrozen},
	{StatusFrozen, EventTransmit}:    {to: StatusTransmitted},
	{StatusTransmitted, EventReject}: {to: StatusDraft},
}

func mustBeValid(d Declaration, opts []ValidateOption) error {
	report, err := Validate(&d, opts...)
	if err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("%w: %d issue(s)", ErrNotValid, len(report.Issues))
	}
	return nil
}

// CanTransition reports whether the table has an edge for (status, event).
// Guards are not evaluated.
func CanTransition(from Status, event Event) bool {
	_, ok := transitions[edge{from, event}]
	return ok
}

// Transition returns a copy of d in the state reached by event.
func Transition(d Declaration, event Event, opts ...ValidateOption) (Declaration, error) {
	r, ok := transitions[edge{d.Status, event}]
	if !ok {
		return Declaration{}, fmt.Errorf("%w: %s --%s-->", ErrInvalidTransition, d.Status, event)
	}
	if r.guard != nil {
		if err := r.guard(d, opts); err != nil {
			return Declaration{}, err
		}
	}
	out := d.clone()
	out.Status = r.to
	return out, nil
}

// Validated is a declaration that passed validation. It can only be obtained
// from Certify, and is the only input the BDS encoder takes.
type Validated struct {
	d *Declaration
}

func (v Validated) IsZero() bool {
	return v.d == nil
}

// Declaration returns a copy of the certified declaration.
func (v Validated) Declaration() Declaration {
	if v.d == nil {
		return Declaration{}
	}
	return v.d.clone()
}

// Certify validates a draft and moves it to VALIDATED. An already validated
// declaration is checked again without changing state.
func Certify(d Declaration, opts ...ValidateOption) (Validated, Report, error) {
	report, err := Validate(&d, opts...)
	if err != nil {
		return Validated{}, report, err
	}
	if !report.Valid {
		return Validated{}, report, fmt.Errorf("%w: %s", ErrNotValid, report.Errors[0])
	}
	certified := d.clone()
	if d.Status != StatusValidated {
		certified, err = Transition(d, EventValidate, opts...)
		if err != nil {
			return Validated{}, report, err
		}
	}
	return Validated{d: &certified}, report, nil
}

// Freeze marks a certified declaration as encoded. The result can no longer
// be changed.
func Freeze(v Validated) (Declaration, error) {
	if v.IsZero() {
		return Declaration{}, fmt.Errorf("%w: not certified", ErrInvalidTransition)
	}
	return Transition(v.Declaration(), EventEncode)
}
