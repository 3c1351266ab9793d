package bds

import (
	"fmt"
	"io"
	"strings"
	"time"

	"paie/internal/domain/declaration"
)

type Encoder struct {
	filingDate time.Time
}

type Option func(*Encoder)

// WithFilingDate fixes the B00 filing date so output is reproducible.
func WithFilingDate(t time.Time) Option {
	return func(e *Encoder) { e.filingDate = t }
}

func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{filingDate: time.Now().UTC()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode renders a certified declaration as a BDS file: B00, B01, one B02
// per line in declaration order, B03 and the B06 trailer, each record
// followed by CRLF. A zero Validated is a programming error and panics.
func (e *Encoder) Encode(v declaration.Validated) string {
	if v.IsZero() {
		panic("bds: encode called without a certified declaration")
	}
	d := v.Declaration()

	records := make([]string, 0, len(d.Lines)+4)
	seq := 0
	next := func(tag string) *builder {
		seq++
		b := newBuilder(tag)
		b.number(FieldSequence, int64(seq))
		b.digits(FieldRegistration, d.Company.RegistrationNumber)
		b.digits(FieldPeriod, fmt.Sprintf("%04d%02d", d.Period.Year, d.Period.Month))
		return b
	}

	b := next(TagHeader)
	b.text(FieldDeclarationType, DeclarationTypeMonthly)
	filed := e.filingDate
	b.date(FieldFilingDate, &filed)
	b.text(FieldTaxIdentifier, d.Company.TaxIdentifier)
	records = append(records, b.String())

	t := d.Totals
	b = next(TagTotals)
	b.number(FieldHeadcount, int64(t.Headcount))
	b.amount(FieldTotalGross, t.Gross)
	b.amount(FieldTotalCappedGross, t.CappedGross)
	b.amount(FieldTotalEmployee, t.EmployeeContributions)
	b.amount(FieldTotalEmployer, t.EmployerContributions)
	b.amount(FieldTotalFamilyAllowance, t.FamilyAllowance)
	b.amount(FieldTotalTrainingTax, t.TrainingTax)
	b.amount(FieldGrandTotal, t.GrandTotal)
	records = append(records, b.String())

	for _, l := range d.Lines {
		situation, _ := l.Situation.Code()
		contract, _ := declaration.ContractCode(l.ContractType)
		hired := l.HireDate

		b = next(TagEmployee)
		b.digits(FieldSocialSecurityNumber, l.SocialSecurityNumber)
		b.text(FieldNationalID, l.NationalID)
		b.text(FieldLastName, l.LastName)
		b.text(FieldFirstName, l.FirstName)
		b.date(FieldBirthDate, l.BirthDate)
		b.number(FieldWorkedDays, int64(l.WorkedDays))
		b.amount(FieldGross, l.Gross)
		b.amount(FieldCappedGross, l.CappedGross)
		b.date(FieldHireDate, &hired)
		b.date(FieldDepartureDate, l.DepartureDate)
		b.text(FieldSituation, situation)
		b.text(FieldContract, contract)
		records = append(records, b.String())
	}

	b = next(TagFamily)
	b.number(FieldFamilyAllowanceRate, RatePercent(d.FamilyAllowanceRate))
	b.amount(FieldFamilyAllowanceAmount, t.FamilyAllowance)
	records = append(records, b.String())

	b = next(TagTrailer)
	b.number(FieldRecordCount, int64(seq))
	records = append(records, b.String())

	return strings.Join(records, Separator) + Separator
}

func (e *Encoder) Write(w io.Writer, v declaration.Validated) error {
	_, err := io.WriteString(w, e.Encode(v))
	return err
}

// Encode is a shorthand for NewEncoder(opts...).Encode(v).
func Encode(v declaration.Validated, opts ...Option) string {
	return NewEncoder(opts...).Encode(v)
}
