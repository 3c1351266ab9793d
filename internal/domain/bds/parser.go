package bds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMissingSeparator = errors.New("bds: last record is not terminated by CRLF")

// ParseRecord splits one record (without separator) into its header fields.
func ParseRecord(line string) (Record, error) {
	if len(line) != RecordLength {
		return Record{}, fmt.Errorf("bds: record is %d characters, want %d", len(line), RecordLength)
	}
	tag := line[:3]
	l, ok := Layouts[tag]
	if !ok {
		return Record{}, fmt.Errorf("bds: unknown record tag %q", tag)
	}
	seqField, _ := l.Field(FieldSequence)
	seq, err := strconv.Atoi(line[seqField.Start-1 : seqField.End()])
	if err != nil {
		return Record{}, fmt.Errorf("bds: %s sequence %q is not numeric", tag, line[seqField.Start-1:seqField.End()])
	}
	reg, _ := l.Field(FieldRegistration)
	period, _ := l.Field(FieldPeriod)
	return Record{
		Tag:          tag,
		Sequence:     seq,
		Registration: line[reg.Start-1 : reg.End()],
		Period:       line[period.Start-1 : period.End()],
		Raw:          line,
	}, nil
}

// Split cuts a file into raw records on CRLF.
func Split(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	sep := []byte(Separator)
	if !bytes.HasSuffix(data, sep) {
		return nil, ErrMissingSeparator
	}
	parts := bytes.Split(bytes.TrimSuffix(data, sep), sep)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out, nil
}

// Read parses a whole BDS file.
func Read(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines, err := Split(data)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Employee is the content of a B02 record.
type Employee struct {
	Sequence             int
	SocialSecurityNumber string
	NationalID           string
	LastName             string
	FirstName            string
	BirthDate            *time.Time
	WorkedDays           int
	Gross                decimal.Decimal
	CappedGross          decimal.Decimal
	HireDate             *time.Time
	DepartureDate        *time.Time
	SituationCode        string
	ContractCode         string
}

func DecodeEmployee(rec Record) (Employee, error) {
	if rec.Tag != TagEmployee {
		return Employee{}, fmt.Errorf("bds: record %d is %s, not %s", rec.Sequence, rec.Tag, TagEmployee)
	}
	e := Employee{Sequence: rec.Sequence}
	var errs []error
	text := func(name string) string {
		v, err := rec.Text(name)
		errs = append(errs, err)
		return v
	}
	day := func(name string) *time.Time {
		v, err := rec.Date(name)
		errs = append(errs, err)
		return v
	}
	money := func(name string) decimal.Decimal {
		v, err := rec.Amount(name)
		errs = append(errs, err)
		return v
	}
	e.SocialSecurityNumber = text(FieldSocialSecurityNumber)
	e.NationalID = text(FieldNationalID)
	e.LastName = text(FieldLastName)
	e.FirstName = text(FieldFirstName)
	e.BirthDate = day(FieldBirthDate)
	days, err := rec.Int(FieldWorkedDays)
	errs = append(errs, err)
	e.WorkedDays = int(days)
	e.Gross = money(FieldGross)
	e.CappedGross = money(FieldCappedGross)
	e.HireDate = day(FieldHireDate)
	e.DepartureDate = day(FieldDepartureDate)
	e.SituationCode = text(FieldSituation)
	e.ContractCode = text(FieldContract)
	if err := errors.Join(errs...); err != nil {
		return Employee{}, err
	}
	return e, nil
}
