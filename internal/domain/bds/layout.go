package bds

import "fmt"

const (
	RecordLength = 260
	Separator    = "\r\n"

	TagHeader   = "B00"
	TagTotals   = "B01"
	TagEmployee = "B02"
	TagFamily   = "B03"
	TagTrailer  = "B06"

	// DeclarationTypeMonthly is the only declaration type produced.
	DeclarationTypeMonthly = "1"
)

type Kind int

const (
	Alpha Kind = iota
	Numeric
	Amount
	Date
)

func (k Kind) String() string {
	switch k {
	case Alpha:
		return "alpha"
	case Numeric:
		return "numeric"
	case Amount:
		return "amount"
	case Date:
		return "date"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field is a fixed-width slot. Start is the 1-based position of its first
// character.
type Field struct {
	Name  string
	Start int
	Width int
	Kind  Kind
}

func (f Field) End() int {
	return f.Start + f.Width - 1
}

// Layout lists every field of one record type in position order.
type Layout struct {
	Tag    string
	Fields []Field
}

func (l Layout) Field(name string) (Field, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Fields shared by every record.
const (
	FieldTag          = "tag"
	FieldSequence     = "sequence"
	FieldRegistration = "registration"
	FieldPeriod       = "period"
)

// Body fields.
const (
	FieldDeclarationType = "declarationType"
	FieldFilingDate      = "filingDate"
	FieldTaxIdentifier   = "taxIdentifier"

	FieldHeadcount             = "headcount"
	FieldTotalGross            = "totalGross"
	FieldTotalCappedGross      = "totalCappedGross"
	FieldTotalEmployee         = "totalEmployeeContributions"
	FieldTotalEmployer         = "totalEmployerContributions"
	FieldTotalFamilyAllowance  = "totalFamilyAllowance"
	FieldTotalTrainingTax      = "totalTrainingTax"
	FieldGrandTotal            = "grandTotal"
	FieldSocialSecurityNumber  = "socialSecurityNumber"
	FieldNationalID            = "nationalId"
	FieldLastName              = "lastName"
	FieldFirstName             = "firstName"
	FieldBirthDate             = "birthDate"
	FieldWorkedDays            = "workedDays"
	FieldGross                 = "gross"
	FieldCappedGross           = "cappedGross"
	FieldHireDate              = "hireDate"
	FieldDepartureDate         = "departureDate"
	FieldSituation             = "situation"
	FieldContract              = "contractType"
	FieldFamilyAllowanceRate   = "familyAllowanceRate"
	FieldFamilyAllowanceAmount = "familyAllowanceTotal"
	FieldRecordCount           = "recordCount"
)

var headerFields = []Field{
	{Name: FieldTag, Start: 1, Width: 3, Kind: Alpha},
	{Name: FieldSequence, Start: 4, Width: 6, Kind: Numeric},
	{Name: FieldRegistration, Start: 10, Width: 8, Kind: Numeric},
	{Name: FieldPeriod, Start: 18, Width: 6, Kind: Numeric},
}

func layout(tag string, body ...Field) Layout {
	fields := append([]Field(nil), headerFields...)
	pos := headerFields[len(headerFields)-1].End() + 1
	for _, f := range body {
		f.Start = pos
		pos += f.Width
		fields = append(fields, f)
	}
	if pos-1 > RecordLength {
		panic(fmt.Sprintf("bds: %s layout is %d characters wide", tag, pos-1))
	}
	return Layout{Tag: tag, Fields: fields}
}

func field(name string, width int, kind Kind) Field {
	return Field{Name: name, Width: width, Kind: kind}
}

// Layouts is shared by the encoder and the parser.
var Layouts = map[string]Layout{
	TagHeader: layout(TagHeader,
		field(FieldDeclarationType, 1, Alpha),
		field(FieldFilingDate, 8, Date),
		field(FieldTaxIdentifier, 15, Alpha),
	),
	TagTotals: layout(TagTotals,
		field(FieldHeadcount, 6, Numeric),
		field(FieldTotalGross, 15, Amount),
		field(FieldTotalCappedGross, 15, Amount),
		field(FieldTotalEmployee, 15, Amount),
		field(FieldTotalEmployer, 15, Amount),
		field(FieldTotalFamilyAllowance, 15, Amount),
		field(FieldTotalTrainingTax, 15, Amount),
		field(FieldGrandTotal, 15, Amount),
	),
	TagEmployee: layout(TagEmployee,
		field(FieldSocialSecurityNumber, 9, Numeric),
		field(FieldNationalID, 10, Alpha),
		field(FieldLastName, 30, Alpha),
		field(FieldFirstName, 20, Alpha),
		field(FieldBirthDate, 8, Date),
		field(FieldWorkedDays, 3, Numeric),
		field(FieldGross, 12, Amount),
		field(FieldCappedGross, 12, Amount),
		field(FieldHireDate, 8, Date),
		field(FieldDepartureDate, 8, Date),
		field(FieldSituation, 1, Alpha),
		field(FieldContract, 1, Alpha),
	),
	TagFamily: layout(TagFamily,
		field(FieldFamilyAllowanceRate, 4, Numeric),
		field(FieldFamilyAllowanceAmount, 15, Amount),
	),
	TagTrailer: layout(TagTrailer,
		field(FieldRecordCount, 8, Numeric),
	),
}
