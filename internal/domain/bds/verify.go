package bds

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

var totalsToLines = []struct {
	total, line string
}{
	{FieldTotalGross, FieldGross},
	{FieldTotalCappedGross, FieldCappedGross},
}

// Verify checks an encoded file on its own: framing, record order, sequence
// contiguity, header consistency, the trailer count and the B01 totals
// against the B02 records. It returns every problem found.
func Verify(data []byte) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	lines, err := Split(data)
	if err != nil {
		return []string{err.Error()}
	}
	if len(lines) < 4 {
		report("file has %d records, want at least 4", len(lines))
	}

	var records []Record
	for i, line := range lines {
		rec, err := ParseRecord(line)
		if err != nil {
			report("record %d: %v", i+1, err)
			continue
		}
		if rec.Sequence != i+1 {
			report("record %d: sequence %d, want %d", i+1, rec.Sequence, i+1)
		}
		checkDigits(rec, report)
		records = append(records, rec)
	}
	if len(records) != len(lines) || len(records) == 0 {
		return problems
	}

	checkOrder(records, report)
	first := records[0]
	for _, rec := range records[1:] {
		if rec.Registration != first.Registration {
			report("record %d: registration %s differs from %s", rec.Sequence, rec.Registration, first.Registration)
		}
		if rec.Period != first.Period {
			report("record %d: period %s differs from %s", rec.Sequence, rec.Period, first.Period)
		}
	}

	var totals, family, trailer *Record
	var employees []Record
	for i := range records {
		switch records[i].Tag {
		case TagTotals:
			totals = &records[i]
		case TagFamily:
			family = &records[i]
		case TagTrailer:
			trailer = &records[i]
		case TagEmployee:
			employees = append(employees, records[i])
		}
	}

	if trailer != nil {
		if count, err := trailer.Int(FieldRecordCount); err != nil || count != int64(len(records)) {
			report("trailer count %d, file has %d records", count, len(records))
		}
		if trailer.Sequence != len(records) {
			report("trailer sequence %d, file has %d records", trailer.Sequence, len(records))
		}
	}
	if totals != nil {
		if headcount, err := totals.Int(FieldHeadcount); err != nil || headcount != int64(len(employees)) {
			report("headcount %d, file has %d employee records", headcount, len(employees))
		}
		for _, pair := range totalsToLines {
			want, _ := totals.Amount(pair.total)
			sum := decimal.Zero
			for _, e := range employees {
				v, _ := e.Amount(pair.line)
				sum = sum.Add(v)
			}
			if !sum.Equal(want) {
				report("%s %s, employee records sum to %s", pair.total, want.StringFixed(2), sum.StringFixed(2))
			}
		}
		if family != nil {
			want, _ := totals.Amount(FieldTotalFamilyAllowance)
			got, _ := family.Amount(FieldFamilyAllowanceAmount)
			if !got.Equal(want) {
				report("family allowance %s in %s, %s in %s", got.StringFixed(2), TagFamily, want.StringFixed(2), TagTotals)
			}
		}
	}
	return problems
}

func checkOrder(records []Record, report func(string, ...any)) {
	n := len(records)
	expect := func(i int, tag string) {
		if i >= 0 && i < n && records[i].Tag != tag {
			report("record %d: tag %s, want %s", i+1, records[i].Tag, tag)
		}
	}
	expect(0, TagHeader)
	expect(1, TagTotals)
	expect(n-2, TagFamily)
	expect(n-1, TagTrailer)
	for i := 2; i < n-2; i++ {
		expect(i, TagEmployee)
	}
}

func checkDigits(rec Record, report func(string, ...any)) {
	for _, f := range Layouts[rec.Tag].Fields {
		if f.Kind != Numeric && f.Kind != Amount {
			continue
		}
		raw, _ := rec.Field(f.Name)
		if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
			report("record %d: %s.%s %q is not numeric", rec.Sequence, rec.Tag, f.Name, raw)
		}
	}
}
