package declaration

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{
	"employee_id", "social_security_number", "national_id", "last_name", "first_name",
	"birth_date", "hire_date", "departure_date", "worked_days", "situation", "contract_type",
	"gross", "capped_gross", "employee_contribution", "employer_contribution",
	"family_allowance", "training_tax", "total_due",
}

// WriteCSV flattens the declaration: a header, one row per line and a TOTALS
// row carrying only the monetary columns.
func WriteCSV(w io.Writer, d Declaration) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range d.Lines {
		row := []string{
			l.EmployeeID, l.SocialSecurityNumber, l.NationalID, l.LastName, l.FirstName,
			csvDate(l.BirthDate), csvDate(&l.HireDate), csvDate(l.DepartureDate),
			strconv.Itoa(l.WorkedDays), string(l.Situation), string(l.ContractType),
			money(l.Gross), money(l.CappedGross), money(l.EmployeeContribution), money(l.EmployerContribution),
			money(l.FamilyAllowance), money(l.TrainingTax), money(l.Due()),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	t := d.Totals
	totals := make([]string, len(csvHeader))
	totals[0] = "TOTALS"
	copy(totals[11:], []string{
		money(t.Gross), money(t.CappedGross), money(t.EmployeeContributions), money(t.EmployerContributions),
		money(t.FamilyAllowance), money(t.TrainingTax), money(t.GrandTotal),
	})
	if err := writer.Write(totals); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func ExportCSV(d Declaration) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func csvDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
