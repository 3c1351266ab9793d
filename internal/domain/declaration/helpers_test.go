package declaration

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
)

var period = payroll.NewPeriod(2024, time.May)

var validationTime = time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func intPtr(v int) *int { return &v }

func testTable(t *testing.T) rates.Table {
	t.Helper()
	schedule, err := rates.Default()
	if err != nil {
		t.Fatalf("default rates: %v", err)
	}
	table, err := schedule.For(period.End())
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	return table
}

func testCompany() Company {
	return Company{Name: "Atlas Textiles", RegistrationNumber: "12345678", TaxIdentifier: "001234567000089"}
}

func profile(id, ssn string, base string) payroll.CompensationProfile {
	return payroll.CompensationProfile{
		EmployeeID:           id,
		FirstName:            "Salma",
		LastName:             "El Idrissi",
		NationalID:           "AB12345",
		SocialSecurityNumber: ssn,
		BaseSalary:           dec(base),
		HireDate:             date(2023, time.September, 1),
		ContractType:         payroll.ContractPermanent,
		MaritalStatus:        payroll.MaritalSingle,
		DependentChildren:    intPtr(0),
	}
}

func entry(t *testing.T, p payroll.CompensationProfile) Entry {
	t.Helper()
	calc, err := payroll.Calculate(p, period, testTable(t))
	if err != nil {
		t.Fatalf("calculate %s: %v", p.EmployeeID, err)
	}
	return Entry{Profile: p, Calculation: calc}
}

func assemble(t *testing.T, entries ...Entry) Declaration {
	t.Helper()
	d, err := Assemble(testCompany(), period, entries, testTable(t),
		WithClock(func() time.Time { return validationTime }),
	)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return d
}

func sampleDeclaration(t *testing.T) Declaration {
	t.Helper()
	return assemble(t,
		entry(t, profile("E002", "200000002", "9000")),
		entry(t, profile("E001", "100000001", "6000")),
	)
}
