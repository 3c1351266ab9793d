package payroll

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCalculateAllKeepsInputOrder(t *testing.T) {
	table := defaultTable(t)
	var profiles []CompensationProfile
	for i := 0; i < 40; i++ {
		p := baseProfile()
		p.EmployeeID = fmt.Sprintf("E%03d", 40-i)
		p.BaseSalary = dec(fmt.Sprintf("%d", 3000+i*250))
		profiles = append(profiles, p)
	}

	calcs, err := CalculateAll(context.Background(), profiles, NewPeriod(2024, time.May), table)
	if err != nil {
		t.Fatalf("calculate all: %v", err)
	}
	if len(calcs) != len(profiles) {
		t.Fatalf("expected %d calculations, got %d", len(profiles), len(calcs))
	}
	for i := range profiles {
		if calcs[i].EmployeeID != profiles[i].EmployeeID {
			t.Fatalf("position %d: expected %s, got %s", i, profiles[i].EmployeeID, calcs[i].EmployeeID)
		}
		single, err := Calculate(profiles[i], NewPeriod(2024, time.May), table)
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if !single.NetPay.Equal(calcs[i].NetPay) {
			t.Fatalf("position %d: parallel net pay %s differs from %s", i, calcs[i].NetPay, single.NetPay)
		}
	}
}

func TestCalculateAllFailsOnFirstBadProfile(t *testing.T) {
	good := baseProfile()
	bad := baseProfile()
	bad.EmployeeID = "E999"
	bad.DependentChildren = nil

	_, err := CalculateAll(context.Background(), []CompensationProfile{good, bad}, NewPeriod(2024, time.May), defaultTable(t))
	if err == nil {
		t.Fatalf("expected error")
	}
	fields := FieldErrors(err)
	if len(fields) != 1 || fields[0].Field != "dependentChildren" {
		t.Fatalf("expected dependentChildren error, got %v", err)
	}
}

func TestCalculateAllLinksPreviousCalculations(t *testing.T) {
	first := baseProfile()
	second := baseProfile()
	second.EmployeeID = "E777"
	previous := map[string]string{first.EmployeeID: "calc-1"}

	calcs, err := CalculateAll(context.Background(), []CompensationProfile{first, second}, NewPeriod(2024, time.May), defaultTable(t), SupersedesFrom(previous))
	if err != nil {
		t.Fatalf("calculate all: %v", err)
	}
	if calcs[0].Supersedes != "calc-1" {
		t.Fatalf("expected calc-1 to be superseded, got %q", calcs[0].Supersedes)
	}
	if calcs[1].Supersedes != "" {
		t.Fatalf("expected first calculation for E777, got supersedes %q", calcs[1].Supersedes)
	}
}
