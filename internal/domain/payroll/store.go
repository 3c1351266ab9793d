package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paie/internal/platform/querier"
)

// ProfileSource is the read-only origin of compensation profiles.
type ProfileSource interface {
	ListProfiles(ctx context.Context, tenantID string, period Period) ([]CompensationProfile, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ListProfiles(ctx context.Context, tenantID string, period Period) ([]CompensationProfile, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT profile
    FROM compensation_profiles
    WHERE tenant_id = $1 AND period_year = $2 AND period_month = $3
    ORDER BY employee_id
  `, tenantID, period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompensationProfile
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var profile CompensationProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

func (s *Store) GetProfile(ctx context.Context, tenantID, employeeID string, period Period) (CompensationProfile, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `
    SELECT profile
    FROM compensation_profiles
    WHERE tenant_id = $1 AND employee_id = $2 AND period_year = $3 AND period_month = $4
  `, tenantID, employeeID, period.Year, period.Month).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompensationProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return CompensationProfile{}, err
	}
	var profile CompensationProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return CompensationProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (s *Store) UpsertProfile(ctx context.Context, tenantID string, period Period, profile CompensationProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO compensation_profiles (tenant_id, employee_id, period_year, period_month, profile)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (tenant_id, employee_id, period_year, period_month)
    DO UPDATE SET profile = EXCLUDED.profile, updated_at = now()
  `, tenantID, profile.EmployeeID, period.Year, period.Month, raw)
	return err
}

// InsertCalculation appends to the calculation history. Rows are never
// updated; the latest one for an employee and period is current.
func (s *Store) InsertCalculation(ctx context.Context, tenantID string, calc Calculation) error {
	raw, err := json.Marshal(calc)
	if err != nil {
		return err
	}
	var supersedes any
	if calc.Supersedes != "" {
		supersedes = calc.Supersedes
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO payroll_calculations (id, tenant_id, employee_id, period_year, period_month, rates_version, supersedes_id, net_pay, employer_cost, payload, calculated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, calc.ID, tenantID, calc.EmployeeID, calc.Period.Year, calc.Period.Month, calc.RatesVersion, supersedes,
		calc.NetPay.String(), calc.EmployerCost.String(), raw, calc.CalculatedAt)
	return err
}

func (s *Store) LatestCalculation(ctx context.Context, tenantID, employeeID string, period Period) (Calculation, bool, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `
    SELECT payload
    FROM payroll_calculations
    WHERE tenant_id = $1 AND employee_id = $2 AND period_year = $3 AND period_month = $4
    ORDER BY calculated_at DESC
    LIMIT 1
  `, tenantID, employeeID, period.Year, period.Month).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Calculation{}, false, nil
	}
	if err != nil {
		return Calculation{}, false, err
	}
	var calc Calculation
	if err := json.Unmarshal(raw, &calc); err != nil {
		return Calculation{}, false, fmt.Errorf("decode calculation: %w", err)
	}
	return calc, true, nil
}

// LatestCalculationIDs maps each employee to their current calculation for
// the period.
func (s *Store) LatestCalculationIDs(ctx context.Context, tenantID string, period Period) (map[string]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (employee_id) employee_id, id::text
    FROM payroll_calculations
    WHERE tenant_id = $1 AND period_year = $2 AND period_month = $3
    ORDER BY employee_id, calculated_at DESC
  `, tenantID, period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var employeeID, id string
		if err := rows.Scan(&employeeID, &id); err != nil {
			return nil, err
		}
		out[employeeID] = id
	}
	return out, rows.Err()
}
