package payroll

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"paie/internal/domain/rates"
)

// CalculateAll runs Calculate for every profile in parallel. Results keep the
// input order; the first failure cancels the remaining work.
func CalculateAll(ctx context.Context, profiles []CompensationProfile, period Period, table rates.Table, opts ...Option) ([]Calculation, error) {
	out := make([]Calculation, len(profiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range profiles {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			calc, err := Calculate(profiles[i], period, table, opts...)
			if err != nil {
				return fmt.Errorf("employee %s: %w", profiles[i].EmployeeID, err)
			}
			out[i] = calc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
