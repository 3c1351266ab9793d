package rates

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Schedule holds rate tables versioned by effective date so historical
// periods are recomputed with the rates that applied at the time.
type Schedule struct {
	tables []Table
}

func NewSchedule(tables ...Table) (Schedule, error) {
	if len(tables) == 0 {
		return Schedule{}, ErrEmptySchedule
	}
	sorted := make([]Table, len(tables))
	copy(sorted, tables)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	seen := make(map[string]struct{}, len(sorted))
	for i, table := range sorted {
		if err := table.Validate(); err != nil {
			return Schedule{}, fmt.Errorf("table %q: %w", table.Version, err)
		}
		if _, dup := seen[table.Version]; dup {
			return Schedule{}, fmt.Errorf("table %q: duplicate version", table.Version)
		}
		seen[table.Version] = struct{}{}
		if i > 0 && table.EffectiveFrom.Equal(sorted[i-1].EffectiveFrom) {
			return Schedule{}, fmt.Errorf("table %q: effective date collides with %q", table.Version, sorted[i-1].Version)
		}
	}
	return Schedule{tables: sorted}, nil
}

// For returns the latest table effective on or before asOf.
func (s Schedule) For(asOf time.Time) (Table, error) {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if !s.tables[i].EffectiveFrom.After(asOf) {
			return s.tables[i], nil
		}
	}
	return Table{}, fmt.Errorf("%w: %s", ErrNoRatesEffective, asOf.Format("2006-01-02"))
}

func (s Schedule) Tables() []Table {
	out := make([]Table, len(s.tables))
	copy(out, s.tables)
	return out
}

// Provider resolves the rate table applicable at a date.
type Provider interface {
	RatesFor(ctx context.Context, asOf time.Time) (Table, error)
}

type StaticProvider struct {
	Schedule Schedule
}

func (p StaticProvider) RatesFor(_ context.Context, asOf time.Time) (Table, error) {
	return p.Schedule.For(asOf)
}
