package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paie/internal/platform/querier"
)

const (
	CategoryIdempotencyKeys = "idempotency_keys"
	CategoryJobRuns         = "job_runs"
)

// Policy keeps rows of one category for MaxAge. A zero MaxAge keeps them
// forever.
type Policy struct {
	Category string
	MaxAge   time.Duration
}

// Apply deletes the rows of category older than cutoff across all tenants.
// Declarations, calculations, documents and audit events are legal records
// and have no category here.
func Apply(ctx context.Context, db querier.Querier, category string, cutoff time.Time) (int64, error) {
	switch category {
	case CategoryIdempotencyKeys:
		tag, err := db.Exec(ctx, `
      DELETE FROM idempotency_keys
      WHERE created_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryJobRuns:
		tag, err := db.Exec(ctx, `
      DELETE FROM job_runs
      WHERE completed_at IS NOT NULL AND completed_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	default:
		return 0, fmt.Errorf("unknown retention category %q", category)
	}
}

// Sweeper applies its policies every Interval.
type Sweeper struct {
	DB       querier.Querier
	Policies []Policy
	Interval time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewSweeper(db querier.Querier, interval time.Duration, logger *slog.Logger, policies ...Policy) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{DB: db, Policies: policies, Interval: interval, Logger: logger, Now: time.Now}
}

// Sweep runs every policy once and returns the deleted row counts.
func (s *Sweeper) Sweep(ctx context.Context) (map[string]int64, error) {
	deleted := make(map[string]int64, len(s.Policies))
	for _, p := range s.Policies {
		if p.MaxAge <= 0 {
			continue
		}
		n, err := Apply(ctx, s.DB, p.Category, s.Now().Add(-p.MaxAge))
		deleted[p.Category] = n
		if err != nil {
			return deleted, fmt.Errorf("retention %s: %w", p.Category, err)
		}
	}
	return deleted, nil
}

// Run sweeps until ctx is cancelled. A non-positive interval disables it.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Sweep(ctx)
			if err != nil {
				s.Logger.Error("retention sweep failed", "error", err)
				continue
			}
			for category, n := range deleted {
				if n > 0 {
					s.Logger.Info("retention sweep", "category", category, "deleted", n)
				}
			}
		}
	}
}
