package retention

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls []execCall
	tag   string
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(f.tag), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func TestApplyDeletesByCategory(t *testing.T) {
	cutoff := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{tag: "DELETE 4"}

	n, err := Apply(context.Background(), db, CategoryIdempotencyKeys, cutoff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 rows, got %d", n)
	}
	if !strings.Contains(db.calls[0].sql, "DELETE FROM idempotency_keys") || db.calls[0].args[0] != cutoff {
		t.Fatalf("unexpected call: %+v", db.calls[0])
	}

	if _, err := Apply(context.Background(), db, CategoryJobRuns, cutoff); err != nil {
		t.Fatalf("apply job runs: %v", err)
	}
	if !strings.Contains(db.calls[1].sql, "completed_at IS NOT NULL") {
		t.Fatalf("job runs still in flight must be kept: %s", db.calls[1].sql)
	}

	if _, err := Apply(context.Background(), db, "declarations", cutoff); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestSweepSkipsUnlimitedPolicies(t *testing.T) {
	now := time.Date(2024, time.June, 5, 9, 0, 0, 0, time.UTC)
	db := &fakeDB{tag: "DELETE 2"}
	s := NewSweeper(db, time.Hour, nil,
		Policy{Category: CategoryIdempotencyKeys, MaxAge: 24 * time.Hour},
		Policy{Category: CategoryJobRuns},
	)
	s.Now = func() time.Time { return now }

	deleted, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("expected one delete, got %d", len(db.calls))
	}
	if got := db.calls[0].args[0].(time.Time); !got.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", got)
	}
	if deleted[CategoryIdempotencyKeys] != 2 {
		t.Fatalf("unexpected counts: %v", deleted)
	}
}

func TestSweepReportsFailure(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	s := NewSweeper(db, time.Hour, nil, Policy{Category: CategoryJobRuns, MaxAge: time.Hour})
	if _, err := s.Sweep(context.Background()); err == nil || !strings.Contains(err.Error(), CategoryJobRuns) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	s := NewSweeper(&fakeDB{}, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
