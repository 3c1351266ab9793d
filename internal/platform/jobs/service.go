package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"paie/internal/platform/querier"
)

const (
	JobDeclarationRun = "declaration_run"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrRunNotFound = errors.New("job run not found")
)

type RunFunc func(context.Context) (any, error)

// Run is the bookkeeping row of one job execution.
type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Service is an in-process queue. Runs are recorded in job_runs when a
// database is configured.
type Service struct {
	DB      querier.Querier
	Logger  *slog.Logger
	queue   chan job
	workers int
	wg      sync.WaitGroup
}

type job struct {
	ID       string
	Type     string
	TenantID string
	Run      RunFunc
}

func New(db querier.Querier, logger *slog.Logger, workers, queueSize int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		DB:      db,
		Logger:  logger,
		queue:   make(chan job, queueSize),
		workers: workers,
	}
}

func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.worker(ctx)
		}()
	}
}

// Wait blocks until every worker has returned after ctx cancellation.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue schedules run and returns the id callers can poll with Get.
func (s *Service) Enqueue(ctx context.Context, jobType, tenantID string, run RunFunc) (string, error) {
	id, err := s.insertRun(ctx, jobType, tenantID, StatusQueued)
	if err != nil {
		return "", err
	}
	select {
	case s.queue <- job{ID: id, Type: jobType, TenantID: tenantID, Run: run}:
		return id, nil
	default:
		s.Logger.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		s.finishRun(context.WithoutCancel(ctx), id, nil, ErrQueueFull)
		return "", ErrQueueFull
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run RunFunc) (any, error) {
	id, err := s.insertRun(ctx, jobType, tenantID, StatusRunning)
	if err != nil {
		s.Logger.Warn("job run insert failed", "err", err)
	}
	return s.runJob(ctx, job{ID: id, Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			s.markRunning(ctx, j.ID)
			if _, err := s.runJob(ctx, j); err != nil {
				s.Logger.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "runId", j.ID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("job panicked")
			s.Logger.Error("job panicked", "jobType", j.Type, "runId", j.ID, "panic", r)
		}
		s.finishRun(context.WithoutCancel(ctx), j.ID, details, err)
	}()
	return j.Run(ctx)
}

func (s *Service) insertRun(ctx context.Context, jobType, tenantID, status string) (string, error) {
	if s.DB == nil {
		return uuid.NewString(), nil
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, tenantID, jobType, status).Scan(&id)
	return id, err
}

func (s *Service) markRunning(ctx context.Context, id string) {
	if s.DB == nil || id == "" {
		return
	}
	if _, err := s.DB.Exec(ctx, `UPDATE job_runs SET status = $1 WHERE id = $2`, StatusRunning, id); err != nil {
		s.Logger.Warn("job run update failed", "err", err)
	}
}

func (s *Service) finishRun(ctx context.Context, id string, details any, runErr error) {
	if s.DB == nil || id == "" {
		return
	}
	status := StatusCompleted
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.Logger.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, error = NULLIF($3, ''), completed_at = now()
    WHERE id = $4
  `, status, detailsJSON, errText, id); err != nil {
		s.Logger.Warn("job run update failed", "err", err)
	}
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (Run, error) {
	if s.DB == nil {
		return Run{}, ErrRunNotFound
	}
	var run Run
	var errText *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, job_type, status, details_json, error, created_at, completed_at
    FROM job_runs
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, id).Scan(&run.ID, &run.JobType, &run.Status, &run.Details, &errText, &run.CreatedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if errText != nil {
		run.Error = *errText
	}
	return run, nil
}
