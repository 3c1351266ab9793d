package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"paie/internal/domain/audit"
	"paie/internal/domain/auth"
	"paie/internal/domain/declaration"
	"paie/internal/domain/filing"
	"paie/internal/domain/payroll"
	"paie/internal/domain/rates"
	"paie/internal/platform/cache"
	"paie/internal/platform/config"
	"paie/internal/platform/crypto"
	"paie/internal/platform/db"
	"paie/internal/platform/jobs"
	"paie/internal/platform/metrics"
	"paie/internal/platform/retention"
	audithandler "paie/internal/transport/http/handlers/audit"
	declarationshandler "paie/internal/transport/http/handlers/declarations"
	payrollhandler "paie/internal/transport/http/handlers/payroll"
	"paie/internal/transport/http/middleware"
)

// Routes are the API handlers mounted under /api/v1. A nil handler is
// skipped.
type Routes struct {
	Payroll      *payrollhandler.Handler
	Declarations *declarationshandler.Handler
	Audit        *audithandler.Handler
}

// Router holds what NewRouter needs besides the handlers.
type Router struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// Ready reports whether backing services answer; nil means always ready.
	Ready  func(ctx context.Context) error
	Routes Routes
}

func NewRouter(deps Router) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.Logger(logger))
	router.Use(chimw.Recoverer)
	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware)
	}
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))

		if deps.Routes.Payroll != nil {
			deps.Routes.Payroll.RegisterRoutes(r)
		}
		if deps.Routes.Declarations != nil {
			deps.Routes.Declarations.RegisterRoutes(r)
		}
		if deps.Routes.Audit != nil {
			deps.Routes.Audit.RegisterRoutes(r)
		}
	})

	return router
}

// Run wires the service against Postgres and optionally Redis, then serves
// until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, os.DirFS(cfg.MigrationsDir)); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	schedule, err := loadSchedule(cfg.RatesFile)
	if err != nil {
		return err
	}
	var provider rates.Provider = rates.StaticProvider{Schedule: schedule}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		provider = rates.NewCache(redisClient, provider, cfg.RatesTTL)
	}

	keys, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}

	collector := metrics.New()
	perms := auth.StaticPermissions{}

	queue := jobs.New(pool, logger, cfg.JobWorkers, cfg.JobQueueSize)
	queue.Start(ctx)
	defer queue.Wait()

	sweeper := retention.NewSweeper(pool, cfg.RetentionInterval, logger,
		retention.Policy{Category: retention.CategoryIdempotencyKeys, MaxAge: cfg.IdempotencyTTL},
		retention.Policy{Category: retention.CategoryJobRuns, MaxAge: cfg.JobRunRetention},
	)
	go sweeper.Run(ctx)

	svc := filing.NewService(filing.NewPgRepository(pool), provider, keys, collector, logger)

	handler := NewRouter(Router{
		Config:  cfg,
		Logger:  logger,
		Metrics: collector,
		Ready:   readiness(pool.Ping, redisClient),
		Routes: Routes{
			Payroll:      payrollhandler.NewHandler(provider, payroll.NewStore(pool), collector, perms),
			Declarations: declarationshandler.NewHandler(svc, declaration.NewStore(pool), queue, middleware.NewIdempotencyStore(pool), perms, logger),
			Audit:        audithandler.NewHandler(audit.New(pool), perms),
		},
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("paie server listening", "addr", cfg.Addr, "environment", cfg.Environment, "rate_tables", len(schedule.Tables()))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadSchedule(path string) (rates.Schedule, error) {
	if path == "" {
		return rates.Default()
	}
	schedule, err := rates.LoadFile(path)
	if err != nil {
		return rates.Schedule{}, fmt.Errorf("rates file %s: %w", path, err)
	}
	return schedule, nil
}

func readiness(ping func(context.Context) error, client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if client != nil {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
