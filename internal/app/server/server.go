package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payslip/internal/domain/audit"
	"payslip/internal/domain/auth"
	"payslip/internal/domain/payroll"
	"payslip/internal/platform/config"
	"payslip/internal/platform/crypto"
	"payslip/internal/platform/db"
	"payslip/internal/platform/jobs"
	"payslip/internal/platform/metrics"
	"payslip/internal/transport/http/api"
	audithandler "payslip/internal/transport/http/handlers/audit"
	payrollhandler "payslip/internal/transport/http/handlers/payroll"
	"payslip/internal/transport/http/middleware"
)

// RouterDeps is everything the HTTP surface needs once storage and workers exist.
type RouterDeps struct {
	Config      config.Config
	Payroll     payrollhandler.Deps
	Metrics     *metrics.Collector
	Idempotency middleware.IdempotencyBackend
	Ready       func(ctx context.Context) error
}

func NewRouter(deps RouterDeps) http.Handler {
	cfg := deps.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	var recorder middleware.RequestRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	router.Use(middleware.Logger(recorder))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.With(middleware.RequirePermission(auth.PermSystemAdmin, deps.Payroll.Perms)).
			Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
			})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.CostlyRouteRateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.Idempotent(deps.Idempotency))

		payrollhandler.NewHandler(deps.Payroll).RegisterRoutes(r)
		if deps.Payroll.Audit != nil {
			audithandler.NewHandler(deps.Payroll.Audit, deps.Payroll.Perms).RegisterRoutes(r)
		}
	})

	return router
}

// loadCalculator builds the tax-year registry and formula set from config,
// falling back to the bundled tax years when no file is configured.
func loadCalculator(cfg config.Config) (*payroll.Calculator, *payroll.TaxYearRegistry, error) {
	years, err := payroll.DefaultTaxYears()
	if cfg.TaxYearsFile != "" {
		years, err = payroll.LoadTaxYearsFile(cfg.TaxYearsFile)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load tax years: %w", err)
	}
	registry, err := payroll.NewTaxYearRegistry(years...)
	if err != nil {
		return nil, nil, err
	}

	var formulas payroll.FormulaEvaluator
	if cfg.FormulasFile != "" {
		definitions, err := payroll.LoadFormulasFile(cfg.FormulasFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load formulas: %w", err)
		}
		compiled, err := payroll.NewCELFormulas(definitions)
		if err != nil {
			return nil, nil, err
		}
		formulas = compiled
	}
	return payroll.NewCalculator(registry, formulas), registry, nil
}

// App is a fully wired server: storage connected, migrations applied and
// document workers running.
type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service

	stopJobs context.CancelFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	calculator, registry, err := loadCalculator(cfg)
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.PayslipDir, 0o700); err != nil {
		return nil, fmt.Errorf("payslip dir: %w", err)
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	collector := metrics.New()
	jobCtx, stopJobs := context.WithCancel(context.Background())
	workers := jobs.New(jobs.NewPGRunStore(pool), cfg.DocumentQueueSize, cfg.CalcWorkers)
	workers.Start(jobCtx)

	router := NewRouter(RouterDeps{
		Config: cfg,
		Payroll: payrollhandler.Deps{
			Calculator: calculator,
			TaxYears:   registry,
			Store:      payroll.NewStore(pool),
			Audit:      audit.New(pool),
			Documents:  payroll.NewDocuments(cfg.PayslipDir, sealer),
			Jobs:       workers,
			Metrics:    collector,
			Perms:      auth.StaticPermissions{},
			Workers:    cfg.CalcWorkers,
		},
		Metrics:     collector,
		Idempotency: middleware.NewIdempotencyStore(pool),
		Ready:       readiness(pool),
	})

	slog.Info("payslip app ready", "taxYears", registry.IDs(), "encryptedDocuments", sealer.Configured())
	return &App{Config: cfg, DB: pool, Router: router, Jobs: workers, stopJobs: stopJobs}, nil
}

// Close stops the document workers, waits for in-flight renders and closes the pool.
func (a *App) Close() {
	a.stopJobs()
	a.Jobs.Wait()
	a.DB.Close()
}

func Run() error {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("payslip server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "err", err)
	}
	return nil
}

func readiness(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
