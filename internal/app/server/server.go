package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sheetconsole/internal/domain/audit"
	"sheetconsole/internal/domain/auth"
	"sheetconsole/internal/domain/directory"
	"sheetconsole/internal/domain/holidays"
	"sheetconsole/internal/domain/tasks"
	"sheetconsole/internal/platform/cache"
	"sheetconsole/internal/platform/config"
	"sheetconsole/internal/platform/crypto"
	"sheetconsole/internal/platform/db"
	"sheetconsole/internal/platform/jobs"
	"sheetconsole/internal/platform/metrics"
	"sheetconsole/internal/platform/sheets"
	audithandler "sheetconsole/internal/transport/http/handlers/audit"
	authhandler "sheetconsole/internal/transport/http/handlers/auth"
	directoryhandler "sheetconsole/internal/transport/http/handlers/directory"
	holidayshandler "sheetconsole/internal/transport/http/handlers/holidays"
	taskshandler "sheetconsole/internal/transport/http/handlers/tasks"
	"sheetconsole/internal/transport/http/middleware"
)

const (
	jobHolidayRefresh   = "holiday_refresh"
	jobDirectoryRefresh = "directory_refresh"

	idempotencyTTL = 24 * time.Hour
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	stop context.CancelFunc
}

// New wires the console against the configured spreadsheet. The database is
// optional; without it the cache lives on disk and the write audit is off.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		slog.Warn("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
		cfg.JWTSecret = secret
	}

	app := &App{Config: cfg, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	box, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	reader, err := newReader(ctx, cfg, httpClient, app.Metrics)
	if err != nil {
		return nil, err
	}
	script := sheets.NewScriptClient(cfg.AppsScriptURL, httpClient, app.Metrics)
	auditLog := audit.New(app.DB)
	writer := audit.NewWriter(script, auditLog)

	var (
		holidayCache holidays.Cache
		idempotency  middleware.IdempotencyStore
	)
	if app.DB != nil {
		holidayCache = cache.NewPostgresStore(app.DB, box)
		idempotency = middleware.NewPostgresIdempotencyStore(app.DB)
	} else {
		fileCache, err := cache.NewFileStore(cfg.CacheDir, box)
		if err != nil {
			return nil, fmt.Errorf("cache dir: %w", err)
		}
		holidayCache = fileCache
		idempotency = middleware.NewMemoryIdempotencyStore(idempotencyTTL)
	}

	app.Jobs = jobs.New(app.DB, app.Metrics, cfg.UpstreamTimeout)

	directoryService := directory.NewService(reader, writer, cfg.UsersSheet, app.Jobs, cfg.ReconcileDelay)
	tasksService := tasks.NewService(reader, script, writer, cfg.UniqueSheet, cfg.ChecklistSheet)
	holidayService := holidays.NewService(ctx, script, writer, cfg.HolidaySheet, holidayCache)
	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, cfg.AdminUsername, cfg.AdminPasswordHash, directoryService)

	refreshHolidays := func(ctx context.Context) (any, error) {
		return nil, holidayService.Refresh(ctx)
	}
	refreshDirectory := func(ctx context.Context) (any, error) {
		return nil, directoryService.Refresh(ctx)
	}
	if cfg.HolidayRefreshSchedule != "" {
		if err := app.Jobs.Schedule(cfg.HolidayRefreshSchedule, jobHolidayRefresh, refreshHolidays); err != nil {
			return nil, fmt.Errorf("HOLIDAY_REFRESH_SCHEDULE: %w", err)
		}
	}
	if cfg.DirectoryRefreshSchedule != "" {
		if err := app.Jobs.Schedule(cfg.DirectoryRefreshSchedule, jobDirectoryRefresh, refreshDirectory); err != nil {
			return nil, fmt.Errorf("DIRECTORY_REFRESH_SCHEDULE: %w", err)
		}
	}

	jobsCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	app.stop = stop
	app.Jobs.Start(jobsCtx)
	app.Jobs.Enqueue(jobHolidayRefresh, refreshHolidays)

	perms := auth.StaticPermissions{}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Metrics(app.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORSOrigin))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if app.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := app.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", app.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(authService).RegisterRoutes(r)
		directoryhandler.NewHandler(directoryService, perms).RegisterRoutes(r)
		taskshandler.NewHandler(tasksService, perms, idempotency).RegisterRoutes(r)
		holidayshandler.NewHandler(holidayService, perms).RegisterRoutes(r)
		audithandler.NewHandler(auditLog, perms).RegisterRoutes(r)
	})

	app.Router = router
	ok = true
	return app, nil
}

// Close stops background jobs and releases the database pool.
func (a *App) Close() {
	if a.stop != nil {
		a.stop()
	}
	if a.Jobs != nil {
		a.Jobs.Stop()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("sheet console listening on %s", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown failed: %v", err)
		}
	}
}

// newReader reads through the Sheets API when service-account credentials are
// configured and through the public gviz export otherwise. The calendar and
// checklist tabs are not exported and go through the script fetch instead.
func newReader(ctx context.Context, cfg config.Config, client *http.Client, observer sheets.Observer) (sheets.Reader, error) {
	if cfg.GoogleCredentialsFile != "" {
		reader, err := sheets.NewAPIReader(ctx, cfg.GoogleCredentialsFile, cfg.SpreadsheetID, cfg.SheetsHeaderRows, cfg.UpstreamTimeout, observer)
		if err != nil {
			return nil, fmt.Errorf("sheets api: %w", err)
		}
		return reader, nil
	}
	reader := sheets.NewGvizReader(cfg.SpreadsheetID, client, observer)
	if cfg.GvizBaseURL != "" {
		reader.BaseURL = cfg.GvizBaseURL
	}
	return reader, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
