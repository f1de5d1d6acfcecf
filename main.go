package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/tasks-web-GO/internal/config"
	"github.com/s1natex/tasks-web-GO/internal/flash"
	"github.com/s1natex/tasks-web-GO/internal/middleware"
	"github.com/s1natex/tasks-web-GO/internal/tasks"
	"github.com/s1natex/tasks-web-GO/internal/telemetry"
	"github.com/s1natex/tasks-web-GO/internal/web"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger) // for third-party packages that use slog

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter:    cfg.Tracing.Exporter,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		Out:         os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown", slog.String("error", err.Error()))
		}
	}()

	repo, closeRepo, err := openRepo(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = closeRepo() }()
	logger.Info("store_ready", slog.String("driver", cfg.Store.Driver))

	r, err := newRouter(cfg, repo, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openRepo builds the configured store and makes sure its schema exists.
func openRepo(ctx context.Context, sc config.StoreConfig) (tasks.Repository, func() error, error) {
	if sc.Driver == "memory" {
		return tasks.NewInMemoryRepo(), func() error { return nil }, nil
	}

	dsn := sc.DSN
	if dsn == "" && sc.Driver == "sqlite" {
		var err error
		if dsn, err = tasks.SQLiteFileDSN(sc.Path); err != nil {
			return nil, nil, err
		}
	}
	repo, err := tasks.NewSQLRepo(sc.Driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.ApplyMigrations(ctx); err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, repo.Close, nil
}

// newRouter wires the health and metrics endpoints, task routes, and middleware stack
func newRouter(cfg *config.Config, repo tasks.Repository, logger *slog.Logger) (*chi.Mux, error) {
	views, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(cfg.RequestTimeout()))

	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"X-Request-ID", "Trace-Id"},
			AllowCredentials: false,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))

	// ---- Routes ----

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", middleware.MetricsHandler())

	tasks.RegisterRoutes(r, tasks.NewService(repo, logger), views, flash.New(cfg.SecretKey), logger)

	return r, nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
