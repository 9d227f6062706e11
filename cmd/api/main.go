// Package main is the entry point for the diet reminder API server.
//
// It loads configuration, opens the Postgres pool, wires the extraction
// pipeline, the rule lifecycle manager, and the HTTP handlers onto the core
// chassis, and serves until a shutdown signal arrives.
package main

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

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/api/handlers"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/config"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/core"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/db"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/dispatch"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/extraction"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/lifecycle"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("reminder API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	// Repositories over the shared pool.
	ruleRepo := db.NewRuleRepository(pool)
	instanceRepo := db.NewInstanceRepository(pool)
	extractionRepo := db.NewExtractionRepository(pool)

	// Rule lifecycle: every mutation and its instance recompute share one
	// transaction.
	manager := lifecycle.NewManager(lifecycle.ManagerConfig{
		Tx:      lifecycle.NewPgxTxManager(pool),
		MinLead: cfg.Scheduler.MinLead,
		Logger:  logger,
	})

	dayPolicy, err := extraction.ParseDayPolicy(cfg.Extraction.DefaultDays)
	if err != nil {
		return fmt.Errorf("parsing EXTRACTION_DEFAULT_DAYS: %w", err)
	}

	extractor := extraction.NewService(extraction.ServiceConfig{
		Rules:     ruleRepo,
		Lifecycle: manager,
		Archive:   extractionRepo,
		Policy:    dayPolicy,
		Logger:    logger,
	})

	// A dispatcher instance backs the manual /ops/poll endpoint. The
	// scheduler process owns the steady-state loop; conditional status
	// transitions keep the two from double-sending.
	transport := dispatch.NewHTTPTransport(dispatch.HTTPTransportConfig{
		GatewayURL: cfg.Push.GatewayURL,
		AuthToken:  cfg.Push.AuthToken.Unmask(),
		Retry: dispatch.RetryPolicy{
			MaxRetries: cfg.Push.MaxRetries,
			MinWait:    cfg.Push.MinWait,
			MaxWait:    cfg.Push.MaxWait,
		},
	})
	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Instances:   instanceRepo,
		Rules:       ruleRepo,
		Scheduler:   manager,
		Transport:   transport,
		Interval:    cfg.Scheduler.PollInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
		MaxAttempts: cfg.Scheduler.MaxAttempts,
		SendTimeout: cfg.Push.SendTimeout,
		Logger:      logger,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}

	ruleHandler := handlers.NewRuleHandler(ruleRepo, manager, instanceRepo, srv.Validator, logger)
	dietHandler := handlers.NewDietHandler(extractor, extractionRepo, manager, srv.Validator, logger)
	opsHandler := handlers.NewOpsHandler(dispatcher, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { ruleHandler.RegisterRoutes(r) },
		func(r chi.Router) { dietHandler.RegisterRoutes(r) },
		func(r chi.Router) { opsHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return serveHTTP(ctx, srv, cfg, logger)
}

// newPool opens the pgx connection pool with the configured tuning and
// verifies connectivity before the server accepts traffic.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// serveHTTP runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within the configured deadline.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
