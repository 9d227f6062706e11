// Package main is the entry point for the reminder scheduler process.
//
// It runs two loops: the dispatcher, which scans for due scheduled instances
// and pushes them through the gateway, and a daily cron-driven retention
// sweep that prunes terminal instances and old extraction archives. Exactly
// one scheduler process should run per deployment.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/config"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/core"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/db"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/dispatch"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/lifecycle"
)

// staleFactor is how many poll intervals may elapse without a completed scan
// before the health endpoint reports the dispatcher unhealthy.
const staleFactor = 3

func main() {
	if err := run(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("reminder scheduler starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"poll_interval", cfg.Scheduler.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	ruleRepo := db.NewRuleRepository(pool)
	instanceRepo := db.NewInstanceRepository(pool)
	extractionRepo := db.NewExtractionRepository(pool)

	manager := lifecycle.NewManager(lifecycle.ManagerConfig{
		Tx:      lifecycle.NewPgxTxManager(pool),
		MinLead: cfg.Scheduler.MinLead,
		Logger:  logger,
	})

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

	// Retention sweep: prune terminal instances and superseded extraction
	// archives past the configured window. Each owner's newest extraction is
	// always kept.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Scheduler.RetentionSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		cutoff := time.Now().UTC().Add(-cfg.Scheduler.Retention)

		instances, err := instanceRepo.DeleteTerminalBefore(sweepCtx, cutoff)
		if err != nil {
			logger.ErrorContext(sweepCtx, "retention sweep: pruning instances failed", "error", err)
		}
		extractions, err := extractionRepo.DeleteBefore(sweepCtx, cutoff)
		if err != nil {
			logger.ErrorContext(sweepCtx, "retention sweep: pruning extractions failed", "error", err)
		}

		logger.InfoContext(sweepCtx, "retention sweep completed",
			"cutoff", cutoff,
			"instances_pruned", instances,
			"extractions_pruned", extractions,
		)
	})
	if err != nil {
		return fmt.Errorf("parsing SCHEDULER_RETENTION_SCHEDULE: %w", err)
	}

	sweeper.Start()
	defer func() {
		<-sweeper.Stop().Done()
	}()

	// Health endpoint: database reachability plus dispatcher liveness. A
	// dispatcher that has not completed a scan within three poll intervals
	// is reported unhealthy.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating health server: %w", err)
	}
	startedAt := time.Now()
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
		core.ProbeFunc{ProbeName: "dispatcher", Fn: func(ctx context.Context) error {
			return checkPollStaleness(dispatcher.LastPollAt(), startedAt, cfg.Scheduler.PollInterval, time.Now())
		}},
	}
	srv.MountRoutes()

	healthServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Run blocks until ctx is cancelled.
		return dispatcher.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// checkPollStaleness reports an error when the dispatcher has gone too long
// without a completed scan. Before the first scan, the process start time
// anchors the staleness window.
func checkPollStaleness(lastPoll, startedAt time.Time, interval time.Duration, now time.Time) error {
	anchor := lastPoll
	if anchor.IsZero() {
		anchor = startedAt
	}
	if stale := now.Sub(anchor); stale > staleFactor*interval {
		return fmt.Errorf("no completed poll in %s (interval %s)", stale.Round(time.Second), interval)
	}
	return nil
}

// newPool opens the pgx connection pool with the configured tuning.
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
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
