// Command api is the Matchday Data API server.
//
// Usage:
//
//	matchday-api
//	API_PORT=8080 matchday-api
//
// With no DATABASE_URL the fixture cache runs in memory, suitable for
// local development.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/api"
	"github.com/matchday/matchday-data/internal/api/handler"
	"github.com/matchday/matchday-data/internal/config"
	"github.com/matchday/matchday-data/internal/db"
	"github.com/matchday/matchday-data/internal/odds"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/refresh"
	"github.com/matchday/matchday-data/internal/rescache"
	"github.com/matchday/matchday-data/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.APIFootballKey == "" {
		logger.Warn("API_FOOTBALL_KEY is not set, upstream fetches will fail")
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Fixture cache: Postgres when configured, in-memory otherwise
	var (
		fixtureStore store.Store
		pool         *db.Pool
	)
	if cfg.DatabaseURL != "" {
		logger.Info("Connecting to database...")
		if err := db.EnsureSchema(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
		pool, err = db.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		fixtureStore = store.NewPostgres(pool.Pool)
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
	} else {
		fixtureStore = store.NewMemory()
		logger.Info("Running with in-memory fixture cache")
	}

	// Upstream client behind one shared token bucket
	limiter := apifootball.NewLimiter(cfg.UpstreamRPM)
	client := apifootball.NewClient(cfg.APIFootballBaseURL, cfg.APIFootballKey, limiter, logger)
	logger.Info("Upstream client ready", "requests_per_minute", cfg.UpstreamRPM)

	// Core services
	accessor := odds.NewAccessor(fixtureStore, client, logger)
	job := refresh.NewJob(fixtureStore, client, refresh.Config{
		BatchCeiling:    cfg.SyncBatchCeiling,
		ExpiryLookahead: cfg.ExpiryLookahead,
		UpcomingHours:   24,
		ImminentWindow:  2 * time.Hour,
	}, logger)
	aggregator := agg.New(fixtureStore, client, accessor, agg.Config{
		HotLeagues:       cfg.HotLeagues,
		MaxLookaheadDays: cfg.MaxLookaheadDays,
		MinHotLeagues:    cfg.MinHotLeagues,
		OddsParallelism:  6,
	}, logger)
	results := rescache.New(cfg.ResultCacheEnabled)
	logger.Info("Result cache initialized", "enabled", cfg.ResultCacheEnabled)

	// Background worker
	worker := refresh.NewWorker(job, aggregator, results, refresh.WorkerConfig{
		LiveInterval:     cfg.LiveInterval,
		HotInterval:      cfg.HotInterval,
		WarmupInterval:   cfg.WarmupInterval,
		SnapshotInterval: cfg.SnapshotInterval,
		HotLeagues:       cfg.HotLeagues,
		PrecacheDays:     cfg.PrecacheDays,
	}, logger)
	worker.Start(ctx)

	// Create router
	router := api.NewRouter(handler.Deps{
		Store:      fixtureStore,
		Pool:       pool,
		Odds:       accessor,
		Aggregator: aggregator,
		Job:        job,
		Results:    results,
		Config:     cfg,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Matchday Data API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Stop timers before draining requests; in-flight refreshes finish.
	worker.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
