// Command syncctl is the Matchday cache synchronization CLI.
//
// Usage:
//
//	syncctl run
//	syncctl precache --league 39 --days 3
//	syncctl evict
//	syncctl stats
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matchday/matchday-data/internal/config"
	"github.com/matchday/matchday-data/internal/db"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/refresh"
	"github.com/matchday/matchday-data/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "syncctl",
		Short: "Matchday fixture cache synchronization CLI",
	}

	root.AddCommand(runCmd())
	root.AddCommand(precacheCmd())
	root.AddCommand(evictCmd())
	root.AddCommand(statsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one full sync cycle (live, imminent, expiring, evict)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(func(ctx context.Context, job *refresh.Job) error {
				start := time.Now()
				result := job.Run(ctx)
				if result.Skipped {
					return fmt.Errorf("sync already in progress")
				}
				logger.Info("Sync finished",
					"duration", time.Since(start).Round(time.Millisecond),
					"summary", result.Summary())
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// precache command
// --------------------------------------------------------------------------

func precacheCmd() *cobra.Command {
	var leagueID, season, days int
	cmd := &cobra.Command{
		Use:   "precache",
		Short: "Warm the cache for a league's upcoming fixtures and odds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(func(ctx context.Context, job *refresh.Job) error {
				if season == 0 {
					season = apifootball.CurrentSeason(time.Now())
				}
				start := time.Now()
				result, err := job.Precache(ctx, leagueID, season, days)
				if err != nil {
					return err
				}
				logger.Info("Precache finished",
					"league", leagueID, "season", season,
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&leagueID, "league", 39, "League ID (39=PL, 140=LL, 135=SA, 78=BL, 61=L1)")
	cmd.Flags().IntVar(&season, "season", 0, "Season year (0 = current)")
	cmd.Flags().IntVar(&days, "days", 3, "Days ahead to pre-cache")
	return cmd
}

// --------------------------------------------------------------------------
// evict command
// --------------------------------------------------------------------------

func evictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evict",
		Short: "Delete all expired cache records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *config.Config, s store.Store) error {
				n, err := s.DeleteAllExpired(ctx)
				if err != nil {
					return err
				}
				logger.Info("Eviction finished", "deleted", n)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// stats command
// --------------------------------------------------------------------------

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print fixture cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, _ *config.Config, s store.Store) error {
				stats, err := s.CacheStats(ctx)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withStore handles config loading, store selection, and context
// cancellation. A configured DATABASE_URL selects Postgres, anything else
// is an error: the CLI's whole point is operating on the shared cache.
func withStore(fn func(ctx context.Context, cfg *config.Config, s store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := db.EnsureSchema(ctx, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, store.NewPostgres(pool.Pool))
}

// withJob builds the upstream client on top of withStore.
func withJob(fn func(ctx context.Context, job *refresh.Job) error) error {
	return withStore(func(ctx context.Context, cfg *config.Config, s store.Store) error {
		if cfg.APIFootballKey == "" {
			return fmt.Errorf("API_FOOTBALL_KEY is required")
		}

		limiter := apifootball.NewLimiter(cfg.UpstreamRPM)
		client := apifootball.NewClient(cfg.APIFootballBaseURL, cfg.APIFootballKey, limiter, logger)
		job := refresh.NewJob(s, client, refresh.Config{
			BatchCeiling:    cfg.SyncBatchCeiling,
			ExpiryLookahead: cfg.ExpiryLookahead,
			UpcomingHours:   24,
			ImminentWindow:  2 * time.Hour,
		}, logger)
		return fn(ctx, job)
	})
}
