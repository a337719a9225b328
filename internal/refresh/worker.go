package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/matchday/matchday-data/internal/agg"
	"github.com/matchday/matchday-data/internal/provider/apifootball"
	"github.com/matchday/matchday-data/internal/rescache"
)

// WorkerConfig holds the cadence of each background routine. A zero
// interval disables that routine.
type WorkerConfig struct {
	LiveInterval     time.Duration // live fixtures refresh
	HotInterval      time.Duration // hot-league window refresh
	WarmupInterval   time.Duration // hot leagues + odds pre-cache
	SnapshotInterval time.Duration // live+scheduled snapshot to rescache

	HotLeagues   []int
	PrecacheDays int
}

// DefaultWorkerConfig returns production cadences.
func DefaultWorkerConfig(hotLeagues []int) WorkerConfig {
	return WorkerConfig{
		LiveInterval:     30 * time.Second,
		HotInterval:      time.Minute,
		WarmupInterval:   7 * time.Minute,
		SnapshotInterval: 5 * time.Minute,
		HotLeagues:       hotLeagues,
		PrecacheDays:     3,
	}
}

// Worker owns the repeating timers that keep the cache warm. Each routine
// runs once immediately on Start, then on its own ticker; one routine
// failing never stops the others. Stop cancels every timer synchronously —
// a stopped worker performs no further upstream calls, though calls
// already in flight may complete and still write to the cache.
type Worker struct {
	job        *Job
	aggregator *agg.Aggregator
	results    *rescache.Cache
	cfg        WorkerConfig
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a stopped worker.
func NewWorker(job *Job, aggregator *agg.Aggregator, results *rescache.Cache, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		job:        job,
		aggregator: aggregator,
		results:    results,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches all configured routines. Calling Start on a running
// worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.launch(ctx, "live", w.cfg.LiveInterval, w.refreshLive)
	w.launch(ctx, "hot", w.cfg.HotInterval, w.refreshHot)
	w.launch(ctx, "warmup", w.cfg.WarmupInterval, w.warmup)
	w.launch(ctx, "snapshot", w.cfg.SnapshotInterval, w.snapshot)

	w.logger.Info("Background worker started",
		"live", w.cfg.LiveInterval,
		"hot", w.cfg.HotInterval,
		"warmup", w.cfg.WarmupInterval,
		"snapshot", w.cfg.SnapshotInterval)
}

// Stop cancels all timers and waits for routine goroutines to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
	w.logger.Info("Background worker stopped")
}

// launch runs fn once up front so the cache is warm before the first
// scheduled tick, then repeats on the interval until ctx is cancelled.
func (w *Worker) launch(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if ctx.Err() != nil {
			return
		}
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			case <-ctx.Done():
				w.logger.Debug("Worker routine stopped", "routine", name)
				return
			}
		}
	}()
}

// --------------------------------------------------------------------------
// Routines
// --------------------------------------------------------------------------

func (w *Worker) refreshLive(ctx context.Context) {
	res := w.job.RefreshLive(ctx)
	if res.Attempted > 0 {
		w.logger.Info("Live refresh", "attempted", res.Attempted,
			"succeeded", res.Succeeded, "failed", res.Failed)
	}
}

// refreshHot rebuilds the hot-league snapshot from cache (with upstream
// fallback) and stores it as an aggregate.
func (w *Worker) refreshHot(ctx context.Context) {
	groups, err := w.aggregator.HotMatches(ctx)
	if err != nil {
		w.logger.Warn("Hot refresh failed", "error", err)
		return
	}
	w.storeSnapshot(rescache.Key(rescache.TypeHot, "window"), groups, rescache.TTLHot)
}

// warmup pre-caches upcoming fixtures and odds for every hot league.
func (w *Worker) warmup(ctx context.Context) {
	season := apifootball.CurrentSeason(time.Now())
	for _, leagueID := range w.cfg.HotLeagues {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.job.Precache(ctx, leagueID, season, w.cfg.PrecacheDays); err != nil {
			w.logger.Warn("Warmup pre-cache failed", "league", leagueID, "error", err)
		}
	}
}

// snapshot rebuilds today's combined live+scheduled view and stores it as
// an aggregate.
func (w *Worker) snapshot(ctx context.Context) {
	today := time.Now().UTC()
	groups, err := w.aggregator.FixturesForDate(ctx, today)
	if err != nil {
		w.logger.Warn("Snapshot refresh failed", "error", err)
		return
	}
	w.storeSnapshot(rescache.Key(rescache.TypeLive, today.Format("2006-01-02")), groups, rescache.TTLLive)
}

func (w *Worker) storeSnapshot(key string, groups []agg.LeagueGroup, ttl time.Duration) {
	data, err := json.Marshal(groups)
	if err != nil {
		w.logger.Warn("Snapshot encode failed", "key", key, "error", err)
		return
	}
	w.results.Set(key, data, ttl)
}
