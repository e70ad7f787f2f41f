// Package crawler implements a breadth-first web crawler: a bounded worker
// pool drains a shared job queue, fetching and parsing pages and feeding
// newly discovered URLs back through an admission pipeline (visited set,
// domain scope, regex filter, robots.txt, rate limit, depth cap).
// Termination is detected by quiescence of an active-jobs counter rather
// than a close-the-queue handshake, because workers produce their own work.
package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/corvidwing/webreach/result"
	"github.com/corvidwing/webreach/urlutil"
)

const (
	// quiescencePoll is how often the termination detector samples the
	// active-jobs counter.
	quiescencePoll = 500 * time.Millisecond
	// shutdownGrace is the wait after a first zero observation before the
	// detector re-samples and commits to shutdown.
	shutdownGrace = 2 * time.Second
	// heartbeatInterval paces the operator stats log line.
	heartbeatInterval = 5 * time.Second
)

// Engine wires the crawl components together and exposes Crawl.
type Engine struct {
	cfg        Config
	client     *http.Client
	limiter    *RateLimiter
	robots     *RobotsChecker
	filter     *urlutil.URLFilter
	visited    *VisitedSet
	prefilter  *BloomPrefilter
	queue      *JobQueue
	stats      *StatsTracker
	seeder     *SitemapSeeder
	checkpoint *CheckpointManager
	memwatch   *MemoryWatcher
	metrics    *Metrics
	logger     *zap.Logger
	progressCh chan<- CrawlEvent
	runID      string

	activeJobs atomic.Int64
	shutdown   atomic.Bool

	mu      sync.Mutex
	results []result.PageResult

	poll  time.Duration
	grace time.Duration
}

// Option adjusts an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithProgress attaches a channel receiving per-URL progress events.
// Emission is best-effort; a full channel drops events.
func WithProgress(ch chan<- CrawlEvent) Option {
	return func(e *Engine) { e.progressCh = ch }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithQuiescence overrides the termination detector's poll and grace
// intervals. Intended for tests; production runs keep the defaults.
func WithQuiescence(poll, grace time.Duration) Option {
	return func(e *Engine) {
		e.poll = poll
		e.grace = grace
	}
}

// New validates cfg and builds an Engine. The only fatal failures are
// programmer errors in the configuration; everything at crawl time is
// recovered locally and counted.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig(cfg.BaseURL).UserAgent
	}
	if cfg.AllowedDomain == "" {
		if parsed, err := url.Parse(cfg.BaseURL); err == nil {
			cfg.AllowedDomain = parsed.Hostname()
		}
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 30 * time.Second
	}

	prefilter, err := NewBloomPrefilter()
	if err != nil {
		return nil, fmt.Errorf("create visited prefilter: %w", err)
	}

	client := &http.Client{Timeout: cfg.Timeout}

	e := &Engine{
		cfg:       cfg,
		client:    client,
		limiter:   NewRateLimiter(cfg.RateLimit),
		robots:    NewRobotsChecker(client),
		filter:    urlutil.NewURLFilter(cfg.ExcludePatterns, cfg.IncludePatterns),
		visited:   NewVisitedSet(),
		prefilter: prefilter,
		queue:     NewJobQueue(max(1024, cfg.MaxWorkers*4)),
		logger:    zap.NewNop(),
		runID:     uuid.NewString(),
		poll:      quiescencePoll,
		grace:     shutdownGrace,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.stats = NewStatsTracker(e.metrics)
	e.seeder = NewSitemapSeeder(client, cfg.UserAgent, cfg.MaxSitemapURLs, e.logger)
	e.checkpoint = NewCheckpointManager(
		cfg.OutputDir, cfg.BaseURL, cfg.Hash(), e.runID, cfg.SaveInterval, e.logger)
	if cfg.MemoryLimitMB > 0 {
		e.memwatch = NewMemoryWatcher(cfg.MemoryLimitMB)
		e.memwatch.SetThrottleCallback(func(level ThrottleLevel) {
			e.logger.Warn("memory pressure changed", zap.Int("level", int(level)))
		})
	}

	return e, nil
}

// RunID returns the unique identifier stamped on this run's logs and
// checkpoints.
func (e *Engine) RunID() string {
	return e.runID
}

// Shutdown flips the termination flag. In-flight workers finish their
// current request and exit at the next loop check. This is the single
// external cancellation signal; callers wanting a wall-clock deadline call
// it from a timer.
func (e *Engine) Shutdown() {
	e.shutdown.Store(true)
	e.queue.Close()
}

// Crawl runs the crawl to quiescence and returns the aggregate results.
func (e *Engine) Crawl(ctx context.Context) (*result.CrawlResults, error) {
	defer func() {
		if err := e.prefilter.Close(); err != nil {
			e.logger.Warn("close visited prefilter", zap.Error(err))
		}
	}()

	e.stats.Start()
	e.logger.Info("crawl starting",
		zap.String("run_id", e.runID),
		zap.String("base_url", e.cfg.BaseURL),
		zap.String("allowed_domain", e.cfg.AllowedDomain),
		zap.Int("workers", e.cfg.MaxWorkers),
		zap.Int("max_depth", e.cfg.MaxDepth))

	if e.cfg.Resume {
		e.restoreFromCheckpoint()
	} else {
		e.logger.Info("resume not requested; starting fresh")
	}

	seeded := e.seed(ctx)
	if seeded == 0 {
		e.logger.Warn("nothing to seed; all candidate URLs already visited or rejected")
	}

	// Propagate external context cancellation into the shutdown flag so
	// workers unwind through their normal exit path.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		<-watchCtx.Done()
		if ctx.Err() != nil {
			e.Shutdown()
		}
	}()

	var group errgroup.Group
	for range e.cfg.MaxWorkers {
		group.Go(func() error {
			e.worker(ctx)
			return nil
		})
	}

	auxDone := make(chan struct{})
	var aux sync.WaitGroup
	aux.Add(3)
	go e.detectTermination(auxDone, &aux)
	go e.heartbeat(auxDone, &aux)
	go e.checkpointLoop(auxDone, &aux)

	_ = group.Wait()
	close(auxDone)
	aux.Wait()

	if err := e.saveCheckpoint(); err != nil {
		e.logger.Warn("final checkpoint failed", zap.Error(err))
	}

	e.stats.Finish()
	stats := e.stats.Snapshot()

	e.mu.Lock()
	pages := make([]result.PageResult, len(e.results))
	copy(pages, e.results)
	e.mu.Unlock()

	e.logger.Info("crawl complete",
		zap.String("run_id", e.runID),
		zap.Int("pages_crawled", stats.PagesCrawled),
		zap.Int("pages_found", stats.PagesFound),
		zap.Int("errors", stats.Errors),
		zap.Int64("duration_ms", stats.DurationMS))

	return &result.CrawlResults{Stats: stats, Results: pages}, nil
}

// seed populates the queue from the sitemap tree when enabled, plus the
// base URL, which seeds whether or not a sitemap was found. Every enqueue
// increments activeJobs first, per the counter protocol. Returns the number
// of jobs enqueued.
func (e *Engine) seed(ctx context.Context) int {
	var candidates []string
	if e.cfg.UseSitemap && e.cfg.AllowedDomain != "" {
		candidates = e.seeder.Discover(ctx, e.cfg.AllowedDomain)
	}
	// The base URL always seeds, whether or not the sitemap mentions it.
	candidates = append(candidates, e.cfg.BaseURL)

	seeded := 0
	queued := make(map[string]struct{}, len(candidates))
	for _, raw := range candidates {
		normalized, err := urlutil.Normalize(raw)
		if err != nil {
			e.logger.Debug("seed rejected", zap.String("url", raw), zap.Error(err))
			continue
		}
		if _, dup := queued[normalized]; dup {
			continue
		}
		queued[normalized] = struct{}{}
		if e.visited.Contains(normalized) {
			continue
		}
		e.activeJobs.Inc()
		if !e.queue.Enqueue(CrawlJob{URL: normalized, Depth: 0}) {
			e.activeJobs.Dec()
			continue
		}
		seeded++
	}
	return seeded
}

// restoreFromCheckpoint pre-populates visited, results and stats from a
// compatible checkpoint, if one exists.
func (e *Engine) restoreFromCheckpoint() {
	cp := e.checkpoint.TryLoad()
	if cp == nil {
		e.logger.Info("no compatible checkpoint; starting fresh")
		return
	}

	e.visited.Restore(cp.Visited)
	for _, u := range cp.Visited {
		e.prefilter.Add(u)
	}
	e.mu.Lock()
	e.results = append(e.results, cp.Results...)
	e.mu.Unlock()
	e.stats.Restore(cp.Stats)

	e.logger.Info("resumed from checkpoint",
		zap.Time("saved_at", cp.Timestamp),
		zap.Int("visited", len(cp.Visited)),
		zap.Int("results", len(cp.Results)))
}

// detectTermination samples activeJobs every poll interval. The first zero
// observation starts a grace wait; a second zero after the grace commits
// to shutdown. The two-phase check avoids premature shutdown on transient
// dips while a worker is between dequeue and its children's enqueues.
func (e *Engine) detectTermination(done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if e.activeJobs.Load() != 0 {
				continue
			}

			graceTimer := time.NewTimer(e.grace)
			select {
			case <-done:
				graceTimer.Stop()
				return
			case <-graceTimer.C:
			}

			if e.activeJobs.Load() == 0 {
				e.logger.Debug("quiescence confirmed; shutting down workers")
				e.Shutdown()
				return
			}
		}
	}
}

// heartbeat logs one operator-facing stats line per interval and refreshes
// the gauges the counters cannot drive.
func (e *Engine) heartbeat(done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snapshot := e.stats.Snapshot()
			e.logger.Info("crawl progress",
				zap.Int("pages_crawled", snapshot.PagesCrawled),
				zap.Int("pages_found", snapshot.PagesFound),
				zap.Int("errors", snapshot.Errors),
				zap.Int64("active_jobs", e.activeJobs.Load()),
				zap.Int("queue_depth", e.queue.Len()))
			if e.metrics != nil {
				e.metrics.ActiveJobs.Set(float64(e.activeJobs.Load()))
				e.metrics.QueueDepth.Set(float64(e.queue.Len()))
			}
			if e.memwatch != nil {
				usedPercent, level := e.memwatch.Check()
				if level != ThrottleNormal {
					e.logger.Warn("heap near limit", zap.Float64("used_percent", usedPercent))
				}
			}
		}
	}
}

// checkpointLoop saves a snapshot whenever the save interval has elapsed.
// I/O failures are logged and the crawl continues.
func (e *Engine) checkpointLoop(done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !e.checkpoint.ShouldSave() {
				continue
			}
			if err := e.saveCheckpoint(); err != nil {
				e.logger.Warn("checkpoint save failed", zap.Error(err))
			}
		}
	}
}

func (e *Engine) saveCheckpoint() error {
	e.mu.Lock()
	pages := make([]result.PageResult, len(e.results))
	copy(pages, e.results)
	e.mu.Unlock()
	return e.checkpoint.Save(e.visited.Snapshot(), pages, e.stats.Snapshot())
}

// appendResult appends one immutable PageResult. The URL is guaranteed to
// be in the visited set already; the critical section covers only the
// append.
func (e *Engine) appendResult(page result.PageResult) {
	e.mu.Lock()
	e.results = append(e.results, page)
	e.mu.Unlock()
}

// emit delivers a progress event without ever blocking a worker.
func (e *Engine) emit(evt CrawlEvent) {
	if e.progressCh == nil {
		return
	}
	select {
	case e.progressCh <- evt:
	default:
	}
}
