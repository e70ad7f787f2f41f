package crawler

import (
	"sync"
	"time"

	"github.com/corvidwing/webreach/result"
)

// StatsTracker serializes all mutations of the crawl counters behind one
// mutex; each update is an O(1) field touch inside the critical section.
// When metrics are attached, every increment is mirrored to Prometheus.
type StatsTracker struct {
	mu      sync.Mutex
	stats   result.CrawlStats
	metrics *Metrics
}

// NewStatsTracker returns a zeroed tracker. Pass nil metrics to disable
// Prometheus export.
func NewStatsTracker(metrics *Metrics) *StatsTracker {
	return &StatsTracker{metrics: metrics}
}

// Start records the crawl start time.
func (s *StatsTracker) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.StartTime = time.Now()
}

// Finish records the end time and derives the duration. Safe to call once,
// after all workers have joined.
func (s *StatsTracker) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.EndTime = time.Now()
	s.stats.DurationMS = s.stats.EndTime.Sub(s.stats.StartTime).Milliseconds()
}

// AddFound counts a URL admitted into the visited set.
func (s *StatsTracker) AddFound() {
	s.mu.Lock()
	s.stats.PagesFound++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.PagesFound.Inc()
	}
}

// AddCrawled counts a successful fetch that produced a PageResult.
func (s *StatsTracker) AddCrawled() {
	s.mu.Lock()
	s.stats.PagesCrawled++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.PagesCrawled.Inc()
	}
}

// AddExternal counts a URL rejected by the domain scope.
func (s *StatsTracker) AddExternal() {
	s.mu.Lock()
	s.stats.ExternalLinks++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ExternalLinks.Inc()
	}
}

// AddExcluded counts a URL rejected by the regex filter or robots.txt.
func (s *StatsTracker) AddExcluded() {
	s.mu.Lock()
	s.stats.ExcludedLinks++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ExcludedLinks.Inc()
	}
}

// AddError counts a fetch that failed with a transport error or non-2xx.
func (s *StatsTracker) AddError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.FetchErrors.Inc()
	}
}

// Snapshot returns a copy of the current counters.
func (s *StatsTracker) Snapshot() result.CrawlStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Restore replaces the counters with a checkpointed snapshot, preserving
// the current run's start time so duration reflects this process, not the
// original one.
func (s *StatsTracker) Restore(snapshot result.CrawlStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.stats.StartTime
	s.stats = snapshot
	if !start.IsZero() {
		s.stats.StartTime = start
	}
}
