package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/corvidwing/webreach/result"
)

// checkpointFile is the fixed name of the snapshot inside the output dir.
const checkpointFile = "checkpoint.json"

// Checkpoint is the durable snapshot of a crawl's state. A checkpoint is
// only loadable by a run with the same base URL and config hash.
type Checkpoint struct {
	Visited    []string            `json:"visited"`
	Results    []result.PageResult `json:"results"`
	Stats      result.CrawlStats   `json:"stats"`
	Timestamp  time.Time           `json:"timestamp"`
	BaseURL    string              `json:"base_url"`
	ConfigHash string              `json:"config_hash"`
	RunID      string              `json:"run_id"`
}

// CheckpointManager periodically snapshots crawl state to
// <output_dir>/checkpoint.json. Saves go through a temp file and rename so
// a crash mid-write never leaves a truncated checkpoint behind.
type CheckpointManager struct {
	dir        string
	baseURL    string
	configHash string
	runID      string
	interval   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	lastSave  time.Time
	saveCount int
}

// NewCheckpointManager creates a manager writing under dir. The config hash
// binds checkpoints to the admission-relevant configuration.
func NewCheckpointManager(dir, baseURL, configHash, runID string, interval time.Duration, logger *zap.Logger) *CheckpointManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckpointManager{
		dir:        dir,
		baseURL:    baseURL,
		configHash: configHash,
		runID:      runID,
		interval:   interval,
		logger:     logger,
	}
}

// ShouldSave reports whether a save is due: either nothing has been saved
// yet, or the save interval has elapsed since the last one.
func (m *CheckpointManager) ShouldSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveCount == 0 {
		return true
	}
	return time.Since(m.lastSave) >= m.interval
}

// Save serializes the snapshot tuple to checkpoint.json. Failures are
// returned for logging but never abort the crawl.
func (m *CheckpointManager) Save(visited []string, results []result.PageResult, stats result.CrawlStats) error {
	cp := Checkpoint{
		Visited:    visited,
		Results:    results,
		Stats:      stats,
		Timestamp:  time.Now(),
		BaseURL:    m.baseURL,
		ConfigHash: m.configHash,
		RunID:      m.runID,
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	target := filepath.Join(m.dir, checkpointFile)
	tmp, err := os.CreateTemp(m.dir, checkpointFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}

	m.mu.Lock()
	m.lastSave = time.Now()
	m.saveCount++
	m.mu.Unlock()

	m.logger.Debug("checkpoint saved",
		zap.String("path", target),
		zap.Int("visited", len(visited)),
		zap.Int("results", len(results)))
	return nil
}

// TryLoad returns the persisted checkpoint only if it exists, parses, and
// matches the current base URL and config hash. Any other outcome returns
// nil, leaving a stale file in place for inspection.
func (m *CheckpointManager) TryLoad() *Checkpoint {
	path := filepath.Join(m.dir, checkpointFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("checkpoint unreadable", zap.String("path", path), zap.Error(err))
		}
		return nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		m.logger.Warn("checkpoint unparseable", zap.String("path", path), zap.Error(err))
		return nil
	}

	if cp.BaseURL != m.baseURL || cp.ConfigHash != m.configHash {
		m.logger.Warn("checkpoint incompatible with current config",
			zap.String("checkpoint_base", cp.BaseURL),
			zap.String("current_base", m.baseURL))
		return nil
	}

	return &cp
}
