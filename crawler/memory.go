package crawler

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// ThrottleLevel indicates memory pressure severity.
type ThrottleLevel int

const (
	// ThrottleNormal indicates heap usage is within normal bounds.
	ThrottleNormal ThrottleLevel = iota
	// ThrottleWarning indicates heap usage is elevated.
	ThrottleWarning
	// ThrottleCritical indicates heap usage is close to the limit.
	ThrottleCritical
)

// Heap percentages at which the watcher escalates.
const (
	warnPercent     = 75
	criticalPercent = 90
)

// MemoryWatcher tracks heap growth against a soft limit while the visited
// set and result list accumulate. The engine's heartbeat calls Check; when
// the pressure level crosses a threshold the registered callback fires once
// per transition.
type MemoryWatcher struct {
	mu       sync.Mutex
	limit    int64
	onChange func(ThrottleLevel)
	level    ThrottleLevel
}

// NewMemoryWatcher creates a watcher with a soft heap limit of limitMB
// megabytes, installed via runtime/debug.SetMemoryLimit.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	limit := limitMB * 1024 * 1024
	debug.SetMemoryLimit(limit)
	return &MemoryWatcher{limit: limit}
}

// Check samples the live heap and returns its size as a percentage of the
// limit together with the current throttle level. A level transition
// invokes the registered callback.
func (m *MemoryWatcher) Check() (usedPercent float64, level ThrottleLevel) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.mu.Lock()
	if m.limit <= 0 {
		m.mu.Unlock()
		return 0, ThrottleNormal
	}
	usedPercent = float64(stats.HeapAlloc) / float64(m.limit) * 100

	switch {
	case usedPercent >= criticalPercent:
		level = ThrottleCritical
	case usedPercent >= warnPercent:
		level = ThrottleWarning
	default:
		level = ThrottleNormal
	}

	changed := level != m.level
	m.level = level
	cb := m.onChange
	m.mu.Unlock()

	if changed && cb != nil {
		cb(level)
	}
	return usedPercent, level
}

// SetThrottleCallback registers the function invoked on each level change.
func (m *MemoryWatcher) SetThrottleCallback(cb func(level ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = cb
}

// SetLimit replaces the soft heap limit, in bytes.
func (m *MemoryWatcher) SetLimit(limitBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limitBytes
	debug.SetMemoryLimit(limitBytes)
}
