package metrics

import (
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// MemoryCollector implements Collector in memory. Used in tests.
type MemoryCollector struct {
	mu sync.RWMutex

	ScoredByLevel  map[domain.RiskLevel]int64
	Fallbacks      int64
	AlertsByType   map[domain.AlertType]int64
	AlertsResolved int64
	CacheHits      int64
	CacheMisses    int64
	Latencies      []time.Duration
	LastSnapshot   *domain.DashboardSnapshot
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		ScoredByLevel: make(map[domain.RiskLevel]int64),
		AlertsByType:  make(map[domain.AlertType]int64),
	}
}

// RecordScore records one pass through the scoring pipeline.
func (mc *MemoryCollector) RecordScore(level domain.RiskLevel, fallback bool, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ScoredByLevel[level]++
	if fallback {
		mc.Fallbacks++
	}
	mc.Latencies = append(mc.Latencies, duration)
}

// RecordAlertCreated records a new alert.
func (mc *MemoryCollector) RecordAlertCreated(alertType domain.AlertType, severity domain.RiskLevel) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.AlertsByType[alertType]++
}

// RecordAlertResolved records an alert resolution.
func (mc *MemoryCollector) RecordAlertResolved() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.AlertsResolved++
}

// RecordCacheLookup records a customer profile cache hit or miss.
func (mc *MemoryCollector) RecordCacheLookup(hit bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if hit {
		mc.CacheHits++
	} else {
		mc.CacheMisses++
	}
}

// RecordSnapshot keeps the latest dashboard snapshot.
func (mc *MemoryCollector) RecordSnapshot(snap domain.DashboardSnapshot) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.LastSnapshot = &snap
}

// Scored returns the number of scores recorded at level.
func (mc *MemoryCollector) Scored(level domain.RiskLevel) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.ScoredByLevel[level]
}

// Alerts returns the number of alerts recorded for alertType.
func (mc *MemoryCollector) Alerts(alertType domain.AlertType) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.AlertsByType[alertType]
}

// Resolved returns the number of recorded resolutions.
func (mc *MemoryCollector) Resolved() int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.AlertsResolved
}

// Snapshot returns the latest recorded dashboard snapshot, or nil.
func (mc *MemoryCollector) Snapshot() *domain.DashboardSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.LastSnapshot
}
