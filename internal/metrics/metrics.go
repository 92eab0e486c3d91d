// Package metrics records scoring and alerting metrics.
package metrics

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Collector defines the interface for collecting service metrics.
// Implementations can export metrics to various backends.
type Collector interface {
	// Scoring
	RecordScore(level domain.RiskLevel, fallback bool, duration time.Duration)

	// Alerts
	RecordAlertCreated(alertType domain.AlertType, severity domain.RiskLevel)
	RecordAlertResolved()

	// Customer profile cache
	RecordCacheLookup(hit bool)

	// Dashboard gauges
	RecordSnapshot(snap domain.DashboardSnapshot)
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordScore does nothing.
func (NoOpCollector) RecordScore(level domain.RiskLevel, fallback bool, duration time.Duration) {}

// RecordAlertCreated does nothing.
func (NoOpCollector) RecordAlertCreated(alertType domain.AlertType, severity domain.RiskLevel) {}

// RecordAlertResolved does nothing.
func (NoOpCollector) RecordAlertResolved() {}

// RecordCacheLookup does nothing.
func (NoOpCollector) RecordCacheLookup(hit bool) {}

// RecordSnapshot does nothing.
func (NoOpCollector) RecordSnapshot(snap domain.DashboardSnapshot) {}
