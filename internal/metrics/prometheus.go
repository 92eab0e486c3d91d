package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	// Counters
	scored        *prometheus.CounterVec
	fallbacks     prometheus.Counter
	alertsCreated *prometheus.CounterVec
	alertsClosed  prometheus.Counter
	cacheLookups  *prometheus.CounterVec

	// Histograms
	scoreLatency prometheus.Histogram

	// Dashboard
	activeAlerts      prometheus.Gauge
	fraudRate         prometheus.Gauge
	totalTransactions prometheus.Gauge
	resolutionRate    prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		scored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_scored_total",
				Help:      "Total number of scored transactions per risk level",
			},
			[]string{"risk_level", "fallback"},
		),
		fallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scoring_fallbacks_total",
				Help:      "Total number of transactions that received the fallback score",
			},
		),
		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_created_total",
				Help:      "Total number of fraud alerts per type and severity",
			},
			[]string{"alert_type", "severity"},
		),
		alertsClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_resolved_total",
				Help:      "Total number of resolved fraud alerts",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "customer_cache_lookups_total",
				Help:      "Customer profile cache lookups by result",
			},
			[]string{"result"},
		),
		scoreLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scoring_duration_seconds",
				Help:      "Fraud scoring pipeline latency",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
		),
		activeAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_alerts",
				Help:      "Unresolved fraud alerts at the last stats refresh",
			},
		),
		fraudRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "fraud_rate_percent",
				Help:      "Flagged transactions as a percentage of all transactions",
			},
		),
		totalTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transactions_stored",
				Help:      "Stored transactions at the last stats refresh",
			},
		),
		resolutionRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "alert_resolution_rate_percent",
				Help:      "Resolved alerts as a percentage of all alerts",
			},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.scored,
		pc.fallbacks,
		pc.alertsCreated,
		pc.alertsClosed,
		pc.cacheLookups,
		pc.scoreLatency,
		pc.activeAlerts,
		pc.fraudRate,
		pc.totalTransactions,
		pc.resolutionRate,
	}

	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordScore records one pass through the scoring pipeline.
func (pc *PrometheusCollector) RecordScore(level domain.RiskLevel, fallback bool, duration time.Duration) {
	pc.scored.WithLabelValues(string(level), strconv.FormatBool(fallback)).Inc()
	if fallback {
		pc.fallbacks.Inc()
	}
	pc.scoreLatency.Observe(duration.Seconds())
}

// RecordAlertCreated records a new alert.
func (pc *PrometheusCollector) RecordAlertCreated(alertType domain.AlertType, severity domain.RiskLevel) {
	pc.alertsCreated.WithLabelValues(string(alertType), string(severity)).Inc()
}

// RecordAlertResolved records an alert resolution.
func (pc *PrometheusCollector) RecordAlertResolved() {
	pc.alertsClosed.Inc()
}

// RecordCacheLookup records a customer profile cache hit or miss.
func (pc *PrometheusCollector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.cacheLookups.WithLabelValues(result).Inc()
}

// RecordSnapshot updates the dashboard gauges.
func (pc *PrometheusCollector) RecordSnapshot(snap domain.DashboardSnapshot) {
	pc.activeAlerts.Set(float64(snap.Alerts.Active))
	pc.fraudRate.Set(snap.Transactions.FraudRate)
	pc.totalTransactions.Set(float64(snap.Transactions.Total))
	pc.resolutionRate.Set(snap.Alerts.ResolutionRate)
}
