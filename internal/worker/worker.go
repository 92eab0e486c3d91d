// Package worker runs Kestrel's background loops: the dashboard stats
// refresher and the critical alert notifier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// TransactionStatser reports transaction aggregates.
type TransactionStatser interface {
	Stats(ctx context.Context) (*domain.TransactionStats, error)
}

// AlertStatser reports alert aggregates.
type AlertStatser interface {
	Stats(ctx context.Context) (*domain.AlertStats, error)
}

// DefaultRefreshInterval is used when the configured interval is not positive.
const DefaultRefreshInterval = 30 * time.Second

// StatsRefresher polls transaction and alert stats on an interval and keeps
// the latest snapshot. The snapshot is advisory and never feeds scoring.
type StatsRefresher struct {
	txs      TransactionStatser
	alerts   AlertStatser
	bus      domain.EventBus
	metrics  metrics.Collector
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *domain.DashboardSnapshot

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewStatsRefresher creates a refresher. bus and m may be nil.
func NewStatsRefresher(txs TransactionStatser, alerts AlertStatser, bus domain.EventBus, m metrics.Collector, interval time.Duration, logger *slog.Logger) *StatsRefresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsRefresher{
		txs:      txs,
		alerts:   alerts,
		bus:      bus,
		metrics:  m,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start refreshes once and then on every tick until ctx is cancelled or
// Stop is called.
func (r *StatsRefresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.refreshAndLog(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.refreshAndLog(ctx)
			}
		}
	}()

	r.logger.Info("stats refresher started", "interval", r.interval.String())
}

func (r *StatsRefresher) refreshAndLog(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("stats refresh failed", "error", err)
	}
}

// Refresh computes a new snapshot, stores it, updates the dashboard gauges
// and publishes it. On error the previous snapshot is kept.
func (r *StatsRefresher) Refresh(ctx context.Context) (*domain.DashboardSnapshot, error) {
	txStats, err := r.txs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	alertStats, err := r.alerts.Stats(ctx)
	if err != nil {
		return nil, err
	}

	snap := &domain.DashboardSnapshot{
		Transactions: *txStats,
		Alerts:       *alertStats,
		RefreshedAt:  r.now(),
	}

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()

	r.metrics.RecordSnapshot(*snap)

	if r.bus != nil {
		payload, _ := json.Marshal(snap)
		if err := r.bus.Publish(ctx, domain.TopicStatsRefreshed, payload); err != nil {
			r.logger.Warn("failed to publish stats", "error", err)
		}
	}

	r.logger.Debug("stats refreshed",
		"transactions", txStats.Total,
		"flagged", txStats.Flagged,
		"active_alerts", alertStats.Active,
	)

	return snap, nil
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
func (r *StatsRefresher) Snapshot() *domain.DashboardSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return nil
	}
	snap := *r.snapshot
	return &snap
}

// Stop halts the loop and waits for it to exit.
func (r *StatsRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("stats refresher stopped")
}

// AlertNotifier subscribes to created alerts and logs those at or above
// MinSeverity for the on-call analyst.
type AlertNotifier struct {
	bus         domain.EventBus
	minSeverity domain.RiskLevel
	logger      *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	notified      int
}

// NewAlertNotifier creates a notifier. An invalid minSeverity means critical.
func NewAlertNotifier(bus domain.EventBus, minSeverity domain.RiskLevel, logger *slog.Logger) *AlertNotifier {
	if !minSeverity.Valid() {
		minSeverity = domain.RiskCritical
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertNotifier{
		bus:         bus,
		minSeverity: minSeverity,
		logger:      logger,
	}
}

// Start subscribes to alert creation events. The subscription ends when
// ctx is cancelled or Stop is called.
func (n *AlertNotifier) Start(ctx context.Context) error {
	sub, err := n.bus.Subscribe(ctx, domain.TopicAlertCreated, n.handleAlert)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.subscriptions = append(n.subscriptions, sub)
	n.mu.Unlock()

	n.logger.Info("alert notifier started",
		"topic", domain.TopicAlertCreated,
		"min_severity", n.minSeverity,
	)
	return nil
}

func (n *AlertNotifier) handleAlert(ctx context.Context, msg *domain.Message) error {
	var alert domain.FraudAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		n.logger.Error("failed to parse alert message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if alert.Severity.Rank() < n.minSeverity.Rank() {
		return nil
	}

	n.mu.Lock()
	n.notified++
	n.mu.Unlock()

	n.logger.Warn("fraud alert requires attention",
		"alert_id", alert.ID,
		"transaction_id", alert.TransactionID,
		"account", alert.AccountNumber,
		"severity", alert.Severity,
		"score", alert.FraudScore,
		"trace_id", msg.Metadata["trace_id"],
	)
	return nil
}

// Notified returns how many alerts have been escalated.
func (n *AlertNotifier) Notified() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notified
}

// Stop unsubscribes the notifier.
func (n *AlertNotifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	n.subscriptions = nil

	n.logger.Info("alert notifier stopped")
	return nil
}
