package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// DefaultAlertLimit is the default size of alert listings.
const DefaultAlertLimit = 50

// AlertService lists and resolves fraud alerts.
type AlertService struct {
	repo    domain.Repository
	events  publisher
	metrics metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewAlertService creates an alert service. bus and m may be nil.
func NewAlertService(repo domain.Repository, bus domain.EventBus, m metrics.Collector, logger *slog.Logger) *AlertService {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	logger = loggerOrDefault(logger)
	return &AlertService{
		repo:    repo,
		events:  publisher{bus: bus, logger: logger},
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListActive returns unresolved alerts, newest first.
func (s *AlertService) ListActive(ctx context.Context, limit int) ([]*domain.FraudAlert, error) {
	return s.repo.ListAlerts(ctx, domain.AlertFilter{
		ActiveOnly: true,
		Limit:      clampLimit(limit, DefaultAlertLimit),
	})
}

// ListBySeverity returns unresolved alerts of one severity, newest first.
func (s *AlertService) ListBySeverity(ctx context.Context, severity domain.RiskLevel, limit int) ([]*domain.FraudAlert, error) {
	if !severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", domain.ErrInvalidInput, severity)
	}
	return s.repo.ListAlerts(ctx, domain.AlertFilter{
		Severity:   severity,
		ActiveOnly: true,
		Limit:      clampLimit(limit, DefaultAlertLimit),
	})
}

// Get returns an alert by ID.
func (s *AlertService) Get(ctx context.Context, alertID string) (*domain.FraudAlert, error) {
	return s.repo.GetAlert(ctx, alertID)
}

// Resolve marks an alert as resolved by an analyst. Unknown alerts yield
// domain.ErrNotFound and resolved ones domain.ErrAlreadyResolved.
func (s *AlertService) Resolve(ctx context.Context, alertID, resolvedBy, notes string) (*domain.FraudAlert, error) {
	resolvedBy = strings.TrimSpace(resolvedBy)
	if resolvedBy == "" {
		return nil, fmt.Errorf("%w: resolver identity is required", domain.ErrInvalidInput)
	}
	if err := domain.Validate(&domain.ResolveRequest{ResolvedBy: resolvedBy, Notes: notes}); err != nil {
		return nil, err
	}

	var resolved *domain.FraudAlert
	err := s.repo.InTx(ctx, func(st domain.Store) error {
		if err := st.ResolveAlert(ctx, alertID, resolvedBy, notes, s.now()); err != nil {
			return err
		}
		a, err := st.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}
		resolved = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAlertResolved()
	s.logger.Info("fraud alert resolved", "alertId", alertID, "resolvedBy", resolvedBy)
	s.events.publish(ctx, domain.TopicAlertResolved, resolved)
	return resolved, nil
}

// Stats summarises all stored alerts. Critical and high counts cover
// unresolved alerts only.
func (s *AlertService) Stats(ctx context.Context) (*domain.AlertStats, error) {
	total, err := s.repo.CountAlerts(ctx, domain.AlertFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountAlerts(ctx, domain.AlertFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	critical, err := s.repo.CountAlerts(ctx, domain.AlertFilter{ActiveOnly: true, Severity: domain.RiskCritical})
	if err != nil {
		return nil, err
	}
	high, err := s.repo.CountAlerts(ctx, domain.AlertFilter{ActiveOnly: true, Severity: domain.RiskHigh})
	if err != nil {
		return nil, err
	}
	today, err := s.repo.CountAlerts(ctx, domain.AlertFilter{Since: startOfDay(s.now())})
	if err != nil {
		return nil, err
	}

	return &domain.AlertStats{
		Total:          total,
		Active:         active,
		Critical:       critical,
		High:           high,
		Today:          today,
		ResolutionRate: domain.Percent(total-active, total),
	}, nil
}
