package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/alerts"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Default listing sizes.
const (
	DefaultAccountLimit = 100
	DefaultFlaggedLimit = 50
)

// Evaluation is the result of a dry-run scoring request.
type Evaluation struct {
	Transaction *domain.Transaction `json:"transaction"`
	*scoring.Outcome
	WouldAlert bool `json:"wouldAlert"`
}

// TransactionService creates and queries scored transactions.
type TransactionService struct {
	repo      domain.Repository
	pipeline  *scoring.Pipeline
	contexts  *ContextBuilder
	generator *alerts.Generator
	events    publisher
	metrics   metrics.Collector
	cfg       domain.FraudConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewTransactionService creates a transaction service. bus and m may be nil.
func NewTransactionService(
	repo domain.Repository,
	pipeline *scoring.Pipeline,
	contexts *ContextBuilder,
	generator *alerts.Generator,
	bus domain.EventBus,
	m metrics.Collector,
	cfg domain.FraudConfig,
	logger *slog.Logger,
) *TransactionService {
	if m == nil {
		m = metrics.NoOpCollector{}
	}
	logger = loggerOrDefault(logger)
	return &TransactionService{
		repo:      repo,
		pipeline:  pipeline,
		contexts:  contexts,
		generator: generator,
		events:    publisher{bus: bus, logger: logger},
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates, scores and stores a transaction. A flagged transaction
// is stored together with its alert in one atomic unit; if either write
// fails neither is kept.
func (s *TransactionService) Create(ctx context.Context, req *domain.TransactionRequest) (*domain.ScoreResponse, error) {
	start := time.Now()

	tx, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	score, err := s.score(ctx, tx)
	if err != nil {
		return nil, err
	}

	tx.FraudScore = score.Score
	tx.RiskLevel = score.RiskLevel
	tx.IsFlagged = score.Flagged()

	var alert *domain.FraudAlert
	if tx.IsFlagged {
		alert = s.generator.Generate(tx, score)
	}

	err = s.repo.InTx(ctx, func(st domain.Store) error {
		if err := st.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		if alert != nil {
			return st.SaveAlert(ctx, alert)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to store scored transaction",
			"transactionId", tx.ID,
			"error", err,
		)
		return nil, err
	}

	event := TransactionScoredEvent{Transaction: tx, Score: score}
	if alert != nil {
		event.AlertID = alert.ID
		s.metrics.RecordAlertCreated(alert.AlertType, alert.Severity)
		s.logger.Info("fraud alert created",
			"alertId", alert.ID,
			"transactionId", tx.ID,
			"severity", alert.Severity,
			"score", score.Score,
		)
	}
	s.events.publish(ctx, domain.TopicTransactionScored, event)
	if alert != nil {
		s.events.publish(ctx, domain.TopicAlertCreated, alert)
	}

	return &domain.ScoreResponse{
		Transaction: tx,
		Score:       score,
		Alert:       alert,
		ProcessMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Evaluate scores a transaction without storing it or raising an alert.
func (s *TransactionService) Evaluate(ctx context.Context, req *domain.TransactionRequest) (*Evaluation, error) {
	tx, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	cctx, err := s.contexts.Build(ctx, tx.AccountNumber, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to build customer context: %w", err)
	}

	out := s.pipeline.Evaluate(ctx, tx, cctx)
	tx.FraudScore = out.Score.Score
	tx.RiskLevel = out.Score.RiskLevel
	tx.IsFlagged = out.Score.Flagged()

	return &Evaluation{Transaction: tx, Outcome: out, WouldAlert: tx.IsFlagged}, nil
}

func (s *TransactionService) prepare(req *domain.TransactionRequest) (*domain.Transaction, error) {
	if req == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	if req.Amount > s.cfg.MaxTransactionAmount {
		return nil, fmt.Errorf("%w: amount exceeds maximum of %.2f", domain.ErrInvalidInput, s.cfg.MaxTransactionAmount)
	}
	return req.ToTransaction(s.now(), s.cfg.Currency), nil
}

func (s *TransactionService) score(ctx context.Context, tx *domain.Transaction) (*domain.FraudScore, error) {
	cctx, err := s.contexts.Build(ctx, tx.AccountNumber, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to build customer context: %w", err)
	}

	start := time.Now()
	score := s.pipeline.Score(ctx, tx, cctx)
	s.metrics.RecordScore(score.RiskLevel, score.Fallback, time.Since(start))
	return score, nil
}

// Get returns a transaction by ID.
func (s *TransactionService) Get(ctx context.Context, txID string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, txID)
}

// List returns transactions matching f, newest first. An unset limit
// defaults to DefaultAccountLimit.
func (s *TransactionService) List(ctx context.Context, f domain.TransactionFilter) ([]*domain.Transaction, error) {
	f.Limit = clampLimit(f.Limit, DefaultAccountLimit)
	return s.repo.ListTransactions(ctx, f)
}

// ListByAccount returns the most recent transactions of an account.
func (s *TransactionService) ListByAccount(ctx context.Context, accountNumber string, limit int) ([]*domain.Transaction, error) {
	if accountNumber == "" {
		return nil, fmt.Errorf("%w: account number is required", domain.ErrInvalidInput)
	}
	return s.List(ctx, domain.TransactionFilter{
		AccountNumber: accountNumber,
		Limit:         clampLimit(limit, DefaultAccountLimit),
	})
}

// ListFlagged returns the most recent flagged transactions.
func (s *TransactionService) ListFlagged(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	return s.List(ctx, domain.TransactionFilter{
		FlaggedOnly: true,
		Limit:       clampLimit(limit, DefaultFlaggedLimit),
	})
}

// Stats summarises all stored transactions.
func (s *TransactionService) Stats(ctx context.Context) (*domain.TransactionStats, error) {
	total, err := s.repo.CountTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	flagged, err := s.repo.CountTransactions(ctx, domain.TransactionFilter{FlaggedOnly: true})
	if err != nil {
		return nil, err
	}
	today, err := s.repo.CountTransactions(ctx, domain.TransactionFilter{Since: startOfDay(s.now())})
	if err != nil {
		return nil, err
	}
	highRisk, err := s.repo.CountTransactions(ctx, domain.TransactionFilter{MinScore: domain.FlagThreshold})
	if err != nil {
		return nil, err
	}
	volume, err := s.repo.SumTransactionAmount(ctx, domain.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	return &domain.TransactionStats{
		Total:       total,
		Flagged:     flagged,
		Today:       today,
		HighRisk:    highRisk,
		TotalVolume: volume,
		FraudRate:   domain.Percent(flagged, total),
	}, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
