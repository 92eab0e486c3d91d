package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

// MinRetrainSamples is the fewest stored transactions a retrain accepts.
const MinRetrainSamples = 10

// RetrainRequest selects the history used to refit the anomaly model.
type RetrainRequest struct {
	// Since bounds the history; zero means all stored transactions.
	Since time.Time `json:"since,omitempty"`

	// Labels maps transaction IDs to 1 (fraud) or 0. Missing IDs are 0.
	Labels map[string]int `json:"labels,omitempty"`
}

// ModelService retrains and describes the anomaly model.
type ModelService struct {
	repo      domain.Store
	model     anomaly.Scorer
	extractor *features.Extractor
	cfg       domain.FraudConfig
	logger    *slog.Logger
}

// NewModelService creates a model service.
func NewModelService(repo domain.Store, model anomaly.Scorer, extractor *features.Extractor, cfg domain.FraudConfig, logger *slog.Logger) *ModelService {
	return &ModelService{
		repo:      repo,
		model:     model,
		extractor: extractor,
		cfg:       cfg,
		logger:    loggerOrDefault(logger),
	}
}

// Retrain refits the model from stored transactions. Features are extracted
// without customer context. On failure the active model is unchanged.
func (s *ModelService) Retrain(ctx context.Context, req RetrainRequest) (*domain.ModelInfo, error) {
	txs, err := s.repo.ListTransactions(ctx, domain.TransactionFilter{Since: req.Since})
	if err != nil {
		return nil, err
	}
	if len(txs) < MinRetrainSamples {
		return nil, fmt.Errorf("%w: need at least %d transactions to retrain, have %d",
			domain.ErrInvalidInput, MinRetrainSamples, len(txs))
	}

	rows := make([]features.Vector, len(txs))
	labels := make([]int, len(txs))
	for i, tx := range txs {
		rows[i] = s.extractor.Extract(tx, nil).Vector()
		if l, ok := req.Labels[tx.ID]; ok {
			if l != 0 && l != 1 {
				return nil, fmt.Errorf("%w: label for %s must be 0 or 1", domain.ErrInvalidInput, tx.ID)
			}
			labels[i] = l
		}
	}

	start := time.Now()
	if err := s.model.Retrain(rows, labels); err != nil {
		s.logger.Error("model retrain failed", "samples", len(rows), "error", err)
		return nil, err
	}
	s.logger.Info("model retrained",
		"samples", len(rows),
		"duration", time.Since(start),
	)

	info := s.Info()
	return &info, nil
}

// Info describes the active model and the classification thresholds.
func (s *ModelService) Info() domain.ModelInfo {
	info := s.model.Info()
	info.FraudThreshold = s.cfg.FraudThreshold
	info.HighRiskThreshold = s.cfg.HighRiskThreshold
	return info
}
