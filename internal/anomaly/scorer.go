// Package anomaly holds the unsupervised outlier model that turns a feature
// vector into a fraud probability.
package anomaly

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

// Model kinds accepted by New.
const (
	KindForest = "forest"
	KindStub   = "stub"
)

var (
	// ErrNotReady is returned when no model has been fitted or loaded.
	ErrNotReady = errors.New("anomaly model not ready")

	// ErrBadVector is returned for vectors containing NaN or infinite values.
	ErrBadVector = errors.New("feature vector contains NaN or Inf")
)

// Scorer produces a fraud probability from a feature vector.
type Scorer interface {
	// Score returns a probability in [0, 1]; higher means more anomalous.
	Score(v features.Vector) (float64, error)

	// Retrain refits the model from scratch and replaces any persisted
	// artifacts. labels may be nil, in which case every row is "not fraud".
	Retrain(rows []features.Vector, labels []int) error

	// Info describes the active model.
	Info() domain.ModelInfo
}

// New creates the scorer selected by cfg.Kind.
func New(cfg domain.ModelConfig, logger *slog.Logger) (Scorer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindForest, "":
		return NewForestScorer(cfg, logger)
	case KindStub:
		return NewStubScorer(cfg.StubRaw), nil
	default:
		return nil, fmt.Errorf("unsupported model kind: %s", cfg.Kind)
	}
}

// Probability maps a raw decision value, positive for inliers, onto [0, 1].
func Probability(raw float64) float64 {
	return max(0, min((1-raw)/2, 1))
}

func checkVector(v features.Vector) error {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ErrBadVector
		}
	}
	return nil
}

func normaliseLabels(n int, labels []int) ([]int, error) {
	if labels == nil {
		return make([]int, n), nil
	}
	if len(labels) != n {
		return nil, fmt.Errorf("%w: %d labels for %d rows", domain.ErrInvalidInput, len(labels), n)
	}
	return labels, nil
}
