package anomaly

import (
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

// StubScorer returns a fixed decision value, or a fixed error.
type StubScorer struct {
	mu        sync.RWMutex
	raw       float64
	err       error
	samples   int
	trainedAt time.Time
}

// NewStubScorer creates a stub that reports raw as its decision value.
func NewStubScorer(raw float64) *StubScorer {
	return &StubScorer{raw: raw, trainedAt: time.Now().UTC()}
}

// SetRaw changes the decision value.
func (s *StubScorer) SetRaw(raw float64) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// SetError makes every Score call fail with err. Pass nil to clear.
func (s *StubScorer) SetError(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Score implements Scorer.
func (s *StubScorer) Score(v features.Vector) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return 0, s.err
	}
	if err := checkVector(v); err != nil {
		return 0, err
	}
	return Probability(s.raw), nil
}

// Retrain implements Scorer. It only records the sample count.
func (s *StubScorer) Retrain(rows []features.Vector, labels []int) error {
	if _, err := normaliseLabels(len(rows), labels); err != nil {
		return err
	}
	s.mu.Lock()
	s.samples = len(rows)
	s.trainedAt = time.Now().UTC()
	s.mu.Unlock()
	return nil
}

// Info implements Scorer.
func (s *StubScorer) Info() domain.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ModelInfo{
		Version:      domain.ModelVersion,
		Algorithm:    domain.ModelAlgorithm,
		Kind:         KindStub,
		FeatureCount: features.Count,
		Samples:      s.samples,
		TrainedAt:    s.trainedAt,
		Status:       "Active",
	}
}
