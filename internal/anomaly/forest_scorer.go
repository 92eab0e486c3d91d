package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

// Artifact file names inside the model directory.
const (
	ModelFile  = "model.json"
	ScalerFile = "scaler.json"
)

// ForestScorer scores with a Scaler and a Forest, persisted as JSON.
// Score holds a read lock and Retrain swaps both under the write lock, so a
// score never sees a scaler from one fit and a forest from another.
type ForestScorer struct {
	mu     sync.RWMutex
	dir    string
	seed   uint64
	logger *slog.Logger

	scaler    *Scaler
	forest    *Forest
	samples   int
	trainedAt time.Time
}

type modelArtifact struct {
	Forest    *Forest   `json:"forest"`
	Samples   int       `json:"samples"`
	TrainedAt time.Time `json:"trainedAt"`
}

// NewForestScorer loads the artifacts from cfg.Dir, or fits on the synthetic
// bootstrap set and persists the result when they are missing or unreadable.
// An empty Dir keeps the model in memory only.
func NewForestScorer(cfg domain.ModelConfig, logger *slog.Logger) (*ForestScorer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ForestScorer{dir: cfg.Dir, seed: cfg.Seed, logger: logger}

	if cfg.Dir != "" {
		err := s.load()
		if err == nil {
			logger.Info("anomaly model loaded", "dir", cfg.Dir, "samples", s.samples, "trainedAt", s.trainedAt)
			return s, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("discarding unreadable model artifacts", "dir", cfg.Dir, "error", err)
		}
	}

	rows, _ := Synthesize(NewRand(cfg.Seed), BootstrapSize)
	if err := s.Retrain(rows, nil); err != nil {
		return nil, fmt.Errorf("failed to fit bootstrap model: %w", err)
	}
	logger.Info("anomaly model fitted on bootstrap data", "samples", len(rows))
	return s, nil
}

// Score implements Scorer.
func (s *ForestScorer) Score(v features.Vector) (float64, error) {
	if err := checkVector(v); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.forest == nil || s.scaler == nil {
		return 0, ErrNotReady
	}
	return Probability(s.forest.Decision(s.scaler.Transform(v))), nil
}

// Retrain implements Scorer. The model is unsupervised, so labels are only
// checked for length. On any failure the previous model and artifacts stay
// in place.
func (s *ForestScorer) Retrain(rows []features.Vector, labels []int) error {
	if _, err := normaliseLabels(len(rows), labels); err != nil {
		return err
	}
	for _, r := range rows {
		if err := checkVector(r); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	scaler, err := FitScaler(rows)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	forest, err := FitForest(scaler.TransformAll(rows), DefaultTrees, DefaultContamination, NewRand(s.seed))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	generation := uuid.NewString()
	scaler.Generation = generation
	forest.Generation = generation
	trainedAt := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir != "" {
		art := &modelArtifact{Forest: forest, Samples: len(rows), TrainedAt: trainedAt}
		if err := s.persist(art, scaler); err != nil {
			return err
		}
	}

	s.scaler = scaler
	s.forest = forest
	s.samples = len(rows)
	s.trainedAt = trainedAt
	return nil
}

// Info implements Scorer.
func (s *ForestScorer) Info() domain.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := "Active"
	if s.forest == nil {
		status = "Not ready"
	}
	return domain.ModelInfo{
		Version:      domain.ModelVersion,
		Algorithm:    domain.ModelAlgorithm,
		Kind:         KindForest,
		FeatureCount: features.Count,
		Samples:      s.samples,
		TrainedAt:    s.trainedAt,
		Status:       status,
	}
}

func (s *ForestScorer) load() error {
	var art modelArtifact
	if err := readJSON(filepath.Join(s.dir, ModelFile), &art); err != nil {
		return err
	}
	var scaler Scaler
	if err := readJSON(filepath.Join(s.dir, ScalerFile), &scaler); err != nil {
		return err
	}
	if art.Forest == nil || len(art.Forest.Trees) == 0 {
		return fmt.Errorf("model artifact has no trees")
	}
	if art.Forest.Generation != scaler.Generation {
		return fmt.Errorf("model generation %q does not match scaler generation %q",
			art.Forest.Generation, scaler.Generation)
	}

	s.forest = art.Forest
	s.scaler = &scaler
	s.samples = art.Samples
	s.trainedAt = art.TrainedAt
	return nil
}

// persist writes both artifacts to temp files before renaming either, so a
// failed write leaves the old pair untouched.
func (s *ForestScorer) persist(art *modelArtifact, scaler *Scaler) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}

	modelTmp, err := writeTemp(s.dir, ModelFile, art)
	if err != nil {
		return err
	}
	scalerTmp, err := writeTemp(s.dir, ScalerFile, scaler)
	if err != nil {
		os.Remove(modelTmp)
		return err
	}

	if err := os.Rename(scalerTmp, filepath.Join(s.dir, ScalerFile)); err != nil {
		os.Remove(modelTmp)
		os.Remove(scalerTmp)
		return fmt.Errorf("failed to replace scaler: %w", err)
	}
	if err := os.Rename(modelTmp, filepath.Join(s.dir, ModelFile)); err != nil {
		os.Remove(modelTmp)
		return fmt.Errorf("failed to replace model: %w", err)
	}
	return nil
}

func writeTemp(dir, name string, v any) (string, error) {
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return f.Name(), nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
