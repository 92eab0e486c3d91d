// Package scoring runs the fraud-scoring pipeline: feature extraction,
// anomaly model, rule engine, score combination and risk classification.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Blend weights of the two component scores.
const (
	AnomalyWeight = 0.7
	RuleWeight    = 0.3
)

// MediumThreshold is the lower bound of the MEDIUM risk level.
const MediumThreshold = 0.4

// MultipleIndicatorsScore is the combined score above which the
// multiple-indicators factor is appended.
const MultipleIndicatorsScore = 0.8

// MultipleIndicatorsReason is appended for very high combined scores.
const MultipleIndicatorsReason = "Multiple high-risk indicators detected"

var tracer = otel.Tracer("kestrel-scoring")

// Classifier maps a final score onto a risk level.
type Classifier struct {
	FraudThreshold    float64
	HighRiskThreshold float64
}

// Classify returns critical at or above HighRiskThreshold, high at or above
// FraudThreshold, medium at or above 0.4 and low otherwise.
func (c Classifier) Classify(score float64) domain.RiskLevel {
	switch {
	case score >= c.HighRiskThreshold:
		return domain.RiskCritical
	case score >= c.FraudThreshold:
		return domain.RiskHigh
	case score >= MediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Combine blends the anomaly and rule scores and clamps to [0, 1].
func Combine(anomalyScore, ruleScore float64) float64 {
	return max(0, min(anomalyScore*AnomalyWeight+ruleScore*RuleWeight, 1))
}

// Outcome is a FraudScore plus the intermediate values that produced it.
type Outcome struct {
	Score    *domain.FraudScore  `json:"score"`
	Features features.Set        `json:"features"`
	Rules    []domain.RuleResult `json:"rules"`
}

// Pipeline scores transactions. It holds no per-request state and is safe
// for concurrent use.
type Pipeline struct {
	extractor  *features.Extractor
	model      anomaly.Scorer
	engine     *rules.Engine
	classifier Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(extractor *features.Extractor, model anomaly.Scorer, engine *rules.Engine, cfg domain.FraudConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		model:     model,
		engine:    engine,
		classifier: Classifier{
			FraudThreshold:    cfg.FraudThreshold,
			HighRiskThreshold: cfg.HighRiskThreshold,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Classifier returns the pipeline's risk classifier.
func (p *Pipeline) Classifier() Classifier {
	return p.classifier
}

// Score returns the fraud score of tx. It never fails: any error or panic
// in the pipeline yields the fallback score.
func (p *Pipeline) Score(ctx context.Context, tx *domain.Transaction, cctx *domain.CustomerContext) *domain.FraudScore {
	return p.Evaluate(ctx, tx, cctx).Score
}

// Evaluate is Score with the intermediate features and rule results.
func (p *Pipeline) Evaluate(ctx context.Context, tx *domain.Transaction, cctx *domain.CustomerContext) (out *Outcome) {
	_, span := tracer.Start(ctx, "scoring.Evaluate",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID),
			attribute.Bool("customer.context", cctx != nil),
		),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			out = p.fallback(tx, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "scoring fallback")
		}
	}()

	out, err := p.evaluate(tx, cctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring fallback")
		return p.fallback(tx, err)
	}

	span.SetAttributes(
		attribute.Float64("score.final", out.Score.Score),
		attribute.String("score.level", string(out.Score.RiskLevel)),
	)
	return out
}

func (p *Pipeline) evaluate(tx *domain.Transaction, cctx *domain.CustomerContext) (*Outcome, error) {
	if p.model == nil || p.engine == nil || p.extractor == nil {
		return nil, fmt.Errorf("scoring pipeline is not fully configured")
	}

	set := p.extractor.Extract(tx, cctx)

	anomalyScore, err := p.model.Score(set.Vector())
	if err != nil {
		return nil, fmt.Errorf("anomaly model: %w", err)
	}

	ruleRes, err := p.engine.Evaluate(set)
	if err != nil {
		return nil, fmt.Errorf("rule engine: %w", err)
	}

	final := Combine(anomalyScore, ruleRes.Score)
	factors := append([]string{}, ruleRes.Factors...)
	if final > MultipleIndicatorsScore {
		factors = append(factors, MultipleIndicatorsReason)
	}

	return &Outcome{
		Score: &domain.FraudScore{
			TransactionID: tx.ID,
			Score:         final,
			RiskLevel:     p.classifier.Classify(final),
			RiskFactors:   factors,
			Confidence:    domain.ConfidenceNormal,
			ModelVersion:  domain.ModelVersion,
			Timestamp:     p.now(),
			AnomalyScore:  anomalyScore,
			RuleScore:     ruleRes.Score,
		},
		Features: set,
		Rules:    ruleRes.Rules,
	}, nil
}

func (p *Pipeline) fallback(tx *domain.Transaction, err error) *Outcome {
	p.logger.Error("scoring failed, using fallback score",
		"transactionId", tx.ID,
		"error", err,
	)
	return &Outcome{
		Score: domain.FallbackScore(tx.ID, p.now()),
		Rules: []domain.RuleResult{},
	}
}
