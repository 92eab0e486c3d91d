package scoring

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/anomaly"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/rules"
)

const epsilon = 1e-9

// Tuesday 2025-03-11 14:00 UTC: business hours, weekday.
var businessHour = time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)

type panicScorer struct{ anomaly.StubScorer }

func (*panicScorer) Score(features.Vector) (float64, error) { panic("corrupt model") }

func newPipeline(t *testing.T, model anomaly.Scorer) *Pipeline {
	t.Helper()
	cfg := domain.DefaultConfig().Fraud
	extractor, err := features.NewExtractor(cfg)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("NewDefaultEngine failed: %v", err)
	}
	return NewPipeline(extractor, model, engine, cfg, nil)
}

func TestClassify(t *testing.T) {
	c := Classifier{FraudThreshold: 0.7, HighRiskThreshold: 0.8}
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0, domain.RiskLow},
		{0.39, domain.RiskLow},
		{0.4, domain.RiskMedium},
		{0.69, domain.RiskMedium},
		{0.7, domain.RiskHigh},
		{0.79, domain.RiskHigh},
		{0.8, domain.RiskCritical},
		{1, domain.RiskCritical},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.score); got != tc.want {
			t.Errorf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}

	t.Run("Monotonic", func(t *testing.T) {
		prev := -1
		for i := 0; i <= 1000; i++ {
			rank := c.Classify(float64(i) / 1000).Rank()
			if rank < prev {
				t.Fatalf("level decreased at score %v", float64(i)/1000)
			}
			prev = rank
		}
	})
}

func TestCombine(t *testing.T) {
	if got := Combine(1, 1); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := Combine(0.5, 0.5); math.Abs(got-0.5) > epsilon {
		t.Errorf("expected 0.5, got %v", got)
	}
	if got := Combine(0, 1); math.Abs(got-0.3) > epsilon {
		t.Errorf("expected 0.3, got %v", got)
	}
	if got := Combine(2, 2); got != 1 {
		t.Errorf("expected clamp to 1, got %v", got)
	}
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	stub := anomaly.NewStubScorer(0.2) // probability 0.4
	p := newPipeline(t, stub)

	t.Run("QuietTransactionIsLow", func(t *testing.T) {
		tx := &domain.Transaction{ID: "TXN000000000001", Amount: 50000, Type: domain.TxTransfer, Timestamp: businessHour}
		cctx := &domain.CustomerContext{AccountBalance: 500000}

		out := p.Evaluate(ctx, tx, cctx)
		if math.Abs(out.Score.RuleScore-0.03) > epsilon {
			t.Errorf("expected rule score 0.03 from empty location, got %v", out.Score.RuleScore)
		}
		if out.Score.RiskLevel != domain.RiskLow {
			t.Errorf("expected low, got %s (%v)", out.Score.RiskLevel, out.Score.Score)
		}
		if out.Score.Flagged() {
			t.Error("quiet transaction should not be flagged")
		}
		if out.Score.Confidence != 0.85 || out.Score.ModelVersion != "1.0" {
			t.Errorf("unexpected confidence/version: %v %s", out.Score.Confidence, out.Score.ModelVersion)
		}
	})

	t.Run("ExactlyFlagThreshold", func(t *testing.T) {
		stub.SetRaw(-1) // probability 1
		defer stub.SetRaw(0.2)

		tx := &domain.Transaction{ID: "TXN000000000002", Amount: 1000, Location: "Lahore", Timestamp: businessHour}
		s := p.Score(ctx, tx, &domain.CustomerContext{AccountBalance: 100000})
		if s.Score != 0.7 {
			t.Fatalf("expected final score exactly 0.7, got %v", s.Score)
		}
		if !s.Flagged() {
			t.Error("score 0.7 must be flagged")
		}
		if s.RiskLevel != domain.RiskHigh {
			t.Errorf("expected high, got %s", s.RiskLevel)
		}
	})

	t.Run("MultipleIndicators", func(t *testing.T) {
		stub.SetRaw(-1)
		defer stub.SetRaw(0.2)

		late := time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC) // Friday 02:00
		var recent []*domain.Transaction
		for i := 1; i <= 8; i++ {
			recent = append(recent, &domain.Transaction{Timestamp: late.Add(-time.Duration(i) * time.Minute)})
		}
		tx := &domain.Transaction{ID: "TXN000000000003", Amount: 900000, Location: "offshore", Timestamp: late}
		s := p.Score(ctx, tx, &domain.CustomerContext{AccountBalance: 1000000, RecentTransactions: recent})

		if s.Score != 1 {
			t.Errorf("expected 1, got %v", s.Score)
		}
		if s.RiskLevel != domain.RiskCritical {
			t.Errorf("expected critical, got %s", s.RiskLevel)
		}
		if last := s.RiskFactors[len(s.RiskFactors)-1]; last != MultipleIndicatorsReason {
			t.Errorf("expected %q last, got %q", MultipleIndicatorsReason, last)
		}
		if s.RiskFactors[0] != "High transaction amount (>5 Lakh PKR)" {
			t.Errorf("expected amount factor first, got %q", s.RiskFactors[0])
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		tx := &domain.Transaction{ID: "TXN000000000004", Amount: 250000, Location: "foreign", Timestamp: businessHour}
		cctx := &domain.CustomerContext{AccountBalance: 300000}
		a := p.Score(ctx, tx, cctx)
		b := p.Score(ctx, tx, cctx)
		if a.Score != b.Score || a.RiskLevel != b.RiskLevel || len(a.RiskFactors) != len(b.RiskFactors) {
			t.Errorf("expected identical scores, got %+v and %+v", a, b)
		}
	})
}

func TestPipelineFallback(t *testing.T) {
	ctx := context.Background()
	tx := &domain.Transaction{ID: "TXN000000000005", Amount: 1000, Timestamp: businessHour}

	assertFallback := func(t *testing.T, s *domain.FraudScore) {
		t.Helper()
		if s.Score != 0.8 {
			t.Errorf("expected fallback score 0.8, got %v", s.Score)
		}
		if s.RiskLevel != domain.RiskHigh {
			t.Errorf("expected high, got %s", s.RiskLevel)
		}
		if s.Confidence != 0.5 {
			t.Errorf("expected confidence 0.5, got %v", s.Confidence)
		}
		if len(s.RiskFactors) != 1 || s.RiskFactors[0] != domain.FallbackReason {
			t.Errorf("unexpected factors: %v", s.RiskFactors)
		}
		if !s.Fallback {
			t.Error("expected fallback marker")
		}
	}

	t.Run("ScorerError", func(t *testing.T) {
		stub := anomaly.NewStubScorer(0)
		stub.SetError(errors.New("model file missing"))
		assertFallback(t, newPipeline(t, stub).Score(ctx, tx, nil))
	})

	t.Run("ScorerPanic", func(t *testing.T) {
		assertFallback(t, newPipeline(t, &panicScorer{}).Score(ctx, tx, nil))
	})

	t.Run("BadVector", func(t *testing.T) {
		bad := *tx
		bad.Amount = math.Inf(1)
		assertFallback(t, newPipeline(t, anomaly.NewStubScorer(0)).Score(ctx, &bad, nil))
	})

	t.Run("RuleError", func(t *testing.T) {
		p := newPipeline(t, anomaly.NewStubScorer(0))
		_ = p.engine.LoadRule(&domain.RuleConfig{ID: "div", Expression: "1 / (hour - hour)", Enabled: true})
		assertFallback(t, p.Score(ctx, tx, nil))
	})
}

func TestPipelineWithForest(t *testing.T) {
	model, err := anomaly.NewForestScorer(domain.ModelConfig{Kind: anomaly.KindForest, Seed: 42}, nil)
	if err != nil {
		t.Fatalf("NewForestScorer failed: %v", err)
	}
	p := newPipeline(t, model)

	tx := &domain.Transaction{ID: "TXN000000000006", Amount: 600000, Type: domain.TxTransfer, Timestamp: businessHour}
	cctx := &domain.CustomerContext{AccountBalance: 600000 / 0.9}
	s := p.Score(context.Background(), tx, cctx)

	if s.RuleScore < 0.7-epsilon {
		t.Errorf("expected rule score at least 0.7, got %v", s.RuleScore)
	}
	if s.RiskLevel.Rank() < domain.RiskMedium.Rank() {
		t.Errorf("expected at least medium, got %s (final %v, anomaly %v)", s.RiskLevel, s.Score, s.AnomalyScore)
	}
}
