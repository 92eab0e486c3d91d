package domain

import (
	"time"
)

// Model identity reported on every score.
const (
	ModelVersion   = "1.0"
	ModelAlgorithm = "Isolation Forest + Rule-based"
)

// Confidence values attached to a FraudScore.
const (
	ConfidenceNormal   = 0.85
	ConfidenceFallback = 0.5
)

// FlagThreshold is the fixed score at or above which a transaction is flagged
// and an alert is raised. It does not follow FraudConfig.FraudThreshold.
const FlagThreshold = 0.7

// FallbackScore values are returned when scoring fails for any reason.
const (
	FallbackScoreValue = 0.8
	FallbackReason     = "Model error - manual review required"
)

// FraudScore is the outcome of scoring one transaction. It is not persisted
// on its own; its fields are copied onto the Transaction.
type FraudScore struct {
	TransactionID string    `json:"transactionId"`
	Score         float64   `json:"fraudScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	RiskFactors   []string  `json:"riskFactors"`
	Confidence    float64   `json:"confidence"`
	ModelVersion  string    `json:"modelVersion"`
	Timestamp     time.Time `json:"timestamp"`

	// Component scores, zero on fallback.
	AnomalyScore float64 `json:"anomalyScore"`
	RuleScore    float64 `json:"ruleScore"`

	Fallback bool `json:"fallback,omitempty"`
}

// Flagged reports whether the score crosses the alerting cutoff.
func (s *FraudScore) Flagged() bool {
	return s.Score >= FlagThreshold
}

// FallbackScore builds the conservative score used when the pipeline fails.
func FallbackScore(txID string, at time.Time) *FraudScore {
	return &FraudScore{
		TransactionID: txID,
		Score:         FallbackScoreValue,
		RiskLevel:     RiskHigh,
		RiskFactors:   []string{FallbackReason},
		Confidence:    ConfidenceFallback,
		ModelVersion:  ModelVersion,
		Timestamp:     at,
		Fallback:      true,
	}
}

// ScoreResponse is the API response for a scored transaction.
type ScoreResponse struct {
	Transaction *Transaction `json:"transaction"`
	Score       *FraudScore  `json:"score"`
	Alert       *FraudAlert  `json:"alert,omitempty"`
	TraceID     string       `json:"traceId,omitempty"`
	ProcessMs   int64        `json:"processMs"`
}

// ModelInfo describes the active anomaly model.
type ModelInfo struct {
	Version           string    `json:"version"`
	Algorithm         string    `json:"algorithm"`
	Kind              string    `json:"kind"`
	FeatureCount      int       `json:"featureCount"`
	Samples           int       `json:"samples"`
	TrainedAt         time.Time `json:"trainedAt"`
	FraudThreshold    float64   `json:"fraudThreshold"`
	HighRiskThreshold float64   `json:"highRiskThreshold"`
	Status            string    `json:"status"`
}
