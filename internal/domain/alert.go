package domain

import (
	"encoding/json"
	"time"
)

// AlertType categorises a fraud alert by score band.
type AlertType string

const (
	AlertCriticalFraud       AlertType = "CRITICAL_FRAUD"
	AlertHighRiskTransaction AlertType = "HIGH_RISK_TRANSACTION"
	AlertSuspiciousActivity  AlertType = "SUSPICIOUS_ACTIVITY"
	AlertAnomalyDetected     AlertType = "ANOMALY_DETECTED"
)

// FraudAlert is raised for a flagged transaction. Alerts are never deleted;
// only the resolution fields change after creation.
type FraudAlert struct {
	ID            string    `json:"alertId"`
	TransactionID string    `json:"transactionId"`
	AccountNumber string    `json:"accountNumber"`
	AlertType     AlertType `json:"alertType"`
	Severity      RiskLevel `json:"severity"`
	Message       string    `json:"message"`
	FraudScore    float64   `json:"fraudScore"`
	RiskFactors   []string  `json:"riskFactors"`
	Timestamp     time.Time `json:"timestamp"`

	// Resolution
	IsResolved      bool       `json:"isResolved"`
	ResolvedBy      string     `json:"resolvedBy,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}

// ResolveRequest is the API request payload for resolving an alert.
type ResolveRequest struct {
	ResolvedBy string `json:"resolvedBy,omitempty" validate:"max=100"`
	Notes      string `json:"notes,omitempty" validate:"max=1000"`
}

// EncodeRiskFactors serialises factors as a JSON array.
func EncodeRiskFactors(factors []string) string {
	if len(factors) == 0 {
		return "[]"
	}
	b, err := json.Marshal(factors)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeRiskFactors parses a JSON array of factors. Empty or malformed input
// yields an empty list.
func DecodeRiskFactors(s string) []string {
	if s == "" {
		return []string{}
	}
	var factors []string
	if err := json.Unmarshal([]byte(s), &factors); err != nil || factors == nil {
		return []string{}
	}
	return factors
}
