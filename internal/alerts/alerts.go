// Package alerts builds fraud alerts for flagged transactions.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Alert score bands. These are independent of the risk classifier's
// thresholds: a score of 0.85 is a critical risk level but a high alert.
const (
	CriticalBand   = 0.9
	HighBand       = 0.7
	SuspiciousBand = 0.5
	MediumBand     = 0.4
)

// maxMessageFactors is how many risk factors are quoted in a message.
const maxMessageFactors = 3

// TypeFor returns the alert type for a score.
func TypeFor(score float64) domain.AlertType {
	switch {
	case score >= CriticalBand:
		return domain.AlertCriticalFraud
	case score >= HighBand:
		return domain.AlertHighRiskTransaction
	case score >= SuspiciousBand:
		return domain.AlertSuspiciousActivity
	default:
		return domain.AlertAnomalyDetected
	}
}

// SeverityFor returns the alert severity for a score.
func SeverityFor(score float64) domain.RiskLevel {
	switch {
	case score >= CriticalBand:
		return domain.RiskCritical
	case score >= HighBand:
		return domain.RiskHigh
	case score >= MediumBand:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Message renders the human-readable alert text.
func Message(tx *domain.Transaction, score float64, factors []string) string {
	var prefix string
	switch {
	case score >= CriticalBand:
		prefix = "🚨 CRITICAL FRAUD ALERT"
	case score >= HighBand:
		prefix = "⚠️ HIGH RISK"
	case score >= SuspiciousBand:
		prefix = "🔍 SUSPICIOUS"
	default:
		prefix = "📊 ANOMALY"
	}

	msg := fmt.Sprintf("%s: %s transaction on account %s",
		prefix, FormatCurrency(tx.Amount, tx.Currency), MaskAccount(tx.AccountNumber))

	if len(factors) > 0 {
		msg += " | Risk factors: " + strings.Join(factors[:min(len(factors), maxMessageFactors)], ", ")
	}
	return msg
}

// Generator creates alerts.
type Generator struct {
	now func() time.Time
}

// NewGenerator creates an alert generator. A nil clock uses the wall clock.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Generator{now: now}
}

// Generate builds an unresolved alert for tx from its fraud score.
func (g *Generator) Generate(tx *domain.Transaction, score *domain.FraudScore) *domain.FraudAlert {
	factors := append([]string{}, score.RiskFactors...)
	return &domain.FraudAlert{
		ID:            uuid.New().String(),
		TransactionID: tx.ID,
		AccountNumber: tx.AccountNumber,
		AlertType:     TypeFor(score.Score),
		Severity:      SeverityFor(score.Score),
		Message:       Message(tx, score.Score, factors),
		FraudScore:    score.Score,
		RiskFactors:   factors,
		Timestamp:     g.now(),
	}
}
