package domain

import "time"

// TransactionStats summarises stored transactions.
type TransactionStats struct {
	Total       int     `json:"totalTransactions"`
	Flagged     int     `json:"flaggedTransactions"`
	Today       int     `json:"todayTransactions"`
	HighRisk    int     `json:"highRiskTransactions"`
	TotalVolume float64 `json:"totalVolume"`
	FraudRate   float64 `json:"fraudRate"` // percent
}

// AlertStats summarises stored alerts.
type AlertStats struct {
	Total          int     `json:"totalAlerts"`
	Active         int     `json:"activeAlerts"`
	Critical       int     `json:"criticalAlerts"`
	High           int     `json:"highAlerts"`
	Today          int     `json:"todayAlerts"`
	ResolutionRate float64 `json:"resolutionRate"` // percent
}

// DashboardSnapshot is the periodically refreshed dashboard summary.
type DashboardSnapshot struct {
	Transactions TransactionStats `json:"transactions"`
	Alerts       AlertStats       `json:"alerts"`
	RefreshedAt  time.Time        `json:"refreshedAt"`
}

// Percent returns part/total*100, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
