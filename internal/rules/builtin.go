package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// BuiltinRules returns the additive fraud rules in evaluation order.
func BuiltinRules() []*domain.RuleConfig {
	return []*domain.RuleConfig{
		{
			ID:          "amount",
			Name:        "Transaction amount",
			Description: "Large absolute amounts in PKR",
			Version:     "1.0",
			Expression:  `amount > 500000.0 ? 0.3 : (amount > 100000.0 ? 0.1 : 0.0)`,
			Reasons: []domain.RuleReason{
				{Condition: `amount > 500000.0`, Reason: "High transaction amount (>5 Lakh PKR)"},
				{Condition: `amount > 100000.0`, Reason: "Large transaction amount (>1 Lakh PKR)"},
			},
			Enabled: true,
		},
		{
			ID:          "business_hours",
			Name:        "Outside business hours",
			Description: "Transactions outside the configured business window",
			Version:     "1.0",
			Expression:  `is_business_hours ? 0.0 : 0.2`,
			Reasons: []domain.RuleReason{
				{Condition: `!is_business_hours`, Reason: "Transaction outside business hours"},
			},
			Enabled: true,
		},
		{
			ID:          "weekend",
			Name:        "Weekend",
			Description: "Friday and Saturday transactions",
			Version:     "1.0",
			Expression:  `is_weekend ? 0.1 : 0.0`,
			Reasons: []domain.RuleReason{
				{Condition: `is_weekend`, Reason: "Weekend transaction"},
			},
			Enabled: true,
		},
		{
			ID:          "late_night",
			Name:        "Late night",
			Description: "Transactions between 23:00 and 05:59",
			Version:     "1.0",
			Expression:  `hour >= 23 || hour <= 5 ? 0.3 : 0.0`,
			Reasons: []domain.RuleReason{
				{Condition: `hour >= 23 || hour <= 5`, Reason: "Late night transaction"},
			},
			Enabled: true,
		},
		{
			ID:          "velocity",
			Name:        "Transaction velocity",
			Description: "Many transactions on the account within the velocity window",
			Version:     "1.0",
			Expression:  `velocity_score > 0.5 ? 0.4 : 0.0`,
			Reasons: []domain.RuleReason{
				{Condition: `velocity_score > 0.5`, Reason: "High transaction velocity"},
			},
			Enabled: true,
		},
		{
			ID:          "balance_ratio",
			Name:        "Share of balance",
			Description: "Amount relative to the account balance",
			Version:     "1.0",
			Expression:  `amount_to_balance_ratio > 0.8 ? 0.4 : (amount_to_balance_ratio > 0.5 ? 0.2 : 0.0)`,
			Reasons: []domain.RuleReason{
				{Condition: `amount_to_balance_ratio > 0.8`, Reason: "Transaction amount >80% of account balance"},
				{Condition: `amount_to_balance_ratio > 0.5`, Reason: "Transaction amount >50% of account balance"},
			},
			Enabled: true,
		},
		{
			ID:          "location",
			Name:        "Location risk",
			Description: "Weighted location risk",
			Version:     "1.0",
			Expression:  `location_risk * 0.3`,
			Reasons: []domain.RuleReason{
				{Condition: `location_risk > 0.3`, Reason: "Suspicious transaction location"},
			},
			Enabled: true,
		},
	}
}
