package domain

// RuleConfig defines a fraud scoring rule.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// Expression is a CEL expression over the feature names that yields the
	// rule's score contribution.
	Expression string `json:"expression"`

	// Reasons are checked in order; the first matching condition supplies
	// the risk factor.
	Reasons []RuleReason `json:"reasons"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleReason maps a CEL boolean condition to a risk factor.
type RuleReason struct {
	Condition string `json:"condition"`
	Reason    string `json:"reason"`
}

// RuleResult is the output of a rule evaluation.
type RuleResult struct {
	RuleID       string  `json:"ruleId"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason,omitempty"`
	Error        string  `json:"error,omitempty"`
}
