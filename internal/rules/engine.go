// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
)

// Engine is the CEL-based rule evaluation engine. Rules are evaluated in
// load order, which also fixes the order of the returned risk factors.
type Engine struct {
	mu    sync.RWMutex
	env   *cel.Env
	rules []*CompiledRule
}

// CompiledRule holds the pre-compiled CEL programs of one rule.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
	Reasons []compiledReason
}

type compiledReason struct {
	program cel.Program
	reason  string
}

// Result is the outcome of evaluating every loaded rule.
type Result struct {
	// Score is the clamped sum of all contributions.
	Score   float64
	Factors []string
	Rules   []domain.RuleResult
}

// NewEngine creates a rule engine whose variables are the feature names.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("day_of_week", cel.IntType),
		cel.Variable("is_weekend", cel.BoolType),
		cel.Variable("is_business_hours", cel.BoolType),
		cel.Variable("amount_to_balance_ratio", cel.DoubleType),
		cel.Variable("velocity_score", cel.DoubleType),
		cel.Variable("location_risk", cel.DoubleType),
		cel.Variable("time_risk", cel.DoubleType),
		cel.Variable("transaction_type_encoded", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// NewDefaultEngine creates an engine with the built-in rules loaded.
func NewDefaultEngine() (*Engine, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}
	if err := e.LoadRules(BuiltinRules()); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadRule compiles a rule and appends it to the evaluation order.
// Loading a rule with an existing ID replaces it in place.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.Config.ID == cfg.ID {
			e.rules[i] = compiled
			return nil
		}
	}
	e.rules = append(e.rules, compiled)
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate runs every loaded rule against the feature set. Any evaluation
// error is returned after all rules have run; callers treat it as a scoring
// failure.
func (e *Engine) Evaluate(set features.Set) (*Result, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, len(e.rules))
	copy(rules, e.rules)
	e.mu.RUnlock()

	activation := set.Activation()
	res := &Result{
		Factors: []string{},
		Rules:   make([]domain.RuleResult, 0, len(rules)),
	}

	var errs []error
	sum := 0.0
	for _, rule := range rules {
		rr, err := evaluateRule(rule, activation)
		if err != nil {
			errs = append(errs, err)
		}
		sum += rr.Contribution
		if rr.Reason != "" {
			res.Factors = append(res.Factors, rr.Reason)
		}
		res.Rules = append(res.Rules, rr)
	}
	res.Score = clamp01(sum)

	return res, errors.Join(errs...)
}

// evaluateRule evaluates a single rule and returns the result.
func evaluateRule(rule *CompiledRule, activation map[string]any) (domain.RuleResult, error) {
	result := domain.RuleResult{RuleID: rule.Config.ID}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("rule %s: %w", rule.Config.ID, err)
	}
	result.Contribution = toScore(out)

	for _, r := range rule.Reasons {
		matched, _, err := r.program.Eval(activation)
		if err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("rule %s reason: %w", rule.Config.ID, err)
		}
		if matched == types.True {
			result.Reason = r.reason
			break
		}
	}
	return result, nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

func clamp01(x float64) float64 {
	return max(0, min(x, 1))
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// GetLoadedRules returns the loaded rule configurations in evaluation order.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.rules))
	for _, compiled := range e.rules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	program, err := e.compile(cfg.ID, cfg.Expression, cel.DoubleType, cel.IntType)
	if err != nil {
		return nil, err
	}

	compiled := &CompiledRule{Config: cfg, Program: program}
	for _, r := range cfg.Reasons {
		p, err := e.compile(cfg.ID, r.Condition, cel.BoolType)
		if err != nil {
			return nil, err
		}
		compiled.Reasons = append(compiled.Reasons, compiledReason{program: p, reason: r.Reason})
	}
	return compiled, nil
}

func (e *Engine) compile(id, expr string, allowed ...*cel.Type) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", id, issues.Err())
	}

	outputType := ast.OutputType()
	ok := false
	for _, t := range allowed {
		if outputType.IsExactType(t) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("rule %s: expression %q returns %s", id, expr, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", id, err)
	}
	return program, nil
}
