// Package riskrules provides a CEL-based engine for custom risk-factor
// rules. Rules are boolean CEL expressions over the extracted feature map
// and the raw transaction fields; a rule that fires contributes its reason
// string to the prediction's risk factors. Rules annotate explanations
// only; they never change the model's probability or tier.
package riskrules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// Rule is a configurable risk-factor rule.
type Rule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Reason     string `json:"reason"`
	Enabled    bool   `json:"enabled"`
}

// Engine compiles and evaluates risk-factor rules.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledRule
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// NewEngine creates a rule engine with the scoring-context variables bound.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("features", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("device", cel.StringType),
		cel.Variable("merchant", cel.StringType),
		cel.Variable("user_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string]*compiledRule),
	}, nil
}

// LoadRule compiles and installs one rule. The expression must produce a
// boolean.
func (e *Engine) LoadRule(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if rule.Reason == "" {
		return fmt.Errorf("rule %s: reason is required", rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("rule %s: compile failed: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("rule %s: program failed: %w", rule.ID, err)
	}

	e.mu.Lock()
	e.compiled[rule.ID] = &compiledRule{rule: rule, program: program}
	e.mu.Unlock()
	return nil
}

// LoadRules installs every enabled rule, failing on the first bad one.
func (e *Engine) LoadRules(rules []Rule) error {
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if err := e.LoadRule(r); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of loaded rules.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Evaluate runs every loaded rule against the transaction and its feature
// vector, returning the reasons of the rules that fired. Output order is
// by rule ID so repeated evaluations of the same input agree.
func (e *Engine) Evaluate(tx *domain.Transaction, fv domain.FeatureVector) []string {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].rule.ID < rules[j].rule.ID })

	featureMap := make(map[string]float64, len(fv))
	for k, v := range fv {
		featureMap[k] = v
	}

	activation := map[string]any{
		"features": featureMap,
		"amount":   tx.Amount,
		"category": string(tx.Category),
		"location": tx.Location,
		"device":   tx.Device,
		"merchant": tx.Merchant,
		"user_id":  tx.UserID,
	}

	var reasons []string
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			// A broken rule must not block scoring; it simply does not
			// contribute a factor.
			continue
		}
		if out == types.True {
			reasons = append(reasons, r.rule.Reason)
		}
	}
	return reasons
}

// DefaultRules returns the rules shipped with the service. Deployments add
// their own on top via configuration.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "new-user-high-value",
			Name:       "High value from new user",
			Expression: `features["is_new_user"] == 1.0 && features["is_high_value"] == 1.0`,
			Reason:     "High-value purchase from a brand-new account",
			Enabled:    true,
		},
		{
			ID:         "repeat-fraud-user",
			Name:       "Repeat fraud history",
			Expression: `features["user_fraud_rate"] > 0.1`,
			Reason:     "User has a significant fraud history",
			Enabled:    true,
		},
		{
			ID:         "travel-at-night",
			Name:       "Night-time travel purchase",
			Expression: `features["is_travel"] == 1.0 && features["is_suspicious_hour"] == 1.0`,
			Reason:     "Travel purchase during suspicious hours",
			Enabled:    true,
		},
	}
}
