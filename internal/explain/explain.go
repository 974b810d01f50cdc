// Package explain turns a scored transaction into human-readable output:
// an explanation sentence, the risk factors that drove the score, and the
// recommended actions for the risk tier.
package explain

import (
	"fmt"

	"github.com/fraudguard/fraudguard/internal/domain"
	"github.com/fraudguard/fraudguard/internal/riskrules"
)

// maxBuiltinFactors bounds the built-in factor list so the response stays
// readable. Custom rule factors are appended on top.
const maxBuiltinFactors = 5

// Engine produces explanations, risk factors and recommendations.
type Engine struct {
	rules *riskrules.Engine
}

// NewEngine creates an explanation engine. rules may be nil when no custom
// rules are configured.
func NewEngine(rules *riskrules.Engine) *Engine {
	return &Engine{rules: rules}
}

// Explain returns the explanation sentence for a probability.
func (e *Engine) Explain(probability float64, factorCount int) string {
	pct := probability * 100
	switch {
	case probability >= domain.HighRiskThreshold:
		return fmt.Sprintf("High fraud risk (%.1f%% probability). %d risk factors identified. Immediate review recommended.", pct, factorCount)
	case probability >= domain.MediumRiskThreshold:
		return fmt.Sprintf("Moderate fraud risk (%.1f%% probability). Additional verification suggested.", pct)
	default:
		return fmt.Sprintf("Transaction appears legitimate (%.1f%% fraud probability).", pct)
	}
}

// Factors lists the risk factors present in the feature vector, most
// severe first, followed by any custom rule factors that fired.
func (e *Engine) Factors(tx *domain.Transaction, fv domain.FeatureVector) []string {
	var factors []string
	add := func(s string) {
		if len(factors) < maxBuiltinFactors {
			factors = append(factors, s)
		}
	}

	if fv["is_very_high_value"] == 1 {
		add("Very high transaction amount")
	}
	if fv["is_way_above_avg"] == 1 {
		add("Amount is more than 3x the user's average")
	} else if fv["is_much_above_avg"] == 1 {
		add("Amount is more than 2x the user's average")
	}
	if fv["is_suspicious_hour"] == 1 {
		add("Transaction at a suspicious hour")
	} else if fv["is_early_morning"] == 1 {
		add("Overnight transaction")
	}
	if fv["user_fraud_rate"] > 0.05 {
		add("User has prior fraudulent transactions")
	}
	if fv["is_known_device"] == 0 {
		add("Transaction from an unknown device")
	}
	if fv["is_usual_location"] == 0 {
		add("Unusual location for this user")
	}
	if fv["is_new_device"] == 1 {
		add("Device reported as new")
	}
	if fv["is_rapid_succession"] == 1 {
		add("Rapid succession after the previous transaction")
	}
	if fv["is_new_user"] == 1 {
		add("Little transaction history for this user")
	}

	if e.rules != nil {
		factors = append(factors, e.rules.Evaluate(tx, fv)...)
	}
	return factors
}

// Recommendations returns the suggested actions for a risk tier.
func (e *Engine) Recommendations(level domain.RiskLevel) []string {
	switch level {
	case domain.RiskHigh:
		return []string{
			"Block transaction",
			"Notify user immediately",
			"Flag account for manual review",
			"Require identity verification",
		}
	case domain.RiskMedium:
		return []string{
			"Hold transaction for review",
			"Request two-factor confirmation",
			"Monitor subsequent activity",
		}
	default:
		return []string{
			"Approve transaction",
			"Continue routine monitoring",
		}
	}
}
