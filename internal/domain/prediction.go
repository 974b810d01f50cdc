package domain

import (
	"time"
)

// RiskLevel is the discretized fraud-probability bucket.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Fixed tier thresholds. These are product constants, not learned values.
const (
	MediumRiskThreshold = 0.3
	HighRiskThreshold   = 0.7
)

// RiskLevelFor maps a fraud probability to its tier. The boundaries are
// inclusive on the upper tier: p=0.3 is medium, p=0.7 is high.
func RiskLevelFor(probability float64) RiskLevel {
	switch {
	case probability < MediumRiskThreshold:
		return RiskLow
	case probability < HighRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// PredictionResult is the complete outcome of scoring one transaction.
// Immutable once produced; cache entries are full copies of this value.
type PredictionResult struct {
	TransactionID    string    `json:"transactionId"`
	IsFraud          bool      `json:"isFraud"`
	FraudProbability float64   `json:"fraudProbability"`
	RiskLevel        RiskLevel `json:"riskLevel"`

	// Confidence is |probability-0.5|*2, the model's distance from the
	// decision boundary normalized to [0,1].
	Confidence float64 `json:"confidence"`

	Explanation     string   `json:"explanation"`
	RiskFactors     []string `json:"riskFactors"`
	Recommendations []string `json:"recommendations"`

	ProcessingTimeMs float64   `json:"processingTimeMs"`
	ModelVersion     string    `json:"modelVersion"`
	Timestamp        time.Time `json:"timestamp"`

	// Cached is set on reads served from the prediction cache.
	Cached bool `json:"cached,omitempty"`
}

// BatchResult aggregates a batch scoring run. Per-item results keep the
// submission order.
type BatchResult struct {
	TotalTransactions int                 `json:"totalTransactions"`
	FraudDetected     int                 `json:"fraudDetected"`
	Predictions       []*PredictionResult `json:"predictions"`
	ProcessingTimeMs  float64             `json:"processingTimeMs"`
}

// MaxBatchSize caps batch scoring. Larger batches are rejected wholesale
// before any item is scored.
const MaxBatchSize = 100

// PredictionEvent is the payload published on TopicPredictionCreated and
// consumed by the audit worker.
type PredictionEvent struct {
	Transaction *Transaction      `json:"transaction"`
	Result      *PredictionResult `json:"result"`
}
