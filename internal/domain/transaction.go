package domain

import (
	"fmt"
	"time"
)

// MaxAmount is the upper bound for a single transaction. Anything above it
// is treated as malformed input and rejected before scoring.
const MaxAmount = 1_000_000.0

// Category is the closed set of transaction categories the model knows about.
type Category string

const (
	CategoryElectronics   Category = "electronics"
	CategoryFashion       Category = "fashion"
	CategoryFood          Category = "food"
	CategoryTravel        Category = "travel"
	CategoryServices      Category = "services"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryOther         Category = "other"
)

// CategoryCodes maps each category to the numeric code used as a model
// feature. Unknown categories fall back to the "other" code at feature time.
var CategoryCodes = map[Category]int{
	CategoryElectronics:   0,
	CategoryFashion:       1,
	CategoryFood:          2,
	CategoryTravel:        3,
	CategoryServices:      4,
	CategoryEntertainment: 5,
	CategoryHealth:        6,
	CategoryOther:         7,
}

// Transaction is an incoming transaction to be scored. It is immutable once
// it enters the pipeline.
type Transaction struct {
	ID       string   `json:"transactionId"`
	UserID   string   `json:"userId"`
	Amount   float64  `json:"amount"`
	Merchant string   `json:"merchant"`
	Category Category `json:"category"`
	Location string   `json:"location"`
	Device   string   `json:"device"`

	// Timestamp is optional; the pipeline substitutes receipt time when zero.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Optional context for future signals
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Validate checks the field constraints required before a transaction may
// reach the scoring pipeline. Violations are caller-fault and never retried.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: transactionId is required", ErrValidation)
	}
	if t.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if t.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if t.Amount > MaxAmount {
		return fmt.Errorf("%w: amount exceeds maximum of %.0f", ErrValidation, MaxAmount)
	}
	if _, ok := CategoryCodes[t.Category]; !ok {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, t.Category)
	}
	if t.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	if t.Device == "" {
		return fmt.Errorf("%w: device is required", ErrValidation)
	}
	return nil
}

// EffectiveTime returns the transaction timestamp, or the given receipt time
// when the caller did not supply one.
func (t *Transaction) EffectiveTime(receivedAt time.Time) time.Time {
	if t.Timestamp.IsZero() {
		return receivedAt
	}
	return t.Timestamp
}
