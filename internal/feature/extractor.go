// Package feature implements deterministic feature extraction for the
// fraud model. Extraction is a pure function of the transaction, the
// profile snapshot, and the effective transaction time chosen by the
// caller; there is no hidden clock or randomness, so the same inputs
// always produce an identical vector.
package feature

import (
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// Sentinel values for users without usable history.
const (
	// NoHistoryHours flags "no previous transaction" in hours_since_last_tx.
	NoHistoryHours = 999.0

	// rapidSuccessionWindow marks back-to-back transactions.
	rapidSuccessionWindow = 5 * time.Minute
)

// Profile-derived thresholds.
const (
	newUserMaxTransactions     = 5
	experiencedMinTransactions = 50
	highValueThreshold         = 1000.0
	veryHighValueThreshold     = 5000.0
	lowValueThreshold          = 50.0
)

// majorCities is matched case-insensitively as a substring of the location.
var majorCities = []string{
	"são paulo",
	"rio de janeiro",
	"brasília",
	"belo horizonte",
	"curitiba",
}

// Extractor derives named numeric features from transactions.
type Extractor struct{}

// New creates a feature extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract produces the full feature vector for a transaction. profile may be
// nil (or have zero transactions), in which case the behavioral group is the
// fixed new-user default. at is the effective transaction time.
func (e *Extractor) Extract(tx *domain.Transaction, profile *domain.Profile, at time.Time) domain.FeatureVector {
	fv := make(domain.FeatureVector, 40)

	e.transactionFeatures(fv, tx)
	e.temporalFeatures(fv, at)
	e.behavioralFeatures(fv, tx, profile, at)
	e.locationFeatures(fv, tx)
	e.deviceFeatures(fv, tx)

	return fv
}

func (e *Extractor) transactionFeatures(fv domain.FeatureVector, tx *domain.Transaction) {
	fv["amount"] = tx.Amount
	fv["amount_log"] = math.Log1p(tx.Amount)

	fv["is_high_value"] = boolFeature(tx.Amount > highValueThreshold)
	fv["is_very_high_value"] = boolFeature(tx.Amount > veryHighValueThreshold)
	fv["is_low_value"] = boolFeature(tx.Amount < lowValueThreshold)

	code, ok := domain.CategoryCodes[tx.Category]
	if !ok {
		code = domain.CategoryCodes[domain.CategoryOther]
	}
	fv["category_code"] = float64(code)

	// Partial one-hot for the categories historically most correlated
	// with fraud.
	fv["is_electronics"] = boolFeature(tx.Category == domain.CategoryElectronics)
	fv["is_travel"] = boolFeature(tx.Category == domain.CategoryTravel)
}

func (e *Extractor) temporalFeatures(fv domain.FeatureVector, at time.Time) {
	hour := at.Hour()

	fv["hour"] = float64(hour)
	// Sine/cosine encoding with period 24 avoids the discontinuity at
	// midnight.
	fv["hour_sin"] = math.Sin(2 * math.Pi * float64(hour) / 24)
	fv["hour_cos"] = math.Cos(2 * math.Pi * float64(hour) / 24)

	// Monday=0 .. Sunday=6.
	dow := (int(at.Weekday()) + 6) % 7
	fv["day_of_week"] = float64(dow)
	fv["is_weekend"] = boolFeature(dow >= 5)

	fv["is_early_morning"] = boolFeature(hour < 6)
	fv["is_morning"] = boolFeature(hour >= 6 && hour < 12)
	fv["is_afternoon"] = boolFeature(hour >= 12 && hour < 18)
	fv["is_evening"] = boolFeature(hour >= 18)

	fv["is_suspicious_hour"] = boolFeature(hour < 6 || hour == 23)
}

func (e *Extractor) behavioralFeatures(fv domain.FeatureVector, tx *domain.Transaction, profile *domain.Profile, at time.Time) {
	if profile == nil || profile.TotalTransactions == 0 {
		for k, v := range DefaultBehavioral() {
			fv[k] = v
		}
		return
	}

	avg := profile.AverageAmount()
	if avg > 0 {
		fv["amount_vs_avg"] = tx.Amount / avg
	} else {
		fv["amount_vs_avg"] = 1.0
	}
	fv["amount_deviation"] = math.Abs(tx.Amount - avg)

	fv["is_above_avg"] = boolFeature(tx.Amount > avg)
	fv["is_much_above_avg"] = boolFeature(tx.Amount > avg*2)
	fv["is_way_above_avg"] = boolFeature(tx.Amount > avg*3)

	fv["user_fraud_rate"] = profile.FraudRate()

	fv["user_transaction_count"] = float64(profile.TotalTransactions)
	fv["is_new_user"] = boolFeature(profile.TotalTransactions < newUserMaxTransactions)
	fv["is_experienced_user"] = boolFeature(profile.TotalTransactions > experiencedMinTransactions)

	fv["is_usual_category"] = boolFeature(string(tx.Category) == profile.MostCommonCategory())
	fv["is_usual_location"] = boolFeature(tx.Location == profile.MostCommonLocation())
	fv["is_known_device"] = boolFeature(profile.HasDevice(tx.Device))

	if profile.LastTransaction.IsZero() {
		fv["hours_since_last_tx"] = NoHistoryHours
		fv["is_rapid_succession"] = 0.0
	} else {
		since := at.Sub(profile.LastTransaction)
		fv["hours_since_last_tx"] = since.Hours()
		fv["is_rapid_succession"] = boolFeature(since < rapidSuccessionWindow)
	}
}

func (e *Extractor) locationFeatures(fv domain.FeatureVector, tx *domain.Transaction) {
	location := strings.ToLower(tx.Location)

	major := false
	for _, city := range majorCities {
		if strings.Contains(location, city) {
			major = true
			break
		}
	}
	fv["is_major_city"] = boolFeature(major)

	fv["location_name_length"] = float64(len(tx.Location))
	fv["location_hash"] = stableHash(tx.Location)
}

func (e *Extractor) deviceFeatures(fv domain.FeatureVector, tx *domain.Transaction) {
	device := strings.ToLower(tx.Device)

	fv["is_mobile"] = boolFeature(strings.Contains(device, "mobile") || strings.Contains(device, "phone"))
	fv["is_web"] = boolFeature(strings.Contains(device, "web") || strings.Contains(device, "browser"))
	fv["is_tablet"] = boolFeature(strings.Contains(device, "tablet") || strings.Contains(device, "ipad"))
	fv["is_new_device"] = boolFeature(strings.Contains(device, "new") || strings.Contains(device, "unknown"))

	fv["device_hash"] = stableHash(tx.Device)
}

// DefaultBehavioral is the fixed vector substituted when a user has no
// usable history: all ratios neutral, hours_since_last_tx at the sentinel.
// The pipeline also falls back to it when profile retrieval fails.
func DefaultBehavioral() domain.FeatureVector {
	return domain.FeatureVector{
		"amount_vs_avg":          1.0,
		"amount_deviation":       0.0,
		"is_above_avg":           0.0,
		"is_much_above_avg":      0.0,
		"is_way_above_avg":       0.0,
		"user_fraud_rate":        0.0,
		"user_transaction_count": 0.0,
		"is_new_user":            1.0,
		"is_experienced_user":    0.0,
		"is_usual_category":      0.0,
		"is_usual_location":      0.0,
		"is_known_device":        0.0,
		"hours_since_last_tx":    NoHistoryHours,
		"is_rapid_succession":    0.0,
	}
}

// stableHash reduces a string to a coarse numeric identity in [0, 10000).
// FNV-1a keeps it stable across processes and restarts.
func stableHash(s string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32() % 10000)
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
