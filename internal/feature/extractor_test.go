package feature

import (
	"math"
	"testing"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

func testTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:       "tx-001",
		UserID:   "user-001",
		Amount:   120.0,
		Merchant: "Padaria Central",
		Category: domain.CategoryFood,
		Location: "São Paulo",
		Device:   "mobile-app",
	}
}

func testProfile() *domain.Profile {
	return &domain.Profile{
		UserID:            "user-001",
		TotalTransactions: 20,
		TotalAmount:       10000.0, // avg 500
		FraudCount:        1,
		LastTransaction:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		CategoryCounts:    map[string]int64{"food": 15, "travel": 5},
		LocationCounts:    map[string]int64{"São Paulo": 18, "Curitiba": 2},
		KnownDevices:      []string{"mobile-app"},
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := New()
	tx := testTransaction()
	profile := testProfile()
	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	first := e.Extract(tx, profile, at)
	second := e.Extract(tx, profile, at)

	if len(first) != len(second) {
		t.Fatalf("vector sizes differ: %d vs %d", len(first), len(second))
	}
	for name, v := range first {
		if second[name] != v {
			t.Errorf("feature %s differs: %v vs %v", name, v, second[name])
		}
	}
}

func TestTransactionFeatures(t *testing.T) {
	e := New()
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	t.Run("AmountFeatures", func(t *testing.T) {
		tx := testTransaction()
		tx.Amount = 6000.0
		fv := e.Extract(tx, nil, at)

		if fv["amount"] != 6000.0 {
			t.Errorf("amount = %v, want 6000", fv["amount"])
		}
		if got, want := fv["amount_log"], math.Log1p(6000.0); math.Abs(got-want) > 1e-9 {
			t.Errorf("amount_log = %v, want %v", got, want)
		}
		if fv["is_high_value"] != 1.0 || fv["is_very_high_value"] != 1.0 {
			t.Errorf("high value flags = %v/%v, want 1/1", fv["is_high_value"], fv["is_very_high_value"])
		}
		if fv["is_low_value"] != 0.0 {
			t.Errorf("is_low_value = %v, want 0", fv["is_low_value"])
		}
	})

	t.Run("CategoryCode", func(t *testing.T) {
		tx := testTransaction()
		tx.Category = domain.CategoryTravel
		fv := e.Extract(tx, nil, at)

		if fv["category_code"] != 3.0 {
			t.Errorf("category_code = %v, want 3", fv["category_code"])
		}
		if fv["is_travel"] != 1.0 || fv["is_electronics"] != 0.0 {
			t.Errorf("category one-hot wrong: travel=%v electronics=%v", fv["is_travel"], fv["is_electronics"])
		}
	})

	t.Run("UnknownCategoryFallsBackToOther", func(t *testing.T) {
		tx := testTransaction()
		tx.Category = domain.Category("weird")
		fv := e.Extract(tx, nil, at)

		if fv["category_code"] != float64(domain.CategoryCodes[domain.CategoryOther]) {
			t.Errorf("category_code = %v, want other code", fv["category_code"])
		}
	})
}

func TestTemporalFeatures(t *testing.T) {
	e := New()
	tx := testTransaction()

	t.Run("SuspiciousHour", func(t *testing.T) {
		fv := e.Extract(tx, nil, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC))
		if fv["hour"] != 2.0 {
			t.Errorf("hour = %v, want 2", fv["hour"])
		}
		if fv["is_suspicious_hour"] != 1.0 || fv["is_early_morning"] != 1.0 {
			t.Errorf("suspicious=%v early=%v, want 1/1", fv["is_suspicious_hour"], fv["is_early_morning"])
		}
	})

	t.Run("ElevenPMIsSuspicious", func(t *testing.T) {
		fv := e.Extract(tx, nil, time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
		if fv["is_suspicious_hour"] != 1.0 {
			t.Errorf("is_suspicious_hour = %v, want 1", fv["is_suspicious_hour"])
		}
		if fv["is_evening"] != 1.0 {
			t.Errorf("is_evening = %v, want 1", fv["is_evening"])
		}
	})

	t.Run("AfternoonNotSuspicious", func(t *testing.T) {
		fv := e.Extract(tx, nil, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
		if fv["is_suspicious_hour"] != 0.0 {
			t.Errorf("is_suspicious_hour = %v, want 0", fv["is_suspicious_hour"])
		}
		if fv["is_afternoon"] != 1.0 {
			t.Errorf("is_afternoon = %v, want 1", fv["is_afternoon"])
		}
	})

	t.Run("DayOfWeekMondayZero", func(t *testing.T) {
		// 2026-03-09 is a Monday, 2026-03-15 a Sunday.
		monday := e.Extract(tx, nil, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
		sunday := e.Extract(tx, nil, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

		if monday["day_of_week"] != 0.0 {
			t.Errorf("Monday day_of_week = %v, want 0", monday["day_of_week"])
		}
		if sunday["day_of_week"] != 6.0 {
			t.Errorf("Sunday day_of_week = %v, want 6", sunday["day_of_week"])
		}
		if monday["is_weekend"] != 0.0 || sunday["is_weekend"] != 1.0 {
			t.Errorf("is_weekend mon=%v sun=%v, want 0/1", monday["is_weekend"], sunday["is_weekend"])
		}
	})

	t.Run("CyclicalEncoding", func(t *testing.T) {
		fv := e.Extract(tx, nil, time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC))
		if got := fv["hour_sin"]; math.Abs(got-1.0) > 1e-9 {
			t.Errorf("hour_sin at 06:00 = %v, want 1", got)
		}
		if got := fv["hour_cos"]; math.Abs(got) > 1e-9 {
			t.Errorf("hour_cos at 06:00 = %v, want 0", got)
		}
	})
}

func TestBehavioralFeatures(t *testing.T) {
	e := New()
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	t.Run("NilProfileUsesDefaults", func(t *testing.T) {
		fv := e.Extract(testTransaction(), nil, at)

		for name, want := range DefaultBehavioral() {
			if fv[name] != want {
				t.Errorf("feature %s = %v, want default %v", name, fv[name], want)
			}
		}
	})

	t.Run("EmptyProfileUsesDefaults", func(t *testing.T) {
		fv := e.Extract(testTransaction(), &domain.Profile{UserID: "user-001"}, at)

		if fv["is_new_user"] != 1.0 || fv["hours_since_last_tx"] != NoHistoryHours {
			t.Errorf("empty profile did not use defaults: new=%v hours=%v",
				fv["is_new_user"], fv["hours_since_last_tx"])
		}
	})

	t.Run("AmountVsAverage", func(t *testing.T) {
		tx := testTransaction()
		tx.Amount = 6000.0 // profile avg is 500
		fv := e.Extract(tx, testProfile(), at)

		if got := fv["amount_vs_avg"]; math.Abs(got-12.0) > 1e-9 {
			t.Errorf("amount_vs_avg = %v, want 12", got)
		}
		if fv["is_above_avg"] != 1.0 || fv["is_much_above_avg"] != 1.0 || fv["is_way_above_avg"] != 1.0 {
			t.Errorf("above-avg flags = %v/%v/%v, want all 1",
				fv["is_above_avg"], fv["is_much_above_avg"], fv["is_way_above_avg"])
		}
		if got := fv["amount_deviation"]; math.Abs(got-5500.0) > 1e-9 {
			t.Errorf("amount_deviation = %v, want 5500", got)
		}
	})

	t.Run("FraudRateAndCounts", func(t *testing.T) {
		fv := e.Extract(testTransaction(), testProfile(), at)

		if got := fv["user_fraud_rate"]; math.Abs(got-0.05) > 1e-9 {
			t.Errorf("user_fraud_rate = %v, want 0.05", got)
		}
		if fv["user_transaction_count"] != 20.0 {
			t.Errorf("user_transaction_count = %v, want 20", fv["user_transaction_count"])
		}
		if fv["is_new_user"] != 0.0 || fv["is_experienced_user"] != 0.0 {
			t.Errorf("user maturity flags wrong: new=%v exp=%v", fv["is_new_user"], fv["is_experienced_user"])
		}
	})

	t.Run("UsualPatterns", func(t *testing.T) {
		fv := e.Extract(testTransaction(), testProfile(), at)

		if fv["is_usual_category"] != 1.0 {
			t.Errorf("is_usual_category = %v, want 1", fv["is_usual_category"])
		}
		if fv["is_usual_location"] != 1.0 {
			t.Errorf("is_usual_location = %v, want 1", fv["is_usual_location"])
		}
		if fv["is_known_device"] != 1.0 {
			t.Errorf("is_known_device = %v, want 1", fv["is_known_device"])
		}
	})

	t.Run("UnusualPatterns", func(t *testing.T) {
		tx := testTransaction()
		tx.Category = domain.CategoryElectronics
		tx.Location = "Miami"
		tx.Device = "new-device"
		fv := e.Extract(tx, testProfile(), at)

		if fv["is_usual_category"] != 0.0 || fv["is_usual_location"] != 0.0 || fv["is_known_device"] != 0.0 {
			t.Errorf("unusual patterns not flagged: cat=%v loc=%v dev=%v",
				fv["is_usual_category"], fv["is_usual_location"], fv["is_known_device"])
		}
		if fv["is_new_device"] != 1.0 {
			t.Errorf("is_new_device = %v, want 1", fv["is_new_device"])
		}
	})

	t.Run("RapidSuccession", func(t *testing.T) {
		profile := testProfile()
		profile.LastTransaction = at.Add(-2 * time.Minute)
		fv := e.Extract(testTransaction(), profile, at)

		if fv["is_rapid_succession"] != 1.0 {
			t.Errorf("is_rapid_succession = %v, want 1", fv["is_rapid_succession"])
		}
		if got := fv["hours_since_last_tx"]; math.Abs(got-2.0/60.0) > 1e-9 {
			t.Errorf("hours_since_last_tx = %v, want %v", got, 2.0/60.0)
		}
	})

	t.Run("MostCommonTieBreaksLexicographically", func(t *testing.T) {
		profile := testProfile()
		profile.CategoryCounts = map[string]int64{"travel": 10, "food": 10}
		tx := testTransaction() // food
		fv := e.Extract(tx, profile, at)

		if fv["is_usual_category"] != 1.0 {
			t.Errorf("is_usual_category = %v, want 1 (food wins tie over travel)", fv["is_usual_category"])
		}
	})
}

func TestLocationAndDeviceFeatures(t *testing.T) {
	e := New()
	at := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	t.Run("MajorCityMatch", func(t *testing.T) {
		tx := testTransaction()
		tx.Location = "São Paulo - Centro"
		fv := e.Extract(tx, nil, at)
		if fv["is_major_city"] != 1.0 {
			t.Errorf("is_major_city = %v, want 1", fv["is_major_city"])
		}

		tx.Location = "Manaus"
		fv = e.Extract(tx, nil, at)
		if fv["is_major_city"] != 0.0 {
			t.Errorf("is_major_city = %v, want 0", fv["is_major_city"])
		}
	})

	t.Run("DeviceClasses", func(t *testing.T) {
		cases := []struct {
			device string
			flag   string
		}{
			{"mobile-app", "is_mobile"},
			{"web-browser", "is_web"},
			{"tablet-safari", "is_tablet"},
			{"unknown-device", "is_new_device"},
		}
		for _, tc := range cases {
			tx := testTransaction()
			tx.Device = tc.device
			fv := e.Extract(tx, nil, at)
			if fv[tc.flag] != 1.0 {
				t.Errorf("device %q: %s = %v, want 1", tc.device, tc.flag, fv[tc.flag])
			}
		}
	})

	t.Run("StableHashRange", func(t *testing.T) {
		for _, s := range []string{"", "São Paulo", "mobile-app", "a very long location string"} {
			h := stableHash(s)
			if h < 0 || h >= 10000 {
				t.Errorf("stableHash(%q) = %v, out of range", s, h)
			}
			if h != stableHash(s) {
				t.Errorf("stableHash(%q) not stable", s)
			}
		}
	})
}
