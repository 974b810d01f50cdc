package cache

import (
	"context"
	"testing"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

func testResult(txID string) *domain.PredictionResult {
	return &domain.PredictionResult{
		TransactionID:    txID,
		IsFraud:          false,
		FraudProbability: 0.12,
		RiskLevel:        domain.RiskLow,
		Confidence:       0.76,
		Explanation:      "Low risk transaction (12.0% fraud probability).",
		RiskFactors:      []string{"New user with limited history"},
		Recommendations:  []string{"Approve transaction"},
		ModelVersion:     "0.1.0-starter",
		Timestamp:        time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("MissReturnsNilNil", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		result, err := c.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if result != nil {
			t.Errorf("Get miss = %+v, want nil", result)
		}
	})

	t.Run("HitMarkedCached", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		if err := c.Put(ctx, "tx-001", testResult("tx-001"), time.Hour); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := c.Get(ctx, "tx-001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got == nil {
			t.Fatal("Get returned nil after Put")
		}
		if !got.Cached {
			t.Error("cache hit not marked Cached")
		}
		if got.FraudProbability != 0.12 || got.RiskLevel != domain.RiskLow {
			t.Errorf("cached result differs: p=%v level=%v", got.FraudProbability, got.RiskLevel)
		}
		if len(got.RiskFactors) != 1 || got.RiskFactors[0] != "New user with limited history" {
			t.Errorf("risk factors not preserved: %v", got.RiskFactors)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		if err := c.Put(ctx, "tx-001", testResult("tx-001"), 30*time.Millisecond); err != nil {
			t.Fatalf("Put: %v", err)
		}
		time.Sleep(60 * time.Millisecond)

		got, err := c.Get(ctx, "tx-001")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != nil {
			t.Error("expired entry still returned")
		}
	})

	t.Run("Immutability", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		original := testResult("tx-001")
		if err := c.Put(ctx, "tx-001", original, time.Hour); err != nil {
			t.Fatalf("Put: %v", err)
		}

		// Mutating the stored result must not affect the cache.
		original.FraudProbability = 0.99
		original.RiskFactors[0] = "tampered"

		got, _ := c.Get(ctx, "tx-001")
		if got.FraudProbability != 0.12 {
			t.Errorf("cached probability = %v, want 0.12", got.FraudProbability)
		}
		if got.RiskFactors[0] != "New user with limited history" {
			t.Errorf("cached factor = %q, mutated after Put", got.RiskFactors[0])
		}

		// Mutating a returned hit must not affect later reads.
		got.FraudProbability = 0.55
		again, _ := c.Get(ctx, "tx-001")
		if again.FraudProbability != 0.12 {
			t.Errorf("cached probability = %v after mutating a hit", again.FraudProbability)
		}
	})

	t.Run("PutRejectsBadInput", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		if err := c.Put(ctx, "", testResult("tx"), time.Hour); err == nil {
			t.Error("accepted empty transaction ID")
		}
		if err := c.Put(ctx, "tx-001", testResult("tx-001"), 0); err == nil {
			t.Error("accepted zero TTL")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		c := NewMemoryCache()
		defer c.Close()

		c.Put(ctx, "tx-001", testResult("tx-001"), time.Hour)
		c.Put(ctx, "tx-002", testResult("tx-002"), time.Hour)

		n, err := c.Clear(ctx)
		if err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if n != 2 {
			t.Errorf("Clear removed %d, want 2", n)
		}
		if got, _ := c.Get(ctx, "tx-001"); got != nil {
			t.Error("entry survived Clear")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer c.Close()
		if _, ok := c.(*MemoryCache); !ok {
			t.Errorf("cache type = %T, want *MemoryCache", c)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("accepted unsupported cache type")
		}
	})
}
