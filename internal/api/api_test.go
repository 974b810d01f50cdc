package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fraudguard/fraudguard/internal/bus"
	"github.com/fraudguard/fraudguard/internal/cache"
	"github.com/fraudguard/fraudguard/internal/domain"
	"github.com/fraudguard/fraudguard/internal/explain"
	"github.com/fraudguard/fraudguard/internal/feature"
	"github.com/fraudguard/fraudguard/internal/model"
	"github.com/fraudguard/fraudguard/internal/pipeline"
	"github.com/fraudguard/fraudguard/internal/profile"
)

// createTestServer wires an in-process server: memory stores, channel bus,
// the embedded starter model, no audit repository.
func createTestServer() *Server {
	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	scorer := model.NewScorerWith(model.StarterArtifact())
	profiles := profile.NewMemoryStore(1000)
	predictionCache := cache.NewMemoryCache()
	eventBus := bus.NewChannelBus(100)

	p := pipeline.New(pipeline.Options{
		Scorer:         scorer,
		Extractor:      feature.New(),
		Explainer:      explain.NewEngine(nil),
		Profiles:       profiles,
		Cache:          predictionCache,
		Bus:            eventBus,
		Pipeline:       domain.PipelineConfig{StoreTimeout: 200 * time.Millisecond, BatchWorkers: 4},
		CacheTTL:       time.Hour,
		UseTxTimestamp: true,
	})

	return NewServer(cfg, p, scorer, nil, profiles, predictionCache, eventBus, "./model.json", "test-v1")
}

func validTransaction(id string) map[string]any {
	return map[string]any{
		"transactionId": id,
		"userId":        "user-001",
		"amount":        120.0,
		"merchant":      "CoffeeCo",
		"category":      "food",
		"location":      "São Paulo",
		"device":        "mobile-app",
		"timestamp":     time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestPredictEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulPrediction", func(t *testing.T) {
		rr := postJSON(t, server, "/predict", validTransaction("tx-api-001"))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.PredictionResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if result.TransactionID != "tx-api-001" {
			t.Errorf("expected transactionId tx-api-001, got %s", result.TransactionID)
		}
		if result.FraudProbability < 0 || result.FraudProbability > 1 {
			t.Errorf("probability out of range: %f", result.FraudProbability)
		}
		if result.RiskLevel == "" {
			t.Error("expected a risk level")
		}
		if result.Explanation == "" {
			t.Error("expected an explanation")
		}
		if len(result.Recommendations) == 0 {
			t.Error("expected recommendations")
		}
	})

	t.Run("RepeatIsCached", func(t *testing.T) {
		first := postJSON(t, server, "/predict", validTransaction("tx-api-cached"))
		second := postJSON(t, server, "/predict", validTransaction("tx-api-cached"))

		var a, b domain.PredictionResult
		json.Unmarshal(first.Body.Bytes(), &a)
		json.Unmarshal(second.Body.Bytes(), &b)

		if !b.Cached {
			t.Error("expected second response to be served from cache")
		}
		if a.FraudProbability != b.FraudProbability {
			t.Errorf("cached probability differs: %f vs %f", a.FraudProbability, b.FraudProbability)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ValidationFailures", func(t *testing.T) {
		cases := map[string]func(map[string]any){
			"NegativeAmount":  func(tx map[string]any) { tx["amount"] = -5.0 },
			"ExcessiveAmount": func(tx map[string]any) { tx["amount"] = 2_000_000.0 },
			"UnknownCategory": func(tx map[string]any) { tx["category"] = "weapons" },
			"MissingUser":     func(tx map[string]any) { tx["userId"] = "" },
			"MissingDevice":   func(tx map[string]any) { tx["device"] = "" },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				tx := validTransaction("tx-invalid-" + name)
				mutate(tx)

				rr := postJSON(t, server, "/predict", tx)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
				}
			})
		}
	})

	t.Run("ModelNotLoaded", func(t *testing.T) {
		unloaded := createTestServerWithoutModel()

		rr := postJSON(t, unloaded, "/predict", validTransaction("tx-no-model"))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})
}

func createTestServerWithoutModel() *Server {
	cfg := domain.ServerConfig{Host: "localhost", Port: 8080}

	scorer := model.NewScorer()
	profiles := profile.NewMemoryStore(1000)
	predictionCache := cache.NewMemoryCache()

	p := pipeline.New(pipeline.Options{
		Scorer:    scorer,
		Extractor: feature.New(),
		Explainer: explain.NewEngine(nil),
		Profiles:  profiles,
		Cache:     predictionCache,
	})

	return NewServer(cfg, p, scorer, nil, profiles, predictionCache, nil, "./model.json", "test-v1")
}

func TestPredictBatchEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("SuccessfulBatch", func(t *testing.T) {
		txs := []map[string]any{
			validTransaction("tx-batch-001"),
			validTransaction("tx-batch-002"),
			validTransaction("tx-batch-003"),
		}

		rr := postJSON(t, server, "/predict/batch", map[string]any{"transactions": txs})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp BatchResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.TotalTransactions != 3 {
			t.Errorf("expected 3 transactions, got %d", resp.TotalTransactions)
		}
		if len(resp.Predictions) != 3 {
			t.Errorf("expected 3 predictions, got %d", len(resp.Predictions))
		}
		// Order must match submission order
		for i, p := range resp.Predictions {
			want := fmt.Sprintf("tx-batch-%03d", i+1)
			if p == nil || p.TransactionID != want {
				t.Errorf("prediction %d: expected %s", i, want)
			}
		}
	})

	t.Run("OversizedBatchRejected", func(t *testing.T) {
		txs := make([]map[string]any, domain.MaxBatchSize+1)
		for i := range txs {
			txs[i] = validTransaction(fmt.Sprintf("tx-over-%d", i))
		}

		rr := postJSON(t, server, "/predict/batch", map[string]any{"transactions": txs})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}

		// No item from the oversized batch may have been scored.
		recheck := postJSON(t, server, "/predict", validTransaction("tx-over-0"))
		var result domain.PredictionResult
		json.Unmarshal(recheck.Body.Bytes(), &result)
		if result.Cached {
			t.Error("oversized batch items must not be scored")
		}
	})

	t.Run("PartialFailures", func(t *testing.T) {
		bad := validTransaction("tx-partial-bad")
		bad["amount"] = -1.0

		txs := []map[string]any{
			validTransaction("tx-partial-good"),
			bad,
		}

		rr := postJSON(t, server, "/predict/batch", map[string]any{"transactions": txs})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp BatchResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if len(resp.Errors) != 1 || resp.Errors[0].Index != 1 {
			t.Errorf("expected one error at index 1, got %+v", resp.Errors)
		}
		if resp.Predictions[0] == nil {
			t.Error("valid item should still have been scored")
		}
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/predict/batch", map[string]any{"transactions": []any{}})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestProfileEndpoint(t *testing.T) {
	server := createTestServer()

	t.Run("ProfileAfterPrediction", func(t *testing.T) {
		postJSON(t, server, "/predict", validTransaction("tx-profile-001"))

		req := httptest.NewRequest(http.MethodGet, "/users/user-001/profile", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var snapshot domain.ProfileSnapshot
		if err := json.Unmarshal(rr.Body.Bytes(), &snapshot); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if snapshot.UserID != "user-001" {
			t.Errorf("expected user-001, got %s", snapshot.UserID)
		}
		if snapshot.TotalTransactions != 1 {
			t.Errorf("expected 1 transaction, got %d", snapshot.TotalTransactions)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/nobody/profile", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestOperationalEndpoints(t *testing.T) {
	server := createTestServer()

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %v", resp["status"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("ReadyWithoutModel", func(t *testing.T) {
		unloaded := createTestServerWithoutModel()

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		unloaded.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		// Fresh server so the counters are deterministic.
		statsServer := createTestServer()
		postJSON(t, statsServer, "/predict", validTransaction("tx-stats-001"))
		postJSON(t, statsServer, "/predict", validTransaction("tx-stats-001"))

		req := httptest.NewRequest(http.MethodGet, "/stats", nil)
		rr := httptest.NewRecorder()
		statsServer.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]any
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["modelVersion"] == "" {
			t.Error("expected model version in stats")
		}
		if resp["cacheHits"].(float64) != 1 || resp["cacheMisses"].(float64) != 1 {
			t.Errorf("cache counters = %v hits / %v misses, want 1/1", resp["cacheHits"], resp["cacheMisses"])
		}
		if resp["cacheHitRate"].(float64) != 0.5 {
			t.Errorf("cacheHitRate = %v, want 0.5", resp["cacheHitRate"])
		}
		if _, ok := resp["averageLatencyMs"]; !ok {
			t.Error("expected averageLatencyMs in stats")
		}
	})

	t.Run("ClearCache", func(t *testing.T) {
		postJSON(t, server, "/predict", validTransaction("tx-clear-001"))

		req := httptest.NewRequest(http.MethodDelete, "/cache", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		// A repeat of the cleared transaction must be rescored, not served
		// from cache.
		recheck := postJSON(t, server, "/predict", validTransaction("tx-clear-001"))
		var result domain.PredictionResult
		json.Unmarshal(recheck.Body.Bytes(), &result)
		if result.Cached {
			t.Error("expected cache miss after clear")
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}
