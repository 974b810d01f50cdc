// Package pipeline orchestrates the scoring path: validate, consult the
// prediction cache, read the user profile, extract features, score, explain,
// then write back to the cache and the profile store.
//
// Side-effect ordering is fixed. The cache write happens before the profile
// update, so a retried transaction that already produced a result is served
// from the cache and never double-counted in the profile. Store failures
// after a successful score degrade the response, never fail it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
	"github.com/fraudguard/fraudguard/internal/explain"
	"github.com/fraudguard/fraudguard/internal/feature"
	"github.com/fraudguard/fraudguard/internal/metrics"
	"github.com/fraudguard/fraudguard/internal/model"
)

// Pipeline is the scoring orchestrator.
type Pipeline struct {
	scorer    *model.Scorer
	extractor *feature.Extractor
	explainer *explain.Engine
	profiles  domain.ProfileStore
	cache     domain.PredictionCache
	bus       domain.EventBus
	logger    *slog.Logger

	storeTimeout time.Duration
	batchWorkers int
	cacheTTL     time.Duration
	useTxTime    bool

	// Service-lifetime counters behind GET /stats. Prometheus tracks the
	// same events for scraping; these are for the JSON surface.
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	scored        atomic.Int64
	latencyMicros atomic.Int64
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	CacheHits        int64   `json:"cacheHits"`
	CacheMisses      int64   `json:"cacheMisses"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	Predictions      int64   `json:"predictions"`
	AverageLatencyMs float64 `json:"averageLatencyMs"`
}

// Stats reports cache effectiveness and scoring latency since startup.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		CacheHits:   p.cacheHits.Load(),
		CacheMisses: p.cacheMisses.Load(),
		Predictions: p.scored.Load(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	if s.Predictions > 0 {
		s.AverageLatencyMs = float64(p.latencyMicros.Load()) / float64(s.Predictions) / 1000
	}
	return s
}

// Options wires the pipeline's collaborators.
type Options struct {
	Scorer    *model.Scorer
	Extractor *feature.Extractor
	Explainer *explain.Engine
	Profiles  domain.ProfileStore
	Cache     domain.PredictionCache
	Bus       domain.EventBus
	Logger    *slog.Logger

	Pipeline       domain.PipelineConfig
	CacheTTL       time.Duration
	UseTxTimestamp bool
}

// New creates a scoring pipeline.
func New(opts Options) *Pipeline {
	storeTimeout := opts.Pipeline.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 200 * time.Millisecond
	}
	workers := opts.Pipeline.BatchWorkers
	if workers <= 0 {
		workers = 10
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		scorer:       opts.Scorer,
		extractor:    opts.Extractor,
		explainer:    opts.Explainer,
		profiles:     opts.Profiles,
		cache:        opts.Cache,
		bus:          opts.Bus,
		logger:       logger,
		storeTimeout: storeTimeout,
		batchWorkers: workers,
		cacheTTL:     ttl,
		useTxTime:    opts.UseTxTimestamp,
	}
}

// Score runs one transaction through the full pipeline.
func (p *Pipeline) Score(ctx context.Context, tx *domain.Transaction) (*domain.PredictionResult, error) {
	start := time.Now()

	if tx == nil {
		return nil, fmt.Errorf("%w: transaction is required", domain.ErrValidation)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	if cached := p.cacheGet(ctx, tx.ID); cached != nil {
		metrics.CacheHitsTotal.Inc()
		p.cacheHits.Add(1)
		return cached, nil
	}
	metrics.CacheMissesTotal.Inc()
	p.cacheMisses.Add(1)

	receivedAt := start.UTC()
	txTime := tx.EffectiveTime(receivedAt)

	profile := p.readProfile(ctx, tx.UserID)
	fv := p.extractor.Extract(tx, profile, txTime)

	probability, level, err := p.scorer.Score(fv)
	if err != nil {
		return nil, err
	}

	isFraud := probability >= 0.5
	factors := p.explainer.Factors(tx, fv)

	result := &domain.PredictionResult{
		TransactionID:    tx.ID,
		IsFraud:          isFraud,
		FraudProbability: probability,
		RiskLevel:        level,
		Confidence:       confidence(probability),
		Explanation:      p.explainer.Explain(probability, len(factors)),
		RiskFactors:      factors,
		Recommendations:  p.explainer.Recommendations(level),
		ModelVersion:     p.scorer.Version(),
		Timestamp:        receivedAt,
	}
	result.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000

	// Cache before the profile write: a duplicate arriving after this point
	// is served the identical result and the profile is updated exactly once.
	p.cachePut(ctx, result)
	p.updateProfile(ctx, tx, isFraud, p.lastTxTime(txTime, receivedAt))
	p.publish(ctx, tx, result)

	metrics.PredictionsTotal.WithLabelValues(string(level)).Inc()
	if isFraud {
		metrics.FraudDetectedTotal.Inc()
	}
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	p.scored.Add(1)
	p.latencyMicros.Add(time.Since(start).Microseconds())

	return result, nil
}

// ScoreBatch scores up to MaxBatchSize transactions concurrently. Oversized
// batches are rejected before any item is scored; per-item failures surface
// as nil entries so result order always matches submission order.
func (p *Pipeline) ScoreBatch(ctx context.Context, txs []*domain.Transaction) (*domain.BatchResult, []error, error) {
	start := time.Now()

	if len(txs) == 0 {
		return nil, nil, fmt.Errorf("%w: batch is empty", domain.ErrValidation)
	}
	if len(txs) > domain.MaxBatchSize {
		return nil, nil, fmt.Errorf("%w: batch size %d exceeds maximum of %d", domain.ErrValidation, len(txs), domain.MaxBatchSize)
	}
	metrics.BatchSize.Observe(float64(len(txs)))

	results := make([]*domain.PredictionResult, len(txs))
	itemErrs := make([]error, len(txs))

	sem := make(chan struct{}, p.batchWorkers)
	var wg sync.WaitGroup
	for i, tx := range txs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, tx *domain.Transaction) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], itemErrs[i] = p.Score(ctx, tx)
		}(i, tx)
	}
	wg.Wait()

	batch := &domain.BatchResult{
		TotalTransactions: len(txs),
		Predictions:       results,
	}
	for _, r := range results {
		if r != nil && r.IsFraud {
			batch.FraudDetected++
		}
	}
	batch.ProcessingTimeMs = float64(time.Since(start).Microseconds()) / 1000

	return batch, itemErrs, nil
}

// GetProfile returns the stored profile snapshot for a user.
func (p *Pipeline) GetProfile(ctx context.Context, userID string) (*domain.ProfileSnapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	profile, err := p.profiles.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profile.Snapshot(), nil
}

// ClearCache drops all cached predictions.
func (p *Pipeline) ClearCache(ctx context.Context) (int64, error) {
	return p.cache.Clear(ctx)
}

func (p *Pipeline) lastTxTime(txTime, receivedAt time.Time) time.Time {
	if p.useTxTime {
		return txTime
	}
	return receivedAt
}

func (p *Pipeline) cacheGet(ctx context.Context, transactionID string) *domain.PredictionResult {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	result, err := p.cache.Get(ctx, transactionID)
	if err != nil {
		p.logger.Warn("cache read failed", "transaction_id", transactionID, "error", err)
		return nil
	}
	return result
}

func (p *Pipeline) cachePut(ctx context.Context, result *domain.PredictionResult) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	if err := p.cache.Put(ctx, result.TransactionID, result, p.cacheTTL); err != nil {
		p.logger.Warn("cache write failed", "transaction_id", result.TransactionID, "error", err)
	}
}

// readProfile returns nil when the user has no history or the store is
// unreachable; the extractor substitutes the default behavioral vector.
func (p *Pipeline) readProfile(ctx context.Context, userID string) *domain.Profile {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	profile, err := p.profiles.Read(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			metrics.StoreErrorsTotal.WithLabelValues("read").Inc()
			p.logger.Warn("profile read failed, scoring without history", "user_id", userID, "error", err)
		}
		return nil
	}
	return profile
}

func (p *Pipeline) updateProfile(ctx context.Context, tx *domain.Transaction, isFraud bool, txTime time.Time) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	if err := p.profiles.Update(ctx, tx.UserID, tx, isFraud, txTime); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("update").Inc()
		p.logger.Error("profile update failed", "user_id", tx.UserID, "transaction_id", tx.ID, "error", err)
		p.publishStoreError(ctx, tx, err)
	}
}

func (p *Pipeline) publish(ctx context.Context, tx *domain.Transaction, result *domain.PredictionResult) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(&domain.PredictionEvent{Transaction: tx, Result: result})
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, domain.TopicPredictionCreated, payload); err != nil {
		p.logger.Warn("prediction event publish failed", "transaction_id", tx.ID, "error", err)
	}
}

func (p *Pipeline) publishStoreError(ctx context.Context, tx *domain.Transaction, cause error) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"transactionId": tx.ID,
		"userId":        tx.UserID,
		"error":         cause.Error(),
	})
	if err != nil {
		return
	}
	_ = p.bus.Publish(ctx, domain.TopicStoreError, payload)
}

// confidence is the model's distance from the decision boundary, in [0,1].
func confidence(probability float64) float64 {
	c := probability - 0.5
	if c < 0 {
		c = -c
	}
	return c * 2
}
