// Package cache provides prediction cache implementations.
//
// The cache maps transaction IDs to complete, immutable prediction results
// with a TTL. Expiry is purely time-based: key cardinality is bounded by
// transaction volume, not by hot/cold access patterns, so there is no LRU
// sizing.
package cache

import (
	"fmt"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// New creates a prediction cache based on configuration.
// Community tier: in-memory TTL cache. Pro tier: Redis.
func New(cfg domain.CacheConfig) (domain.PredictionCache, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(), nil

	case "redis":
		return NewRedisCache(cfg)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
