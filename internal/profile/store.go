// Package profile provides per-user behavioral aggregate stores.
package profile

import (
	"fmt"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// New creates a profile store based on configuration.
// Community tier: in-memory store. Pro tier: Redis.
func New(cfg domain.ProfileStoreConfig) (domain.ProfileStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.HistoryWindow), nil

	case "redis":
		return NewRedisStore(cfg)

	default:
		return nil, fmt.Errorf("unsupported profile store type: %s", cfg.Type)
	}
}
