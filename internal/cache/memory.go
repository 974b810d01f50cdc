package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// MemoryCache is a thread-safe TTL cache for prediction results. Entries
// are stored as encoded copies, so a cached result can never be mutated by
// a caller after the fact. Expired entries are dropped lazily on read and
// swept by a background janitor.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]memoryEntry
	stopCh  chan struct{}
	stopped sync.Once
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

const janitorInterval = time.Minute

// NewMemoryCache creates an in-memory prediction cache.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		items:  make(map[string]memoryEntry),
		stopCh: make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.items {
				if now.After(e.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get returns the cached result for a transaction, or nil, nil on a miss.
func (c *MemoryCache) Get(ctx context.Context, transactionID string) (*domain.PredictionResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transactionID is required")
	}

	c.mu.RLock()
	entry, ok := c.items[transactionID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.items, transactionID)
		c.mu.Unlock()
		return nil, nil
	}

	var result domain.PredictionResult
	if err := json.Unmarshal(entry.payload, &result); err != nil {
		return nil, err
	}
	result.Cached = true
	return &result, nil
}

// Put stores a complete copy of the result with the given TTL. The entry
// becomes visible only once fully encoded; readers never see a partial
// write.
func (c *MemoryCache) Put(ctx context.Context, transactionID string, result *domain.PredictionResult, ttl time.Duration) error {
	if transactionID == "" {
		return fmt.Errorf("transactionID is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items[transactionID] = memoryEntry{
		payload:   payload,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Clear drops all cached predictions.
func (c *MemoryCache) Clear(ctx context.Context) (int64, error) {
	c.mu.Lock()
	n := int64(len(c.items))
	c.items = make(map[string]memoryEntry)
	c.mu.Unlock()
	return n, nil
}

// Ping reports cache health.
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor and releases entries.
func (c *MemoryCache) Close() error {
	c.stopped.Do(func() { close(c.stopCh) })
	c.mu.Lock()
	c.items = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}
