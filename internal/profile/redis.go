package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// RedisStore implements the profile store on Redis. Aggregates use hash
// increments and set insertions, so concurrent updates for one user are
// applied server-side without a read-modify-write race; the whole Update
// runs inside MULTI/EXEC so readers see it as one unit.
type RedisStore struct {
	client        *redis.Client
	historyWindow int
}

// maxLastTxScript writes the last-transaction timestamp only when it is
// later than the stored one, so out-of-order delivery cannot regress it.
var maxLastTxScript = redis.NewScript(`
	local cur = redis.call('HGET', KEYS[1], 'last_tx_ns')
	if (not cur) or (tonumber(ARGV[1]) > tonumber(cur)) then
		redis.call('HSET', KEYS[1], 'last_tx_ns', ARGV[1])
	end
	return 1
`)

// NewRedisStore creates a Redis-backed profile store. The initial
// connection is retried with exponential backoff so a service starting
// alongside Redis does not flap.
func NewRedisStore(cfg domain.ProfileStoreConfig) (*RedisStore, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	connect := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = 1000
	}

	return &RedisStore{client: client, historyWindow: window}, nil
}

func statsKey(userID string) string      { return "fg:user:" + userID + ":stats" }
func categoriesKey(userID string) string { return "fg:user:" + userID + ":categories" }
func locationsKey(userID string) string  { return "fg:user:" + userID + ":locations" }
func devicesKey(userID string) string    { return "fg:user:" + userID + ":devices" }
func historyKey(userID string) string    { return "fg:user:" + userID + ":history" }

// Update applies one scored transaction atomically (MULTI/EXEC).
func (s *RedisStore) Update(ctx context.Context, userID string, tx *domain.Transaction, isFraud bool, txTime time.Time) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}

	entry, err := json.Marshal(map[string]any{
		"transactionId": tx.ID,
		"amount":        tx.Amount,
		"category":      string(tx.Category),
		"isFraud":       isFraud,
		"at":            txTime.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, statsKey(userID), "total_transactions", 1)
	pipe.HIncrByFloat(ctx, statsKey(userID), "total_amount", tx.Amount)
	if isFraud {
		pipe.HIncrBy(ctx, statsKey(userID), "fraud_count", 1)
	}
	pipe.HIncrBy(ctx, categoriesKey(userID), string(tx.Category), 1)
	pipe.HIncrBy(ctx, locationsKey(userID), tx.Location, 1)
	pipe.SAdd(ctx, devicesKey(userID), tx.Device)
	// Eval, not Run: a queued EVALSHA reports NOSCRIPT only at Exec, where
	// Run's EVAL fallback cannot fire, so the script would never load.
	maxLastTxScript.Eval(ctx, pipe, []string{statsKey(userID)}, txTime.UnixNano())
	pipe.LPush(ctx, historyKey(userID), entry)
	pipe.LTrim(ctx, historyKey(userID), 0, int64(s.historyWindow-1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: profile update failed: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Read assembles a snapshot from the stored fields. The reads run inside
// one MULTI/EXEC so a concurrent Update is observed entirely or not at all.
func (s *RedisStore) Read(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}

	pipe := s.client.TxPipeline()
	statsCmd := pipe.HGetAll(ctx, statsKey(userID))
	categoriesCmd := pipe.HGetAll(ctx, categoriesKey(userID))
	locationsCmd := pipe.HGetAll(ctx, locationsKey(userID))
	devicesCmd := pipe.SMembers(ctx, devicesKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: profile read failed: %v", domain.ErrStoreUnavailable, err)
	}

	stats := statsCmd.Val()
	if len(stats) == 0 {
		return nil, domain.ErrNotFound
	}

	p := &domain.Profile{
		UserID:         userID,
		CategoryCounts: make(map[string]int64),
		LocationCounts: make(map[string]int64),
		KnownDevices:   devicesCmd.Val(),
	}
	p.TotalTransactions, _ = strconv.ParseInt(stats["total_transactions"], 10, 64)
	p.TotalAmount, _ = strconv.ParseFloat(stats["total_amount"], 64)
	p.FraudCount, _ = strconv.ParseInt(stats["fraud_count"], 10, 64)

	if ns, err := strconv.ParseInt(stats["last_tx_ns"], 10, 64); err == nil && ns > 0 {
		p.LastTransaction = time.Unix(0, ns).UTC()
	}

	for k, v := range categoriesCmd.Val() {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.CategoryCounts[k] = n
		}
	}
	for k, v := range locationsCmd.Val() {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.LocationCounts[k] = n
		}
	}

	return p, nil
}

// Reset removes all keys for a user.
func (s *RedisStore) Reset(ctx context.Context, userID string) error {
	return s.client.Del(ctx,
		statsKey(userID),
		categoriesKey(userID),
		locationsKey(userID),
		devicesKey(userID),
		historyKey(userID),
	).Err()
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
