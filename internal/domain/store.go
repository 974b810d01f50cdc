// Package domain defines the core types and interfaces for FraudGuard.
package domain

import (
	"context"
	"time"
)

// ProfileStore is the durable per-user aggregate store. It is the only
// shared mutable resource in the scoring path: Update must be safe under
// concurrent calls for the same user, with increments and set-insertions
// implemented as atomic store operations rather than read-then-write.
type ProfileStore interface {
	// Update applies one scored transaction to the user's aggregates:
	// count +1, total amount +tx.Amount, fraud count +1 when isFraud,
	// category/location/device observation, and a monotonic
	// last-transaction-time write (never regresses below a stored later
	// value). txTime is the effective transaction time chosen by the
	// pipeline.
	Update(ctx context.Context, userID string, tx *Transaction, isFraud bool, txTime time.Time) error

	// Read returns a point-in-time snapshot of the profile. Returns
	// ErrNotFound for users with no history. A read never observes a
	// half-applied Update.
	Read(ctx context.Context, userID string) (*Profile, error)

	// Reset clears a user's aggregates. Retention policy only; never
	// called by the scoring path.
	Reset(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
	Close() error
}

// PredictionCache maps transaction IDs to previously computed results with a
// TTL. A hit short-circuits the whole pipeline, which is what makes repeated
// submission of the same transaction idempotent.
type PredictionCache interface {
	// Get returns the cached result, or nil, nil on a miss.
	Get(ctx context.Context, transactionID string) (*PredictionResult, error)

	// Put stores a complete, immutable copy of the result.
	Put(ctx context.Context, transactionID string, result *PredictionResult, ttl time.Duration) error

	// Clear drops all cached predictions and returns how many were removed.
	Clear(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Repository is the SQL audit trail. It is written off the hot path by the
// async worker; scoring never blocks on it.
type Repository interface {
	SaveTransaction(ctx context.Context, tx *Transaction, isFraud bool) error
	SavePrediction(ctx context.Context, result *PredictionResult, userID string) error
	GetPrediction(ctx context.Context, transactionID string) (*PredictionResult, error)
	ListPredictionsByUser(ctx context.Context, userID string, limit int) ([]*PredictionResult, error)
	CountPredictions(ctx context.Context) (total int64, fraud int64, err error)

	Ping(ctx context.Context) error
	Close() error
}

// ProfileStoreConfig holds configuration for profile store initialization.
type ProfileStoreConfig struct {
	// Type is "memory" or "redis"
	Type string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HistoryWindow bounds the per-user transaction history kept alongside
	// the aggregates (trim-on-write sliding window).
	HistoryWindow int

	// UseTxTimestamp selects transaction-supplied timestamps for the
	// last-transaction-time write; false means server receipt time.
	UseTxTimestamp bool
}

// CacheConfig holds configuration for prediction cache initialization.
type CacheConfig struct {
	// Type is "memory" or "redis"
	Type string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL is the prediction time-to-live.
	TTL time.Duration
}

// RepositoryConfig holds configuration for audit repository initialization.
type RepositoryConfig struct {
	// Driver is "sqlite" or "postgres"
	Driver string

	SQLitePath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
