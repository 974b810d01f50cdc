// Package repository provides the SQL audit trail for scored transactions.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a scored transaction. Replays of the same
// transaction ID leave the original row in place.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction, isFraud bool) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}

	fraud := 0
	if isFraud {
		fraud = 1
	}

	query := `
		INSERT INTO transactions (
			id, user_id, amount, merchant, category, location, device,
			is_fraud, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.UserID, tx.Amount, tx.Merchant,
		string(tx.Category), tx.Location, tx.Device,
		fraud, tx.EffectiveTime(time.Now().UTC()), time.Now().UTC(),
	)
	return err
}

// SavePrediction stores a prediction result. Replays of the same
// transaction ID leave the original row in place.
func (r *SQLRepository) SavePrediction(ctx context.Context, result *domain.PredictionResult, userID string) error {
	if result == nil || result.TransactionID == "" {
		return fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}

	factors, _ := json.Marshal(result.RiskFactors)
	recommendations, _ := json.Marshal(result.Recommendations)

	fraud := 0
	if result.IsFraud {
		fraud = 1
	}

	query := `
		INSERT INTO predictions (
			transaction_id, user_id, is_fraud, fraud_probability, risk_level,
			confidence, explanation, risk_factors, recommendations,
			processing_time_ms, model_version, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		result.TransactionID, userID, fraud,
		result.FraudProbability, string(result.RiskLevel), result.Confidence,
		result.Explanation, string(factors), string(recommendations),
		result.ProcessingTimeMs, result.ModelVersion, result.Timestamp,
	)
	return err
}

// GetPrediction retrieves a stored prediction by transaction ID.
func (r *SQLRepository) GetPrediction(ctx context.Context, transactionID string) (*domain.PredictionResult, error) {
	query := `
		SELECT transaction_id, is_fraud, fraud_probability, risk_level,
			   confidence, explanation, risk_factors, recommendations,
			   processing_time_ms, model_version, timestamp
		FROM predictions
		WHERE transaction_id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), transactionID)
	result, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return result, err
}

// ListPredictionsByUser retrieves a user's predictions, newest first.
func (r *SQLRepository) ListPredictionsByUser(ctx context.Context, userID string, limit int) ([]*domain.PredictionResult, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT transaction_id, is_fraud, fraud_probability, risk_level,
			   confidence, explanation, risk_factors, recommendations,
			   processing_time_ms, model_version, timestamp
		FROM predictions
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.PredictionResult
	for rows.Next() {
		result, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// CountPredictions returns the total number of stored predictions and how
// many of them were classified as fraud.
func (r *SQLRepository) CountPredictions(ctx context.Context) (total int64, fraud int64, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(is_fraud), 0) FROM predictions`

	err = r.db.QueryRowContext(ctx, query).Scan(&total, &fraud)
	return total, fraud, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row rowScanner) (*domain.PredictionResult, error) {
	var result domain.PredictionResult
	var fraud int
	var level, factors, recommendations string

	err := row.Scan(
		&result.TransactionID, &fraud, &result.FraudProbability, &level,
		&result.Confidence, &result.Explanation, &factors, &recommendations,
		&result.ProcessingTimeMs, &result.ModelVersion, &result.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	result.IsFraud = fraud == 1
	result.RiskLevel = domain.RiskLevel(level)
	if factors != "" {
		json.Unmarshal([]byte(factors), &result.RiskFactors)
	}
	if recommendations != "" {
		json.Unmarshal([]byte(recommendations), &result.Recommendations)
	}

	return &result, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
