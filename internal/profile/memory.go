package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// MemoryStore is the in-process profile store for the Community tier and
// for tests. Each user record carries its own mutex, so transactions for
// different users never contend, and an Update for one user is applied as
// a single atomic unit: a concurrent Read sees either all of it or none.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*userRecord
	historyWindow int
}

type userRecord struct {
	mu sync.Mutex

	totalTransactions int64
	totalAmount       float64
	fraudCount        int64
	lastTransaction   time.Time

	categoryCounts map[string]int64
	locationCounts map[string]int64
	devices        map[string]struct{}

	// history is a bounded sliding window, newest first.
	history []historyEntry
}

type historyEntry struct {
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	Category      string    `json:"category"`
	IsFraud       bool      `json:"isFraud"`
	At            time.Time `json:"at"`
}

// NewMemoryStore creates an in-memory profile store.
func NewMemoryStore(historyWindow int) *MemoryStore {
	if historyWindow <= 0 {
		historyWindow = 1000
	}
	return &MemoryStore{
		users:         make(map[string]*userRecord),
		historyWindow: historyWindow,
	}
}

func (s *MemoryStore) record(userID string, create bool) *userRecord {
	s.mu.RLock()
	rec := s.users[userID]
	s.mu.RUnlock()
	if rec != nil || !create {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec = s.users[userID]; rec == nil {
		rec = &userRecord{
			categoryCounts: make(map[string]int64),
			locationCounts: make(map[string]int64),
			devices:        make(map[string]struct{}),
		}
		s.users[userID] = rec
	}
	return rec
}

// Update applies one scored transaction to the user's aggregates.
func (s *MemoryStore) Update(ctx context.Context, userID string, tx *domain.Transaction, isFraud bool, txTime time.Time) error {
	if userID == "" {
		return fmt.Errorf("userID is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := s.record(userID, true)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.totalTransactions++
	rec.totalAmount += tx.Amount
	if isFraud {
		rec.fraudCount++
	}
	rec.categoryCounts[string(tx.Category)]++
	rec.locationCounts[tx.Location]++
	rec.devices[tx.Device] = struct{}{}

	// Last-writer-wins on timestamp, not arrival order: never regress
	// below an already-stored later value.
	if txTime.After(rec.lastTransaction) {
		rec.lastTransaction = txTime
	}

	rec.history = append([]historyEntry{{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Category:      string(tx.Category),
		IsFraud:       isFraud,
		At:            txTime,
	}}, rec.history...)
	if len(rec.history) > s.historyWindow {
		rec.history = rec.history[:s.historyWindow]
	}

	return nil
}

// Read returns a point-in-time snapshot of the profile.
func (s *MemoryStore) Read(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := s.record(userID, false)
	if rec == nil {
		return nil, domain.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.totalTransactions == 0 {
		return nil, domain.ErrNotFound
	}

	p := &domain.Profile{
		UserID:            userID,
		TotalTransactions: rec.totalTransactions,
		TotalAmount:       rec.totalAmount,
		FraudCount:        rec.fraudCount,
		LastTransaction:   rec.lastTransaction,
		CategoryCounts:    make(map[string]int64, len(rec.categoryCounts)),
		LocationCounts:    make(map[string]int64, len(rec.locationCounts)),
		KnownDevices:      make([]string, 0, len(rec.devices)),
	}
	for k, v := range rec.categoryCounts {
		p.CategoryCounts[k] = v
	}
	for k, v := range rec.locationCounts {
		p.LocationCounts[k] = v
	}
	for d := range rec.devices {
		p.KnownDevices = append(p.KnownDevices, d)
	}
	return p, nil
}

// Reset clears a user's aggregates and history.
func (s *MemoryStore) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

// History returns up to limit recent entries for a user, newest first.
func (s *MemoryStore) History(userID string, limit int) []historyEntry {
	rec := s.record(userID, false)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if limit <= 0 || limit > len(rec.history) {
		limit = len(rec.history)
	}
	out := make([]historyEntry, limit)
	copy(out, rec.history[:limit])
	return out
}

// Ping reports store health.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases all records.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*userRecord)
	return nil
}
