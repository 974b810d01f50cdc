package domain

import (
	"sort"
	"time"
)

// Profile holds the aggregate behavioral statistics for one user. It is
// lazily created on the user's first scored transaction and updated on every
// one after that. Count, fraud count, and total amount only ever grow.
type Profile struct {
	UserID            string    `json:"userId"`
	TotalTransactions int64     `json:"totalTransactions"`
	TotalAmount       float64   `json:"totalAmount"`
	FraudCount        int64     `json:"fraudCount"`
	LastTransaction   time.Time `json:"lastTransaction,omitempty"`

	// Per-value observation counts. Counts (not bare sets) make the
	// most-common lookups deterministic.
	CategoryCounts map[string]int64 `json:"categoryCounts,omitempty"`
	LocationCounts map[string]int64 `json:"locationCounts,omitempty"`
	KnownDevices   []string         `json:"knownDevices,omitempty"`
}

// AverageAmount is derived, never stored.
func (p *Profile) AverageAmount() float64 {
	if p.TotalTransactions == 0 {
		return 0
	}
	return p.TotalAmount / float64(p.TotalTransactions)
}

// FraudRate returns the historical fraud fraction in [0,1].
func (p *Profile) FraudRate() float64 {
	if p.TotalTransactions == 0 {
		return 0
	}
	return float64(p.FraudCount) / float64(p.TotalTransactions)
}

// MostCommonCategory returns the category seen most often. Ties break
// lexicographically so repeated reads of the same profile always agree.
func (p *Profile) MostCommonCategory() string {
	return mostCommon(p.CategoryCounts)
}

// MostCommonLocation returns the location seen most often, lexicographic
// tie-break.
func (p *Profile) MostCommonLocation() string {
	return mostCommon(p.LocationCounts)
}

// HasDevice reports whether the device has been seen for this user before.
func (p *Profile) HasDevice(device string) bool {
	for _, d := range p.KnownDevices {
		if d == device {
			return true
		}
	}
	return false
}

func mostCommon(counts map[string]int64) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best
}

// ProfileSnapshot is the API shape for GET /users/{id}/profile, with the
// derived quantities spelled out.
type ProfileSnapshot struct {
	UserID             string    `json:"userId"`
	TotalTransactions  int64     `json:"totalTransactions"`
	TotalAmount        float64   `json:"totalAmount"`
	AverageAmount      float64   `json:"averageAmount"`
	FraudCount         int64     `json:"fraudCount"`
	FraudRate          float64   `json:"fraudRate"`
	LastTransaction    time.Time `json:"lastTransaction,omitempty"`
	MostCommonCategory string    `json:"mostCommonCategory,omitempty"`
	MostCommonLocation string    `json:"mostCommonLocation,omitempty"`
	KnownDevices       []string  `json:"knownDevices,omitempty"`
}

// Snapshot converts a profile into its API representation.
func (p *Profile) Snapshot() *ProfileSnapshot {
	return &ProfileSnapshot{
		UserID:             p.UserID,
		TotalTransactions:  p.TotalTransactions,
		TotalAmount:        p.TotalAmount,
		AverageAmount:      p.AverageAmount(),
		FraudCount:         p.FraudCount,
		FraudRate:          p.FraudRate(),
		LastTransaction:    p.LastTransaction,
		MostCommonCategory: p.MostCommonCategory(),
		MostCommonLocation: p.MostCommonLocation(),
		KnownDevices:       p.KnownDevices,
	}
}
