package model

import (
	"fmt"
	"sync/atomic"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// Scorer converts feature vectors into fraud probabilities and risk tiers.
// The active artifact lives behind an atomic pointer: inference never takes
// a lock, and a reload swaps the whole artifact so in-flight calls keep a
// consistent view of one model version for their entire call.
type Scorer struct {
	artifact atomic.Pointer[Artifact]
}

// NewScorer creates a scorer with no artifact loaded. Score returns
// ErrModelNotLoaded until Swap or LoadFromFile succeeds.
func NewScorer() *Scorer {
	return &Scorer{}
}

// NewScorerWith creates a scorer serving the given artifact.
func NewScorerWith(a *Artifact) *Scorer {
	s := &Scorer{}
	s.artifact.Store(a)
	return s
}

// Score reorders the vector to the artifact's authoritative feature list
// (missing names fill with 0.0), applies the fitted scaler, and runs the
// forest. Returns the fraud probability and its risk tier.
func (s *Scorer) Score(fv domain.FeatureVector) (float64, domain.RiskLevel, error) {
	a := s.artifact.Load()
	if a == nil {
		return 0, "", domain.ErrModelNotLoaded
	}

	x := fv.Reorder(a.FeatureNames)
	a.Scaler.Transform(x)

	p := a.Forest.Predict(x)
	if p < 0 || p > 1 {
		return 0, "", fmt.Errorf("%w: model produced probability %f outside [0,1]", domain.ErrInternal, p)
	}

	return p, domain.RiskLevelFor(p), nil
}

// Loaded reports whether an artifact is present.
func (s *Scorer) Loaded() bool {
	return s.artifact.Load() != nil
}

// Current returns the active artifact, or nil. Callers must treat it as
// read-only.
func (s *Scorer) Current() *Artifact {
	return s.artifact.Load()
}

// Version returns the active artifact version, or "" when none is loaded.
func (s *Scorer) Version() string {
	if a := s.artifact.Load(); a != nil {
		return a.Version
	}
	return ""
}

// Swap atomically replaces the active artifact. The previous artifact stays
// valid for requests that already loaded it.
func (s *Scorer) Swap(a *Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("rejecting artifact swap: %w", err)
	}
	s.artifact.Store(a)
	return nil
}

// LoadFromFile loads, validates, and atomically installs an artifact from
// disk. On any error the current artifact keeps serving.
func (s *Scorer) LoadFromFile(path string) error {
	a, err := LoadArtifact(path)
	if err != nil {
		return err
	}
	s.artifact.Store(a)
	return nil
}
