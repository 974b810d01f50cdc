// Package model implements the serving side of the fraud classifier: a
// versioned model artifact (forest weights, fitted scaler, authoritative
// feature ordering) and a scorer that turns feature vectors into fraud
// probabilities. Training happens offline; this package only loads and runs
// what training produced.
package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Artifact is the versioned model bundle. It is loaded as one unit and
// never mutated at runtime; reload replaces the whole artifact atomically.
type Artifact struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trainedAt"`

	// FeatureNames is the authoritative inference-time ordering. It is part
	// of the artifact: weights without the matching ordering are useless.
	FeatureNames []string `json:"featureNames"`

	Scaler Scaler `json:"scaler"`
	Forest Forest `json:"forest"`
}

// Scaler holds fitted standardization parameters, one entry per feature in
// FeatureNames order.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Transform standardizes a raw vector in place.
func (s *Scaler) Transform(x []float64) {
	for i := range x {
		std := s.Std[i]
		if std <= 0 {
			std = 1
		}
		x[i] = (x[i] - s.Mean[i]) / std
	}
}

// Forest is an ensemble of decision trees; the predicted fraud probability
// is the mean of the per-tree leaf values.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Tree stores one decision tree in parallel-array form (the export shape of
// the offline trainer). Internal node i splits on Feature[i] at
// Threshold[i]: values <= threshold descend to Left[i], the rest to
// Right[i]. Leaves have Feature[i] == -1 and carry the fraud probability in
// Value[i].
type Tree struct {
	Feature   []int     `json:"feature"`
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`
}

const leafMarker = -1

// Predict walks the tree for one scaled feature vector.
func (t *Tree) Predict(x []float64) float64 {
	node := 0
	for t.Feature[node] != leafMarker {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

// Predict returns the ensemble fraud probability for one scaled vector.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Validate checks artifact integrity before it is allowed to serve. Loading
// is all-or-nothing: a forest without a matching feature list or scaler is
// rejected outright.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("artifact has no version")
	}
	n := len(a.FeatureNames)
	if n == 0 {
		return fmt.Errorf("artifact has no feature names")
	}
	if len(a.Scaler.Mean) != n || len(a.Scaler.Std) != n {
		return fmt.Errorf("scaler length mismatch: %d features, %d means, %d stds",
			n, len(a.Scaler.Mean), len(a.Scaler.Std))
	}
	if len(a.Forest.Trees) == 0 {
		return fmt.Errorf("artifact has no trees")
	}
	for ti, tree := range a.Forest.Trees {
		nodes := len(tree.Feature)
		if nodes == 0 ||
			len(tree.Threshold) != nodes ||
			len(tree.Left) != nodes ||
			len(tree.Right) != nodes ||
			len(tree.Value) != nodes {
			return fmt.Errorf("tree %d: inconsistent node arrays", ti)
		}
		for ni := 0; ni < nodes; ni++ {
			f := tree.Feature[ni]
			if f == leafMarker {
				if v := tree.Value[ni]; v < 0 || v > 1 {
					return fmt.Errorf("tree %d node %d: leaf value %f outside [0,1]", ti, ni, v)
				}
				continue
			}
			if f < 0 || f >= n {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", ti, ni, f)
			}
			if tree.Left[ni] < 0 || tree.Left[ni] >= nodes ||
				tree.Right[ni] < 0 || tree.Right[ni] >= nodes {
				return fmt.Errorf("tree %d node %d: child index out of range", ti, ni)
			}
		}
	}
	return nil
}

// LoadArtifact reads and validates an artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes and validates an artifact from JSON bytes.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &a, nil
}

// SaveArtifact writes an artifact to disk. Used by tooling, never by the
// serving path.
func SaveArtifact(a *Artifact, path string) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid artifact: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

//go:embed starter_model.json
var starterModelJSON []byte

// StarterArtifact returns the embedded bootstrap model. It is a small
// hand-audited forest over the standard feature set that lets the service
// score deterministically before a trained artifact is deployed.
func StarterArtifact() *Artifact {
	a, err := ParseArtifact(starterModelJSON)
	if err != nil {
		// The embedded artifact is checked in tests; this is unreachable
		// in a correctly built binary.
		panic(fmt.Sprintf("embedded starter model is invalid: %v", err))
	}
	return a
}
