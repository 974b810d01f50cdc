package domain

// FeatureVector is a named numeric encoding of a transaction plus its
// behavioral context. The map itself is unordered; ordering is imposed at
// the model boundary by the artifact's authoritative feature-name list.
type FeatureVector map[string]float64

// Reorder projects the vector onto the given feature-name list. Names absent
// from the vector are filled with 0.0 to tolerate minor schema drift between
// extractor and artifact; names absent from the list are ignored.
func (fv FeatureVector) Reorder(names []string) []float64 {
	out := make([]float64, len(names))
	for i, name := range names {
		out[i] = fv[name]
	}
	return out
}

// Clone returns an independent copy.
func (fv FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(fv))
	for k, v := range fv {
		out[k] = v
	}
	return out
}
