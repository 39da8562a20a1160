// Package dataset provides the labeled sample collection consumed by the
// analysis core. It holds taxa abundance vectors for two clinical states
// (e.g. disease vs. control) and supports metadata-based row filtering as
// a pure pre-step before any modeling happens.
//
// Samples are immutable once loaded; every transformation returns a new
// Dataset that shares the underlying sample values.
package dataset

import (
	"fmt"
)

// Sample is one observation: an identifier, a class label, a fixed-length
// abundance vector and optional metadata used only for filtering.
type Sample struct {
	ID       string
	Label    string
	Features []float64
	Meta     map[string]string
}

// Dataset is an ordered collection of samples partitioned by class label
// into exactly two disjoint groups of possibly unequal size.
type Dataset struct {
	FeatureNames []string
	Positive     string // label treated as the positive class
	Negative     string
	Samples      []Sample
}

// New validates the samples and assembles a Dataset. The positive label must
// occur in the data, exactly two distinct labels must be present, sample IDs
// must be unique and every feature vector must match the feature name count.
func New(featureNames []string, samples []Sample, positive string) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset: no samples")
	}

	labels := make(map[string]int)
	ids := make(map[string]bool, len(samples))
	for _, s := range samples {
		if len(s.Features) != len(featureNames) {
			return nil, fmt.Errorf("dataset: sample %s has %d features, expected %d",
				s.ID, len(s.Features), len(featureNames))
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("dataset: duplicate sample ID %s", s.ID)
		}
		ids[s.ID] = true
		labels[s.Label]++
	}

	if len(labels) != 2 {
		return nil, fmt.Errorf("dataset: expected exactly 2 class labels, got %d", len(labels))
	}
	if _, ok := labels[positive]; !ok {
		return nil, fmt.Errorf("dataset: positive label %q not present in data", positive)
	}

	negative := ""
	for l := range labels {
		if l != positive {
			negative = l
		}
	}

	return &Dataset{
		FeatureNames: featureNames,
		Positive:     positive,
		Negative:     negative,
		Samples:      samples,
	}, nil
}

// Len returns the total sample count.
func (d *Dataset) Len() int { return len(d.Samples) }

// ByClass returns the indices of positive and negative samples, in dataset
// order. Every sample belongs to exactly one of the two groups.
func (d *Dataset) ByClass() (pos, neg []int) {
	for i, s := range d.Samples {
		if s.Label == d.Positive {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	return pos, neg
}

// Filter returns a new Dataset keeping only rows whose metadata column key
// equals value. Filtering is a pure pre-step; sample values are shared, not
// copied. Fails if the filtered set no longer contains both classes.
func (d *Dataset) Filter(key, value string) (*Dataset, error) {
	var kept []Sample
	for _, s := range d.Samples {
		if s.Meta[key] == value {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("dataset: filter %s=%s matched no samples", key, value)
	}
	return New(d.FeatureNames, kept, d.Positive)
}

// Labels returns the boolean label vector for the given sample indices,
// true for the positive class.
func (d *Dataset) Labels(idx []int) []bool {
	out := make([]bool, len(idx))
	for i, j := range idx {
		out[i] = d.Samples[j].Label == d.Positive
	}
	return out
}
