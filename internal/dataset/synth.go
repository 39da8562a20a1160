package dataset

import (
	"fmt"
	"math/rand"
)

// Synthetic builds a two-class Gaussian blob dataset with the given number of
// informative features (class means separated by shift) padded with pure
// noise features. Used by tests and the demo path; deterministic for a fixed
// seed.
func Synthetic(perClass, informative, noise int, shift float64, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	total := informative + noise

	featureNames := make([]string, total)
	for i := 0; i < informative; i++ {
		featureNames[i] = fmt.Sprintf("taxon_signal_%02d", i)
	}
	for i := informative; i < total; i++ {
		featureNames[i] = fmt.Sprintf("taxon_noise_%03d", i-informative)
	}

	samples := make([]Sample, 0, 2*perClass)
	for c, label := range []string{"disease", "control"} {
		mean := 0.0
		if c == 0 {
			mean = shift
		}
		for i := 0; i < perClass; i++ {
			features := make([]float64, total)
			for f := 0; f < informative; f++ {
				features[f] = mean + rng.NormFloat64()
			}
			for f := informative; f < total; f++ {
				features[f] = rng.NormFloat64()
			}
			samples = append(samples, Sample{
				ID:       fmt.Sprintf("%s_%03d", label, i),
				Label:    label,
				Features: features,
			})
		}
	}

	ds, err := New(featureNames, samples, "disease")
	if err != nil {
		// Construction above always yields two classes and matching vectors.
		panic(err)
	}
	return ds
}
