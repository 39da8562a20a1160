// Package sampler draws class-balanced train/test partitions from a labeled
// dataset. Each partition is built fresh for one repetition from an injected
// random source so repetitions stay independent and reproducible.
package sampler

import (
	"errors"
	"fmt"
	"math/rand"

	"taxa-discrim/internal/dataset"
)

// ErrInsufficientData reports that a class has fewer samples than the
// requested per-class training count.
var ErrInsufficientData = errors.New("class has fewer samples than requested train count")

// Partition is a disjoint train/test split, expressed as indices into the
// dataset's sample slice. The train set is class-balanced by construction;
// the test set is whatever remains of each class.
type Partition struct {
	TrainIdx []int
	TestIdx  []int
}

// Split draws k samples without replacement from each class for training and
// returns the remainder of both classes as the test set. Together the two
// sets cover the full dataset.
func Split(ds *dataset.Dataset, k int, rng *rand.Rand) (Partition, error) {
	pos, neg := ds.ByClass()

	if k > len(pos) {
		return Partition{}, fmt.Errorf("%w: class %q has %d samples, need %d",
			ErrInsufficientData, ds.Positive, len(pos), k)
	}
	if k > len(neg) {
		return Partition{}, fmt.Errorf("%w: class %q has %d samples, need %d",
			ErrInsufficientData, ds.Negative, len(neg), k)
	}

	var p Partition
	for _, class := range [][]int{pos, neg} {
		perm := rng.Perm(len(class))
		for i, j := range perm {
			if i < k {
				p.TrainIdx = append(p.TrainIdx, class[j])
			} else {
				p.TestIdx = append(p.TestIdx, class[j])
			}
		}
	}
	return p, nil
}
