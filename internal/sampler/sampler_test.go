package sampler

import (
	"errors"
	"math/rand"
	"testing"

	"taxa-discrim/internal/dataset"
)

func TestSplit_BalancedAndDisjoint(t *testing.T) {
	testCases := []struct {
		name     string
		perClass int
		k        int
	}{
		{"small", 10, 3},
		{"half", 20, 10},
		{"nearly all", 15, 14},
		{"all", 12, 12},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ds := dataset.Synthetic(tc.perClass, 2, 3, 1.0, 11)
			rng := rand.New(rand.NewSource(1))

			p, err := Split(ds, tc.k, rng)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(p.TrainIdx) != 2*tc.k {
				t.Errorf("expected %d train samples, got %d", 2*tc.k, len(p.TrainIdx))
			}

			// Train and test are disjoint and together cover the dataset.
			seen := make(map[int]int)
			for _, i := range p.TrainIdx {
				seen[i]++
			}
			for _, i := range p.TestIdx {
				seen[i]++
			}
			if len(seen) != ds.Len() {
				t.Errorf("expected %d distinct indices, got %d", ds.Len(), len(seen))
			}
			for i, count := range seen {
				if count != 1 {
					t.Errorf("index %d appears %d times", i, count)
				}
			}

			// Exactly k drawn from each class.
			perLabel := make(map[string]int)
			for _, i := range p.TrainIdx {
				perLabel[ds.Samples[i].Label]++
			}
			for label, count := range perLabel {
				if count != tc.k {
					t.Errorf("class %s has %d train samples, expected %d", label, count, tc.k)
				}
			}
		})
	}
}

func TestSplit_InsufficientData(t *testing.T) {
	ds := dataset.Synthetic(10, 2, 3, 1.0, 11)
	rng := rand.New(rand.NewSource(1))

	_, err := Split(ds, 20, rng)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	ds := dataset.Synthetic(25, 2, 3, 1.0, 11)

	a, err := Split(ds, 10, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Split(ds, 10, rand.New(rand.NewSource(99)))
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.TrainIdx {
		if a.TrainIdx[i] != b.TrainIdx[i] {
			t.Fatal("same seed produced different partitions")
		}
	}
}
