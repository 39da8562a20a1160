package vsurf

import (
	"context"
	"errors"
	"testing"

	"taxa-discrim/internal/dataset"
)

func testConfig() Config {
	return Config{
		ThresholdTrees:     60,
		InterpTrees:        60,
		PredTrees:          60,
		Replicates:         5,
		NoiseMargin:        0.01,
		ParsimonyTolerance: 0.01,
		CVFolds:            4,
		Parallelism:        2,
		MinLeaf:            1,
	}
}

func TestSelect_WellSeparatedData(t *testing.T) {
	// Two Gaussian blobs: 3 informative features, 50 noise features.
	ds := dataset.Synthetic(40, 3, 50, 2.5, 21)

	sel, err := Select(context.Background(), ds.Samples, ds.Positive, testConfig(), 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sel.Features) == 0 {
		t.Fatal("expected a non-empty selection on well-separated data")
	}

	// Output must be a subset of the input feature indices, in original order.
	nFeatures := len(ds.FeatureNames)
	prev := -1
	for _, f := range sel.Features {
		if f < 0 || f >= nFeatures {
			t.Fatalf("selected feature %d out of range", f)
		}
		if f <= prev {
			t.Fatalf("selection not in original dataset order: %v", sel.Features)
		}
		prev = f
	}

	// At least one informative feature (indices 0..2) must survive.
	informative := 0
	for _, f := range sel.Features {
		if f < 3 {
			informative++
		}
	}
	if informative == 0 {
		t.Errorf("selection %v contains no informative feature", sel.Features)
	}
}

func TestSelect_NoFeaturesSelected(t *testing.T) {
	// Constant features carry no signal: every importance is zero and the
	// thresholding phase must eliminate everything rather than pass all the
	// noise through.
	samples := make([]dataset.Sample, 0, 30)
	for i := 0; i < 30; i++ {
		label := "control"
		if i%2 == 0 {
			label = "disease"
		}
		samples = append(samples, dataset.Sample{
			ID:       string(rune('a' + i)),
			Label:    label,
			Features: []float64{1, 1, 1, 1, 1},
		})
	}

	_, err := Select(context.Background(), samples, "disease", testConfig(), 5)
	if !errors.Is(err, ErrNoFeaturesSelected) {
		t.Errorf("expected ErrNoFeaturesSelected, got %v", err)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	ds := dataset.Synthetic(30, 3, 20, 2.0, 13)

	cfg := testConfig()
	a, err := Select(context.Background(), ds.Samples, ds.Positive, cfg, 99)
	if err != nil {
		t.Fatal(err)
	}

	// Same seed with different parallelism must give the same selection.
	cfg.Parallelism = 1
	b, err := Select(context.Background(), ds.Samples, ds.Positive, cfg, 99)
	if err != nil {
		t.Fatal(err)
	}

	if len(a.Features) != len(b.Features) {
		t.Fatalf("selection size differs: %v vs %v", a.Features, b.Features)
	}
	for i := range a.Features {
		if a.Features[i] != b.Features[i] {
			t.Fatalf("selection differs: %v vs %v", a.Features, b.Features)
		}
	}
	if a.Threshold != b.Threshold {
		t.Errorf("threshold differs: %g vs %g", a.Threshold, b.Threshold)
	}
}

func TestSelect_Cancelled(t *testing.T) {
	ds := dataset.Synthetic(30, 3, 20, 2.0, 17)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Select(ctx, ds.Samples, ds.Positive, testConfig(), 3); err == nil {
		t.Error("expected error from cancelled context")
	}
}
