package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func makeSamples() []Sample {
	return []Sample{
		{ID: "s1", Label: "disease", Features: []float64{1, 2}, Meta: map[string]string{"site": "colon"}},
		{ID: "s2", Label: "control", Features: []float64{3, 4}, Meta: map[string]string{"site": "colon"}},
		{ID: "s3", Label: "disease", Features: []float64{5, 6}, Meta: map[string]string{"site": "ileum"}},
		{ID: "s4", Label: "control", Features: []float64{7, 8}, Meta: map[string]string{"site": "ileum"}},
	}
}

func TestNew_Valid(t *testing.T) {
	ds, err := New([]string{"f1", "f2"}, makeSamples(), "disease")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Negative != "control" {
		t.Errorf("expected negative label control, got %s", ds.Negative)
	}
	pos, neg := ds.ByClass()
	if len(pos) != 2 || len(neg) != 2 {
		t.Errorf("expected 2 per class, got %d/%d", len(pos), len(neg))
	}
}

func TestNew_Invalid(t *testing.T) {
	testCases := []struct {
		name     string
		names    []string
		samples  []Sample
		positive string
	}{
		{"no samples", []string{"f1"}, nil, "disease"},
		{"feature length mismatch", []string{"f1", "f2"}, []Sample{
			{ID: "a", Label: "disease", Features: []float64{1}},
			{ID: "b", Label: "control", Features: []float64{1, 2}},
		}, "disease"},
		{"duplicate ID", []string{"f1"}, []Sample{
			{ID: "a", Label: "disease", Features: []float64{1}},
			{ID: "a", Label: "control", Features: []float64{2}},
		}, "disease"},
		{"single class", []string{"f1"}, []Sample{
			{ID: "a", Label: "disease", Features: []float64{1}},
			{ID: "b", Label: "disease", Features: []float64{2}},
		}, "disease"},
		{"three classes", []string{"f1"}, []Sample{
			{ID: "a", Label: "disease", Features: []float64{1}},
			{ID: "b", Label: "control", Features: []float64{2}},
			{ID: "c", Label: "other", Features: []float64{3}},
		}, "disease"},
		{"positive label absent", []string{"f1"}, []Sample{
			{ID: "a", Label: "x", Features: []float64{1}},
			{ID: "b", Label: "y", Features: []float64{2}},
		}, "disease"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.names, tc.samples, tc.positive); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFilter(t *testing.T) {
	ds, err := New([]string{"f1", "f2"}, makeSamples(), "disease")
	if err != nil {
		t.Fatal(err)
	}

	filtered, err := ds.Filter("site", "colon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filtered.Len() != 2 {
		t.Errorf("expected 2 samples after filter, got %d", filtered.Len())
	}
	for _, s := range filtered.Samples {
		if s.Meta["site"] != "colon" {
			t.Errorf("sample %s leaked through filter", s.ID)
		}
	}

	if _, err := ds.Filter("site", "stomach"); err == nil {
		t.Error("expected error for empty filter result")
	}
}

func TestLabels(t *testing.T) {
	ds, err := New([]string{"f1", "f2"}, makeSamples(), "disease")
	if err != nil {
		t.Fatal(err)
	}
	labels := ds.Labels([]int{0, 1, 2, 3})
	want := []bool{true, false, true, false}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label %d: expected %v, got %v", i, want[i], labels[i])
		}
	}
}

func TestLoadCSV(t *testing.T) {
	content := `sample_id,diagnosis,site,taxon_a,taxon_b,taxon_c
s1,disease,colon,0.1,0.2,0.3
s2,control,colon,0.4,0.5,0.6
s3,disease,ileum,0.7,0.8,0.9
s4,control,ileum,1.0,1.1,1.2
`
	path := filepath.Join(t.TempDir(), "abundances.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadCSV(path, LoadOptions{
		IDColumn:      "sample_id",
		LabelColumn:   "diagnosis",
		PositiveLabel: "disease",
		MetaColumns:   []string{"site"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ds.Len() != 4 {
		t.Errorf("expected 4 samples, got %d", ds.Len())
	}
	if len(ds.FeatureNames) != 3 {
		t.Errorf("expected 3 features, got %d", len(ds.FeatureNames))
	}
	if ds.FeatureNames[0] != "taxon_a" {
		t.Errorf("expected first feature taxon_a, got %s", ds.FeatureNames[0])
	}
	if ds.Samples[2].Features[2] != 0.9 {
		t.Errorf("expected feature value 0.9, got %f", ds.Samples[2].Features[2])
	}
}

func TestLoadCSV_Filters(t *testing.T) {
	content := `sample_id,diagnosis,site,taxon_a
s1,disease,colon,0.1
s2,control,colon,0.4
s3,disease,ileum,0.7
s4,control,ileum,1.0
`
	path := filepath.Join(t.TempDir(), "abundances.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadCSV(path, LoadOptions{
		IDColumn:      "sample_id",
		LabelColumn:   "diagnosis",
		PositiveLabel: "disease",
		MetaColumns:   []string{"site"},
		Filters:       map[string]string{"site": "ileum"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 2 {
		t.Errorf("expected 2 samples after filtering, got %d", ds.Len())
	}
}

func TestLoadCSV_MissingColumns(t *testing.T) {
	content := "a,b\n1,2\n"
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCSV(path, LoadOptions{IDColumn: "sample_id", LabelColumn: "diagnosis"}); err == nil {
		t.Error("expected error for missing ID column")
	}
}

func TestSynthetic(t *testing.T) {
	ds := Synthetic(30, 3, 10, 1.5, 7)
	if ds.Len() != 60 {
		t.Errorf("expected 60 samples, got %d", ds.Len())
	}
	if len(ds.FeatureNames) != 13 {
		t.Errorf("expected 13 features, got %d", len(ds.FeatureNames))
	}
	pos, neg := ds.ByClass()
	if len(pos) != 30 || len(neg) != 30 {
		t.Errorf("expected balanced classes, got %d/%d", len(pos), len(neg))
	}

	// Same seed, same data.
	other := Synthetic(30, 3, 10, 1.5, 7)
	for i := range ds.Samples {
		for f := range ds.Samples[i].Features {
			if ds.Samples[i].Features[f] != other.Samples[i].Features[f] {
				t.Fatal("synthetic dataset is not deterministic for a fixed seed")
			}
		}
	}
}
