package roc

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestCurve_Endpoints(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	labels := []bool{false, false, true, true}

	fpr, tpr, err := Curve(scores, labels)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fpr) != len(tpr) {
		t.Fatalf("fpr has %d points, tpr has %d", len(fpr), len(tpr))
	}

	last := len(fpr) - 1
	if fpr[0] != 0 || tpr[0] != 0 {
		t.Errorf("curve starts at (%f,%f), expected (0,0)", fpr[0], tpr[0])
	}
	if fpr[last] != 1 || tpr[last] != 1 {
		t.Errorf("curve ends at (%f,%f), expected (1,1)", fpr[last], tpr[last])
	}

	// Both axes are non-decreasing.
	for i := 1; i <= last; i++ {
		if fpr[i] < fpr[i-1] {
			t.Errorf("fpr decreases at %d: %f -> %f", i, fpr[i-1], fpr[i])
		}
		if tpr[i] < tpr[i-1] {
			t.Errorf("tpr decreases at %d: %f -> %f", i, tpr[i-1], tpr[i])
		}
	}
}

func TestAUC_PerfectSeparation(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}
	labels := []bool{true, true, true, false, false, false}

	fpr, tpr, err := Curve(scores, labels)
	if err != nil {
		t.Fatal(err)
	}
	if auc := AUC(fpr, tpr); math.Abs(auc-1.0) > 1e-12 {
		t.Errorf("expected AUC 1.0 for perfect separation, got %f", auc)
	}
}

func TestAUC_RandomScores(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 4000
	scores := make([]float64, n)
	labels := make([]bool, n)
	for i := range scores {
		scores[i] = rng.Float64()
		labels[i] = rng.Intn(2) == 1
	}

	fpr, tpr, err := Curve(scores, labels)
	if err != nil {
		t.Fatal(err)
	}
	if auc := AUC(fpr, tpr); math.Abs(auc-0.5) > 0.05 {
		t.Errorf("random scores should give AUC near 0.5, got %f", auc)
	}
}

func TestCurve_TiedScores(t *testing.T) {
	// All positives and negatives share one score: the curve is the diagonal
	// and the AUC is exactly one half.
	scores := []float64{0.5, 0.5, 0.5, 0.5}
	labels := []bool{true, false, true, false}

	fpr, tpr, err := Curve(scores, labels)
	if err != nil {
		t.Fatal(err)
	}
	if auc := AUC(fpr, tpr); math.Abs(auc-0.5) > 1e-12 {
		t.Errorf("tied scores should give AUC 0.5, got %f", auc)
	}
}

func TestCurve_DegenerateLabels(t *testing.T) {
	_, _, err := Curve([]float64{0.1, 0.9}, []bool{true, true})
	if !errors.Is(err, ErrDegenerateLabels) {
		t.Errorf("expected ErrDegenerateLabels, got %v", err)
	}
	_, _, err = Curve([]float64{0.1, 0.9}, []bool{false, false})
	if !errors.Is(err, ErrDegenerateLabels) {
		t.Errorf("expected ErrDegenerateLabels, got %v", err)
	}
}

func TestCurve_LengthMismatch(t *testing.T) {
	if _, _, err := Curve([]float64{0.1}, []bool{true, false}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestAggregate_MatchesPooledCurve(t *testing.T) {
	// Aggregation pools predictions into one ranking problem, so splitting
	// the same data across runs must not change the result.
	scores := []float64{0.9, 0.2, 0.7, 0.4, 0.8, 0.1, 0.6, 0.3}
	labels := []bool{true, false, true, false, true, false, true, false}

	wantFPR, wantTPR, err := Curve(scores, labels)
	if err != nil {
		t.Fatal(err)
	}
	wantAUC := AUC(wantFPR, wantTPR)

	preds := [][]float64{scores[:3], scores[3:6], scores[6:]}
	lbls := [][]bool{labels[:3], labels[3:6], labels[6:]}

	fpr, tpr, auc, band, err := Aggregate(preds, lbls, 10, 0.05)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auc != wantAUC {
		t.Errorf("pooled AUC %f differs from single-pass AUC %f", auc, wantAUC)
	}
	if len(fpr) != len(wantFPR) {
		t.Fatalf("pooled curve has %d points, expected %d", len(fpr), len(wantFPR))
	}
	for i := range fpr {
		if fpr[i] != wantFPR[i] || tpr[i] != wantTPR[i] {
			t.Fatalf("pooled curve diverges at point %d", i)
		}
	}

	if len(band.FPR) != 11 {
		t.Fatalf("expected 11 band points for 10 bins, got %d", len(band.FPR))
	}
	for i := range band.FPR {
		if band.Lower[i] > band.TPR[i] || band.TPR[i] > band.Upper[i] {
			t.Errorf("band point %d does not bracket the estimate: [%f, %f] around %f",
				i, band.Lower[i], band.Upper[i], band.TPR[i])
		}
		if band.Lower[i] < 0 || band.Upper[i] > 1 {
			t.Errorf("band point %d escapes [0,1]: [%f, %f]", i, band.Lower[i], band.Upper[i])
		}
	}
	if band.FPR[0] != 0 || band.FPR[10] != 1 {
		t.Errorf("band FPR grid spans [%f, %f], expected [0, 1]", band.FPR[0], band.FPR[10])
	}
}

func TestAggregate_Empty(t *testing.T) {
	if _, _, _, _, err := Aggregate(nil, nil, 10, 0.05); err == nil {
		t.Error("expected error for empty aggregation")
	}
}
