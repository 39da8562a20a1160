// Package roc converts predicted probabilities and true labels into
// ranking-threshold curves and scalar AUC scores, and pools predictions from
// many independent runs into one aggregate curve with a pointwise confidence
// band.
package roc

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDegenerateLabels reports a single-class label vector, for which ROC and
// AUC are undefined.
var ErrDegenerateLabels = errors.New("labels contain a single class, ROC is undefined")

// Band is a pointwise confidence band over TPR at fixed FPR bins, computed
// via a normal approximation to the binomial TPR estimate.
type Band struct {
	FPR   []float64
	TPR   []float64
	Lower []float64
	Upper []float64
}

// Curve sweeps the decision threshold over the distinct predicted values and
// returns the (FPR, TPR) sequence from (0,0) to (1,1). Ties in the scores are
// grouped, never double-counted.
func Curve(scores []float64, labels []bool) (fpr, tpr []float64, err error) {
	if len(scores) != len(labels) {
		return nil, nil, fmt.Errorf("roc: %d scores but %d labels", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return nil, nil, fmt.Errorf("roc: empty input")
	}

	pos, neg := 0, 0
	for _, l := range labels {
		if l {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil, fmt.Errorf("%w: %d positive, %d negative", ErrDegenerateLabels, pos, neg)
	}

	ys := append([]float64(nil), scores...)
	cls := append([]bool(nil), labels...)
	stat.SortWeightedLabeled(ys, cls, nil)
	tpr, fpr, _ = stat.ROC(nil, ys, cls, nil)
	return fpr, tpr, nil
}

// AUC integrates the curve with the trapezoidal rule. The result lies in
// [0,1]; a perfect separator scores 1.
func AUC(fpr, tpr []float64) float64 {
	return integrate.Trapezoidal(fpr, tpr)
}

// Aggregate pools the predictions and labels of all runs into one ranking
// problem (pooled ROC, not a mean of per-run curves) and returns the pooled
// curve, its AUC and a confidence band over TPR at bins+1 fixed FPR points.
// alpha is the two-sided miscoverage, e.g. 0.05 for a 95% band.
func Aggregate(preds [][]float64, labels [][]bool, bins int, alpha float64) (fpr, tpr []float64, auc float64, band Band, err error) {
	var scores []float64
	var cls []bool
	for i := range preds {
		if len(preds[i]) != len(labels[i]) {
			return nil, nil, 0, Band{}, fmt.Errorf("roc: run %d has %d predictions but %d labels", i, len(preds[i]), len(labels[i]))
		}
		scores = append(scores, preds[i]...)
		cls = append(cls, labels[i]...)
	}
	if len(scores) == 0 {
		return nil, nil, 0, Band{}, fmt.Errorf("roc: nothing to aggregate")
	}

	fpr, tpr, err = Curve(scores, cls)
	if err != nil {
		return nil, nil, 0, Band{}, err
	}
	auc = AUC(fpr, tpr)

	nPos := 0
	for _, l := range cls {
		if l {
			nPos++
		}
	}
	band = confidenceBand(fpr, tpr, nPos, bins, alpha)
	return fpr, tpr, auc, band, nil
}

// confidenceBand evaluates the pooled curve at evenly spaced FPR points and
// wraps each TPR in a normal-approximation interval with nPos effective
// positives.
func confidenceBand(fpr, tpr []float64, nPos, bins int, alpha float64) Band {
	if bins <= 0 {
		bins = 20
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - alpha/2)

	b := Band{
		FPR:   make([]float64, bins+1),
		TPR:   make([]float64, bins+1),
		Lower: make([]float64, bins+1),
		Upper: make([]float64, bins+1),
	}
	for i := 0; i <= bins; i++ {
		f := float64(i) / float64(bins)
		t := interpolate(fpr, tpr, f)
		se := 0.0
		if nPos > 0 {
			se = math.Sqrt(t * (1 - t) / float64(nPos))
		}
		b.FPR[i] = f
		b.TPR[i] = t
		b.Lower[i] = clamp01(t - z*se)
		b.Upper[i] = clamp01(t + z*se)
	}
	return b
}

// interpolate evaluates the ROC step curve at FPR value f, linearly
// interpolating between bracketing points and taking the highest TPR at
// exact-tie FPR values.
func interpolate(fpr, tpr []float64, f float64) float64 {
	if f <= fpr[0] {
		return tpr[0]
	}
	last := len(fpr) - 1
	if f >= fpr[last] {
		return tpr[last]
	}
	for i := 0; i < last; i++ {
		if fpr[i] <= f && f <= fpr[i+1] {
			if fpr[i+1] == fpr[i] {
				continue // vertical segment, keep scanning to the top of it
			}
			w := (f - fpr[i]) / (fpr[i+1] - fpr[i])
			return tpr[i] + w*(tpr[i+1]-tpr[i])
		}
	}
	return tpr[last]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
