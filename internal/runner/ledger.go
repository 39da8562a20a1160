package runner

import (
	"math"

	"taxa-discrim/internal/dataset"
)

// Ledger holds two parallel samples × repetitions matrices of per-run
// predicted probability and true label. A sample that was not in a
// repetition's test set stays NaN and is excluded from aggregation, never
// treated as zero. Writes from different repetitions target disjoint
// columns, so no locking is needed beyond slot assignment.
type Ledger struct {
	ids    []string
	preds  [][]float64
	labels [][]float64
}

// NewLedger allocates a ledger for every dataset sample across reps
// repetitions, fully unset.
func NewLedger(ds *dataset.Dataset, reps int) *Ledger {
	n := ds.Len()
	l := &Ledger{
		ids:    make([]string, n),
		preds:  make([][]float64, n),
		labels: make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		l.ids[i] = ds.Samples[i].ID
		l.preds[i] = nanRow(reps)
		l.labels[i] = nanRow(reps)
	}
	return l
}

// Set records one test-sample prediction for a repetition.
func (l *Ledger) Set(run, sampleIdx int, pred float64, positive bool) {
	l.preds[sampleIdx][run] = pred
	if positive {
		l.labels[sampleIdx][run] = 1
	} else {
		l.labels[sampleIdx][run] = 0
	}
}

// RunVectors extracts the set entries of one repetition's column as parallel
// prediction and label vectors, skipping samples that were not in that
// repetition's test set.
func (l *Ledger) RunVectors(run int) ([]float64, []bool) {
	var preds []float64
	var labels []bool
	for i := range l.preds {
		p := l.preds[i][run]
		if math.IsNaN(p) {
			continue
		}
		preds = append(preds, p)
		labels = append(labels, l.labels[i][run] == 1)
	}
	return preds, labels
}

func nanRow(n int) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = math.NaN()
	}
	return row
}
