// Package forest implements a bagged CART ensemble for two-class
// classification on a selected feature subset. Beyond class-probability
// prediction it computes the diagnostics the selection and review steps
// depend on: out-of-bag error (aggregate and per tree), permutation feature
// importance and a sample-proximity matrix with outlier flagging.
//
// Fitting is a pure transform: all diagnostics are returned on the Model,
// nothing is logged or written implicitly.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"

	"taxa-discrim/internal/dataset"
	"taxa-discrim/internal/seeds"
)

// ErrNoUsableFeatures reports that the classifier was asked to fit with an
// empty feature subset.
var ErrNoUsableFeatures = errors.New("no usable features reached the classifier")

// Config holds ensemble construction parameters.
type Config struct {
	Trees           int     // number of trees in the ensemble
	MaxDepth        int     // 0 means unlimited
	MinLeaf         int     // minimum rows per leaf, defaults to 1
	MTry            int     // features tried per split, 0 means floor(sqrt(F))
	OutlierQuantile float64 // proximity quantile below which samples are flagged; 0 disables
	Seed            int64
}

// OutlierScore is the proximity-based review flag for one training sample.
type OutlierScore struct {
	SampleID  string
	Proximity float64 // mean proximity to same-class training samples
	Score     float64 // inverted proximity, higher means more outlying
	Flagged   bool
}

// Model is a fitted ensemble plus its training diagnostics. It is produced
// by Fit, consumed by evaluation and diagnostic reporting, and not reused
// across repetitions.
type Model struct {
	cfg      Config
	features []int // original dataset feature indices, ascending
	trees    []*tree

	OOBError        float64
	PerTreeOOBError []float64
	Importance      []float64 // permutation importance, parallel to features
	Proximity       [][]float64
	Outliers        []OutlierScore
}

// Fit trains cfg.Trees bagged trees on the given samples restricted to the
// selected feature indices. Deterministic for a fixed cfg.Seed.
func Fit(samples []dataset.Sample, features []int, positive string, cfg Config) (*Model, error) {
	if len(features) == 0 {
		return nil, ErrNoUsableFeatures
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("forest: no training samples")
	}
	if cfg.Trees <= 0 {
		return nil, fmt.Errorf("forest: tree count must be positive, got %d", cfg.Trees)
	}
	if cfg.MinLeaf <= 0 {
		cfg.MinLeaf = 1
	}
	mtry := cfg.MTry
	if mtry <= 0 || mtry > len(features) {
		mtry = int(math.Sqrt(float64(len(features))))
		if mtry < 1 {
			mtry = 1
		}
	}

	n := len(samples)
	x := make([][]float64, n)
	y := make([]bool, n)
	for i, s := range samples {
		row := make([]float64, len(features))
		for j, f := range features {
			row[j] = s.Features[f]
		}
		x[i] = row
		y[i] = s.Label == positive
	}

	m := &Model{
		cfg:             cfg,
		features:        append([]int(nil), features...),
		trees:           make([]*tree, cfg.Trees),
		PerTreeOOBError: make([]float64, cfg.Trees),
		Importance:      make([]float64, len(features)),
	}
	gc := growConfig{maxDepth: cfg.MaxDepth, minLeaf: cfg.MinLeaf, mtry: mtry}

	// leafOf[t][i] is the terminal node id sample i reaches in tree t,
	// kept for the proximity matrix.
	leafOf := make([][]int, cfg.Trees)

	// OOB vote tally per sample: positive votes and total votes.
	oobPos := make([]int, n)
	oobTotal := make([]int, n)

	impSums := make([]float64, len(features))
	impTrees := 0

	for t := 0; t < cfg.Trees; t++ {
		rng := rand.New(rand.NewSource(seeds.Derive(cfg.Seed, t)))

		rows := make([]int, n)
		inBag := make([]bool, n)
		for i := range rows {
			r := rng.Intn(n)
			rows[i] = r
			inBag[r] = true
		}
		var oob []int
		for i := 0; i < n; i++ {
			if !inBag[i] {
				oob = append(oob, i)
			}
		}

		tr := growTree(x, y, rows, gc, rng)
		tr.oob = oob
		m.trees[t] = tr

		leaves := make([]int, n)
		for i := 0; i < n; i++ {
			leaves[i] = tr.apply(x[i]).leafID
		}
		leafOf[t] = leaves

		if len(oob) == 0 {
			m.PerTreeOOBError[t] = math.NaN()
			continue
		}

		base := treeError(tr, x, y, oob)
		m.PerTreeOOBError[t] = base

		for _, i := range oob {
			if tr.apply(x[i]).prob >= 0.5 {
				oobPos[i]++
			}
			oobTotal[i]++
		}

		permuteImportance(tr, x, y, oob, base, impSums, rng)
		impTrees++
	}

	if impTrees > 0 {
		for f := range impSums {
			m.Importance[f] = impSums[f] / float64(impTrees)
		}
	}

	m.OOBError = aggregateOOBError(oobPos, oobTotal, y)
	m.Proximity = proximity(leafOf, n)
	m.Outliers = outliers(m.Proximity, samples, positive, cfg.OutlierQuantile)

	return m, nil
}

// Features returns the original dataset feature indices the model was
// trained on.
func (m *Model) Features() []int {
	return append([]int(nil), m.features...)
}

// Predict returns the positive-class probability for each sample as the
// mean vote across trees.
func (m *Model) Predict(samples []dataset.Sample) []float64 {
	out := make([]float64, len(samples))
	row := make([]float64, len(m.features))
	for i, s := range samples {
		for j, f := range m.features {
			row[j] = s.Features[f]
		}
		sum := 0.0
		for _, tr := range m.trees {
			sum += tr.apply(row).prob
		}
		out[i] = sum / float64(len(m.trees))
	}
	return out
}

// PredictProba returns per-sample [positive, negative] probabilities.
func (m *Model) PredictProba(samples []dataset.Sample) [][2]float64 {
	pos := m.Predict(samples)
	out := make([][2]float64, len(pos))
	for i, p := range pos {
		out[i] = [2]float64{p, 1 - p}
	}
	return out
}

// treeError is the misclassification rate of a single tree on the given rows.
func treeError(tr *tree, x [][]float64, y []bool, rows []int) float64 {
	wrong := 0
	for _, i := range rows {
		if (tr.apply(x[i]).prob >= 0.5) != y[i] {
			wrong++
		}
	}
	return float64(wrong) / float64(len(rows))
}

// permuteImportance accumulates, per feature, the OOB error increase when
// that feature's values are shuffled among the tree's OOB rows.
func permuteImportance(tr *tree, x [][]float64, y []bool, oob []int, base float64, sums []float64, rng *rand.Rand) {
	if len(oob) < 2 {
		return
	}
	nf := len(sums)
	saved := make([]float64, len(oob))
	perm := make([]int, len(oob))

	for f := 0; f < nf; f++ {
		for i, r := range oob {
			saved[i] = x[r][f]
		}
		copy(perm, rng.Perm(len(oob)))
		for i, r := range oob {
			x[r][f] = saved[perm[i]]
		}
		sums[f] += treeError(tr, x, y, oob) - base
		for i, r := range oob {
			x[r][f] = saved[i]
		}
	}
}

// aggregateOOBError is the majority-vote error over samples that received at
// least one out-of-bag vote.
func aggregateOOBError(oobPos, oobTotal []int, y []bool) float64 {
	wrong, voted := 0, 0
	for i := range y {
		if oobTotal[i] == 0 {
			continue
		}
		voted++
		if (2*oobPos[i] >= oobTotal[i]) != y[i] {
			wrong++
		}
	}
	if voted == 0 {
		return math.NaN()
	}
	return float64(wrong) / float64(voted)
}

// proximity is the fraction of trees in which two samples share a terminal
// node.
func proximity(leafOf [][]int, n int) [][]float64 {
	prox := make([][]float64, n)
	for i := range prox {
		prox[i] = make([]float64, n)
	}
	for _, leaves := range leafOf {
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				if leaves[i] == leaves[j] {
					prox[i][j]++
					prox[j][i] = prox[i][j]
				}
			}
		}
	}
	trees := float64(len(leafOf))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			prox[i][j] /= trees
		}
		prox[i][i] = 1
	}
	return prox
}

// outliers flags samples whose mean same-class proximity falls below the
// configured quantile of the training set.
func outliers(prox [][]float64, samples []dataset.Sample, positive string, quantile float64) []OutlierScore {
	n := len(samples)
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		sum, count := 0.0, 0
		for j := 0; j < n; j++ {
			if j == i || samples[j].Label != samples[i].Label {
				continue
			}
			sum += prox[i][j]
			count++
		}
		if count > 0 {
			raw[i] = sum / float64(count)
		}
	}

	cut := math.Inf(-1)
	if quantile > 0 && quantile < 1 && n > 1 {
		if p, err := stats.Percentile(raw, quantile*100); err == nil {
			cut = p
		}
	}

	out := make([]OutlierScore, n)
	for i := 0; i < n; i++ {
		out[i] = OutlierScore{
			SampleID:  samples[i].ID,
			Proximity: raw[i],
			Score:     1 - raw[i],
			Flagged:   raw[i] < cut,
		}
	}
	return out
}
