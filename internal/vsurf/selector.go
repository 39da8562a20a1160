// Package vsurf selects predictive features from a training partition with a
// three-phase importance-thresholding procedure: eliminate features no more
// important than noise, grow a small interpretable model while out-of-bag
// error keeps improving, then shrink it to the most parsimonious subset whose
// cross-validated error stays close to the best.
//
// Replicate forest fits inside each phase are independent and run on a
// bounded worker pool; per-fit seeds are derived up front so concurrency
// never changes the result.
package vsurf

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"taxa-discrim/internal/dataset"
	"taxa-discrim/internal/forest"
	"taxa-discrim/internal/seeds"
)

// ErrNoFeaturesSelected reports that the thresholding phase eliminated every
// candidate feature. Callers must surface this, never fall back to the full
// feature set.
var ErrNoFeaturesSelected = errors.New("thresholding eliminated every candidate feature")

// Config holds the selection parameters. Tree counts and margins are
// configuration, not constants: the procedure's structure is fixed but its
// thresholds are tunable.
type Config struct {
	ThresholdTrees     int     // trees per replicate forest in phase 1
	InterpTrees        int     // trees per replicate forest in phase 2
	PredTrees          int     // trees per cross-validation forest in phase 3
	Replicates         int     // replicate forests per phase-1/2 estimate
	NoiseMargin        float64 // minimum OOB improvement to keep adding features
	ParsimonyTolerance float64 // CV-error slack when shrinking the final subset
	CVFolds            int
	Parallelism        int // worker pool size, <=0 means 1
	MaxDepth           int
	MinLeaf            int
}

// Selection is the outcome of one selection run.
type Selection struct {
	Features       []int     // final subset, in original dataset order
	Ranked         []int     // phase-1 survivors by mean importance, descending
	MeanImportance []float64 // per candidate feature, averaged over replicates
	Threshold      float64   // elimination threshold (median of replicate cutoffs)
}

// Select runs the three phases on the given training samples. Deterministic
// for a fixed seed regardless of Parallelism.
func Select(ctx context.Context, samples []dataset.Sample, positive string, cfg Config, seed int64) (Selection, error) {
	if len(samples) == 0 {
		return Selection{}, fmt.Errorf("vsurf: no training samples")
	}
	if cfg.Replicates <= 0 {
		cfg.Replicates = 1
	}
	if cfg.CVFolds < 2 {
		cfg.CVFolds = 2
	}
	nFeatures := len(samples[0].Features)

	sel, seedBase, err := threshold(ctx, samples, positive, nFeatures, cfg, seed)
	if err != nil {
		return Selection{}, err
	}

	interpK, seedBase, err := interpret(ctx, samples, positive, sel.Ranked, cfg, seed, seedBase)
	if err != nil {
		return Selection{}, err
	}

	finalK, err := predictPhase(ctx, samples, positive, sel.Ranked[:interpK], cfg, seed, seedBase)
	if err != nil {
		return Selection{}, err
	}

	final := append([]int(nil), sel.Ranked[:finalK]...)
	sort.Ints(final)
	sel.Features = final
	return sel, nil
}

// threshold is phase 1: rank all features by replicate-averaged permutation
// importance and discard those below a cutoff derived from the
// lesser-important control half of the ranking.
func threshold(ctx context.Context, samples []dataset.Sample, positive string, nFeatures int, cfg Config, seed int64) (Selection, int, error) {
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}

	imps := make([][]float64, cfg.Replicates)
	cutoffs := make([]float64, cfg.Replicates)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(cfg))
	for r := 0; r < cfg.Replicates; r++ {
		r := r
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := forest.Fit(samples, all, positive, forest.Config{
				Trees:    cfg.ThresholdTrees,
				MaxDepth: cfg.MaxDepth,
				MinLeaf:  cfg.MinLeaf,
				Seed:     seeds.Derive(seed, r),
			})
			if err != nil {
				return fmt.Errorf("thresholding replicate %d: %w", r, err)
			}
			imps[r] = m.Importance
			cutoffs[r] = replicateCutoff(m.Importance)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Selection{}, 0, err
	}

	mean := make([]float64, nFeatures)
	for _, imp := range imps {
		for f, v := range imp {
			mean[f] += v
		}
	}
	for f := range mean {
		mean[f] /= float64(cfg.Replicates)
	}

	// Robust summary across replicates.
	cut, err := stats.Median(cutoffs)
	if err != nil {
		return Selection{}, 0, fmt.Errorf("thresholding cutoff: %w", err)
	}

	var survivors []int
	for f := 0; f < nFeatures; f++ {
		if mean[f] > cut {
			survivors = append(survivors, f)
		}
	}
	if len(survivors) == 0 {
		return Selection{}, 0, fmt.Errorf("%w: threshold %g over %d candidates", ErrNoFeaturesSelected, cut, nFeatures)
	}

	sort.Slice(survivors, func(i, j int) bool {
		return mean[survivors[i]] > mean[survivors[j]]
	})

	return Selection{Ranked: survivors, MeanImportance: mean, Threshold: cut}, cfg.Replicates, nil
}

// replicateCutoff derives one replicate's elimination threshold from the
// lower half of its importance ranking, taken as a proxy for features no
// more predictive than noise.
func replicateCutoff(imp []float64) float64 {
	sorted := append([]float64(nil), imp...)
	sort.Float64s(sorted)
	control := sorted[:len(sorted)/2]
	if len(control) == 0 {
		control = sorted
	}
	cut, err := stats.Percentile(control, 95)
	if err != nil {
		return 0
	}
	return cut
}

// interpret is phase 2: add survivors in decreasing importance order while
// the replicate-averaged OOB error keeps improving by more than the noise
// margin.
func interpret(ctx context.Context, samples []dataset.Sample, positive string, ranked []int, cfg Config, seed int64, seedBase int) (int, int, error) {
	bestErr := math.Inf(1)
	bestK := 0

	for k := 1; k <= len(ranked); k++ {
		subset := ranked[:k]
		errs := make([]float64, cfg.Replicates)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(poolSize(cfg))
		for r := 0; r < cfg.Replicates; r++ {
			r := r
			fitSeed := seeds.Derive(seed, seedBase+(k-1)*cfg.Replicates+r)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				m, err := forest.Fit(samples, subset, positive, forest.Config{
					Trees:    cfg.InterpTrees,
					MaxDepth: cfg.MaxDepth,
					MinLeaf:  cfg.MinLeaf,
					Seed:     fitSeed,
				})
				if err != nil {
					return fmt.Errorf("interpretation k=%d replicate %d: %w", k, r, err)
				}
				errs[r] = m.OOBError
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, 0, err
		}

		e := meanOf(errs)
		if e < bestErr-cfg.NoiseMargin {
			bestErr = e
			bestK = k
			continue
		}
		break // no further inclusion helps
	}

	return bestK, seedBase + len(ranked)*cfg.Replicates, nil
}

// predictPhase is phase 3: among nested subsets of the interpretation
// survivors, pick the smallest whose cross-validated error is within the
// parsimony tolerance of the best.
func predictPhase(ctx context.Context, samples []dataset.Sample, positive string, candidates []int, cfg Config, seed int64, seedBase int) (int, error) {
	folds := stratifiedFolds(samples, positive, cfg.CVFolds, seeds.Derive(seed, seedBase))
	seedBase++

	cvErrs := make([]float64, len(candidates))
	for k := 1; k <= len(candidates); k++ {
		e, err := crossValidate(ctx, samples, positive, candidates[:k], folds, cfg, seed, seedBase+(k-1)*cfg.CVFolds)
		if err != nil {
			return 0, err
		}
		cvErrs[k-1] = e
	}

	best := math.Inf(1)
	for _, e := range cvErrs {
		if e < best {
			best = e
		}
	}
	for k := 1; k <= len(candidates); k++ {
		if cvErrs[k-1] <= best+cfg.ParsimonyTolerance {
			return k, nil
		}
	}
	return len(candidates), nil
}

// crossValidate fits one forest per fold on the remaining folds and returns
// the mean held-out misclassification rate.
func crossValidate(ctx context.Context, samples []dataset.Sample, positive string, subset []int, folds [][]int, cfg Config, seed int64, seedBase int) (float64, error) {
	errs := make([]float64, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize(cfg))
	for fold := range folds {
		fold := fold
		fitSeed := seeds.Derive(seed, seedBase+fold)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			held := folds[fold]
			inHeld := make(map[int]bool, len(held))
			for _, i := range held {
				inHeld[i] = true
			}
			var train, test []dataset.Sample
			for i := range samples {
				if inHeld[i] {
					test = append(test, samples[i])
				} else {
					train = append(train, samples[i])
				}
			}

			m, err := forest.Fit(train, subset, positive, forest.Config{
				Trees:    cfg.PredTrees,
				MaxDepth: cfg.MaxDepth,
				MinLeaf:  cfg.MinLeaf,
				Seed:     fitSeed,
			})
			if err != nil {
				return fmt.Errorf("prediction phase fold %d: %w", fold, err)
			}

			probs := m.Predict(test)
			wrong := 0
			for i, s := range test {
				if (probs[i] >= 0.5) != (s.Label == positive) {
					wrong++
				}
			}
			errs[fold] = float64(wrong) / float64(len(test))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return meanOf(errs), nil
}

// stratifiedFolds assigns sample indices to folds round-robin within each
// class after a seeded shuffle, so every fold keeps both classes.
func stratifiedFolds(samples []dataset.Sample, positive string, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	var pos, neg []int
	for i, s := range samples {
		if s.Label == positive {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	folds := make([][]int, k)
	for _, class := range [][]int{pos, neg} {
		perm := rng.Perm(len(class))
		for i, j := range perm {
			folds[i%k] = append(folds[i%k], class[j])
		}
	}
	return folds
}

func poolSize(cfg Config) int {
	if cfg.Parallelism <= 0 {
		return 1
	}
	return cfg.Parallelism
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
