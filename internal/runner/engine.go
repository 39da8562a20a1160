// Package runner drives N independent repetitions of sample → select →
// train → evaluate, records one RunRecord per repetition and pools every
// repetition's held-out predictions into a final aggregate curve.
//
// A failure inside one repetition is recorded against that run index and the
// batch continues; only a failure of the final aggregation (for example zero
// successful runs) is fatal.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"taxa-discrim/internal/dataset"
	"taxa-discrim/internal/forest"
	"taxa-discrim/internal/roc"
	"taxa-discrim/internal/sampler"
	"taxa-discrim/internal/seeds"
	"taxa-discrim/internal/vsurf"
)

// State tracks the repetition pipeline position. Each repetition walks
// Sampling → Selecting → Training → Evaluating → Recording; the engine as a
// whole ends in Aggregating and Done.
type State int32

const (
	StateIdle State = iota
	StateSampling
	StateSelecting
	StateTraining
	StateEvaluating
	StateRecording
	StateAggregating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateSelecting:
		return "selecting"
	case StateTraining:
		return "training"
	case StateEvaluating:
		return "evaluating"
	case StateRecording:
		return "recording"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds the orchestration parameters.
type Config struct {
	TrainPerClass   int // K samples drawn per class for training
	Repetitions     int
	EnsembleTrees   int // trees in the final per-repetition ensemble
	MaxDepth        int
	MinLeaf         int
	OutlierQuantile float64
	Parallelism     int // concurrent repetitions, <=0 means 1
	BaseSeed        int64
	BandBins        int
	BandAlpha       float64
	Selection       vsurf.Config
}

// RunRecord is one row of the final report.
type RunRecord struct {
	Run      int      `json:"run"`
	AUC      float64  `json:"auc"`
	Features []string `json:"features"`
	Artifact string   `json:"artifact"`
	Params   string   `json:"params"`
	Err      string   `json:"error,omitempty"`
}

// Failed reports whether the repetition ended in a recorded error.
func (r RunRecord) Failed() bool { return r.Err != "" }

// Diagnostics carries one successful repetition's model diagnostics for
// optional downstream plotting. Pure data, no rendering.
type Diagnostics struct {
	Run             int
	Importance      map[string]float64
	OOBError        float64
	PerTreeOOBError []float64
	Outliers        []forest.OutlierScore
}

// Outcome is the complete result of a batch: the RunRecord sequence, the
// pooled aggregate curve with its confidence band, and per-run diagnostics.
type Outcome struct {
	Records     []RunRecord
	Diagnostics []Diagnostics
	FPR         []float64
	TPR         []float64
	AUC         float64
	Band        roc.Band
	Successes   int
}

// MetricsInterface defines the metrics methods the engine reports to.
type MetricsInterface interface {
	RunCompletedInc()
	RunFailedInc()
	AUCObserve(float64)
	SelectionDurationObserve(seconds float64)
	TrainingDurationObserve(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) RunCompletedInc()                 {}
func (noopMetrics) RunFailedInc()                    {}
func (noopMetrics) AUCObserve(float64)               {}
func (noopMetrics) SelectionDurationObserve(float64) {}
func (noopMetrics) TrainingDurationObserve(float64)  {}

// Engine runs the repetition loop over one dataset.
type Engine struct {
	ds      *dataset.Dataset
	cfg     Config
	metrics MetricsInterface
	state   atomic.Int32

	// sampleFn exists so tests can inject partition failures; production
	// code always goes through sampler.Split.
	sampleFn func(rng *rand.Rand) (sampler.Partition, error)
}

// NewEngine creates an engine for the dataset. metrics may be nil.
func NewEngine(ds *dataset.Dataset, cfg Config, metrics MetricsInterface) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	e := &Engine{ds: ds, cfg: cfg, metrics: metrics}
	e.sampleFn = func(rng *rand.Rand) (sampler.Partition, error) {
		return sampler.Split(ds, cfg.TrainPerClass, rng)
	}
	return e
}

// State returns the most recently entered pipeline state.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) enter(s State) {
	e.state.Store(int32(s))
	log.Debug().Str("state", s.String()).Msg("state transition")
}

// Run executes all configured repetitions and aggregates the successful
// ones. Results are bit-for-bit reproducible for a fixed BaseSeed; the
// assignment of seeds to repetitions does not depend on Parallelism.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	n := e.cfg.Repetitions
	if n <= 0 {
		return nil, fmt.Errorf("runner: repetitions must be positive, got %d", n)
	}

	log.Info().
		Int("repetitions", n).
		Int("train_per_class", e.cfg.TrainPerClass).
		Int("ensemble_trees", e.cfg.EnsembleTrees).
		Int64("base_seed", e.cfg.BaseSeed).
		Msg("starting repetition batch")

	records := make([]RunRecord, n)
	diags := make([]*Diagnostics, n)
	ledger := NewLedger(e.ds, n)

	// Seeds are fixed before any repetition starts.
	repSeeds := make([]int64, n)
	for i := range repSeeds {
		repSeeds[i] = seeds.Derive(e.cfg.BaseSeed, i)
	}

	pool := e.cfg.Parallelism
	if pool <= 0 {
		pool = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pool)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			rec, diag, err := e.runOne(gctx, i, repSeeds[i], ledger)
			if err != nil {
				// Cancellation abandons the repetition before its slot
				// is written; anything else is recorded and absorbed.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				e.metrics.RunFailedInc()
				log.Warn().Int("run", i).Err(err).Msg("repetition failed")
				records[i] = RunRecord{Run: i, Params: e.paramsText(), Err: errKind(err)}
				return nil
			}
			e.metrics.RunCompletedInc()
			e.metrics.AUCObserve(rec.AUC)
			records[i] = rec
			diags[i] = diag
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.enter(StateAggregating)
	var preds [][]float64
	var labels [][]bool
	var kept []Diagnostics
	successes := 0
	for i := 0; i < n; i++ {
		if records[i].Failed() {
			continue
		}
		successes++
		p, l := ledger.RunVectors(i)
		preds = append(preds, p)
		labels = append(labels, l)
		if diags[i] != nil {
			kept = append(kept, *diags[i])
		}
	}
	if successes == 0 {
		return nil, fmt.Errorf("runner: all %d repetitions failed, nothing to aggregate", n)
	}

	fpr, tpr, auc, band, err := roc.Aggregate(preds, labels, e.cfg.BandBins, e.cfg.BandAlpha)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}
	e.enter(StateDone)

	log.Info().
		Int("successes", successes).
		Int("failures", n-successes).
		Float64("pooled_auc", auc).
		Msg("repetition batch complete")

	return &Outcome{
		Records:     records,
		Diagnostics: kept,
		FPR:         fpr,
		TPR:         tpr,
		AUC:         auc,
		Band:        band,
		Successes:   successes,
	}, nil
}

// runOne executes a single repetition. Every derived artifact (partition,
// selection, model) is scoped to this call and discarded afterwards.
func (e *Engine) runOne(ctx context.Context, run int, seed int64, ledger *Ledger) (RunRecord, *Diagnostics, error) {
	rng := rand.New(rand.NewSource(seed))
	selSeed := seeds.Derive(seed, 1)
	fitSeed := seeds.Derive(seed, 2)

	e.enter(StateSampling)
	part, err := e.sampleFn(rng)
	if err != nil {
		return RunRecord{}, nil, err
	}

	train := make([]dataset.Sample, len(part.TrainIdx))
	for i, j := range part.TrainIdx {
		train[i] = e.ds.Samples[j]
	}
	test := make([]dataset.Sample, len(part.TestIdx))
	for i, j := range part.TestIdx {
		test[i] = e.ds.Samples[j]
	}

	e.enter(StateSelecting)
	selStart := time.Now()
	sel, err := vsurf.Select(ctx, train, e.ds.Positive, e.cfg.Selection, selSeed)
	if err != nil {
		return RunRecord{}, nil, err
	}
	e.metrics.SelectionDurationObserve(time.Since(selStart).Seconds())

	e.enter(StateTraining)
	fitStart := time.Now()
	model, err := forest.Fit(train, sel.Features, e.ds.Positive, forest.Config{
		Trees:           e.cfg.EnsembleTrees,
		MaxDepth:        e.cfg.MaxDepth,
		MinLeaf:         e.cfg.MinLeaf,
		OutlierQuantile: e.cfg.OutlierQuantile,
		Seed:            fitSeed,
	})
	if err != nil {
		return RunRecord{}, nil, err
	}
	e.metrics.TrainingDurationObserve(time.Since(fitStart).Seconds())

	e.enter(StateEvaluating)
	probs := model.Predict(test)
	testLabels := e.ds.Labels(part.TestIdx)
	fpr, tpr, err := roc.Curve(probs, testLabels)
	if err != nil {
		return RunRecord{}, nil, err
	}
	auc := roc.AUC(fpr, tpr)

	e.enter(StateRecording)
	for i, j := range part.TestIdx {
		ledger.Set(run, j, probs[i], testLabels[i])
	}

	names := make([]string, len(sel.Features))
	importance := make(map[string]float64, len(sel.Features))
	for i, f := range sel.Features {
		names[i] = e.ds.FeatureNames[f]
		importance[names[i]] = sel.MeanImportance[f]
	}

	rec := RunRecord{
		Run:      run,
		AUC:      auc,
		Features: names,
		Artifact: fmt.Sprintf("model_run%03d_%s", run, uuid.NewString()),
		Params:   e.paramsText(),
	}
	diag := &Diagnostics{
		Run:             run,
		Importance:      importance,
		OOBError:        model.OOBError,
		PerTreeOOBError: model.PerTreeOOBError,
		Outliers:        model.Outliers,
	}

	log.Info().
		Int("run", run).
		Float64("auc", auc).
		Int("features", len(names)).
		Float64("oob_error", model.OOBError).
		Msg("repetition complete")

	return rec, diag, nil
}

// paramsText renders the model-construction parameters for the report.
func (e *Engine) paramsText() string {
	return fmt.Sprintf("trees=%d trainPerClass=%d thresholdTrees=%d interpTrees=%d predTrees=%d replicates=%d cvFolds=%d seed=%d",
		e.cfg.EnsembleTrees, e.cfg.TrainPerClass,
		e.cfg.Selection.ThresholdTrees, e.cfg.Selection.InterpTrees, e.cfg.Selection.PredTrees,
		e.cfg.Selection.Replicates, e.cfg.Selection.CVFolds, e.cfg.BaseSeed)
}

// errKind maps repetition failures onto the report's error taxonomy.
func errKind(err error) string {
	switch {
	case errors.Is(err, sampler.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, vsurf.ErrNoFeaturesSelected):
		return "no_features_selected"
	case errors.Is(err, roc.ErrDegenerateLabels):
		return "degenerate_labels"
	case errors.Is(err, forest.ErrNoUsableFeatures):
		return "model_fit"
	default:
		return "error: " + strings.SplitN(err.Error(), "\n", 2)[0]
	}
}
