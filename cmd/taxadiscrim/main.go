package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"taxa-discrim/internal/cfg"
	"taxa-discrim/internal/dataset"
	"taxa-discrim/internal/metrics"
	"taxa-discrim/internal/results"
	"taxa-discrim/internal/runner"
	"taxa-discrim/internal/vsurf"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file (overrides CONFIG_FILE)")
		dataPath    = flag.String("data", "", "Path to input CSV (overrides config)")
		outputPath  = flag.String("output", "", "Output directory for reports (overrides config)")
		repetitions = flag.Int("reps", 0, "Number of repetitions (overrides config)")
		seed        = flag.Int64("seed", 0, "Base random seed (overrides config)")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		demo        = flag.Bool("demo", false, "Run on a synthetic dataset instead of loading a CSV")
	)
	flag.Parse()

	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *configPath != "" {
		os.Setenv("CONFIG_FILE", *configPath)
	}

	settings, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *dataPath != "" {
		settings.DataPath = *dataPath
	}
	if *outputPath != "" {
		settings.OutputPath = *outputPath
	}
	if *repetitions > 0 {
		settings.Repetitions = *repetitions
	}
	if *seed != 0 {
		settings.BaseSeed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(settings, *demo)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	m := metrics.New()
	if settings.MetricsPort > 0 {
		go serveMetrics(settings.MetricsPort)
	}

	engine := runner.NewEngine(ds, runnerConfig(settings), m)

	start := time.Now()
	outcome, err := engine.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("Analysis finished")

	batchID := uuid.NewString()
	store, err := results.New(settings.OutputPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open results store")
	} else {
		defer store.Close()
		if err := store.SaveOutcome(batchID, outcome); err != nil {
			log.Error().Err(err).Msg("Failed to persist outcome")
		}
	}

	reporter := runner.NewReporter(outcome, settings.OutputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}
	reporter.PrintSummary()

	log.Info().
		Str("batch", batchID).
		Str("output", settings.OutputPath).
		Float64("pooled_auc", outcome.AUC).
		Msg("Run complete")
}

// loadDataset loads the input table, applying the configured metadata
// filters as a pure pre-step, or builds the synthetic demo dataset.
func loadDataset(settings cfg.Settings, demo bool) (*dataset.Dataset, error) {
	if demo {
		log.Info().Msg("Using synthetic demo dataset")
		return dataset.Synthetic(234, 5, 300, 1.5, settings.BaseSeed), nil
	}
	if settings.DataPath == "" {
		return nil, fmt.Errorf("no data path configured (use -data, DATA_PATH or the config file)")
	}

	ds, err := dataset.LoadCSV(settings.DataPath, dataset.LoadOptions{
		IDColumn:      settings.IDColumn,
		LabelColumn:   settings.LabelColumn,
		PositiveLabel: settings.PositiveLabel,
		MetaColumns:   settings.MetaColumns,
		Filters:       settings.Filters,
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func runnerConfig(settings cfg.Settings) runner.Config {
	return runner.Config{
		TrainPerClass:   settings.TrainPerClass,
		Repetitions:     settings.Repetitions,
		EnsembleTrees:   settings.EnsembleTrees,
		MaxDepth:        settings.MaxDepth,
		MinLeaf:         settings.MinLeaf,
		OutlierQuantile: settings.OutlierQuantile,
		Parallelism:     settings.Parallelism,
		BaseSeed:        settings.BaseSeed,
		BandBins:        settings.BandBins,
		BandAlpha:       settings.BandAlpha,
		Selection: vsurf.Config{
			ThresholdTrees:     settings.ThresholdTrees,
			InterpTrees:        settings.InterpTrees,
			PredTrees:          settings.PredTrees,
			Replicates:         settings.Replicates,
			NoiseMargin:        settings.NoiseMargin,
			ParsimonyTolerance: settings.ParsimonyTolerance,
			CVFolds:            settings.CVFolds,
			Parallelism:        settings.Parallelism,
			MaxDepth:           settings.MaxDepth,
			MinLeaf:            settings.MinLeaf,
		},
	}
}

// serveMetrics exposes the Prometheus endpoint for the duration of the run.
func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server stopped")
	}
}
