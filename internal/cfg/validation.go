package cfg

import "fmt"

// validateSettings performs comprehensive validation of configuration values.
func validateSettings(settings *Settings) error {
	if settings.IDColumn == "" {
		return fmt.Errorf("ID column cannot be empty")
	}
	if settings.LabelColumn == "" {
		return fmt.Errorf("label column cannot be empty")
	}
	if settings.PositiveLabel == "" {
		return fmt.Errorf("positive label cannot be empty")
	}

	if settings.TrainPerClass <= 0 {
		return fmt.Errorf("train count per class must be positive, got %d", settings.TrainPerClass)
	}
	if settings.Repetitions <= 0 || settings.Repetitions > 10000 {
		return fmt.Errorf("repetitions must be between 1 and 10000, got %d", settings.Repetitions)
	}

	if settings.ThresholdTrees <= 0 {
		return fmt.Errorf("threshold phase tree count must be positive, got %d", settings.ThresholdTrees)
	}
	if settings.InterpTrees <= 0 {
		return fmt.Errorf("interpretation phase tree count must be positive, got %d", settings.InterpTrees)
	}
	if settings.PredTrees <= 0 {
		return fmt.Errorf("prediction phase tree count must be positive, got %d", settings.PredTrees)
	}
	if settings.Replicates <= 0 || settings.Replicates > 1000 {
		return fmt.Errorf("replicate forest count must be between 1 and 1000, got %d", settings.Replicates)
	}
	if settings.NoiseMargin < 0 {
		return fmt.Errorf("noise margin must be non-negative, got %f", settings.NoiseMargin)
	}
	if settings.ParsimonyTolerance < 0 {
		return fmt.Errorf("parsimony tolerance must be non-negative, got %f", settings.ParsimonyTolerance)
	}
	if settings.CVFolds < 2 || settings.CVFolds > 20 {
		return fmt.Errorf("CV folds must be between 2 and 20, got %d", settings.CVFolds)
	}

	if settings.EnsembleTrees <= 0 {
		return fmt.Errorf("ensemble tree count must be positive, got %d", settings.EnsembleTrees)
	}
	if settings.MaxDepth < 0 {
		return fmt.Errorf("max depth must be non-negative, got %d", settings.MaxDepth)
	}
	if settings.MinLeaf <= 0 {
		return fmt.Errorf("min leaf size must be positive, got %d", settings.MinLeaf)
	}
	if settings.OutlierQuantile <= 0 || settings.OutlierQuantile >= 1 {
		return fmt.Errorf("outlier quantile must be in (0,1), got %f", settings.OutlierQuantile)
	}

	if settings.BandBins <= 0 || settings.BandBins > 1000 {
		return fmt.Errorf("band bins must be between 1 and 1000, got %d", settings.BandBins)
	}
	if settings.BandAlpha <= 0 || settings.BandAlpha >= 1 {
		return fmt.Errorf("band alpha must be in (0,1), got %f", settings.BandAlpha)
	}

	if settings.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive, got %d", settings.Parallelism)
	}
	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be 0 (disabled) or between 1024 and 65535, got %d", settings.MetricsPort)
	}

	return nil
}
