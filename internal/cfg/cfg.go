// Package cfg loads and validates the analysis configuration from a YAML
// file with environment-variable overrides, or from the environment alone.
package cfg

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the fully resolved configuration consumed by the rest of the
// suite.
type Settings struct {
	// Input table
	DataPath      string
	IDColumn      string
	LabelColumn   string
	PositiveLabel string
	MetaColumns   []string
	Filters       map[string]string

	// Repetition loop
	TrainPerClass int
	Repetitions   int
	BaseSeed      int64

	// Feature selection
	ThresholdTrees     int
	InterpTrees        int
	PredTrees          int
	Replicates         int
	NoiseMargin        float64
	ParsimonyTolerance float64
	CVFolds            int

	// Final ensemble
	EnsembleTrees   int
	MaxDepth        int
	MinLeaf         int
	OutlierQuantile float64

	// Evaluation
	BandBins  int
	BandAlpha float64

	// System
	Parallelism int
	OutputPath  string
	MetricsPort int
}

// ConfigFile is the YAML layout of the configuration file.
type ConfigFile struct {
	Data struct {
		Path          string            `yaml:"path"`
		IDColumn      string            `yaml:"idColumn"`
		LabelColumn   string            `yaml:"labelColumn"`
		PositiveLabel string            `yaml:"positiveLabel"`
		MetaColumns   []string          `yaml:"metaColumns"`
		Filters       map[string]string `yaml:"filters"`
	} `yaml:"data"`

	Sampling struct {
		TrainPerClass int   `yaml:"trainPerClass"`
		Repetitions   int   `yaml:"repetitions"`
		BaseSeed      int64 `yaml:"baseSeed"`
	} `yaml:"sampling"`

	Selection struct {
		ThresholdTrees     int     `yaml:"thresholdTrees"`
		InterpTrees        int     `yaml:"interpTrees"`
		PredTrees          int     `yaml:"predTrees"`
		Replicates         int     `yaml:"replicates"`
		NoiseMargin        float64 `yaml:"noiseMargin"`
		ParsimonyTolerance float64 `yaml:"parsimonyTolerance"`
		CVFolds            int     `yaml:"cvFolds"`
	} `yaml:"selection"`

	Ensemble struct {
		Trees           int     `yaml:"trees"`
		MaxDepth        int     `yaml:"maxDepth"`
		MinLeaf         int     `yaml:"minLeaf"`
		OutlierQuantile float64 `yaml:"outlierQuantile"`
	} `yaml:"ensemble"`

	Evaluation struct {
		BandBins  int     `yaml:"bandBins"`
		BandAlpha float64 `yaml:"bandAlpha"`
	} `yaml:"evaluation"`

	System struct {
		Parallelism int    `yaml:"parallelism"`
		OutputPath  string `yaml:"outputPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

// Load resolves the configuration: a YAML file named by CONFIG_FILE when
// present, environment variables otherwise. Environment values override the
// file in both cases.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		DataPath:           getEnvOrDefault("DATA_PATH", config.Data.Path),
		IDColumn:           getEnvOrDefault("ID_COLUMN", orString(config.Data.IDColumn, "sample_id")),
		LabelColumn:        getEnvOrDefault("LABEL_COLUMN", orString(config.Data.LabelColumn, "diagnosis")),
		PositiveLabel:      getEnvOrDefault("POSITIVE_LABEL", orString(config.Data.PositiveLabel, "disease")),
		MetaColumns:        config.Data.MetaColumns,
		Filters:            config.Data.Filters,
		TrainPerClass:      getIntFromEnvOrConfig("TRAIN_PER_CLASS", config.Sampling.TrainPerClass, 63),
		Repetitions:        getIntFromEnvOrConfig("REPETITIONS", config.Sampling.Repetitions, 10),
		BaseSeed:           getInt64FromEnvOrConfig("BASE_SEED", config.Sampling.BaseSeed, 42),
		ThresholdTrees:     getIntFromEnvOrConfig("THRESHOLD_TREES", config.Selection.ThresholdTrees, 500),
		InterpTrees:        getIntFromEnvOrConfig("INTERP_TREES", config.Selection.InterpTrees, 300),
		PredTrees:          getIntFromEnvOrConfig("PRED_TREES", config.Selection.PredTrees, 300),
		Replicates:         getIntFromEnvOrConfig("REPLICATES", config.Selection.Replicates, 25),
		NoiseMargin:        getFloatFromEnvOrConfig("NOISE_MARGIN", config.Selection.NoiseMargin, 0.01),
		ParsimonyTolerance: getFloatFromEnvOrConfig("PARSIMONY_TOLERANCE", config.Selection.ParsimonyTolerance, 0.01),
		CVFolds:            getIntFromEnvOrConfig("CV_FOLDS", config.Selection.CVFolds, 5),
		EnsembleTrees:      getIntFromEnvOrConfig("ENSEMBLE_TREES", config.Ensemble.Trees, 20000),
		MaxDepth:           getIntFromEnvOrConfig("MAX_DEPTH", config.Ensemble.MaxDepth, 0),
		MinLeaf:            getIntFromEnvOrConfig("MIN_LEAF", config.Ensemble.MinLeaf, 1),
		OutlierQuantile:    getFloatFromEnvOrConfig("OUTLIER_QUANTILE", config.Ensemble.OutlierQuantile, 0.05),
		BandBins:           getIntFromEnvOrConfig("BAND_BINS", config.Evaluation.BandBins, 20),
		BandAlpha:          getFloatFromEnvOrConfig("BAND_ALPHA", config.Evaluation.BandAlpha, 0.05),
		Parallelism:        getIntFromEnvOrConfig("PARALLELISM", config.System.Parallelism, runtime.NumCPU()),
		OutputPath:         getEnvOrDefault("OUTPUT_PATH", orString(config.System.OutputPath, "results")),
		MetricsPort:        getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 0),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:           os.Getenv("DATA_PATH"),
		IDColumn:           getEnvOrDefault("ID_COLUMN", "sample_id"),
		LabelColumn:        getEnvOrDefault("LABEL_COLUMN", "diagnosis"),
		PositiveLabel:      getEnvOrDefault("POSITIVE_LABEL", "disease"),
		MetaColumns:        splitOrNil(os.Getenv("META_COLUMNS")),
		Filters:            parseFilters(os.Getenv("FILTERS")),
		TrainPerClass:      getIntOrDefault("TRAIN_PER_CLASS", 63),
		Repetitions:        getIntOrDefault("REPETITIONS", 10),
		BaseSeed:           getInt64OrDefault("BASE_SEED", 42),
		ThresholdTrees:     getIntOrDefault("THRESHOLD_TREES", 500),
		InterpTrees:        getIntOrDefault("INTERP_TREES", 300),
		PredTrees:          getIntOrDefault("PRED_TREES", 300),
		Replicates:         getIntOrDefault("REPLICATES", 25),
		NoiseMargin:        getFloatOrDefault("NOISE_MARGIN", 0.01),
		ParsimonyTolerance: getFloatOrDefault("PARSIMONY_TOLERANCE", 0.01),
		CVFolds:            getIntOrDefault("CV_FOLDS", 5),
		EnsembleTrees:      getIntOrDefault("ENSEMBLE_TREES", 20000),
		MaxDepth:           getIntOrDefault("MAX_DEPTH", 0),
		MinLeaf:            getIntOrDefault("MIN_LEAF", 1),
		OutlierQuantile:    getFloatOrDefault("OUTLIER_QUANTILE", 0.05),
		BandBins:           getIntOrDefault("BAND_BINS", 20),
		BandAlpha:          getFloatOrDefault("BAND_ALPHA", 0.05),
		Parallelism:        getIntOrDefault("PARALLELISM", runtime.NumCPU()),
		OutputPath:         getEnvOrDefault("OUTPUT_PATH", "results"),
		MetricsPort:        getIntOrDefault("METRICS_PORT", 0),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func splitOrNil(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// parseFilters parses "col=value,col2=value2" into a filter map.
func parseFilters(v string) map[string]string {
	if v == "" {
		return nil
	}
	filters := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			filters[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return filters
}
