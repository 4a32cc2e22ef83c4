// Package config loads the YAML configuration shared by the trainer and the predictor.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/search"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are tried in order when no config path is given.
var DefaultFiles = []string{"salary.yaml", "salary.yml"}

// Config is everything the trainer and the predictor need. Both must see the same
// Features, it is the column order of the stored models.
type Config struct {
	DatasetPath   string   `yaml:"dataset_path"`
	ModelsDir     string   `yaml:"models_dir"`
	MetricsPath   string   `yaml:"metrics_path"`
	Features      []string `yaml:"features"`
	Target        string   `yaml:"target"`
	RandomState   uint64   `yaml:"random_state"`
	SyntheticRows int      `yaml:"synthetic_rows"`
	TestSize      float64  `yaml:"test_size"`
	CVFolds       int      `yaml:"cv_folds"`

	Search           SearchConfig         `yaml:"search"`
	RandomForest     search.ForestSpace   `yaml:"random_forest"`
	GradientBoosting search.BoostingSpace `yaml:"gradient_boosting"`

	ThreadsNum int       `yaml:"threads_num"` // split search goroutines per tree
	RegLambda  float64   `yaml:"reg_lambda"`
	Log        LogConfig `yaml:"log"`
}

// SearchConfig controls the randomized hyperparameter search.
type SearchConfig struct {
	NIter int `yaml:"n_iter"`
	CV    int `yaml:"cv"`
	NJobs int `yaml:"n_jobs"` // 0 means one per CPU
}

// LogConfig selects the level and, optionally, a rotated log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		DatasetPath:   "salary_data.csv",
		ModelsDir:     "models",
		MetricsPath:   "model_metrics.json",
		Features:      append([]string(nil), dataset.DefaultFeatures...),
		Target:        dataset.DefaultTarget,
		RandomState:   42,
		SyntheticRows: 1200,
		TestSize:      0.2,
		CVFolds:       5,
		Search: SearchConfig{
			NIter: 15,
			CV:    3,
		},
		RandomForest: search.ForestSpace{
			NEstimators:     search.IntRange{Low: 80, High: 250},
			MaxDepth:        search.IntRange{Low: 3, High: 14},
			MinSamplesSplit: search.IntRange{Low: 2, High: 8},
		},
		GradientBoosting: search.BoostingSpace{
			NEstimators:  search.IntRange{Low: 80, High: 250},
			LearningRate: search.FloatRange{Loc: 0.01, Scale: 0.2},
			MaxDepth:     search.IntRange{Low: 2, High: 6},
		},
		ThreadsNum: 1,
		RegLambda:  1e-6,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the file at path over the defaults. With an empty path the
// DefaultFiles are tried and the defaults are returned when none exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
		if path == "" {
			return cfg, cfg.Validate()
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}
	if c.ModelsDir == "" {
		add("models_dir is empty")
	}
	if c.MetricsPath == "" {
		add("metrics_path is empty")
	}
	if len(c.Features) == 0 {
		add("features list is empty")
	}
	seen := make(map[string]bool, len(c.Features))
	for _, name := range c.Features {
		if seen[name] {
			add("feature %q is listed twice", name)
		}
		if name == c.Target {
			add("feature %q is also the target", name)
		}
		seen[name] = true
	}
	if c.Target == "" {
		add("target is empty")
	}
	if c.SyntheticRows < 1 {
		add("synthetic_rows must be positive, got %d", c.SyntheticRows)
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		add("test_size must be in (0, 1), got %v", c.TestSize)
	}
	if c.CVFolds < 2 {
		add("cv_folds must be at least 2, got %d", c.CVFolds)
	}
	if c.Search.NIter < 1 {
		add("search.n_iter must be positive, got %d", c.Search.NIter)
	}
	if c.Search.CV < 2 {
		add("search.cv must be at least 2, got %d", c.Search.CV)
	}
	if c.Search.NJobs < 0 {
		add("search.n_jobs must not be negative, got %d", c.Search.NJobs)
	}
	ranges := []struct {
		name string
		r    search.IntRange
	}{
		{"random_forest.n_estimators", c.RandomForest.NEstimators},
		{"random_forest.max_depth", c.RandomForest.MaxDepth},
		{"random_forest.min_samples_split", c.RandomForest.MinSamplesSplit},
		{"gradient_boosting.n_estimators", c.GradientBoosting.NEstimators},
		{"gradient_boosting.max_depth", c.GradientBoosting.MaxDepth},
	}
	for _, item := range ranges {
		if err := item.r.Validate(); err != nil {
			add("%s: %w", item.name, err)
		} else if item.r.Low < 1 {
			add("%s must start at 1 or above, got %d", item.name, item.r.Low)
		}
	}
	if err := c.GradientBoosting.LearningRate.Validate(); err != nil {
		add("gradient_boosting.learning_rate: %w", err)
	} else if c.GradientBoosting.LearningRate.Loc <= 0 {
		add("gradient_boosting.learning_rate must be positive, got loc %v", c.GradientBoosting.LearningRate.Loc)
	}
	if c.RegLambda < 0 {
		add("reg_lambda must not be negative, got %v", c.RegLambda)
	}
	return result.ErrorOrNil()
}
