// Package config defines the engine's run configuration. A config is
// read once at startup from YAML (or built in code), validated, and then
// treated as immutable — nothing hot-reloads mid-generation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/fitness"
)

// Config is the complete engine configuration.
type Config struct {
	// Domain names the system whose parameters are being tuned; it is
	// stamped into manifests and telemetry.
	Domain  string `yaml:"domain" validate:"required"`
	Version string `yaml:"version,omitempty"`
	// OriginCommit optionally pins the evaluator's code revision.
	OriginCommit string `yaml:"origin_commit,omitempty"`

	PopulationSize int `yaml:"population_size" validate:"required,min=1"`
	EliteK         int `yaml:"elite_k" validate:"min=0"`
	FreshK         int `yaml:"fresh_k" validate:"min=0"`
	TournamentSize int `yaml:"tournament_size" validate:"required,min=1"`

	MutationRate  float64 `yaml:"mutation_rate" validate:"min=0,max=1"`
	CrossoverRate float64 `yaml:"crossover_rate" validate:"min=0,max=1"`

	NoveltyK        int `yaml:"novelty_k" validate:"required,min=1"`
	ArchiveCapacity int `yaml:"archive_capacity" validate:"required,min=1"`

	Weights    fitness.Weights    `yaml:"fitness_weights"`
	Thresholds fitness.Thresholds `yaml:"hard_constraints"`

	// MaxGenerations of 0 runs until the context is canceled.
	MaxGenerations int `yaml:"max_generations" validate:"min=0"`

	AdaptationIntervalGenerations int `yaml:"adaptation_interval_generations" validate:"min=0"`
	SnapshotRetentionCount        int `yaml:"snapshot_retention_count" validate:"required,min=1"`

	EvaluationTimeoutSeconds int `yaml:"evaluation_timeout_seconds" validate:"min=0"`
	MaxParallelWorkers       int `yaml:"max_parallel_workers" validate:"required,min=1"`

	// Seed fixes the RNG for reproducible runs; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	// OutputDir roots the run's promotions/, telemetry/ and instances/
	// directories.
	OutputDir string `yaml:"output_dir" validate:"required"`

	// TieBreak picks between fitness-equal tournament contenders.
	TieBreak string `yaml:"tie_break,omitempty" validate:"omitempty,oneof=novelty random"`

	SearchSpace []DimensionConfig `yaml:"search_space" validate:"required,min=1,dive"`
}

// DimensionConfig declares one search-space dimension. Continuous
// dimensions take min/max; discrete and categorical take values.
type DimensionConfig struct {
	Name   string   `yaml:"name" validate:"required"`
	Kind   string   `yaml:"kind" validate:"required,oneof=continuous discrete categorical"`
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
	Values []any    `yaml:"values,omitempty"`
}

// Default returns a config with the engine's standard tuning. Callers
// still must supply Domain, OutputDir and SearchSpace.
func Default() *Config {
	return &Config{
		Version:                       "0.1.0",
		PopulationSize:                20,
		EliteK:                        2,
		FreshK:                        1,
		TournamentSize:                3,
		MutationRate:                  0.15,
		CrossoverRate:                 0.7,
		NoveltyK:                      15,
		ArchiveCapacity:               200,
		Weights:                       fitness.DefaultWeights(),
		Thresholds:                    fitness.Thresholds{MaxDrawdown: 0.3, MaxTailRisk: 0.5},
		MaxGenerations:                50,
		AdaptationIntervalGenerations: 5,
		SnapshotRetentionCount:        10,
		EvaluationTimeoutSeconds:      600,
		MaxParallelWorkers:            4,
		TieBreak:                      "novelty",
	}
}

// DirectBuild returns the single-hypothesis preset: a population of one,
// no selection pressure and no mutation, reusing the same dispatch and
// promotion machinery to evaluate exactly the genome the caller supplies.
func DirectBuild() *Config {
	cfg := Default()
	cfg.PopulationSize = 1
	cfg.EliteK = 0
	cfg.FreshK = 0
	cfg.TournamentSize = 1
	cfg.MutationRate = 0
	cfg.CrossoverRate = 0
	cfg.MaxGenerations = 1
	cfg.AdaptationIntervalGenerations = 0
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidConfiguration, "cannot read config file"),
			errors.Fields{"path": path})
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "cannot parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and the cross-field invariants
// the struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return errors.Newf(errors.InvalidConfiguration,
				"config field %s failed %q validation", f.Namespace(), f.Tag())
		}
		return errors.Wrap(err, errors.InvalidConfiguration, "config validation failed")
	}

	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.EliteK+c.FreshK > c.PopulationSize {
		return errors.Newf(errors.InvalidConfiguration,
			"elite_k (%d) + fresh_k (%d) must not exceed population_size (%d)",
			c.EliteK, c.FreshK, c.PopulationSize)
	}
	if c.Thresholds.MaxDrawdown <= 0 || c.Thresholds.MaxTailRisk <= 0 {
		return errors.New(errors.InvalidConfiguration,
			"hard constraint thresholds must be positive")
	}
	if _, err := c.BuildSearchSpace(); err != nil {
		return err
	}
	return nil
}

// EvaluationTimeout returns the per-candidate timeout as a duration.
func (c *Config) EvaluationTimeout() time.Duration {
	return time.Duration(c.EvaluationTimeoutSeconds) * time.Second
}

// BuildSearchSpace materializes the configured dimensions.
func (c *Config) BuildSearchSpace() (*core.SearchSpace, error) {
	dims := make([]*core.Dimension, 0, len(c.SearchSpace))
	for _, dc := range c.SearchSpace {
		d, err := dc.build()
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	space, err := core.NewSearchSpace(dims...)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "invalid search space")
	}
	return space, nil
}

func (dc DimensionConfig) build() (*core.Dimension, error) {
	switch dc.Kind {
	case "continuous":
		if dc.Min == nil || dc.Max == nil {
			return nil, errors.Newf(errors.InvalidConfiguration,
				"dimension %s: continuous kind requires min and max", dc.Name)
		}
		d, err := core.NewContinuousDimension(dc.Name, *dc.Min, *dc.Max)
		if err != nil {
			return nil, errors.Wrap(err, errors.InvalidConfiguration, "invalid dimension")
		}
		return d, nil

	case "discrete":
		values, err := intValues(dc.Name, dc.Values)
		if err != nil {
			return nil, err
		}
		d, err := core.NewDiscreteDimension(dc.Name, values)
		if err != nil {
			return nil, errors.Wrap(err, errors.InvalidConfiguration, "invalid dimension")
		}
		return d, nil

	case "categorical":
		values, err := strValues(dc.Name, dc.Values)
		if err != nil {
			return nil, err
		}
		d, err := core.NewCategoricalDimension(dc.Name, values)
		if err != nil {
			return nil, errors.Wrap(err, errors.InvalidConfiguration, "invalid dimension")
		}
		return d, nil

	default:
		return nil, errors.Newf(errors.InvalidConfiguration,
			"dimension %s: unknown kind %q", dc.Name, dc.Kind)
	}
}

func intValues(name string, raw []any) ([]int64, error) {
	if len(raw) == 0 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"dimension %s: discrete kind requires values", name)
	}
	out := make([]int64, len(raw))
	for i, v := range raw {
		switch n := v.(type) {
		case int:
			out[i] = int64(n)
		case int64:
			out[i] = n
		case float64:
			if n != float64(int64(n)) {
				return nil, errors.Newf(errors.InvalidConfiguration,
					"dimension %s: discrete value %v is not an integer", name, v)
			}
			out[i] = int64(n)
		default:
			return nil, errors.Newf(errors.InvalidConfiguration,
				"dimension %s: discrete value %v has unsupported type %T", name, v, v)
		}
	}
	return out, nil
}

func strValues(name string, raw []any) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"dimension %s: categorical kind requires values", name)
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.InvalidConfiguration,
				"dimension %s: categorical value %v has unsupported type %T", name, v, v)
		}
		out[i] = s
	}
	return out, nil
}

// Snapshot flattens the config into a JSON-friendly map for embedding in
// manifests and promotion artifacts.
func (c *Config) Snapshot() map[string]any {
	dims := make([]map[string]any, 0, len(c.SearchSpace))
	for _, dc := range c.SearchSpace {
		d := map[string]any{"name": dc.Name, "kind": dc.Kind}
		if dc.Min != nil {
			d["min"] = *dc.Min
		}
		if dc.Max != nil {
			d["max"] = *dc.Max
		}
		if len(dc.Values) > 0 {
			d["values"] = dc.Values
		}
		dims = append(dims, d)
	}
	return map[string]any{
		"domain":                          c.Domain,
		"version":                         c.Version,
		"population_size":                 c.PopulationSize,
		"elite_k":                         c.EliteK,
		"fresh_k":                         c.FreshK,
		"tournament_size":                 c.TournamentSize,
		"mutation_rate":                   c.MutationRate,
		"crossover_rate":                  c.CrossoverRate,
		"novelty_k":                       c.NoveltyK,
		"archive_capacity":                c.ArchiveCapacity,
		"fitness_weights":                 c.Weights,
		"hard_constraints":                c.Thresholds,
		"max_generations":                 c.MaxGenerations,
		"adaptation_interval_generations": c.AdaptationIntervalGenerations,
		"snapshot_retention_count":        c.SnapshotRetentionCount,
		"evaluation_timeout_seconds":      c.EvaluationTimeoutSeconds,
		"max_parallel_workers":            c.MaxParallelWorkers,
		"seed":                            c.Seed,
		"tie_break":                       c.TieBreak,
		"search_space":                    dims,
	}
}

// String renders a short human-readable summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("domain=%s pop=%d elite=%d fresh=%d gens=%d workers=%d dims=%d",
		c.Domain, c.PopulationSize, c.EliteK, c.FreshK, c.MaxGenerations,
		c.MaxParallelWorkers, len(c.SearchSpace))
}
