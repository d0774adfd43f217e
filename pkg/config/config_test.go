package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Domain = "allocator"
	cfg.OutputDir = "/tmp/spica"
	lo, hi := 0.0, 1.0
	cfg.SearchSpace = []DimensionConfig{
		{Name: "rate", Kind: "continuous", Min: &lo, Max: &hi},
		{Name: "batch", Kind: "discrete", Values: []any{8, 16, 32}},
		{Name: "model", Kind: "categorical", Values: []any{"small", "medium", "large"}},
	}
	return cfg
}

func TestDefaultValidates(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 600*time.Second, cfg.EvaluationTimeout())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing domain", func(c *Config) { c.Domain = "" }},
		{"missing output dir", func(c *Config) { c.OutputDir = "" }},
		{"zero population", func(c *Config) { c.PopulationSize = 0 }},
		{"mutation rate above one", func(c *Config) { c.MutationRate = 1.5 }},
		{"weights not summing to one", func(c *Config) { c.Weights.Performance = 0.9 }},
		{"elite plus fresh exceeds population", func(c *Config) { c.EliteK = 19; c.FreshK = 2 }},
		{"non-positive threshold", func(c *Config) { c.Thresholds.MaxDrawdown = 0 }},
		{"empty search space", func(c *Config) { c.SearchSpace = nil }},
		{"bad tie break", func(c *Config) { c.TieBreak = "coin-flip" }},
		{"zero workers", func(c *Config) { c.MaxParallelWorkers = 0 }},
		{"continuous without bounds", func(c *Config) {
			c.SearchSpace = []DimensionConfig{{Name: "rate", Kind: "continuous"}}
		}},
		{"discrete without values", func(c *Config) {
			c.SearchSpace = []DimensionConfig{{Name: "batch", Kind: "discrete"}}
		}},
		{"non-integer discrete value", func(c *Config) {
			c.SearchSpace = []DimensionConfig{{Name: "batch", Kind: "discrete", Values: []any{1.5}}}
		}},
		{"non-string categorical value", func(c *Config) {
			c.SearchSpace = []DimensionConfig{{Name: "model", Kind: "categorical", Values: []any{7}}}
		}},
		{"duplicate dimension names", func(c *Config) {
			lo, hi := 0.0, 1.0
			c.SearchSpace = []DimensionConfig{
				{Name: "rate", Kind: "continuous", Min: &lo, Max: &hi},
				{Name: "rate", Kind: "continuous", Min: &lo, Max: &hi},
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.InvalidConfiguration, errors.Code(err))
		})
	}
}

func TestBuildSearchSpace(t *testing.T) {
	cfg := validConfig()
	space, err := cfg.BuildSearchSpace()
	require.NoError(t, err)
	require.Equal(t, 3, space.Len())

	rate, ok := space.Dimension("rate")
	require.True(t, ok)
	assert.Equal(t, core.KindContinuous, rate.Kind)
	assert.Equal(t, 0.0, rate.HardMin)
	assert.Equal(t, 1.0, rate.HardMax)

	batch, ok := space.Dimension("batch")
	require.True(t, ok)
	assert.Equal(t, core.KindDiscrete, batch.Kind)
	assert.Len(t, batch.ActiveValues, 3)

	model, ok := space.Dimension("model")
	require.True(t, ok)
	assert.Equal(t, core.KindCategorical, model.Kind)
}

func TestLoadYAML(t *testing.T) {
	raw := `
domain: allocator
output_dir: /tmp/spica-run
population_size: 12
elite_k: 2
fresh_k: 1
tournament_size: 2
mutation_rate: 0.2
crossover_rate: 0.8
novelty_k: 5
archive_capacity: 50
max_generations: 10
snapshot_retention_count: 10
evaluation_timeout_seconds: 30
max_parallel_workers: 8
seed: 42
tie_break: random
hard_constraints:
  max_drawdown: 0.25
  max_tail_risk: 0.4
search_space:
  - name: rate
    kind: continuous
    min: 0.0
    max: 1.0
  - name: model
    kind: categorical
    values: [small, large]
`
	path := filepath.Join(t.TempDir(), "spica.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "allocator", cfg.Domain)
	assert.Equal(t, 12, cfg.PopulationSize)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "random", cfg.TieBreak)
	assert.Equal(t, 0.25, cfg.Thresholds.MaxDrawdown)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, Default().Weights, cfg.Weights)
	assert.Len(t, cfg.SearchSpace, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.InvalidConfiguration, errors.Code(err))
}

func TestDirectBuildPreset(t *testing.T) {
	cfg := DirectBuild()
	cfg.Domain = "allocator"
	cfg.OutputDir = "/tmp/spica"
	lo, hi := 0.0, 1.0
	cfg.SearchSpace = []DimensionConfig{{Name: "rate", Kind: "continuous", Min: &lo, Max: &hi}}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.PopulationSize)
	assert.Equal(t, 1, cfg.MaxGenerations)
	assert.Zero(t, cfg.MutationRate)
	assert.Zero(t, cfg.CrossoverRate)
}

func TestSnapshotCoversEveryKey(t *testing.T) {
	cfg := validConfig()
	snap := cfg.Snapshot()
	for _, key := range []string{
		"domain", "population_size", "elite_k", "fresh_k", "tournament_size",
		"mutation_rate", "crossover_rate", "novelty_k", "archive_capacity",
		"fitness_weights", "hard_constraints", "max_generations",
		"adaptation_interval_generations", "snapshot_retention_count",
		"evaluation_timeout_seconds", "max_parallel_workers", "seed",
		"tie_break", "search_space",
	} {
		assert.Contains(t, snap, key)
	}
}
