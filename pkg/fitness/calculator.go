// Package fitness maps raw evaluator metrics onto six normalized axes and
// combines them into a scalar score, gated by hard safety constraints.
package fitness

import (
	"math"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/utils"
)

// Weights holds the six axis weights. They must sum to 1.0.
type Weights struct {
	Performance float64 `json:"performance" yaml:"performance"`
	Stability   float64 `json:"stability" yaml:"stability"`
	Drawdown    float64 `json:"drawdown" yaml:"drawdown"`
	Turnover    float64 `json:"turnover" yaml:"turnover"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
	Risk        float64 `json:"risk" yaml:"risk"`
}

// DefaultWeights returns the standard axis weighting.
func DefaultWeights() Weights {
	return Weights{
		Performance: 0.40,
		Stability:   0.20,
		Drawdown:    0.15,
		Turnover:    0.10,
		Correlation: 0.10,
		Risk:        0.05,
	}
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.Performance + w.Stability + w.Drawdown + w.Turnover + w.Correlation + w.Risk
}

// Validate checks that weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"performance": w.Performance,
		"stability":   w.Stability,
		"drawdown":    w.Drawdown,
		"turnover":    w.Turnover,
		"correlation": w.Correlation,
		"risk":        w.Risk,
	} {
		if v < 0 {
			return errors.Newf(errors.InvalidConfiguration,
				"fitness weight %q must be >= 0, got %v", name, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return errors.Newf(errors.InvalidConfiguration,
			"fitness weights must sum to 1.0, got %v", w.Sum())
	}
	return nil
}

// Thresholds defines the hard safety gates. A candidate whose raw
// max_degradation or tail_risk exceeds its threshold is infeasible no matter
// how the other axes score.
type Thresholds struct {
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
	MaxTailRisk float64 `json:"max_tail_risk" yaml:"max_tail_risk"`
}

// Axes are the six normalized [0,1] scores, higher is better.
type Axes struct {
	Performance float64 `json:"performance"`
	Stability   float64 `json:"stability"`
	Drawdown    float64 `json:"drawdown"`
	Turnover    float64 `json:"turnover"`
	Correlation float64 `json:"correlation"`
	Risk        float64 `json:"risk"`
}

// Calculator scores raw metrics.
type Calculator struct {
	weights    Weights
	thresholds Thresholds
}

// NewCalculator validates the weights and builds a calculator.
func NewCalculator(w Weights, t Thresholds) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w, thresholds: t}, nil
}

// Normalize maps raw metrics onto the six axes, clamped into [0,1].
func (c *Calculator) Normalize(m *core.Metrics) Axes {
	return Axes{
		Performance: utils.Clamp01(m.Performance),
		Stability:   utils.Clamp01(1 - m.Variance),
		Drawdown:    utils.Clamp01(1 - m.MaxDegradation),
		Turnover:    utils.Clamp01(m.Efficiency),
		Correlation: utils.Clamp01(1 - m.BaselineCorrelation),
		Risk:        utils.Clamp01(1 - m.TailRisk),
	}
}

// Feasible reports whether the raw metrics pass both hard gates.
func (c *Calculator) Feasible(m *core.Metrics) bool {
	if m == nil {
		return false
	}
	if m.MaxDegradation > c.thresholds.MaxDrawdown {
		return false
	}
	if m.TailRisk > c.thresholds.MaxTailRisk {
		return false
	}
	return true
}

// Score maps raw metrics to scalar fitness. The safety gate overrides
// optimization: a threshold violation returns core.Infeasible regardless of
// every other axis.
func (c *Calculator) Score(m *core.Metrics) float64 {
	if !c.Feasible(m) {
		return core.Infeasible
	}
	a := c.Normalize(m)
	return c.weights.Performance*a.Performance +
		c.weights.Stability*a.Stability +
		c.weights.Drawdown*a.Drawdown +
		c.weights.Turnover*a.Turnover +
		c.weights.Correlation*a.Correlation +
		c.weights.Risk*a.Risk
}
