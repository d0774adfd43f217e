package fitness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
)

func testThresholds() Thresholds {
	return Thresholds{MaxDrawdown: 0.3, MaxTailRisk: 0.2}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	require.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
}

func TestWeightsValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Weights)
		wantErr bool
	}{
		{"defaults pass", func(w *Weights) {}, false},
		{"sum above one", func(w *Weights) { w.Performance = 0.50 }, true},
		{"negative weight", func(w *Weights) { w.Risk = -0.05; w.Performance = 0.50 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.InvalidConfiguration, errors.Code(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScoreWeightedSum(t *testing.T) {
	calc, err := NewCalculator(DefaultWeights(), testThresholds())
	require.NoError(t, err)

	m := &core.Metrics{
		Performance:         0.8,
		Variance:            0.1, // stability 0.9
		MaxDegradation:      0.2, // drawdown 0.8
		Efficiency:          0.5,
		BaselineCorrelation: 0.4, // correlation 0.6
		TailRisk:            0.1, // risk 0.9
	}

	want := 0.40*0.8 + 0.20*0.9 + 0.15*0.8 + 0.10*0.5 + 0.10*0.6 + 0.05*0.9
	assert.InDelta(t, want, calc.Score(m), 1e-12)
}

func TestHardGatesOverrideOptimization(t *testing.T) {
	calc, err := NewCalculator(DefaultWeights(), testThresholds())
	require.NoError(t, err)

	perfect := &core.Metrics{Performance: 1, Efficiency: 1}

	drawdownViolation := *perfect
	drawdownViolation.MaxDegradation = 0.31

	tailRiskViolation := *perfect
	tailRiskViolation.TailRisk = 0.21

	assert.False(t, math.IsInf(calc.Score(perfect), -1))
	assert.True(t, math.IsInf(calc.Score(&drawdownViolation), -1))
	assert.True(t, math.IsInf(calc.Score(&tailRiskViolation), -1))
	assert.True(t, math.IsInf(calc.Score(nil), -1))
}

func TestNormalizeClampsAxes(t *testing.T) {
	calc, err := NewCalculator(DefaultWeights(), testThresholds())
	require.NoError(t, err)

	a := calc.Normalize(&core.Metrics{
		Performance:         1.7,
		Variance:            -0.5,
		MaxDegradation:      2.0,
		Efficiency:          -1,
		BaselineCorrelation: 3,
		TailRisk:            -2,
	})

	assert.Equal(t, 1.0, a.Performance)
	assert.Equal(t, 1.0, a.Stability)
	assert.Equal(t, 0.0, a.Drawdown)
	assert.Equal(t, 0.0, a.Turnover)
	assert.Equal(t, 0.0, a.Correlation)
	assert.Equal(t, 1.0, a.Risk)
}

func TestNewCalculatorRejectsBadWeights(t *testing.T) {
	w := DefaultWeights()
	w.Turnover = 0.5

	_, err := NewCalculator(w, testThresholds())
	assert.Error(t, err)
}
