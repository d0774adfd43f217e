// Package testutil provides evaluator doubles shared by the engine's
// package tests.
package testutil

import (
	"context"
	"sync/atomic"

	"github.com/XiaoConstantine/spica-go/pkg/core"
)

// FeasibleMetrics returns metrics that pass the default hard constraints
// with the given performance.
func FeasibleMetrics(performance float64) *core.Metrics {
	return &core.Metrics{
		Performance:         performance,
		Variance:            0.1,
		MaxDegradation:      0.05,
		Efficiency:          0.5,
		BaselineCorrelation: 0.2,
		TailRisk:            0.1,
	}
}

// ViolatingEvaluator always exceeds the drawdown threshold, so every
// candidate it scores becomes infeasible.
func ViolatingEvaluator() core.Evaluator {
	return core.EvaluatorFunc(func(ctx context.Context, params, meta map[string]any) (*core.Metrics, error) {
		return &core.Metrics{
			Performance:    0.9,
			MaxDegradation: 0.9,
			TailRisk:       0.1,
		}, nil
	})
}

// StaticEvaluator returns the same metrics for every candidate.
func StaticEvaluator(m *core.Metrics) core.Evaluator {
	return core.EvaluatorFunc(func(ctx context.Context, params, meta map[string]any) (*core.Metrics, error) {
		return m, nil
	})
}

// CountingEvaluator wraps another evaluator and counts invocations.
type CountingEvaluator struct {
	Inner core.Evaluator
	calls atomic.Int64
}

func (c *CountingEvaluator) Evaluate(ctx context.Context, params, meta map[string]any) (*core.Metrics, error) {
	c.calls.Add(1)
	return c.Inner.Evaluate(ctx, params, meta)
}

// Calls reports how many evaluations ran.
func (c *CountingEvaluator) Calls() int64 { return c.calls.Load() }
