package core

import (
	"context"
	"fmt"
)

// Evaluator is the single capability the engine calls per candidate. The
// black box receives the genome as untyped params plus an engine-supplied
// context map, and must return the six raw metric fields within the
// configured timeout. Its return value is its only output channel.
type Evaluator interface {
	Evaluate(ctx context.Context, params map[string]any, meta map[string]any) (*Metrics, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, params map[string]any, meta map[string]any) (*Metrics, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, params map[string]any, meta map[string]any) (*Metrics, error) {
	return f(ctx, params, meta)
}

// EvaluatorFactory builds an evaluator instance at load time. The factory
// form exists for evaluators that carry per-run state and need construction
// before first use.
type EvaluatorFactory func() (Evaluator, error)

// BuildEvaluator adapts any supported evaluator form into the one interface
// call sites use. Accepted forms: an Evaluator instance, a bare function
// with the Evaluate signature, or a factory invoked once here. Call sites
// never branch on the concrete form.
func BuildEvaluator(v any) (Evaluator, error) {
	switch e := v.(type) {
	case nil:
		return nil, fmt.Errorf("evaluator is required")
	case Evaluator:
		return e, nil
	case func(ctx context.Context, params map[string]any, meta map[string]any) (*Metrics, error):
		return EvaluatorFunc(e), nil
	case EvaluatorFactory:
		return e()
	case func() (Evaluator, error):
		return e()
	default:
		return nil, fmt.Errorf("unsupported evaluator form %T", v)
	}
}
