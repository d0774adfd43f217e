// Package dispatch runs candidate evaluations against the black-box
// evaluator with bounded parallelism, per-candidate timeouts and full
// fault isolation. The dispatcher never mutates candidates; it returns
// a Result per candidate and the generation loop commits outcomes.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/spica-go/pkg/core"
	"github.com/XiaoConstantine/spica-go/pkg/errors"
	"github.com/XiaoConstantine/spica-go/pkg/logging"
)

// Result is the terminal outcome of one candidate's evaluation. Exactly
// one of Metrics and Err is meaningful; a timed-out or failed evaluation
// carries a nil Metrics and a coded error.
type Result struct {
	Candidate *core.Candidate
	Metrics   *core.Metrics
	Err       error
	Elapsed   time.Duration
}

// Dispatcher fans a generation's candidates out to the evaluator.
type Dispatcher struct {
	evaluator  core.Evaluator
	maxWorkers int
	timeout    time.Duration
}

// New builds a dispatcher. maxWorkers bounds concurrent evaluations;
// timeout is the per-candidate wall-clock budget (0 means unbounded).
func New(evaluator core.Evaluator, maxWorkers int, timeout time.Duration) (*Dispatcher, error) {
	if evaluator == nil {
		return nil, errors.New(errors.InvalidConfiguration, "dispatcher requires an evaluator")
	}
	if maxWorkers < 1 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"max_parallel_workers must be >= 1, got %d", maxWorkers)
	}
	if timeout < 0 {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"evaluation timeout must be >= 0, got %v", timeout)
	}
	return &Dispatcher{evaluator: evaluator, maxWorkers: maxWorkers, timeout: timeout}, nil
}

// Run evaluates every candidate and returns once all of them have reached
// a terminal outcome. Results are positionally aligned with candidates.
// A crashing, erroring or hanging evaluation never takes down the run or
// its sibling evaluations.
func (d *Dispatcher) Run(ctx context.Context, candidates []*core.Candidate) []Result {
	results := make([]Result, len(candidates))

	p := pool.New().WithMaxGoroutines(d.maxWorkers)
	for i, c := range candidates {
		i, c := i, c
		p.Go(func() {
			results[i] = d.evaluate(ctx, c)
		})
	}
	p.Wait()

	return results
}

// evaluate runs one candidate under its deadline. The evaluator call runs
// in an inner goroutine so a caller that ignores context cancellation
// still releases this worker slot when the deadline fires; the orphaned
// goroutine is abandoned rather than waited on.
func (d *Dispatcher) evaluate(ctx context.Context, c *core.Candidate) Result {
	logger := logging.GetLogger()
	evalCtx := logging.WithCandidateID(ctx, c.ID)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(evalCtx, d.timeout)
		defer cancel()
	}

	type outcome struct {
		metrics *core.Metrics
		err     error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Newf(errors.EvaluationFailed,
					"evaluator panicked: %v", r)}
			}
		}()
		m, err := d.evaluator.Evaluate(evalCtx, c.Genome.Raw(), c.Metadata)
		done <- outcome{metrics: m, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start)
		if out.err != nil {
			logger.Warn(evalCtx, "evaluation failed after %v: %v", elapsed, out.err)
			return Result{Candidate: c, Err: d.wrap(out.err), Elapsed: elapsed}
		}
		if out.metrics == nil {
			return Result{Candidate: c, Elapsed: elapsed, Err: errors.New(
				errors.EvaluationFailed, "evaluator returned no metrics")}
		}
		return Result{Candidate: c, Metrics: out.metrics, Elapsed: elapsed}
	case <-evalCtx.Done():
		elapsed := time.Since(start)
		err := evalCtx.Err()
		if err == context.DeadlineExceeded {
			logger.Warn(evalCtx, "evaluation timed out after %v", elapsed)
			return Result{Candidate: c, Elapsed: elapsed, Err: errors.WithFields(
				errors.Wrap(err, errors.EvaluationTimeout,
					fmt.Sprintf("evaluation exceeded %v", d.timeout)),
				errors.Fields{"timeout": d.timeout.String()})}
		}
		return Result{Candidate: c, Elapsed: elapsed,
			Err: errors.Wrap(err, errors.Canceled, "evaluation canceled")}
	}
}

// wrap normalizes evaluator errors into the engine's taxonomy while
// keeping their original codes when they already carry one.
func (d *Dispatcher) wrap(err error) error {
	switch {
	case errors.Code(err) != errors.Unknown:
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.EvaluationTimeout,
			fmt.Sprintf("evaluation exceeded %v", d.timeout))
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.Canceled, "evaluation canceled")
	default:
		return errors.Wrap(err, errors.EvaluationFailed, "evaluation failed")
	}
}
