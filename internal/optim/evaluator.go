package optim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/params"
)

// ObjectiveEvaluator adapts a Problem to the vector-in, scalar-out view of a
// numeric optimizer. It is built fresh for every run and keeps no cache:
// every call simulates.
type ObjectiveEvaluator struct {
	problem Problem
	n       int

	lower, upper []float64
	started      bool

	evaluations    int
	maxEvaluations int
	err            error
	exhausted      bool

	logger *slog.Logger
}

func NewObjectiveEvaluator(p Problem) *ObjectiveEvaluator {
	return &ObjectiveEvaluator{
		problem: p,
		n:       p.NumOptimizerParameters(),
		logger:  logging.Default,
	}
}

func (e *ObjectiveEvaluator) NumParameters() int { return e.n }

// SetParameterLimits registers the optimization box. It cannot change once
// evaluation has begun.
func (e *ObjectiveEvaluator) SetParameterLimits(lower, upper []float64) error {
	if e.started {
		return &ConfigurationError{Reason: "parameter limits changed after evaluation began"}
	}
	if len(lower) != e.n || len(upper) != e.n {
		return &ConfigurationError{
			Reason: fmt.Sprintf("limits for %d parameters, got lower=%d upper=%d", e.n, len(lower), len(upper)),
			Err:    params.ErrLengthMismatch,
		}
	}
	if err := checkBox(lower, upper); err != nil {
		return err
	}
	e.lower = append([]float64(nil), lower...)
	e.upper = append([]float64(nil), upper...)
	return nil
}

func (e *ObjectiveEvaluator) Limits() (lower, upper []float64) {
	return append([]float64(nil), e.lower...), append([]float64(nil), e.upper...)
}

// Evaluate runs one simulation at x and returns its objective unchanged.
func (e *ObjectiveEvaluator) Evaluate(ctx context.Context, x []float64) (float64, error) {
	if len(x) != e.n {
		return 0, &ConfigurationError{
			Reason: fmt.Sprintf("evaluate: got %d values for %d parameters", len(x), e.n),
			Err:    params.ErrLengthMismatch,
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, &OptimizationFailure{Status: "Canceled", Diagnostic: err.Error(), Err: err}
	}
	e.started = true

	set, err := e.problem.CreateParameterValueSet(x)
	if err != nil {
		return 0, configErr("create parameter value set", err)
	}

	e.evaluations++
	f, err := e.problem.Simulate(ctx, set)
	if err != nil {
		return 0, &EvaluationError{Evaluation: e.evaluations, Values: set, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &EvaluationError{Evaluation: e.evaluations, Values: set, Err: fmt.Errorf("%w: %g", ErrNonFinite, f)}
	}

	e.logger.Debug("evaluation", "n", e.evaluations, "params", set.String(), "objective", f)
	return f, nil
}

func (e *ObjectiveEvaluator) Evaluations() int { return e.evaluations }

// Err is the first error met while driving an optimizer through func.
func (e *ObjectiveEvaluator) Err() error { return e.err }

// objective returns a func for optimizers that cannot receive errors. After
// the first failure, or once the budget is spent, calls return +Inf without
// simulating; status then stops the optimizer.
func (e *ObjectiveEvaluator) objective(ctx context.Context) func(x []float64) float64 {
	return func(x []float64) float64 {
		if e.err != nil || e.exhausted {
			return math.Inf(1)
		}
		f, err := e.Evaluate(ctx, x)
		if err != nil {
			e.err = err
			return math.Inf(1)
		}
		if e.maxEvaluations > 0 && e.evaluations >= e.maxEvaluations {
			e.exhausted = true
		}
		return f
	}
}

func (e *ObjectiveEvaluator) status() (optimize.Status, error) {
	if e.err != nil {
		return optimize.Failure, e.err
	}
	if e.exhausted {
		return optimize.FunctionEvaluationLimit, nil
	}
	return optimize.NotTerminated, nil
}

func checkBox(lower, upper []float64) error {
	for i := range lower {
		l := params.Limits{Lower: lower[i], Upper: upper[i]}
		if err := l.Validate(); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("parameter %d", i), Err: err}
		}
	}
	return nil
}
