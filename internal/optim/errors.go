package optim

import (
	"errors"
	"fmt"

	"github.com/san-kum/dynopt/internal/params"
)

var (
	ErrConfiguration       = errors.New("optim: configuration error")
	ErrEvaluation          = errors.New("optim: evaluation error")
	ErrOptimizationFailure = errors.New("optim: optimization failure")

	ErrNoParameters    = errors.New("no optimizable parameters")
	ErrNonFinite       = errors.New("objective is not finite")
	ErrBudgetExhausted = errors.New("evaluation budget exhausted")
	ErrUnknownMethod   = errors.New("unknown optimization method")
)

// ConfigurationError is raised before any simulation runs: no parameters,
// mismatched vector lengths or malformed bounds.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error        { return e.Err }
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// EvaluationError reports one objective evaluation that did not produce a
// finite value.
type EvaluationError struct {
	// Evaluation is the 1-based index of the failing call.
	Evaluation int
	Values     params.ValueSet
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation %d at %s: %v", e.Evaluation, e.Values, e.Err)
}

func (e *EvaluationError) Unwrap() error        { return e.Err }
func (e *EvaluationError) Is(target error) bool { return target == ErrEvaluation }

// OptimizationFailure carries the optimizer's own diagnostic when it could
// not converge.
type OptimizationFailure struct {
	Status     string
	Diagnostic string
	Err        error
}

func (e *OptimizationFailure) Error() string {
	return fmt.Sprintf("optimization failed (%s): %s", e.Status, e.Diagnostic)
}

func (e *OptimizationFailure) Unwrap() error        { return e.Err }
func (e *OptimizationFailure) Is(target error) bool { return target == ErrOptimizationFailure }

func configErr(reason string, err error) error {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigurationError{Reason: reason, Err: err}
}

func lengthReason(n, guess, lower, upper int) string {
	return fmt.Sprintf("expected %d values, got guess=%d lower=%d upper=%d", n, guess, lower, upper)
}
