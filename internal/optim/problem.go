package optim

import (
	"context"
	"fmt"

	"github.com/san-kum/dynopt/internal/params"
)

// Problem is the contract a simulation tool offers a solver. The solver
// never mutates it and calls Simulate from a single goroutine, so
// implementations need not be safe for concurrent use.
type Problem interface {
	NumOptimizerParameters() int
	// InitialOptimizerParameterValuesAndLimits returns the initial guess and
	// the optimization box, all of length NumOptimizerParameters.
	InitialOptimizerParameterValuesAndLimits() (guess, lower, upper []float64, err error)
	// CreateParameterValueSet names a raw vector. It fails on a length
	// mismatch and is otherwise pure.
	CreateParameterValueSet(x []float64) (params.ValueSet, error)
	// Simulate runs one forward simulation and returns the objective. Lower
	// is better.
	Simulate(ctx context.Context, set params.ValueSet) (float64, error)
}

// Solver is implemented by every search strategy in this package.
type Solver interface {
	Solve(ctx context.Context, p Problem) (params.ValueSet, error)
	SolveReport(ctx context.Context, p Problem) (params.ValueSet, *RunReport, error)
}

type start struct {
	guess, lower, upper []float64
}

// prepare runs the setup checks shared by all solvers. It never calls
// Simulate.
func prepare(p Problem) (*start, error) {
	n := p.NumOptimizerParameters()
	if n <= 0 {
		return nil, &ConfigurationError{Reason: "problem declares no parameters", Err: ErrNoParameters}
	}

	guess, lower, upper, err := p.InitialOptimizerParameterValuesAndLimits()
	if err != nil {
		return nil, configErr("initial values and limits", err)
	}
	if len(guess) != n || len(lower) != n || len(upper) != n {
		return nil, &ConfigurationError{Reason: lengthReason(n, len(guess), len(lower), len(upper)), Err: params.ErrLengthMismatch}
	}
	if err := checkBox(lower, upper); err != nil {
		return nil, err
	}
	for i := range guess {
		if !(guess[i] >= lower[i] && guess[i] <= upper[i]) {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("initial guess %g for parameter %d outside optimization limits [%g, %g]",
					guess[i], i, lower[i], upper[i]),
			}
		}
	}
	return &start{guess: guess, lower: lower, upper: upper}, nil
}
