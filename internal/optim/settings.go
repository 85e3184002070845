package optim

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

const (
	DefaultTolerance = 1e-4

	// A stalled line search can keep evaluating without finishing a major
	// iteration, so the evaluation budget is the limit that always binds.
	DefaultMaxEvaluations = 5000
	DefaultMaxIterations  = 1000
)

// Settings tune one solver run. The zero value of every field except
// Tolerance means "no limit" or "use the default"; DefaultSettings sets
// finite limits.
type Settings struct {
	// Tolerance is the convergence tolerance handed to the optimizer, both
	// as gradient threshold and as absolute function-change threshold.
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
	// Method is one of bfgs, lbfgs, cg or neldermead.
	Method string `yaml:"method" json:"method"`
	// Formula selects forward or central finite differences.
	Formula string `yaml:"formula" json:"formula"`
	// Step is the finite-difference step; zero picks the formula default.
	Step           float64       `yaml:"step,omitempty" json:"step,omitempty"`
	MaxEvaluations int           `yaml:"max_evaluations,omitempty" json:"max_evaluations,omitempty"`
	MaxIterations  int           `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	Runtime        time.Duration `yaml:"runtime,omitempty" json:"runtime,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Tolerance:      DefaultTolerance,
		Method:         "bfgs",
		Formula:        "central",
		MaxEvaluations: DefaultMaxEvaluations,
		MaxIterations:  DefaultMaxIterations,
	}
}

var methods = []string{"bfgs", "lbfgs", "cg", "neldermead"}

// Methods lists the accepted Method names.
func Methods() []string {
	out := make([]string, len(methods))
	copy(out, methods)
	return out
}

func (s Settings) Validate() error {
	if !(s.Tolerance > 0) || math.IsInf(s.Tolerance, 1) {
		return &ConfigurationError{Reason: fmt.Sprintf("tolerance must be positive and finite, got %g", s.Tolerance)}
	}
	if _, err := s.method(); err != nil {
		return &ConfigurationError{Reason: "method", Err: err}
	}
	if _, err := s.formula(); err != nil {
		return &ConfigurationError{Reason: "formula", Err: err}
	}
	if s.Step < 0 || s.MaxEvaluations < 0 || s.MaxIterations < 0 || s.Runtime < 0 {
		return &ConfigurationError{Reason: "step and limits cannot be negative"}
	}
	return nil
}

func (s Settings) method() (optimize.Method, error) {
	switch strings.ToLower(s.Method) {
	case "", "bfgs":
		return &optimize.BFGS{}, nil
	case "lbfgs":
		return &optimize.LBFGS{}, nil
	case "cg":
		return &optimize.CG{}, nil
	case "neldermead", "nelder-mead":
		return &optimize.NelderMead{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownMethod, s.Method, strings.Join(methods, ", "))
	}
}

func (s Settings) formula() (fd.Formula, error) {
	switch strings.ToLower(s.Formula) {
	case "", "central":
		return fd.Central, nil
	case "forward":
		return fd.Forward, nil
	case "backward":
		return fd.Backward, nil
	default:
		return fd.Formula{}, fmt.Errorf("unknown finite-difference formula %q", s.Formula)
	}
}

func (s Settings) gonum(rec optimize.Recorder) *optimize.Settings {
	return &optimize.Settings{
		GradientThreshold: s.Tolerance,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Iterations: 20,
		},
		MajorIterations: s.MaxIterations,
		Runtime:         s.Runtime,
		Recorder:        rec,
		Concurrent:      1,
	}
}
