package optim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/params"
)

// DynamicOptimizationSolver finds the parameter values that minimize a
// simulation objective with a gradient-based optimizer and finite-difference
// gradients. The box constraint is enforced by a smooth change of variables,
// so every simulated point is feasible.
type DynamicOptimizationSolver struct {
	settings Settings
	logger   *slog.Logger
	progress func(Step)
}

type Option func(*DynamicOptimizationSolver)

func WithSettings(s Settings) Option {
	return func(d *DynamicOptimizationSolver) { d.settings = s }
}

func WithTolerance(tol float64) Option {
	return func(d *DynamicOptimizationSolver) { d.settings.Tolerance = tol }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *DynamicOptimizationSolver) { d.logger = l }
}

// WithProgress is called after every accepted iterate.
func WithProgress(fn func(Step)) Option {
	return func(d *DynamicOptimizationSolver) { d.progress = fn }
}

func NewDynamicOptimizationSolver(opts ...Option) *DynamicOptimizationSolver {
	d := &DynamicOptimizationSolver{
		settings: DefaultSettings(),
		logger:   logging.Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DynamicOptimizationSolver) SetConvergenceTolerance(tol float64) {
	d.settings.Tolerance = tol
}

func (d *DynamicOptimizationSolver) ConvergenceTolerance() float64 {
	return d.settings.Tolerance
}

func (d *DynamicOptimizationSolver) Settings() Settings {
	return d.settings
}

func (d *DynamicOptimizationSolver) Solve(ctx context.Context, p Problem) (params.ValueSet, error) {
	set, _, err := d.SolveReport(ctx, p)
	return set, err
}

// SolveReport runs one optimization. The report is returned alongside an
// OptimizationFailure or EvaluationError so callers can inspect how far the
// run got; it is nil for configuration errors.
func (d *DynamicOptimizationSolver) SolveReport(ctx context.Context, p Problem) (params.ValueSet, *RunReport, error) {
	if err := d.settings.Validate(); err != nil {
		return params.ValueSet{}, nil, err
	}
	st, err := prepare(p)
	if err != nil {
		return params.ValueSet{}, nil, err
	}

	eval := NewObjectiveEvaluator(p)
	eval.logger = d.logger
	eval.maxEvaluations = d.settings.MaxEvaluations
	if err := eval.SetParameterLimits(st.lower, st.upper); err != nil {
		return params.ValueSet{}, nil, err
	}

	method, _ := d.settings.method()
	formula, _ := d.settings.formula()

	box := newBoxTransform(st.lower, st.upper)
	objective := eval.objective(ctx)
	f := func(y []float64) float64 {
		return objective(box.toExternal(y))
	}
	fdSettings := &fd.Settings{Formula: formula, Step: d.settings.Step}

	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, y []float64) {
			fd.Gradient(grad, f, y, fdSettings)
		},
		Status: eval.status,
	}

	rec := &historyRecorder{box: box, eval: eval, progress: d.progress}
	d.logger.Info("optimization started",
		"parameters", len(st.guess),
		"method", d.settings.Method,
		"tolerance", d.settings.Tolerance,
	)

	began := time.Now()
	result, minErr := optimize.Minimize(problem, box.toInternal(st.guess), d.settings.gonum(rec), method)

	report := &RunReport{
		Method:      d.settings.Method,
		Evaluations: eval.Evaluations(),
		Runtime:     time.Since(began),
		History:     rec.steps,
	}
	if result != nil {
		report.Status = result.Status.String()
		report.Iterations = result.Stats.MajorIterations
		report.Objective = result.F
	}

	if err := d.classify(ctx, eval, result, minErr); err != nil {
		report.Reason = err.Error()
		d.logger.Error("optimization failed", "status", report.Status, "evaluations", report.Evaluations, "error", err)
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			return params.ValueSet{}, nil, err
		}
		return params.ValueSet{}, report, err
	}

	set, err := p.CreateParameterValueSet(box.toExternal(result.X))
	if err != nil {
		return params.ValueSet{}, nil, configErr("create parameter value set", err)
	}
	report.Converged = true

	d.logger.Info("optimization finished",
		"status", report.Status,
		"iterations", report.Iterations,
		"evaluations", report.Evaluations,
		"objective", report.Objective,
		"solution", set.String(),
	)
	return set, report, nil
}

// classify turns the outcome of Minimize into one of the three error kinds.
func (d *DynamicOptimizationSolver) classify(ctx context.Context, eval *ObjectiveEvaluator, result *optimize.Result, minErr error) error {
	if err := eval.Err(); err != nil {
		return err
	}
	// Convergence on the last permitted evaluation still counts.
	if minErr == nil && result != nil && converged(result.Status) {
		return nil
	}
	if eval.exhausted {
		return &OptimizationFailure{
			Status:     optimize.FunctionEvaluationLimit.String(),
			Diagnostic: "stopped after the evaluation budget was spent",
			Err:        ErrBudgetExhausted,
		}
	}
	if err := ctx.Err(); err != nil {
		return &OptimizationFailure{Status: "Canceled", Diagnostic: err.Error(), Err: err}
	}
	if minErr != nil {
		status := optimize.Failure
		if result != nil {
			status = result.Status
		}
		return &OptimizationFailure{Status: status.String(), Diagnostic: minErr.Error(), Err: minErr}
	}
	if !converged(result.Status) {
		diag := "optimizer stopped before converging"
		if e := result.Status.Err(); e != nil {
			diag = e.Error()
		}
		return &OptimizationFailure{Status: result.Status.String(), Diagnostic: diag, Err: result.Status.Err()}
	}
	return nil
}
