// Package tool ties a dynamical model, its optimizable parameters and its
// objectives into a problem a solver can work on.
package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/san-kum/dynopt/internal/control"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/logging"
	"github.com/san-kum/dynopt/internal/objective"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/params"
)

var (
	ErrNoParameters = errors.New("tool: no optimizable parameters")
	ErrNoObjectives = errors.New("tool: no objectives")
	ErrParameterSet = errors.New("tool: parameter set does not match declared parameters")
)

// Tool is a simulation-based optimization problem. Every simulation builds
// a fresh system, controller and integrator, so a fully assembled Tool is
// safe for concurrent Evaluate calls; EvaluateAll and Sweep rely on this.
// Solvers still drive it from one goroutine. Appending parameters or
// objectives must not race with evaluation.
type Tool struct {
	name string

	newSystem     ModelFactory
	newIntegrator IntegratorFactory
	newController func(controlDim int) (dynamo.Controller, error)
	settings      map[string]float64

	x0     dynamo.State
	cfg    dynamo.Config
	events []dynamo.Event

	parameters []params.Parameter
	objectives []objective.Objective

	penalty *float64
	logger  *slog.Logger
}

type Option func(*Tool)

func WithIntegrator(f IntegratorFactory) Option {
	return func(t *Tool) { t.newIntegrator = f }
}

func WithController(f func(controlDim int) (dynamo.Controller, error)) Option {
	return func(t *Tool) { t.newController = f }
}

// WithSystemSettings are applied to every fresh system before parameters.
func WithSystemSettings(settings map[string]float64) Option {
	return func(t *Tool) { t.settings = settings }
}

func WithInitialState(x0 dynamo.State) Option {
	return func(t *Tool) { t.x0 = x0.Clone() }
}

func WithConfig(cfg dynamo.Config) Option {
	return func(t *Tool) { t.cfg = cfg }
}

func WithEvent(e dynamo.Event) Option {
	return func(t *Tool) { t.events = append(t.events, e) }
}

// WithFailurePenalty makes Simulate return penalty instead of an error when
// the simulation itself fails.
func WithFailurePenalty(penalty float64) Option {
	return func(t *Tool) { t.penalty = &penalty }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) { t.logger = l }
}

func New(name string, system ModelFactory, opts ...Option) *Tool {
	t := &Tool{
		name:          name,
		newSystem:     system,
		newIntegrator: func() dynamo.Integrator { return integrators.NewRK4() },
		newController: func(dim int) (dynamo.Controller, error) { return control.NewNone(dim), nil },
		cfg:           dynamo.DefaultConfig(),
		logger:        logging.Default,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Name() string { return t.name }

func (t *Tool) AppendParameter(p params.Parameter) { t.parameters = append(t.parameters, p) }

func (t *Tool) AppendObjective(o objective.Objective) { t.objectives = append(t.objectives, o) }

func (t *Tool) Parameters() []params.Parameter { return t.parameters }

func (t *Tool) Objectives() []objective.Objective { return t.objectives }

func (t *Tool) NumOptimizerParameters() int { return len(t.parameters) }

// InitialOptimizerParameterValuesAndLimits returns the parameter defaults,
// clamped into their optimization limits, and those limits.
func (t *Tool) InitialOptimizerParameterValuesAndLimits() (guess, lower, upper []float64, err error) {
	if err := t.Validate(); err != nil {
		return nil, nil, nil, err
	}

	n := len(t.parameters)
	guess, lower, upper = make([]float64, n), make([]float64, n), make([]float64, n)
	for i, p := range t.parameters {
		box := p.OptLimits()
		lower[i], upper[i] = box.Lower, box.Upper
		guess[i] = box.Clamp(p.Default())
	}
	return guess, lower, upper, nil
}

// Validate checks that the tool declares at least one parameter and one
// objective and that every parameter's limits and default are consistent.
func (t *Tool) Validate() error {
	if len(t.parameters) == 0 {
		return ErrNoParameters
	}
	if len(t.objectives) == 0 {
		return ErrNoObjectives
	}
	return t.validateParameters()
}

func (t *Tool) validateParameters() error {
	seen := make(map[string]struct{}, len(t.parameters))
	for _, p := range t.parameters {
		if err := params.Validate(p); err != nil {
			return err
		}
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: %q", params.ErrDuplicateName, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}
	return nil
}

func (t *Tool) names() []string {
	names := make([]string, len(t.parameters))
	for i, p := range t.parameters {
		names[i] = p.Name()
	}
	return names
}

func (t *Tool) CreateParameterValueSet(x []float64) (params.ValueSet, error) {
	return params.FromVector(t.names(), x)
}

// DefaultParameterValueSet names the parameter defaults, unclamped.
func (t *Tool) DefaultParameterValueSet() (params.ValueSet, error) {
	x := make([]float64, len(t.parameters))
	for i, p := range t.parameters {
		x[i] = p.Default()
	}
	return t.CreateParameterValueSet(x)
}

// Evaluation is the full outcome of one simulation.
type Evaluation struct {
	Values     params.ValueSet
	Trajectory *dynamo.Trajectory
	Objective  float64
	Terms      []objective.Term
	// Penalized is set when the simulation failed and the failure penalty
	// was returned instead.
	Penalized bool
	Err       error
}

// Simulate runs one simulation and returns the combined objective, lower
// being better.
func (t *Tool) Simulate(ctx context.Context, set params.ValueSet) (float64, error) {
	ev, err := t.Evaluate(ctx, set)
	if err != nil {
		return 0, err
	}
	return ev.Objective, nil
}

// SimulateTrajectory is Simulate but also hands back the trajectory.
func (t *Tool) SimulateTrajectory(ctx context.Context, set params.ValueSet) (*dynamo.Trajectory, float64, error) {
	ev, err := t.Evaluate(ctx, set)
	if err != nil {
		return nil, 0, err
	}
	return ev.Trajectory, ev.Objective, nil
}

func (t *Tool) Evaluate(ctx context.Context, set params.ValueSet) (*Evaluation, error) {
	if len(t.objectives) == 0 {
		return nil, ErrNoObjectives
	}
	if err := t.checkSet(set); err != nil {
		return nil, err
	}

	setup, err := t.setup()
	if err != nil {
		return nil, err
	}
	for i, p := range t.parameters {
		if err := p.Apply(set.At(i).Value, setup); err != nil {
			return nil, fmt.Errorf("apply %s: %w", p.Name(), err)
		}
	}

	integrator := t.newIntegrator()
	sim := dynamo.New(setup.System, integrator, setup.Controller)
	for _, e := range t.events {
		sim.AddEvent(e)
	}

	traj, err := sim.Run(ctx, setup.X0, t.cfg)
	if err != nil {
		var simErr *dynamo.SimulationError
		if t.penalty != nil && errors.As(err, &simErr) {
			t.logger.Warn("simulation failed, using penalty", "params", set.String(), "error", err)
			return &Evaluation{Values: set, Trajectory: traj, Objective: *t.penalty, Penalized: true, Err: err}, nil
		}
		return nil, fmt.Errorf("simulate %s: %w", t.name, err)
	}

	total, terms, err := objective.Total(t.objectives, set, traj)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Values: set, Trajectory: traj, Objective: total, Terms: terms}, nil
}

func (t *Tool) checkSet(set params.ValueSet) error {
	if set.Len() != len(t.parameters) {
		return fmt.Errorf("%w: %d values for %d parameters: %w", ErrParameterSet, set.Len(), len(t.parameters), params.ErrLengthMismatch)
	}
	for i, p := range t.parameters {
		if got := set.At(i).Name; got != p.Name() {
			return fmt.Errorf("%w: entry %d is %q, want %q", ErrParameterSet, i, got, p.Name())
		}
	}
	return nil
}

func (t *Tool) setup() (*params.Setup, error) {
	sys := t.newSystem()
	if len(t.settings) > 0 {
		c, ok := sys.(dynamo.Configurable)
		if !ok {
			return nil, fmt.Errorf("%w: system %T is not configurable", dynamo.ErrUnknownParameter, sys)
		}
		if err := configure(c, t.settings); err != nil {
			return nil, err
		}
	}

	ctrl, err := t.newController(sys.ControlDim())
	if err != nil {
		return nil, err
	}

	x0 := make(dynamo.State, sys.StateDim())
	if t.x0 != nil {
		if len(t.x0) != sys.StateDim() {
			return nil, fmt.Errorf("%w: initial state has %d components, system expects %d",
				dynamo.ErrDimensionMismatch, len(t.x0), sys.StateDim())
		}
		copy(x0, t.x0)
	}
	return &params.Setup{System: sys, Controller: ctrl, X0: x0}, nil
}

var _ optim.Problem = (*Tool)(nil)
