package tool

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/dynopt/internal/config"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/objective"
	"github.com/san-kum/dynopt/internal/optim"
	"github.com/san-kum/dynopt/internal/params"
)

// FromConfig assembles a Tool from a validated setup.
func FromConfig(cfg *config.Config, reg *Registry, logger *slog.Logger) (*Tool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}

	model, err := reg.Model(cfg.Model)
	if err != nil {
		return nil, err
	}
	integratorName := cfg.Integrator
	if integratorName == "" {
		integratorName = config.DefaultIntegrator
	}
	integrator, err := reg.Integrator(integratorName)
	if err != nil {
		return nil, err
	}
	controllerName := cfg.Controller.Type
	if controllerName == "" {
		controllerName = "none"
	}
	controller, err := reg.Controller(controllerName)
	if err != nil {
		return nil, err
	}
	settings := cfg.Controller.Settings

	opts := []Option{
		WithIntegrator(integrator),
		WithController(func(dim int) (dynamo.Controller, error) { return controller(settings, dim) }),
		WithConfig(cfg.Simulation),
		WithSystemSettings(cfg.System),
	}
	if cfg.InitialState != nil {
		opts = append(opts, WithInitialState(dynamo.State(cfg.InitialState)))
	}
	if cfg.FailurePenalty != nil {
		opts = append(opts, WithFailurePenalty(*cfg.FailurePenalty))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	for _, ec := range cfg.Events {
		dir, err := dynamo.ParseDirection(ec.Direction)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", ec.Name, err)
		}
		opts = append(opts, WithEvent(dynamo.Event{Name: ec.Name, Index: ec.Index, Value: ec.Value, Direction: dir}))
	}

	t := New(cfg.Name, model, opts...)
	for _, pc := range cfg.Parameters {
		p, err := buildParameter(pc)
		if err != nil {
			return nil, err
		}
		t.AppendParameter(p)
	}
	for _, oc := range cfg.Objectives {
		o, err := buildObjective(oc)
		if err != nil {
			return nil, err
		}
		t.AppendObjective(o)
	}
	return t, nil
}

func buildParameter(pc config.ParameterConfig) (params.Parameter, error) {
	physical, search := pc.Limits()
	base := params.NewBase(pc.Name, pc.Default,
		params.Limits{Lower: physical[0], Upper: physical[1]},
		params.Limits{Lower: search[0], Upper: search[1]})

	var p params.Parameter
	switch pc.Kind {
	case "initial_state":
		p = &params.InitialState{Base: base, Index: pc.Index}
	case "launch_angle":
		p = &params.LaunchAngle{Base: base, Speed: pc.Speed, XVelIndex: pc.XVelIndex, YVelIndex: pc.YVelIndex}
	case "launch_speed":
		p = &params.LaunchSpeed{Base: base, AngleDeg: pc.Angle, XVelIndex: pc.XVelIndex, YVelIndex: pc.YVelIndex}
	case "system":
		p = &params.SystemParam{Base: base, Key: pc.Key}
	case "controller":
		p = &params.ControllerParam{Base: base, Key: pc.Key}
	default:
		return nil, fmt.Errorf("parameter %s: unknown kind %q", pc.Name, pc.Kind)
	}
	if err := params.Validate(p); err != nil {
		return nil, fmt.Errorf("parameter %s: %w", pc.Name, err)
	}
	return p, nil
}

func buildObjective(oc config.ObjectiveConfig) (objective.Objective, error) {
	sense, err := objective.ParseSense(oc.Sense)
	if err != nil {
		return nil, fmt.Errorf("objective %s: %w", oc.Name, err)
	}
	base := objective.NewBase(oc.Name, oc.WeightOrDefault(), sense)

	switch oc.Kind {
	case "final":
		return &objective.Final{Base: base, Index: oc.Index}, nil
	case "maximum":
		return &objective.Maximum{Base: base, Index: oc.Index}, nil
	case "minimum":
		return &objective.Minimum{Base: base, Index: oc.Index}, nil
	case "integral":
		return &objective.Integral{Base: base, Index: oc.Index, Squared: oc.Squared, Target: oc.Target}, nil
	case "duration":
		return &objective.Duration{Base: base}, nil
	case "energy_drift":
		return &objective.EnergyDrift{Base: base}, nil
	case "control_effort":
		return &objective.ControlEffort{Base: base}, nil
	case "parameter":
		return &objective.ParameterValue{Base: base, Parameter: oc.Parameter}, nil
	default:
		return nil, fmt.Errorf("objective %s: unknown kind %q", oc.Name, oc.Kind)
	}
}

// SolverFromConfig picks the solver named by the optimizer section.
func SolverFromConfig(oc config.OptimizerConfig, logger *slog.Logger, progress func(optim.Step)) optim.Solver {
	if oc.Solver == "grid" {
		points := oc.GridPoints
		if points == 0 {
			points = config.DefaultOptimizer().GridPoints
		}
		g := optim.NewGridSearch(points)
		if logger != nil {
			g = g.WithLogger(logger)
		}
		return g
	}

	opts := []optim.Option{optim.WithSettings(oc.Settings())}
	if logger != nil {
		opts = append(opts, optim.WithLogger(logger))
	}
	if progress != nil {
		opts = append(opts, optim.WithProgress(progress))
	}
	return optim.NewDynamicOptimizationSolver(opts...)
}
