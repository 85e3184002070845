package tool

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynopt/internal/control"
	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/integrators"
	"github.com/san-kum/dynopt/internal/physics"
)

type (
	ModelFactory      func() dynamo.System
	IntegratorFactory func() dynamo.Integrator
	// ControllerFactory builds a controller for a system with controlDim
	// inputs, configured from settings.
	ControllerFactory func(settings map[string]float64, controlDim int) (dynamo.Controller, error)
)

// Registry maps the names used in setup files to constructors.
type Registry struct {
	models      map[string]ModelFactory
	integrators map[string]IntegratorFactory
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]ModelFactory),
		integrators: make(map[string]IntegratorFactory),
		controllers: make(map[string]ControllerFactory),
	}

	r.models["projectile"] = func() dynamo.System { return physics.NewProjectile() }
	r.models["pendulum"] = func() dynamo.System { return physics.NewPendulum() }
	r.models["spring_mass"] = func() dynamo.System { return physics.NewSpringMass() }
	r.models["spring_chain"] = func() dynamo.System { return physics.NewSpringMassChain(3) }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }
	r.integrators["verlet"] = func() dynamo.Integrator { return integrators.NewVerlet() }

	r.controllers["none"] = func(_ map[string]float64, dim int) (dynamo.Controller, error) {
		return control.NewNone(dim), nil
	}
	r.controllers["pid"] = func(settings map[string]float64, _ int) (dynamo.Controller, error) {
		pid := control.NewPID(0, 0, 0, 0)
		return pid, configure(pid, settings)
	}
	r.controllers["lqr"] = func(settings map[string]float64, _ int) (dynamo.Controller, error) {
		lqr := control.NewPendulumLQR()
		return lqr, configure(lqr, settings)
	}

	return r
}

func configure(c dynamo.Configurable, settings map[string]float64) error {
	for _, k := range sortedKeys(settings) {
		if err := c.SetParam(k, settings[k]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) RegisterModel(name string, f ModelFactory)           { r.models[name] = f }
func (r *Registry) RegisterIntegrator(name string, f IntegratorFactory) { r.integrators[name] = f }
func (r *Registry) RegisterController(name string, f ControllerFactory) { r.controllers[name] = f }

func (r *Registry) Model(name string) (ModelFactory, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn, nil
}

func (r *Registry) Integrator(name string) (IntegratorFactory, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) Controller(name string) (ControllerFactory, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
