package params

import (
	"fmt"

	"github.com/san-kum/dynopt/internal/dynamo"
)

// Setup is the per-run simulation context a Parameter writes into. It is
// built fresh for every simulation.
type Setup struct {
	System     dynamo.System
	Controller dynamo.Controller
	X0         dynamo.State
}

// Parameter is one optimizable scalar input to a simulation.
type Parameter interface {
	Name() string
	Default() float64
	// Limits are the hard physical bounds. Apply rejects values outside them.
	Limits() Limits
	// OptLimits is the box the optimizer searches in.
	OptLimits() Limits
	Apply(value float64, setup *Setup) error
}

// Base carries the name, default and bounds shared by every variant.
type Base struct {
	name     string
	initial  float64
	physical Limits
	search   Limits
}

func NewBase(name string, initial float64, physical, search Limits) Base {
	return Base{name: name, initial: initial, physical: physical, search: search}
}

func (b Base) Name() string      { return b.name }
func (b Base) Default() float64  { return b.initial }
func (b Base) Limits() Limits    { return b.physical }
func (b Base) OptLimits() Limits { return b.search }

func (b Base) check(value float64) error {
	if !b.physical.Contains(value) {
		return fmt.Errorf("%w: %s = %g outside %s", dynamo.ErrParameterBounds, b.name, value, b.physical)
	}
	return nil
}

// Validate checks a declared parameter before any simulation runs.
func Validate(p Parameter) error {
	if p.Name() == "" {
		return ErrEmptyName
	}
	if err := p.Limits().Validate(); err != nil {
		return fmt.Errorf("%s: physical limits: %w", p.Name(), err)
	}
	if err := p.OptLimits().Validate(); err != nil {
		return fmt.Errorf("%s: optimization limits: %w", p.Name(), err)
	}
	if !p.OptLimits().Within(p.Limits()) {
		return fmt.Errorf("%w: %s: optimization limits %s exceed physical limits %s",
			ErrInvalidLimits, p.Name(), p.OptLimits(), p.Limits())
	}
	if !p.Limits().Contains(p.Default()) {
		return fmt.Errorf("%w: %s: default %g outside physical limits %s",
			ErrInvalidLimits, p.Name(), p.Default(), p.Limits())
	}
	return nil
}

// InitialState sets one component of the initial state.
type InitialState struct {
	Base
	Index int
}

func (p *InitialState) Apply(value float64, setup *Setup) error {
	if err := p.check(value); err != nil {
		return err
	}
	if p.Index < 0 || p.Index >= len(setup.X0) {
		return fmt.Errorf("%w: %s: state index %d, state has %d components",
			dynamo.ErrDimensionMismatch, p.name, p.Index, len(setup.X0))
	}
	setup.X0[p.Index] = value
	return nil
}

// SystemParam sets a named constant on a Configurable system.
type SystemParam struct {
	Base
	Key string
}

func (p *SystemParam) Apply(value float64, setup *Setup) error {
	if err := p.check(value); err != nil {
		return err
	}
	c, ok := setup.System.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%w: %s: system %T is not configurable", dynamo.ErrUnknownParameter, p.name, setup.System)
	}
	return c.SetParam(p.Key, value)
}

// ControllerParam sets a named gain on a Configurable controller.
type ControllerParam struct {
	Base
	Key string
}

func (p *ControllerParam) Apply(value float64, setup *Setup) error {
	if err := p.check(value); err != nil {
		return err
	}
	c, ok := setup.Controller.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%w: %s: controller %T is not configurable", dynamo.ErrUnknownParameter, p.name, setup.Controller)
	}
	return c.SetParam(p.Key, value)
}
