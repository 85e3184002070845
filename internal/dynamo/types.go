package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Lerp returns s + frac*(other-s). Both states must have the same length.
func (s State) Lerp(other State, frac float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] + frac*(other[i]-s[i])
	}
	return result
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Hamiltonian interface {
	Energy(x State) float64
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// AdaptiveIntegrator returns the proposed next step size alongside the new
// state. A step whose error estimate exceeds tol is reported with
// ErrStepRejected and must not be accepted.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, u Control, t, dt, tol float64) (State, float64, error)
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Configurable is implemented by systems and controllers whose scalar
// settings can be changed before a run.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Config struct {
	Dt            float64 `yaml:"dt"`
	Duration      float64 `yaml:"duration"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxDt         float64 `yaml:"max_dt"`
	MinDt         float64 `yaml:"min_dt"`
	Adaptive      bool    `yaml:"adaptive"`
	ValidateState bool    `yaml:"validate_state"`
	// MaxNorm aborts the run with ErrUnstable once the state norm exceeds it.
	// Zero disables the check.
	MaxNorm float64 `yaml:"max_norm"`
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		Tolerance:     1e-6,
		MaxDt:         0.1,
		MinDt:         1e-8,
		Adaptive:      false,
		ValidateState: true,
	}
}

func (c Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidConfig, c.Duration)
	}
	if c.Adaptive {
		if c.Tolerance <= 0 {
			return fmt.Errorf("%w: tolerance must be positive for adaptive stepping", ErrInvalidConfig)
		}
		if c.MinDt <= 0 || c.MaxDt < c.MinDt {
			return fmt.Errorf("%w: need 0 < min_dt <= max_dt, got [%g, %g]", ErrInvalidConfig, c.MinDt, c.MaxDt)
		}
	}
	if c.MaxNorm < 0 {
		return fmt.Errorf("%w: max_norm cannot be negative", ErrInvalidConfig)
	}
	return nil
}
