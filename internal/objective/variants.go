package objective

import (
	"fmt"
	"math"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/params"
)

// Final is a state component at the end of the run, e.g. the range of a
// projectile stopped by a ground event.
type Final struct {
	Base
	Index int
}

func (o *Final) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	x, _, err := traj.Final()
	if err != nil {
		return 0, err
	}
	if o.Index < 0 || o.Index >= len(x) {
		return 0, fmt.Errorf("%w: component %d of %d-dimensional state", dynamo.ErrDimensionMismatch, o.Index, len(x))
	}
	return x[o.Index], nil
}

// Maximum is the peak of a state component over the run. An interior peak
// is refined with a parabola through its neighbours so the result varies
// smoothly with the parameters.
type Maximum struct {
	Base
	Index int
}

func (o *Maximum) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	v, err := traj.Component(o.Index)
	if err != nil {
		return 0, err
	}
	return extremum(v, traj.Times, 1), nil
}

type Minimum struct {
	Base
	Index int
}

func (o *Minimum) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	v, err := traj.Component(o.Index)
	if err != nil {
		return 0, err
	}
	return -extremum(v, traj.Times, -1), nil
}

// extremum returns the largest value of sign*v, with parabolic refinement.
func extremum(v, times []float64, sign float64) float64 {
	best := 0
	for i := range v {
		if sign*v[i] > sign*v[best] {
			best = i
		}
	}
	peak := sign * v[best]
	if best == 0 || best == len(v)-1 {
		return peak
	}

	t0, t1, t2 := times[best-1], times[best], times[best+1]
	y0, y1, y2 := sign*v[best-1], peak, sign*v[best+1]

	// Lagrange parabola through the three samples, evaluated at its vertex.
	d0 := (t0 - t1) * (t0 - t2)
	d1 := (t1 - t0) * (t1 - t2)
	d2 := (t2 - t0) * (t2 - t1)
	a := y0/d0 + y1/d1 + y2/d2
	if a >= 0 {
		return peak
	}
	b := -(y0*(t1+t2)/d0 + y1*(t0+t2)/d1 + y2*(t0+t1)/d2)
	c := y0*t1*t2/d0 + y1*t0*t2/d1 + y2*t0*t1/d2

	tv := -b / (2 * a)
	if tv < t0 || tv > t2 {
		return peak
	}
	return math.Max(peak, a*tv*tv+b*tv+c)
}

// Integral is the trapezoidal time integral of (x[Index] - Target), or of
// its square when Squared is set.
type Integral struct {
	Base
	Index   int
	Squared bool
	Target  float64
}

func (o *Integral) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	v, err := traj.Component(o.Index)
	if err != nil {
		return 0, err
	}

	f := func(x float64) float64 {
		d := x - o.Target
		if o.Squared {
			return d * d
		}
		return d
	}

	sum := 0.0
	for i := 1; i < len(v); i++ {
		dt := traj.Times[i] - traj.Times[i-1]
		sum += 0.5 * dt * (f(v[i-1]) + f(v[i]))
	}
	return sum, nil
}

// Duration is the simulated time until the run stopped.
type Duration struct {
	Base
}

func (o *Duration) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	if traj.Len() == 0 {
		return 0, fmt.Errorf("%w: empty trajectory", dynamo.ErrInvalidState)
	}
	return traj.Duration(), nil
}

// EnergyDrift is |E(end) - E(start)| for systems that expose energy.
type EnergyDrift struct {
	Base
}

func (o *EnergyDrift) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	h, ok := traj.System.(dynamo.Hamiltonian)
	if !ok {
		return 0, fmt.Errorf("%w: %T", ErrNotHamiltonian, traj.System)
	}
	x, _, err := traj.Final()
	if err != nil {
		return 0, err
	}
	return math.Abs(h.Energy(x) - h.Energy(traj.States[0])), nil
}

// ParameterValue reads a value straight from the parameter set, for goals
// such as "use as little launch speed as possible".
type ParameterValue struct {
	Base
	Parameter string
}

func (o *ParameterValue) Evaluate(set params.ValueSet, _ *dynamo.Trajectory) (float64, error) {
	v, ok := set.Get(o.Parameter)
	if !ok {
		return 0, fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, o.Parameter)
	}
	return v, nil
}

// ControlEffort is the time integral of |u|^2, with u held constant over
// each step.
type ControlEffort struct {
	Base
}

func (o *ControlEffort) Evaluate(_ params.ValueSet, traj *dynamo.Trajectory) (float64, error) {
	sum := 0.0
	for i, u := range traj.Controls {
		if i+1 >= len(traj.Times) {
			break
		}
		dt := traj.Times[i+1] - traj.Times[i]
		for _, v := range u {
			sum += v * v * dt
		}
	}
	return sum, nil
}
