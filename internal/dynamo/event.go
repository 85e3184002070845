package dynamo

import (
	"fmt"
	"math"
)

type Direction int

const (
	// Falling triggers when the component goes from >= Value to < Value.
	Falling Direction = iota
	// Rising triggers when the component goes from <= Value to > Value.
	Rising
	// Either triggers on a crossing in any direction.
	Either
)

func (d Direction) String() string {
	switch d {
	case Falling:
		return "falling"
	case Rising:
		return "rising"
	case Either:
		return "either"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "falling":
		return Falling, nil
	case "rising":
		return Rising, nil
	case "either", "any":
		return Either, nil
	default:
		return Falling, fmt.Errorf("unknown event direction: %s", s)
	}
}

// Event terminates a run when state component Index crosses Value.
type Event struct {
	Name      string
	Index     int
	Value     float64
	Direction Direction
}

const (
	eventMaxIter = 60
	eventTol     = 1e-12
)

func (e Event) residual(x State) float64 {
	return x[e.Index] - e.Value
}

func (e Event) crossed(g0, g1 float64) bool {
	switch e.Direction {
	case Falling:
		return g0 >= 0 && g1 < 0
	case Rising:
		return g0 <= 0 && g1 > 0
	default:
		return (g0 >= 0 && g1 < 0) || (g0 <= 0 && g1 > 0)
	}
}

// locate finds the sub-step s in [0, h] at which the event fires, by
// re-integrating from x with the Illinois variant of regula falsi. Locating
// the crossing on the integrator's own solution keeps end-of-run quantities
// smooth in the initial conditions.
func (e Event) locate(dyn System, integ Integrator, x State, u Control, t, h, g0, g1 float64) (State, float64) {
	if g0 == 0 {
		return x.Clone(), 0
	}

	a, b := 0.0, h
	ga, gb := g0, g1
	xb := State(nil)
	side := 0

	for i := 0; i < eventMaxIter; i++ {
		s := b - gb*(b-a)/(gb-ga)
		if math.IsNaN(s) || s <= a || s >= b {
			s = 0.5 * (a + b)
		}
		xs := integ.Step(dyn, x, u, t, s)
		gs := e.residual(xs)

		if math.Abs(gs) <= eventTol || b-a <= eventTol*math.Max(1, h) {
			return xs, s
		}

		if (gs < 0) == (gb < 0) {
			b, gb, xb = s, gs, xs
			if side == -1 {
				ga /= 2
			}
			side = -1
		} else {
			a, ga = s, gs
			if side == 1 {
				gb /= 2
			}
			side = 1
		}
	}

	if xb == nil {
		xb = integ.Step(dyn, x, u, t, b)
	}
	return xb, b
}
