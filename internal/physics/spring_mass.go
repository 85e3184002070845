package physics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/dynopt/internal/dynamo"
)

const (
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass state layout: [positions..., velocities...]. The control is an
// external force on the first mass.
type SpringMass struct {
	NumMasses int
	Masses    []float64
	Stiffness []float64
	Damping   []float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
	}
}

func NewSpringMassChain(n int) *SpringMass {
	masses := make([]float64, n)
	stiffness := make([]float64, n+1)
	damping := make([]float64, n)

	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		stiffness[i] = DefaultStiffness
		damping[i] = 0.2
	}
	stiffness[n] = DefaultStiffness

	return &SpringMass{
		NumMasses: n,
		Masses:    masses,
		Stiffness: stiffness,
		Damping:   damping,
	}
}

func (s *SpringMass) StateDim() int   { return s.NumMasses * 2 }
func (s *SpringMass) ControlDim() int { return 1 }

func (s *SpringMass) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := s.NumMasses
	dx := make(dynamo.State, n*2)

	for i := 0; i < n; i++ {
		dx[i] = x[n+i]
	}

	extForce := 0.0
	if len(u) > 0 {
		extForce = u[0]
	}

	for i := 0; i < n; i++ {
		pos, vel := x[i], x[n+i]

		var forceLeft, forceRight float64
		if i == 0 {
			forceLeft = -s.Stiffness[0] * pos
		} else {
			forceLeft = -s.Stiffness[i] * (pos - x[i-1])
		}

		if i == n-1 {
			if len(s.Stiffness) > n {
				forceRight = -s.Stiffness[n] * pos
			}
		} else {
			forceRight = -s.Stiffness[i+1] * (pos - x[i+1])
		}

		totalForce := forceLeft + forceRight - s.Damping[i]*vel
		if i == 0 {
			totalForce += extForce
		}
		dx[n+i] = totalForce / s.Masses[i]
	}

	return dx
}

func (s *SpringMass) Energy(x dynamo.State) float64 {
	n := s.NumMasses
	energy := 0.0

	for i := 0; i < n; i++ {
		v := x[n+i]
		energy += 0.5 * s.Masses[i] * v * v
	}

	for i := 0; i < n; i++ {
		pos := x[i]
		if i == 0 {
			energy += 0.5 * s.Stiffness[0] * pos * pos
		} else {
			stretch := pos - x[i-1]
			energy += 0.5 * s.Stiffness[i] * stretch * stretch
		}
	}

	if len(s.Stiffness) > n {
		energy += 0.5 * s.Stiffness[n] * x[n-1] * x[n-1]
	}

	return energy
}

// GetParams exposes every constant under an indexed key, e.g. "mass0",
// "stiffness1", "damping0".
func (s *SpringMass) GetParams() map[string]float64 {
	out := make(map[string]float64, 3*s.NumMasses+1)
	for i, m := range s.Masses {
		out["mass"+strconv.Itoa(i)] = m
	}
	for i, k := range s.Stiffness {
		out["stiffness"+strconv.Itoa(i)] = k
	}
	for i, c := range s.Damping {
		out["damping"+strconv.Itoa(i)] = c
	}
	return out
}

func (s *SpringMass) SetParam(name string, value float64) error {
	var target []float64
	var prefix string
	switch {
	case strings.HasPrefix(name, "mass"):
		target, prefix = s.Masses, "mass"
	case strings.HasPrefix(name, "stiffness"):
		target, prefix = s.Stiffness, "stiffness"
	case strings.HasPrefix(name, "damping"):
		target, prefix = s.Damping, "damping"
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}

	idx := 0
	if suffix := strings.TrimPrefix(name, prefix); suffix != "" {
		n, err := strconv.Atoi(suffix)
		if err != nil {
			return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
		}
		idx = n
	}
	if idx < 0 || idx >= len(target) {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	if prefix == "mass" && value <= 0 {
		return fmt.Errorf("%w: mass must be positive, got %g", dynamo.ErrParameterBounds, value)
	}

	target[idx] = value
	return nil
}
