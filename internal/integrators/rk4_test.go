package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/dynopt/internal/dynamo"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int   { return 2 }
func (s *simpleDynamics) ControlDim() int { return 0 }

// freeFall is [y, vy] under constant gravity.
type freeFall struct{}

func (f *freeFall) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -9.81}
}

func (f *freeFall) StateDim() int   { return 2 }
func (f *freeFall) ControlDim() int { return 0 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestRK4ExactForConstantAcceleration(t *testing.T) {
	integ := NewRK4()
	x := integ.Step(&freeFall{}, dynamo.State{0, 10}, nil, 0, 0.37)

	wantY := 10*0.37 - 0.5*9.81*0.37*0.37
	wantV := 10 - 9.81*0.37
	if math.Abs(x[0]-wantY) > 1e-12 || math.Abs(x[1]-wantV) > 1e-12 {
		t.Errorf("got %v, want [%v %v]", x, wantY, wantV)
	}
}

func TestRK4DoesNotMutateInput(t *testing.T) {
	integ := NewRK4()
	x0 := dynamo.State{1, 0}
	integ.Step(&simpleDynamics{}, x0, nil, 0, 0.1)
	if x0[0] != 1 || x0[1] != 0 {
		t.Errorf("input state mutated: %v", x0)
	}
}

func TestEulerFirstOrder(t *testing.T) {
	integ := NewEuler()
	x := integ.Step(&simpleDynamics{}, dynamo.State{1, 0}, nil, 0, 0.1)
	if x[0] != 1 || math.Abs(x[1]+0.1) > 1e-15 {
		t.Errorf("unexpected euler step: %v", x)
	}
}
