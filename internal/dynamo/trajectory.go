package dynamo

import "fmt"

// Trajectory is the record of one forward simulation run. States[i] is the
// state at Times[i]; Controls[i] is the input applied over [Times[i], Times[i+1]).
type Trajectory struct {
	States   []State
	Controls []Control
	Times    []float64

	StepsTaken int
	// Event names the terminal event that ended the run, if any.
	Event string
	// System is the instance that produced the run, for objectives that need
	// model quantities such as energy.
	System System
}

func (tr *Trajectory) Len() int {
	return len(tr.States)
}

// Final returns the last recorded state and its time.
func (tr *Trajectory) Final() (State, float64, error) {
	if len(tr.States) == 0 {
		return nil, 0, fmt.Errorf("%w: empty trajectory", ErrInvalidState)
	}
	last := len(tr.States) - 1
	return tr.States[last], tr.Times[last], nil
}

// Component extracts one state coordinate across the whole run.
func (tr *Trajectory) Component(index int) ([]float64, error) {
	if len(tr.States) == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", ErrInvalidState)
	}
	if index < 0 || index >= len(tr.States[0]) {
		return nil, fmt.Errorf("%w: component %d of %d-dimensional state", ErrDimensionMismatch, index, len(tr.States[0]))
	}
	out := make([]float64, len(tr.States))
	for i, s := range tr.States {
		out[i] = s[index]
	}
	return out, nil
}

// Duration is the simulated time covered by the run.
func (tr *Trajectory) Duration() float64 {
	if len(tr.Times) == 0 {
		return 0
	}
	return tr.Times[len(tr.Times)-1] - tr.Times[0]
}
