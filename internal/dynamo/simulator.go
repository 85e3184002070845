package dynamo

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// timeEps absorbs float accumulation when deciding whether the run reached
// its duration, as a fraction of Dt.
const timeEps = 1e-9

type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	events     []Event
}

// New builds a simulator. A nil controller applies a zero control vector of
// the system's ControlDim every step.
func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		events:     make([]Event, 0),
	}
}

func (s *Simulator) AddEvent(e Event) { s.events = append(s.events, e) }

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d components, system expects %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	for _, e := range s.events {
		if e.Index < 0 || e.Index >= len(x0) {
			return nil, fmt.Errorf("%w: event %q watches component %d", ErrDimensionMismatch, e.Name, e.Index)
		}
	}

	capacity := int(cfg.Duration/cfg.Dt) + 2
	traj := &Trajectory{
		States:   make([]State, 0, capacity),
		Controls: make([]Control, 0, capacity),
		Times:    make([]float64, 0, capacity),
		System:   s.dyn,
	}

	x := x0.Clone()
	t := 0.0
	dt := cfg.Dt

	traj.States = append(traj.States, x.Clone())
	traj.Times = append(traj.Times, t)

	for step := 0; cfg.Duration-t > timeEps*cfg.Dt; step++ {
		select {
		case <-ctx.Done():
			return traj, ctx.Err()
		default:
		}

		u := s.control(x, t)

		h := math.Min(dt, cfg.Duration-t)
		var newX State
		var next float64
		if cfg.Adaptive {
			var err error
			newX, h, next, err = s.adaptiveStep(x, u, t, h, cfg)
			if err != nil {
				return traj, &SimulationError{Step: step, Time: t, State: x.Clone(), Wrapped: err}
			}
		} else {
			newX = s.integrator.Step(s.dyn, x, u, t, h)
			next = dt
		}

		if cfg.ValidateState && !newX.IsValid() {
			return traj, &SimulationError{Step: step, Time: t + h, State: newX, Wrapped: ErrInvalidState}
		}
		if cfg.MaxNorm > 0 && newX.Norm() > cfg.MaxNorm {
			return traj, &SimulationError{Step: step, Time: t + h, State: newX, Wrapped: ErrUnstable}
		}

		if ev, xe, te, ok := s.checkEvents(x, newX, u, t, h); ok {
			traj.States = append(traj.States, xe)
			traj.Controls = append(traj.Controls, u)
			traj.Times = append(traj.Times, te)
			traj.StepsTaken++
			traj.Event = ev.Name
			return traj, nil
		}

		x = newX
		t += h
		dt = next
		traj.StepsTaken++

		traj.States = append(traj.States, x.Clone())
		traj.Controls = append(traj.Controls, u)
		traj.Times = append(traj.Times, t)
	}

	return traj, nil
}

func (s *Simulator) control(x State, t float64) Control {
	if s.controller == nil {
		return make(Control, s.dyn.ControlDim())
	}
	return s.controller.Compute(x, t)
}

// checkEvents returns the earliest event fired inside the step from x to newX.
func (s *Simulator) checkEvents(x, newX State, u Control, t, h float64) (Event, State, float64, bool) {
	var (
		found bool
		first Event
		xe    State
		se    float64
	)
	for _, e := range s.events {
		g0, g1 := e.residual(x), e.residual(newX)
		if !e.crossed(g0, g1) {
			continue
		}
		xs, sub := e.locate(s.dyn, s.integrator, x, u, t, h, g0, g1)
		if !found || sub < se {
			found, first, xe, se = true, e, xs, sub
		}
	}
	return first, xe, t + se, found
}

// adaptiveStep returns the accepted state, the step actually taken and the
// proposed size of the next step.
func (s *Simulator) adaptiveStep(x State, u Control, t, dt float64, cfg Config) (State, float64, float64, error) {
	if adaptive, ok := s.integrator.(AdaptiveIntegrator); ok {
		for {
			newX, proposed, err := adaptive.StepAdaptive(s.dyn, x, u, t, dt, cfg.Tolerance)
			if err == nil {
				return newX, dt, math.Max(cfg.MinDt, math.Min(proposed, cfg.MaxDt)), nil
			}
			if !errors.Is(err, ErrStepRejected) {
				return nil, 0, 0, err
			}
			if proposed < cfg.MinDt {
				return nil, 0, 0, ErrStepTooSmall
			}
			dt = proposed
		}
	}

	// Step doubling for fixed-step schemes.
	for {
		x1 := s.integrator.Step(s.dyn, x, u, t, dt)
		xHalf := s.integrator.Step(s.dyn, x, u, t, dt/2)
		x2 := s.integrator.Step(s.dyn, xHalf, u, t+dt/2, dt/2)

		diff := make(State, len(x1))
		for i := range x1 {
			diff[i] = x1[i] - x2[i]
		}
		errEst := diff.Norm()

		if errEst > cfg.Tolerance {
			if dt/2 < cfg.MinDt {
				return nil, 0, 0, ErrStepTooSmall
			}
			dt /= 2
			continue
		}

		next := dt
		if errEst < cfg.Tolerance/10 {
			next = math.Min(dt*2, cfg.MaxDt)
		}
		return x2, dt, next, nil
	}
}
