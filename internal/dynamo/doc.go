// Package dynamo provides the forward-simulation primitives the optimizer
// runs once per objective evaluation.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepping scheme
//   - [Controller]: feedback controller interface
//   - [Event]: terminal condition on one state component
//   - [Simulator]: orchestrates a single run and records a [Trajectory]
//
// # Example
//
//	dyn := physics.NewProjectile()
//	sim := dynamo.New(dyn, integrators.NewRK4(), nil)
//	sim.AddEvent(dynamo.Event{Name: "hit_ground", Index: 1, Direction: dynamo.Falling})
//	traj, err := sim.Run(ctx, x0, cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe, and neither are most integrators
// (they keep scratch buffers). Build a fresh Simulator per run.
package dynamo
