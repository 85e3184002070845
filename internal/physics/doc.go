// Package physics provides the dynamical system models a tool can optimize.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the system's evolution:
//
//   - [Projectile]: planar point mass under gravity with quadratic drag
//   - [Pendulum]: damped, torque-driven pendulum
//   - [SpringMass]: chain of damped masses and springs
//
// All models implement [dynamo.Configurable], so their physical constants
// can be optimization parameters, and [dynamo.Hamiltonian] for energy.
package physics

const (
	DefaultMass    = 1.0
	DefaultGravity = 9.81
)
