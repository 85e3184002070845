// Package control provides feedback controllers for dynamical systems.
//
// Controllers implement the [dynamo.Controller] interface and
// [dynamo.Configurable], so their gains can be tuned by the optimizer:
//
//   - [PID]: Proportional-Integral-Derivative controller on state[0]
//   - [LQR]: full-state feedback with a fixed gain matrix
//   - [None]: zero control
//
// PID keeps integral and derivative memory between calls. A simulation
// must start from a fresh or [PID.Reset] controller.
package control
