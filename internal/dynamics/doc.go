// Package dynamics provides core primitives for controlled dynamical systems.
//
// The package defines the fundamental vocabulary shared by the rest of the
// module:
//
//   - [State], [Control]: dense numeric vectors
//   - [System]: nonlinear controlled dynamics (dx/dt = f(x, u, t))
//   - [LinearSystem]: analytic Jacobian provider for a System
//   - [Controller]: state-feedback control law
//   - [Integrator]: fixed-step numerical integration
//
// # Thread Safety
//
// System and LinearSystem implementations may keep internal scratch state
// and are not required to be safe for concurrent use. Callers that evaluate
// on multiple goroutines must hand each goroutine its own Clone.
package dynamics
