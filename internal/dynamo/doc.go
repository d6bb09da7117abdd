// Package dynamo provides core simulation primitives for the reactor harness.
//
// The package defines the interfaces every other layer is written against:
//
//   - [State]: vector representing process state, (Ca, T) for the reactor
//   - [System]: process model (dX/dt = f(X, u, t))
//   - [Integrator]: advances a state across an interval with the input held
//   - [Controller]: feedback controller returning a raw control delta
//   - [RandSource]: per-worker uniform random source for noise draws
//
// # Thread Safety
//
// Systems are expected to be pure and may be shared across goroutines.
// Integrators and random sources are not shared: each worker owns its own.
package dynamo
