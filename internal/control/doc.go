// Package control provides feedback controllers for the reactor.
//
// Controllers implement the [dynamo.Controller] interface: given the
// target and measured (Ca, T) they return the raw change to the coolant
// temperature. Actuator limits are applied by the caller, not here.
//
//   - [PID]: incremental PID on both channels
//   - [Gain]: proportional state feedback
//   - [None]: holds the coolant temperature
//   - [Manual]: operator nudges
//
// # Usage
//
//	pid := control.NewTemperaturePID(0.5, 0.05, 0.1)
//	out, err := simulator.Step(pid, in, rng)
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
