// Package physics provides process models for simulation.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the process:
//
//   - [CSTR]: exothermic continuously stirred tank reactor, state (Ca, T),
//     manipulated coolant temperature Tc
//
// Models also implement [dynamo.Configurable] for runtime parameter
// adjustment:
//
//	cstr := physics.NewCSTR()
//	_ = cstr.SetParam("UA", 4.5e4)
package physics
