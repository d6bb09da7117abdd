// Package analysis characterizes the reactor's open-loop behaviour.
//
//   - [Sweep]: holds the coolant temperature (or a plant parameter) at a
//     series of values and records where the reactor settles
//   - [Jacobian] and [Eigenvalues]: linearization around an operating point
//   - [SweepToASCII]: terminal rendering of a sweep
//
// # Hysteresis
//
// With Continuation set each point starts where the previous one ended, so
// an upward sweep followed by its [Sweep.Reverse] traces both branches of
// the ignition/extinction loop:
//
//	up, _ := sw.Run(ctx, newPlant, integ)
//	down, _ := sw.Reverse().Run(ctx, newPlant, integ)
package analysis
