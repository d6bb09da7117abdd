package sim

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/noise"
)

// Clip limits v to [lo, hi]. With lo > hi the result is hi.
func Clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Step runs one closed-loop update: ask ctrl for a delta, clip it so the
// new coolant temperature stays within [LowerTc, UpperTc], integrate one
// unit step holding that temperature, then add measurement noise.
//
// A NaN request from ctrl is treated as no change. The returned Tc is
// always inside the bounds; Delta is the clipped delta that was applied.
func (s *Simulator) Step(ctrl dynamo.Controller, in StepInput, rng dynamo.RandSource) (StepOutput, error) {
	raw := ctrl.Compute(in.Ideal, in.Current)

	requested := raw
	if math.IsNaN(requested) {
		requested = 0
	}
	delta := Clip(requested, in.LowerTc-in.Tc, in.UpperTc-in.Tc)
	// Tc + (bound - Tc) can round past the bound.
	newTc := Clip(in.Tc+delta, in.LowerTc, in.UpperTc)

	out := StepOutput{Tc: newTc, Delta: delta, RawDelta: raw}

	clean, err := s.unitStep(0, in.Current, newTc)
	if err != nil {
		return out, &dynamo.SimulationError{Step: 1, State: in.Current, Wrapped: err}
	}

	out.State = noise.New(in.Noise, rng).Apply(clean)
	return out, nil
}

// Loop repeats Step for steps iterations starting from start, feeding each
// output back as the next input. Metrics and observers registered on the
// simulator see every step.
func (s *Simulator) Loop(ctx context.Context, ctrl dynamo.Controller, start StepInput, steps int, seed int64) (*Episode, error) {
	rng := noise.NewSource(seed)

	ep := &Episode{
		States:    make([]dynamo.State, 0, steps+1),
		Tc:        make([]float64, 0, steps+1),
		Deltas:    make([]float64, 0, steps),
		RawDeltas: make([]float64, 0, steps),
		Metrics:   make(map[string]float64),
	}
	ep.States = append(ep.States, start.Current.Clone())
	ep.Tc = append(ep.Tc, start.Tc)

	for _, m := range s.metrics {
		m.Reset()
	}

	in := start
	in.Current = start.Current.Clone()
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ep, ctx.Err()
		default:
		}

		out, err := s.Step(ctrl, in, rng)
		if err != nil {
			var simErr *dynamo.SimulationError
			if errors.As(err, &simErr) {
				simErr.Step = i + 1
				simErr.Time = float64(i)
			}
			return ep, err
		}

		u := dynamo.Control{out.Tc, out.Delta, out.RawDelta}
		t := float64(i + 1)
		for _, m := range s.metrics {
			m.Observe(out.State, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(out.State, u, t)
		}

		ep.States = append(ep.States, out.State)
		ep.Tc = append(ep.Tc, out.Tc)
		ep.Deltas = append(ep.Deltas, out.Delta)
		ep.RawDeltas = append(ep.RawDeltas, out.RawDelta)

		in.Current = out.State
		in.Tc = out.Tc
	}

	for _, m := range s.metrics {
		ep.Metrics[m.Name()] = m.Value()
	}

	s.log.Debug().
		Int("steps", steps).
		Float64("final_tc", in.Tc).
		Stringer("final_state", in.Current).
		Msg("closed loop complete")

	return ep, nil
}
