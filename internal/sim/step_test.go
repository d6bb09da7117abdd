package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/noise"
	"github.com/san-kum/cstrsim/internal/physics"
)

type constController struct {
	delta float64
	calls int
	ideal dynamo.State
	meas  dynamo.State
}

func (c *constController) Compute(ideal, measured dynamo.State) float64 {
	c.calls++
	c.ideal, c.meas = ideal, measured
	return c.delta
}

type countingMetric struct {
	count int
}

func (m *countingMetric) Name() string                                        { return "count" }
func (m *countingMetric) Observe(x dynamo.State, u dynamo.Control, t float64) { m.count++ }
func (m *countingMetric) Value() float64                                      { return float64(m.count) }
func (m *countingMetric) Reset()                                              { m.count = 0 }

// budgetIntegrator copies the state for ok calls, then fails.
type budgetIntegrator struct {
	ok    int
	calls int
}

func (b *budgetIntegrator) Advance(sys dynamo.System, x dynamo.State, u dynamo.Control, t0, t1 float64) (dynamo.State, error) {
	b.calls++
	if b.calls > b.ok {
		return nil, dynamo.ErrStepTooSmall
	}
	return x.Clone(), nil
}

func TestClip(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{0, -1, 1, 0},
		{5, -1, 1, 1},
		{-5, -1, 1, -1},
		{math.Inf(1), -1, 1, 1},
		{math.Inf(-1), -1, 1, -1},
		{0, 2, 1, 1},
	}

	for _, tt := range tests {
		if got := Clip(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clip(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestStepPassesTargetsToController(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())
	ctrl := &constController{}

	in := DefaultStepInput()
	in.Noise = 0
	if _, err := s.Step(ctrl, in, noise.NewSource(1)); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	if ctrl.calls != 1 {
		t.Errorf("expected one controller call, got %d", ctrl.calls)
	}
	if ctrl.ideal[dynamo.Ca] != DefaultIdealCa || ctrl.ideal[dynamo.T] != DefaultIdealT {
		t.Errorf("unexpected ideal outputs %v", ctrl.ideal)
	}
	if ctrl.meas[dynamo.Ca] != physics.SteadyCa || ctrl.meas[dynamo.T] != physics.SteadyT {
		t.Errorf("unexpected measured outputs %v", ctrl.meas)
	}
}

func TestStepClipsDelta(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())

	tests := []struct {
		name      string
		request   float64
		wantTc    float64
		wantDelta float64
	}{
		{"within limits", 2, 302, 2},
		{"above upper", 1e6, 305, 5},
		{"below lower", -1e6, 295, -5},
		{"nan holds", math.NaN(), 300, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := DefaultStepInput()
			in.Noise = 0
			out, err := s.Step(&constController{delta: tt.request}, in, noise.NewSource(1))
			if err != nil {
				t.Fatalf("step failed: %v", err)
			}
			if out.Tc != tt.wantTc {
				t.Errorf("Tc = %v, want %v", out.Tc, tt.wantTc)
			}
			if out.Delta != tt.wantDelta {
				t.Errorf("Delta = %v, want %v", out.Delta, tt.wantDelta)
			}
		})
	}
}

func TestStepInvertedBounds(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())

	for _, request := range []float64{-1e6, -3, 0, 3, 1e6, math.NaN()} {
		in := DefaultStepInput()
		in.Noise = 0
		in.UpperTc, in.LowerTc = 295, 305
		out, err := s.Step(&constController{delta: request}, in, noise.NewSource(1))
		if err != nil {
			t.Fatalf("request %v: step failed: %v", request, err)
		}
		if out.Tc != in.UpperTc {
			t.Errorf("request %v: Tc = %v, want upper bound %v", request, out.Tc, in.UpperTc)
		}
	}
}

func TestStepReportsRawDelta(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())

	in := DefaultStepInput()
	out, err := s.Step(&constController{delta: 42}, in, noise.NewSource(1))
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if out.RawDelta != 42 || out.Delta != 5 || !out.Saturated() {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestStepZeroNoiseMatchesIntegrator(t *testing.T) {
	dyn := physics.NewCSTR()
	integ := integrators.NewRK45()
	s := New(dyn, integ)

	in := DefaultStepInput()
	in.Noise = 0
	out, err := s.Step(&constController{delta: -3}, in, noise.NewSource(1))
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}

	want, err := integ.Advance(dyn, in.Current, dynamo.Control{297}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if out.State[dynamo.Ca] != want[dynamo.Ca] || out.State[dynamo.T] != want[dynamo.T] {
		t.Errorf("state = %v, want %v", out.State, want)
	}
}

func TestStepIntegratorFailure(t *testing.T) {
	s := New(&decay{}, &failingIntegrator{failAt: 0})

	in := DefaultStepInput()
	out, err := s.Step(&constController{delta: 1}, in, noise.NewSource(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Tc != 301 {
		t.Errorf("applied Tc should still be reported, got %v", out.Tc)
	}
}

func TestLoop(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())
	metric := &countingMetric{}
	s.AddMetric(metric)

	ep, err := s.Loop(context.Background(), &constController{delta: 1}, DefaultStepInput(), 10, 7)
	if err != nil {
		t.Fatalf("loop failed: %v", err)
	}

	if len(ep.States) != 11 || len(ep.Tc) != 11 || ep.Len() != 10 {
		t.Fatalf("unexpected episode sizes: %d states, %d tc, %d deltas", len(ep.States), len(ep.Tc), ep.Len())
	}
	// +1 per step until the upper bound stops it.
	want := []float64{300, 301, 302, 303, 304, 305, 305}
	for i, w := range want {
		if ep.Tc[i] != w {
			t.Errorf("Tc[%d] = %v, want %v", i, ep.Tc[i], w)
		}
	}
	if ep.Deltas[9] != 0 || ep.RawDeltas[9] != 1 {
		t.Errorf("saturated step should apply 0, got %v (raw %v)", ep.Deltas[9], ep.RawDeltas[9])
	}
	if ep.Metrics["count"] != 10 {
		t.Errorf("expected 10 observations, got %v", ep.Metrics["count"])
	}
}

func TestLoopFailureReportsStep(t *testing.T) {
	s := New(&decay{}, &budgetIntegrator{ok: 3})

	ep, err := s.Loop(context.Background(), &constController{}, DefaultStepInput(), 10, 1)
	if err == nil {
		t.Fatal("expected integrator error")
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	if simErr.Step != 4 || simErr.Time != 3 {
		t.Errorf("failure at step %d time %v, want step 4 time 3", simErr.Step, simErr.Time)
	}
	if !errors.Is(err, dynamo.ErrStepTooSmall) {
		t.Errorf("expected wrapped ErrStepTooSmall, got %v", err)
	}
	if len(ep.States) != 4 {
		t.Errorf("expected start plus 3 states, got %d", len(ep.States))
	}
}

func TestLoopCanceled(t *testing.T) {
	s := New(physics.NewCSTR(), integrators.NewRK45())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ep, err := s.Loop(ctx, &constController{}, DefaultStepInput(), 5, 1)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(ep.States) != 1 {
		t.Errorf("expected only the starting state, got %d", len(ep.States))
	}
}
