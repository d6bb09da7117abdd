package control

import (
	"math"
	"testing"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

var (
	ideal = dynamo.State{0.8, 330}
	below = dynamo.State{0.8, 320}
)

func TestNone(t *testing.T) {
	ctrl := NewNone()
	if d := ctrl.Compute(ideal, below); d != 0 {
		t.Errorf("expected zero delta, got %f", d)
	}
}

func TestPID_FirstCallIsIntegralOnly(t *testing.T) {
	ctrl := NewTemperaturePID(0.5, 0.1, 2.0)

	d := ctrl.Compute(ideal, below)
	// e = 10 on T; no history, so only Ki*e contributes.
	if math.Abs(d-1.0) > 1e-12 {
		t.Errorf("expected delta 1.0, got %f", d)
	}
}

func TestPID_Direction(t *testing.T) {
	ctrl := NewTemperaturePID(0.5, 0.1, 0.0)

	if d := ctrl.Compute(ideal, below); d <= 0 {
		t.Errorf("reactor too cold should raise Tc, got %f", d)
	}

	ctrl.Reset()
	if d := ctrl.Compute(ideal, dynamo.State{0.8, 340}); d >= 0 {
		t.Errorf("reactor too hot should lower Tc, got %f", d)
	}
}

func TestPID_Incremental(t *testing.T) {
	ctrl := NewTemperaturePID(1.0, 0.0, 0.0)

	ctrl.Compute(ideal, dynamo.State{0.8, 320})
	d := ctrl.Compute(ideal, dynamo.State{0.8, 325})
	// e went from 10 to 5.
	if math.Abs(d+5) > 1e-12 {
		t.Errorf("expected delta -5, got %f", d)
	}
}

func TestPID_Derivative(t *testing.T) {
	ctrl := NewTemperaturePID(0, 0, 1.0)

	ctrl.Compute(ideal, dynamo.State{0.8, 320}) // e = 10
	ctrl.Compute(ideal, dynamo.State{0.8, 322}) // e = 8
	d := ctrl.Compute(ideal, dynamo.State{0.8, 323})
	// e = 7: 7 - 2*8 + 10
	if math.Abs(d-1) > 1e-12 {
		t.Errorf("expected delta 1, got %f", d)
	}
}

func TestPID_Params(t *testing.T) {
	ctrl := NewTemperaturePID(0.5, 0.1, 0.0)

	if err := ctrl.SetParam("kp_ca", -3); err != nil {
		t.Fatalf("SetParam failed: %v", err)
	}
	if ctrl.GetParams()["kp_ca"] != -3 {
		t.Errorf("kp_ca not applied: %v", ctrl.GetParams())
	}
	if err := ctrl.SetParam("nope", 1); err == nil {
		t.Error("expected error for unknown param")
	}
}

func TestGain(t *testing.T) {
	ctrl := NewGain(0, 0.2)

	if d := ctrl.Compute(ideal, ideal); d != 0 {
		t.Errorf("expected zero delta at target, got %f", d)
	}
	if d := ctrl.Compute(ideal, below); math.Abs(d-2) > 1e-12 {
		t.Errorf("expected delta 2, got %f", d)
	}
}

func TestManual(t *testing.T) {
	ctrl := NewManual()
	ctrl.Nudge(1.5)
	ctrl.Nudge(0.5)

	if d := ctrl.Compute(ideal, below); d != 2 {
		t.Errorf("expected accumulated nudge 2, got %f", d)
	}
	if d := ctrl.Compute(ideal, below); d != 0 {
		t.Errorf("nudge should be consumed, got %f", d)
	}
}
