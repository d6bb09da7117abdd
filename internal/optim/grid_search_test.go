package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/experiment"
)

func tuningConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Control.Steps = 20
	cfg.Control.Noise = 0
	cfg.Control.Gains = config.GainsConfig{}
	return cfg
}

func TestGridSearchPrefersIntegralAction(t *testing.T) {
	base := tuningConfig()
	g := NewGridSearch([]string{"ki_t"}, [][]float64{{0, 0.05}})

	best, score, err := g.Search(context.Background(), GainBuilder(base, nil), "iae_t")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if best["ki_t"] != 0.05 {
		t.Errorf("expected ki_t 0.05 to win, got %v", best)
	}
	if score <= 0 {
		t.Errorf("expected positive iae, got %v", score)
	}
	if base.Control.Gains.KiT != 0 {
		t.Errorf("builder mutated the base config")
	}
}

func TestGridSearchSize(t *testing.T) {
	g := NewGridSearch([]string{"kp_t", "ki_t"}, [][]float64{{0, 1, 2}, {0, 1}})
	if g.Size() != 6 {
		t.Errorf("expected 6 points, got %d", g.Size())
	}
}

func TestGridSearchVisitsEveryPoint(t *testing.T) {
	base := tuningConfig()
	base.Control.Steps = 2
	seen := map[[2]float64]bool{}
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		seen[[2]float64{p["kp_t"], p["kd_t"]}] = true
		return GainBuilder(base, nil)(p)
	}

	g := NewGridSearch([]string{"kp_t", "kd_t"}, [][]float64{{0, 0.1}, {0, 0.2, 0.4}})
	if _, _, err := g.Search(context.Background(), build, "control_effort"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 distinct points, got %d", len(seen))
	}
}

func TestGridSearchErrors(t *testing.T) {
	base := tuningConfig()
	base.Control.Steps = 2

	g := NewGridSearch([]string{"kp_t"}, nil)
	if _, _, err := g.Search(context.Background(), GainBuilder(base, nil), "iae_t"); err == nil {
		t.Error("expected error for mismatched grid")
	}

	g = NewGridSearch([]string{"kp_t"}, [][]float64{{0.1}})
	_, _, err := g.Search(context.Background(), GainBuilder(base, nil), "missing")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}

	g = NewGridSearch([]string{"kp_x"}, [][]float64{{0.1}})
	if _, _, err := g.Search(context.Background(), GainBuilder(base, nil), "iae_t"); err == nil {
		t.Error("expected error for unknown gain")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g = NewGridSearch([]string{"kp_t"}, [][]float64{{0.1}})
	if _, _, err := g.Search(ctx, GainBuilder(base, nil), "iae_t"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGridSearchNoCandidates(t *testing.T) {
	base := tuningConfig()
	base.Control.Steps = 3
	// an unknown integrator makes every episode fail
	base.Integrator.Name = "euler"

	g := NewGridSearch([]string{"kp_t"}, [][]float64{{0.1, 0.2}})
	_, _, err := g.Search(context.Background(), GainBuilder(base, nil), "iae_t")
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
}

func TestSetGain(t *testing.T) {
	var g config.GainsConfig
	for name, want := range map[string]float64{"kp_ca": 1, "ki_ca": 2, "kd_ca": 3, "kp_t": 4, "ki_t": 5, "kd_t": 6} {
		if err := SetGain(&g, name, want); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	want := config.GainsConfig{KpCa: 1, KiCa: 2, KdCa: 3, KpT: 4, KiT: 5, KdT: 6}
	if g != want {
		t.Errorf("got %+v, want %+v", g, want)
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if v := Linspace(3, 9, 1); len(v) != 1 || v[0] != 3 {
		t.Errorf("single point: %v", v)
	}
}
