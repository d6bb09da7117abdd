package viz

import (
	"math"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/sim"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(100, 0)

	if c.Grid[0][0] != 0x2801 {
		t.Errorf("expected dot 1 set, got %U", c.Grid[0][0])
	}
	if c.Grid[0][1] != 0x2880 {
		t.Errorf("expected dot 8 set, got %U", c.Grid[0][1])
	}

	c.Clear()
	if c.Grid[0][0] != brailleBlank {
		t.Error("clear should blank the grid")
	}
}

func TestCanvasTrajectory(t *testing.T) {
	c := NewCanvas(10, 5)
	c.Trajectory([]float64{0, 1, math.NaN(), 2}, []float64{0, 1, 5, 5})

	// corners of the scaled range: bottom-left and top-right
	if c.Grid[4][0]&pixelMap[3][0] == 0 {
		t.Error("expected bottom-left dot")
	}
	if c.Grid[0][9]&pixelMap[0][1] == 0 {
		t.Error("expected top-right dot")
	}

	out := PhasePortrait([]float64{1}, []float64{300}, 4, 2)
	if len(strings.Split(strings.TrimRight(out, "\n"), "\n")) != 2 {
		t.Errorf("expected 2 rows, got %q", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("empty sparkline = %q", got)
	}
	got := []rune(Sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8))
	if got[0] != '▁' || got[7] != '█' {
		t.Errorf("unexpected sparkline %q", string(got))
	}
	if n := len([]rune(Sparkline(make([]float64, 50), 10))); n != 10 {
		t.Errorf("expected 10 runes, got %d", n)
	}
}

func TestGauge(t *testing.T) {
	if got := Gauge(300, 295, 305, 10); got != "[█████░░░░░]" {
		t.Errorf("half gauge = %q", got)
	}
	if got := Gauge(400, 295, 305, 4); got != "[████]" {
		t.Errorf("clamped gauge = %q", got)
	}
}

func TestGetTheme(t *testing.T) {
	if GetTheme("retro").Name != "retro" {
		t.Error("expected retro theme")
	}
	if GetTheme("missing").Name != ThemePlant.Name {
		t.Error("expected fallback theme")
	}
}

func TestPlots(t *testing.T) {
	ens := &sim.Ensemble{
		Ca: [][]float64{{0.87, 0.88, 0.9}, {0.87, 0.89, 0.91}},
		T:  [][]float64{{324, 320, 318}, {324, 319, 317}},
	}
	opts := PlotOptions{Width: 30, Height: 5}

	if out := PlotEnsemble(metrics.Summarize(ens), dynamo.T, opts); !strings.Contains(out, "T [K]") {
		t.Errorf("missing caption: %q", out)
	}
	if out := PlotTrajectory(ens, 1, dynamo.Ca, opts); !strings.Contains(out, "repetition 1") {
		t.Errorf("missing caption: %q", out)
	}
	if PlotTrajectory(ens, 5, dynamo.Ca, opts) != "" {
		t.Error("out-of-range repetition should render nothing")
	}

	ep := &sim.Episode{
		States: []dynamo.State{{0.87, 324}, {0.86, 325}, {0.85, 326}},
		Tc:     []float64{300, 301, 302},
	}
	if out := PlotEpisode(ep, opts); !strings.Contains(out, "Tc [K]") {
		t.Errorf("missing Tc chart: %q", out)
	}
}

func newLive(ctrl dynamo.Controller, limit int) Model {
	s := sim.New(physics.NewCSTR(), integrators.NewRK45())
	in := sim.DefaultStepInput()
	in.Noise = 0
	return NewModel(s, ctrl, in, limit, 1)
}

func TestLiveModelSteps(t *testing.T) {
	m := newLive(control.NewNone(), 3)

	var model tea.Model = m
	for i := 0; i < 5; i++ {
		model, _ = model.Update(TickMsg{})
	}
	m = model.(Model)

	if m.Step() != 3 {
		t.Errorf("expected the step limit to stop at 3, got %d", m.Step())
	}
	if len(m.temp) != 4 {
		t.Errorf("expected 4 history points, got %d", len(m.temp))
	}
	if math.Abs(m.temp[3]-physics.SteadyT) > 1e-6 {
		t.Errorf("open loop at steady state drifted to %v", m.temp[3])
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view should report completion")
	}
}

func TestLiveModelManualNudge(t *testing.T) {
	man := control.NewManual()
	var model tea.Model = newLive(man, 0)

	for i := 0; i < 8; i++ {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	model, _ = model.Update(TickMsg{})
	m := model.(Model)

	if m.in.Tc != 305 {
		t.Errorf("expected nudges to saturate at 305, got %v", m.in.Tc)
	}
	if m.satHits != 1 {
		t.Errorf("expected one saturated step, got %d", m.satHits)
	}
}

func TestLiveModelKeys(t *testing.T) {
	var model tea.Model = newLive(control.NewNone(), 0)

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeySpace})
	model, _ = model.Update(TickMsg{})
	m := model.(Model)
	if m.running || m.Step() != 0 {
		t.Error("pause should stop stepping")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
	if model.(Model).in.Ideal[dynamo.T] != 331 {
		t.Errorf("setpoint should move, got %v", model.(Model).in.Ideal)
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if model.(Model).in.Ideal[dynamo.T] != 330 {
		t.Error("reset should restore the setpoint")
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("q should quit")
	}
}
