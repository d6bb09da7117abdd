package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/noise"
	"github.com/san-kum/cstrsim/internal/sim"
)

const (
	historyCapacity = 600
	chartWidth      = 50
	chartHeight     = 6
	nudgeStep       = 1.0
	setpointStep    = 1.0
)

type TickMsg time.Time

// Model runs the closed loop one unit step per tick. With a manual
// controller the arrow keys nudge the coolant temperature; otherwise they
// move the temperature setpoint.
type Model struct {
	sim    *sim.Simulator
	ctrl   dynamo.Controller
	manual *control.Manual
	start  sim.StepInput
	in     sim.StepInput
	rng    dynamo.RandSource
	seed   int64

	limit    int
	step     int
	interval time.Duration
	running  bool
	err      error

	last    sim.StepOutput
	ca      []float64
	temp    []float64
	tc      []float64
	satHits int

	theme    int
	styles   Styles
	showHelp bool
}

// NewModel prepares a live session. limit bounds the number of steps; 0
// runs until quit.
func NewModel(s *sim.Simulator, ctrl dynamo.Controller, start sim.StepInput, limit int, seed int64) Model {
	m := Model{
		sim:      s,
		ctrl:     ctrl,
		start:    start,
		seed:     seed,
		limit:    limit,
		interval: time.Second / 10,
		running:  true,
		styles:   NewStyles(Themes[0]),
	}
	if man, ok := ctrl.(*control.Manual); ok {
		m.manual = man
	}
	m.reset()
	return m
}

func (m *Model) reset() {
	m.in = m.start
	m.in.Current = m.start.Current.Clone()
	m.in.Ideal = m.start.Ideal.Clone()
	m.rng = noise.NewSource(m.seed)
	m.step = 0
	m.err = nil
	m.satHits = 0
	m.last = sim.StepOutput{State: m.in.Current, Tc: m.in.Tc}
	m.ca = append(make([]float64, 0, historyCapacity), m.in.Current[dynamo.Ca])
	m.temp = append(make([]float64, 0, historyCapacity), m.in.Current[dynamo.T])
	m.tc = append(make([]float64, 0, historyCapacity), m.in.Tc)
	if r, ok := m.ctrl.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = NewStyles(Themes[m.theme])
		case "?":
			m.showHelp = !m.showHelp
		case "up", "k":
			m.adjust(1)
		case "down", "j":
			m.adjust(-1)
		case "+", "=":
			m.interval = max(m.interval/2, time.Second/60)
		case "-":
			m.interval = min(m.interval*2, 2*time.Second)
		}
		return m, nil

	case TickMsg:
		if m.running && m.err == nil && (m.limit == 0 || m.step < m.limit) {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) adjust(dir float64) {
	if m.manual != nil {
		m.manual.Nudge(dir * nudgeStep)
		return
	}
	m.in.Ideal[dynamo.T] += dir * setpointStep
}

func (m *Model) advance() {
	out, err := m.sim.Step(m.ctrl, m.in, m.rng)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.step++
	m.last = out
	if out.Saturated() {
		m.satHits++
	}
	m.in.Current = out.State
	m.in.Tc = out.Tc

	m.ca = appendCapped(m.ca, out.State[dynamo.Ca])
	m.temp = appendCapped(m.temp, out.State[dynamo.T])
	m.tc = appendCapped(m.tc, out.Tc)
}

func appendCapped(s []float64, v float64) []float64 {
	if len(s) == historyCapacity {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

// Step reports how many closed-loop steps have run since the last reset.
func (m Model) Step() int { return m.step }

func (m Model) Err() error { return m.err }

func (m Model) View() string {
	st := m.styles

	status := st.Running.Render("RUNNING")
	switch {
	case m.err != nil:
		status = st.Alarm.Render("FAILED: " + m.err.Error())
	case m.limit > 0 && m.step >= m.limit:
		status = st.Paused.Render("DONE")
	case !m.running:
		status = st.Paused.Render("PAUSED")
	}

	var charts strings.Builder
	if len(m.temp) > 1 {
		charts.WriteString(st.Graph.Render(asciigraph.Plot(m.temp,
			asciigraph.Height(chartHeight), asciigraph.Width(chartWidth),
			asciigraph.Caption("T [K]"))))
		charts.WriteString("\n")
		charts.WriteString(st.Graph.Render(asciigraph.Plot(m.ca,
			asciigraph.Height(chartHeight), asciigraph.Width(chartWidth),
			asciigraph.Caption("Ca [mol/L]"))))
	} else {
		charts.WriteString(st.Value.Render("waiting for first step..."))
	}

	var s strings.Builder
	s.WriteString(st.Header.Render("CSTR CLOSED LOOP") + "\n")
	s.WriteString(status + "\n\n")
	row := func(label, value string) {
		s.WriteString(st.Label.Render(label) + st.Value.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.step))
	row("Ca", fmt.Sprintf("%.5f  (→ %.3f)", m.in.Current[dynamo.Ca], m.in.Ideal[dynamo.Ca]))
	row("T", fmt.Sprintf("%.3f  (→ %.1f)", m.in.Current[dynamo.T], m.in.Ideal[dynamo.T]))
	row("Tc", fmt.Sprintf("%.3f", m.in.Tc))
	row("", Gauge(m.in.Tc, m.in.LowerTc, m.in.UpperTc, 20))
	row("Delta", fmt.Sprintf("%+.4f (raw %+.4f)", m.last.Delta, m.last.RawDelta))
	row("Saturated", fmt.Sprintf("%d", m.satHits))
	row("Noise", fmt.Sprintf("%.3f", m.in.Noise))
	s.WriteString("\n" + st.Label.Render("Tc trend") + Sparkline(m.tc, 30) + "\n")

	s.WriteString("\n" + PhasePortrait(m.ca, m.temp, 20, 6))

	keys := "SP:Pause R:Reset T:Theme Q:Quit\n↑↓:Setpoint +/-:Speed ?:Help"
	if m.manual != nil {
		keys = "SP:Pause R:Reset T:Theme Q:Quit\n↑↓:Nudge Tc +/-:Speed ?:Help"
	}
	s.WriteString(st.Help.Render(keys))

	main := lipgloss.JoinHorizontal(lipgloss.Top, charts.String(), st.Panel.Render(s.String()))
	if m.showHelp {
		return st.Panel.Render(helpText) + "\n" + main
	}
	return main
}

const helpText = `Space     pause / resume
R         reset to the starting state
Up/K      nudge Tc up (manual) or raise the T setpoint
Down/J    nudge Tc down (manual) or lower the T setpoint
+ / -     faster / slower
T         cycle themes
Q         quit`
