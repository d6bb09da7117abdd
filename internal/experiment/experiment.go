package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/sim"
	"github.com/san-kum/cstrsim/internal/storage"
)

// Experiment turns a configuration into simulator runs.
type Experiment struct {
	// Preset names the preset the configuration came from, if any.
	Preset string

	cfg *config.Config
	reg *Registry
	log zerolog.Logger
}

func New(cfg *config.Config, reg *Registry) *Experiment {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Experiment{cfg: cfg, reg: reg, log: zerolog.Nop()}
}

func (e *Experiment) WithLogger(l zerolog.Logger) *Experiment {
	e.log = l
	return e
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Simulator builds a CSTR simulator with the configured integrator.
func (e *Experiment) Simulator() (*sim.Simulator, error) {
	integ, err := e.reg.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return nil, err
	}
	return sim.New(physics.NewCSTR(), integ).WithLogger(e.log), nil
}

func (e *Experiment) Controller() (dynamo.Controller, error) {
	return e.reg.GetController(e.cfg.Control.Controller, e.cfg.Control.Gains)
}

// StepInput is the starting loop state described by the control section.
func (e *Experiment) StepInput() sim.StepInput {
	c := e.cfg.Control
	return sim.StepInput{
		Current: dynamo.State{c.InitCa, c.InitT},
		Tc:      c.Tc,
		Ideal:   dynamo.State{c.IdealCa, c.IdealT},
		UpperTc: c.UpperTc,
		LowerTc: c.LowerTc,
		Noise:   c.Noise,
	}
}

type BatchResult struct {
	Trace    []float64
	Ensemble *sim.Ensemble
	Summary  metrics.Summary
}

// RunBatch runs the open-loop ensemble described by the simulate section.
func (e *Experiment) RunBatch(ctx context.Context) (*BatchResult, error) {
	sc := e.cfg.Simulate

	trace, err := BuildTrace(sc.Trace, sc.TimeSteps-1, sc.Seed)
	if err != nil {
		return nil, err
	}
	s, err := e.Simulator()
	if err != nil {
		return nil, err
	}

	opts := sim.BatchOptions{
		TimeSteps:       sc.TimeSteps,
		Repetitions:     sc.Repetitions,
		Noise:           sc.Noise,
		Init:            dynamo.State{sc.InitCa, sc.InitT},
		Seed:            sc.Seed,
		Workers:         sc.Workers,
		IsolateFailures: sc.IsolateFailures,
	}

	e.log.Info().
		Str("integrator", e.cfg.Integrator.Name).
		Str("trace", sc.Trace.Kind).
		Int("repetitions", opts.Repetitions).
		Int("time_steps", opts.TimeSteps).
		Msg("running batch")

	ens, err := s.Simulate(ctx, trace, opts)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	if len(ens.Failed) > 0 {
		e.log.Warn().Ints("failed", ens.Failed).Msg("some repetitions failed")
	}

	return &BatchResult{
		Trace:    trace,
		Ensemble: ens,
		Summary:  metrics.Summarize(ens),
	}, nil
}

// RunEpisode runs the closed loop described by the control section. The
// controller is built from the registry unless ctrl is non-nil.
func (e *Experiment) RunEpisode(ctx context.Context, ctrl dynamo.Controller, observers ...dynamo.Observer) (*sim.Episode, error) {
	s, err := e.Simulator()
	if err != nil {
		return nil, err
	}
	if ctrl == nil {
		if ctrl, err = e.Controller(); err != nil {
			return nil, err
		}
	}

	in := e.StepInput()
	for _, m := range e.reg.DefaultMetrics(in.Ideal) {
		s.AddMetric(m)
	}
	for _, obs := range observers {
		s.AddObserver(obs)
	}

	e.log.Info().
		Str("controller", e.cfg.Control.Controller).
		Int("steps", e.cfg.Control.Steps).
		Msg("running closed loop")

	ep, err := s.Loop(ctx, ctrl, in, e.cfg.Control.Steps, e.cfg.Control.Seed)
	if err != nil {
		return ep, fmt.Errorf("closed loop: %w", err)
	}
	return ep, nil
}

func (e *Experiment) BatchMetadata(res *BatchResult) storage.RunMetadata {
	return storage.RunMetadata{
		Preset:     e.Preset,
		Seed:       e.cfg.Simulate.Seed,
		Noise:      e.cfg.Simulate.Noise,
		Integrator: e.cfg.Integrator.Name,
		Trace:      res.Trace,
	}
}

func (e *Experiment) EpisodeMetadata() storage.RunMetadata {
	return storage.RunMetadata{
		Preset:     e.Preset,
		Seed:       e.cfg.Control.Seed,
		Noise:      e.cfg.Control.Noise,
		Integrator: e.cfg.Integrator.Name,
		Controller: e.cfg.Control.Controller,
	}
}
