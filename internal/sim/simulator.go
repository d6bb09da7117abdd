package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/noise"
)

// Simulator couples a process model with an integrator. The integrator is
// shared by every repetition of a batch, so it must be safe for concurrent
// use unless Workers is 1.
type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        zerolog.Logger
}

func New(sys dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        zerolog.Nop(),
	}
}

func (s *Simulator) WithLogger(l zerolog.Logger) *Simulator {
	s.log = l
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// unitStep integrates over [step, step+1] with tc held.
func (s *Simulator) unitStep(step int, x dynamo.State, tc float64) (dynamo.State, error) {
	t0 := float64(step)
	return s.integrator.Advance(s.sys, x, dynamo.Control{tc}, t0, t0+1)
}

// Simulate drives every repetition open loop through trace: trace[i] is
// held over [i, i+1] and noise is added after each integration. Step 0 of
// every trajectory is opts.Init exactly.
func (s *Simulator) Simulate(ctx context.Context, trace []float64, opts BatchOptions) (*Ensemble, error) {
	if err := validateBatch(trace, opts); err != nil {
		return nil, err
	}

	start := time.Now()
	ens := newEnsemble(opts.Repetitions, opts.TimeSteps)
	errs := make([]error, opts.Repetitions)

	dynamo.ParallelFor(opts.Repetitions, opts.Workers, func(lo, hi int) {
		for rep := lo; rep < hi; rep++ {
			if err := ctx.Err(); err != nil {
				errs[rep] = err
				continue
			}
			errs[rep] = s.runRepetition(rep, trace, opts, ens.Ca[rep], ens.T[rep])
		}
	})

	for rep, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !opts.IsolateFailures {
			return nil, err
		}
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			ens.padFailed(rep, simErr.Step)
		}
		ens.Failed = append(ens.Failed, rep)
		s.log.Warn().Err(err).Int("rep", rep).Msg("repetition failed")
	}

	s.log.Debug().
		Int("repetitions", opts.Repetitions).
		Int("time_steps", opts.TimeSteps).
		Float64("noise", opts.Noise).
		Int("failed", len(ens.Failed)).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")

	return ens, nil
}

func (s *Simulator) runRepetition(rep int, trace []float64, opts BatchOptions, ca, temp []float64) error {
	inj := noise.New(opts.Noise, noise.NewSource(noise.SeedFor(opts.Seed, rep)))

	x := opts.Init.Clone()
	ca[0], temp[0] = x[dynamo.Ca], x[dynamo.T]

	for i := 0; i < opts.TimeSteps-1; i++ {
		clean, err := s.unitStep(i, x, trace[i])
		if err != nil {
			return &dynamo.SimulationError{Rep: rep, Step: i + 1, Time: float64(i), State: x, Wrapped: err}
		}
		x = inj.Apply(clean)
		ca[i+1], temp[i+1] = x[dynamo.Ca], x[dynamo.T]
	}
	return nil
}

func validateBatch(trace []float64, opts BatchOptions) error {
	if opts.TimeSteps < 1 {
		return fmt.Errorf("time steps must be at least 1, got %d", opts.TimeSteps)
	}
	if opts.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", opts.Repetitions)
	}
	if len(opts.Init) != 2 {
		return fmt.Errorf("initial state: %w", dynamo.ErrDimensionMismatch)
	}
	if len(trace) < opts.TimeSteps-1 {
		return fmt.Errorf("%w: need %d entries, got %d", dynamo.ErrTraceTooShort, opts.TimeSteps-1, len(trace))
	}
	return nil
}
