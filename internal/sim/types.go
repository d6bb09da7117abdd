package sim

import (
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/physics"
)

const (
	DefaultTimeSteps   = 201
	DefaultRepetitions = 1000
	DefaultNoise       = 0.1

	DefaultIdealCa = 0.8
	DefaultIdealT  = 330.0
	DefaultUpperTc = 305.0
	DefaultLowerTc = 295.0
)

// BatchOptions configures an open-loop ensemble run.
type BatchOptions struct {
	TimeSteps   int
	Repetitions int
	Noise       float64
	Init        dynamo.State
	Seed        int64
	// Workers bounds the goroutines used across repetitions; <= 0 means NumCPU.
	Workers int
	// IsolateFailures keeps the batch going when one repetition fails. The
	// failed repetition is listed in Ensemble.Failed and padded with NaN.
	IsolateFailures bool
}

func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		TimeSteps:   DefaultTimeSteps,
		Repetitions: DefaultRepetitions,
		Noise:       DefaultNoise,
		Init:        dynamo.State{physics.SteadyCa, physics.SteadyT},
	}
}

// Ensemble holds one trajectory per repetition as two parallel channels
// indexed [repetition][step].
type Ensemble struct {
	Ca     [][]float64
	T      [][]float64
	Failed []int
}

func newEnsemble(reps, steps int) *Ensemble {
	e := &Ensemble{
		Ca: make([][]float64, reps),
		T:  make([][]float64, reps),
	}
	for r := 0; r < reps; r++ {
		e.Ca[r] = make([]float64, steps)
		e.T[r] = make([]float64, steps)
	}
	return e
}

func (e *Ensemble) Len() int { return len(e.Ca) }

func (e *Ensemble) Steps() int {
	if len(e.Ca) == 0 {
		return 0
	}
	return len(e.Ca[0])
}

func (e *Ensemble) Trajectory(rep int) []dynamo.State {
	out := make([]dynamo.State, len(e.Ca[rep]))
	for i := range out {
		out[i] = dynamo.State{e.Ca[rep][i], e.T[rep][i]}
	}
	return out
}

// Column returns the values of a channel at one step across repetitions.
func (e *Ensemble) Column(channel, step int) []float64 {
	src := e.Ca
	if channel == dynamo.T {
		src = e.T
	}
	col := make([]float64, len(src))
	for r := range src {
		col[r] = src[r][step]
	}
	return col
}

func (e *Ensemble) padFailed(rep, from int) {
	for i := from; i < len(e.Ca[rep]); i++ {
		e.Ca[rep][i] = math.NaN()
		e.T[rep][i] = math.NaN()
	}
}

// StepInput is the loop state handed to one closed-loop step. UpperTc and
// LowerTc are absolute bounds on the new coolant temperature.
type StepInput struct {
	Current dynamo.State
	Tc      float64
	Ideal   dynamo.State
	UpperTc float64
	LowerTc float64
	Noise   float64
}

func DefaultStepInput() StepInput {
	return StepInput{
		Current: dynamo.State{physics.SteadyCa, physics.SteadyT},
		Tc:      physics.SteadyTc,
		Ideal:   dynamo.State{DefaultIdealCa, DefaultIdealT},
		UpperTc: DefaultUpperTc,
		LowerTc: DefaultLowerTc,
		Noise:   DefaultNoise,
	}
}

// StepOutput reports the measured state after the step, the applied
// coolant temperature, and the applied (clipped) and requested deltas.
type StepOutput struct {
	State    dynamo.State
	Tc       float64
	Delta    float64
	RawDelta float64
}

// Saturated reports whether the actuator limits cut the requested delta.
func (o StepOutput) Saturated() bool {
	return o.Delta != o.RawDelta
}

// Episode records a closed-loop run. States and Tc include the starting
// point; Deltas and RawDeltas have one entry per step.
type Episode struct {
	States    []dynamo.State
	Tc        []float64
	Deltas    []float64
	RawDeltas []float64
	Metrics   map[string]float64
}

func (e *Episode) Len() int { return len(e.Deltas) }
