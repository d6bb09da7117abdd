package dynamo

import (
	"fmt"
	"math"
)

// Channel indices of a reactor state.
const (
	Ca = 0
	T  = 1
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) String() string {
	if len(s) == 2 {
		return fmt.Sprintf("(Ca=%.6f, T=%.4f)", s[Ca], s[T])
	}
	return fmt.Sprintf("%v", []float64(s))
}

// Control carries the applied input of one step. In closed loop the
// trailing entries record the applied and requested deltas.
type Control []float64

// Control vector layout.
const (
	InputTc    = 0
	InputDelta = 1
	InputRaw   = 2
)

// System is a process model: dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Integrator advances x from t0 to t1 with u held constant over the interval.
type Integrator interface {
	Advance(sys System, x State, u Control, t0, t1 float64) (State, error)
}

// Controller returns the raw, unclipped control delta that should move
// measured toward ideal. Implementations may keep state across calls.
type Controller interface {
	Compute(ideal, measured State) float64
}

// RandSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
