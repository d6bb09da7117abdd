// Package noise injects bounded uniform measurement noise into reactor states.
package noise

import (
	"math/rand"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// Per-channel noise magnitudes relative to the overall level.
const (
	CaMultiplier = 0.1
	TMultiplier  = 5.0
)

// Injector perturbs clean values with Level * U(-1, 1) * multiplier.
// An Injector is not safe for concurrent use; give each worker its own.
type Injector struct {
	Level float64
	Rand  dynamo.RandSource
}

func New(level float64, src dynamo.RandSource) *Injector {
	return &Injector{Level: level, Rand: src}
}

// Uniform draws from U(-1, 1).
func (n *Injector) Uniform() float64 {
	return 2*n.Rand.Float64() - 1
}

func (n *Injector) Perturb(clean, multiplier float64) float64 {
	if n.Level == 0 {
		return clean
	}
	return clean + n.Level*n.Uniform()*multiplier
}

// Apply returns a new state with independent draws on Ca then T.
func (n *Injector) Apply(x dynamo.State) dynamo.State {
	out := x.Clone()
	out[dynamo.Ca] = n.Perturb(x[dynamo.Ca], CaMultiplier)
	out[dynamo.T] = n.Perturb(x[dynamo.T], TMultiplier)
	return out
}

// Bound is the largest deviation Apply can introduce on a channel.
func Bound(level, multiplier float64) float64 {
	if level < 0 {
		level = -level
	}
	return level * multiplier
}

// Variance of the injected noise on a channel: (level*multiplier)^2 / 3.
func Variance(level, multiplier float64) float64 {
	b := Bound(level, multiplier)
	return b * b / 3
}

func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// SeedFor derives a well-separated seed for repetition rep so adjacent
// repetitions never start from correlated generator states.
func SeedFor(base int64, rep int) int64 {
	z := uint64(base) + uint64(rep+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
