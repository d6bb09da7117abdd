package control

import "github.com/san-kum/cstrsim/internal/dynamo"

// Gain is proportional state feedback around the target:
// delta = -K . (measured - ideal).
type Gain struct {
	K [2]float64
}

func NewGain(kCa, kT float64) *Gain {
	return &Gain{K: [2]float64{kCa, kT}}
}

func (g *Gain) Compute(ideal, measured dynamo.State) float64 {
	u := 0.0
	for j := range g.K {
		u -= g.K[j] * (measured[j] - ideal[j])
	}
	return u
}
