package control

import (
	"fmt"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// PID is an incremental (velocity-form) PID acting on both reactor
// channels with a unit sample time. Each call returns the change to apply
// to the coolant temperature:
//
//	delta = sum_ch Kp (e_k - e_k-1) + Ki e_k + Kd (e_k - 2 e_k-1 + e_k-2)
//
// where e = ideal - measured per channel.
type PID struct {
	Kp [2]float64
	Ki [2]float64
	Kd [2]float64

	prevErr  [2]float64
	prevErr2 [2]float64
	first    bool
}

func NewPID(kp, ki, kd [2]float64) *PID {
	return &PID{
		Kp:    kp,
		Ki:    ki,
		Kd:    kd,
		first: true,
	}
}

// NewTemperaturePID only acts on the temperature channel.
func NewTemperaturePID(kp, ki, kd float64) *PID {
	return NewPID([2]float64{0, kp}, [2]float64{0, ki}, [2]float64{0, kd})
}

func (p *PID) Compute(ideal, measured dynamo.State) float64 {
	var e [2]float64
	for ch := range e {
		e[ch] = ideal[ch] - measured[ch]
	}

	if p.first {
		p.prevErr = e
		p.prevErr2 = e
		p.first = false
	}

	delta := 0.0
	for ch := range e {
		delta += p.Kp[ch]*(e[ch]-p.prevErr[ch]) +
			p.Ki[ch]*e[ch] +
			p.Kd[ch]*(e[ch]-2*p.prevErr[ch]+p.prevErr2[ch])
	}

	p.prevErr2 = p.prevErr
	p.prevErr = e

	return delta
}

// Reset clears the error history
func (p *PID) Reset() {
	p.prevErr = [2]float64{}
	p.prevErr2 = [2]float64{}
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp_ca": p.Kp[dynamo.Ca],
		"ki_ca": p.Ki[dynamo.Ca],
		"kd_ca": p.Kd[dynamo.Ca],
		"kp_t":  p.Kp[dynamo.T],
		"ki_t":  p.Ki[dynamo.T],
		"kd_t":  p.Kd[dynamo.T],
	}
}

// SetParam adjusts a PID gain
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "kp_ca":
		p.Kp[dynamo.Ca] = value
	case "ki_ca":
		p.Ki[dynamo.Ca] = value
	case "kd_ca":
		p.Kd[dynamo.Ca] = value
	case "kp_t":
		p.Kp[dynamo.T] = value
	case "ki_t":
		p.Ki[dynamo.T] = value
	case "kd_t":
		p.Kd[dynamo.T] = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
