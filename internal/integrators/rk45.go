package integrators

import (
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Default tolerances match LSODA's defaults.
const (
	DefaultRelTol   = 1.49012e-8
	DefaultAbsTol   = 1.49012e-8
	DefaultMinStep  = 1e-12
	DefaultMaxSteps = 100000
)

// RK45 is an adaptive Dormand-Prince 5(4) solver. It holds only
// configuration, so one instance may be shared by concurrent callers.
type RK45 struct {
	RelTol   float64
	AbsTol   float64
	MinStep  float64
	MaxSteps int

	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		RelTol:   DefaultRelTol,
		AbsTol:   DefaultAbsTol,
		MinStep:  DefaultMinStep,
		MaxSteps: DefaultMaxSteps,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Advance integrates from t0 to t1 with u held, choosing its own internal
// steps. The end point is hit exactly. Non-finite states are not rejected:
// a NaN error estimate is accepted so the value reaches the caller.
func (r *RK45) Advance(dyn dynamo.System, x dynamo.State, u dynamo.Control, t0, t1 float64) (dynamo.State, error) {
	cur := x.Clone()
	if t1 <= t0 {
		return cur, nil
	}

	t := t0
	dt := t1 - t0
	for n := 0; t < t1; n++ {
		if n >= r.MaxSteps {
			return cur, dynamo.ErrMaxSteps
		}

		h, last := dt, false
		if t+h >= t1 {
			h, last = t1-t, true
		}

		next, errRatio, dtNew := r.StepAdaptive(dyn, cur, u, t, h)
		if errRatio <= 1 || math.IsNaN(errRatio) {
			cur = next
			if last {
				t = t1
			} else {
				t += h
			}
		}

		dt = dtNew
		if t < t1 && dt < r.MinStep {
			return cur, dynamo.ErrStepTooSmall
		}
	}

	return cur, nil
}

// Step takes a single unchecked Dormand-Prince step of size dt.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	newX, _, _ := r.StepAdaptive(dyn, x, u, t, dt)
	return newX
}

// StepAdaptive takes one trial step and returns the candidate state, the
// scaled error ratio (<= 1 means acceptable) and the suggested next dt.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, float64, float64) {
	n := len(x)

	k1 := dyn.Derive(x, u, t)

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2 := dyn.Derive(x2, u, t+a2*dt)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := dyn.Derive(x3, u, t+a3*dt)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := dyn.Derive(x4, u, t+a4*dt)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := dyn.Derive(x5, u, t+a5*dt)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := dyn.Derive(x6, u, t+dt)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7 := dyn.Derive(xNew, u, t+dt)

	// RMS of the embedded error, scaled per component.
	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := r.AbsTol + r.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		e := errEst / scale
		sum += e * e
	}
	errRatio := math.Sqrt(sum / float64(n))

	var factor float64
	switch {
	case math.IsNaN(errRatio) || errRatio == 0:
		factor = r.maxScale
	case errRatio > 1:
		factor = math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	default:
		factor = math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	}

	return xNew, errRatio, dt * factor
}
