package integrators

import "github.com/san-kum/cstrsim/internal/dynamo"

const DefaultSubsteps = 100

// RK4 is the classical fixed-step Runge-Kutta method. Advance covers an
// interval with Substeps equal steps.
type RK4 struct {
	Substeps int
}

func NewRK4() *RK4 {
	return &RK4{Substeps: DefaultSubsteps}
}

func (r *RK4) Advance(dyn dynamo.System, x dynamo.State, u dynamo.Control, t0, t1 float64) (dynamo.State, error) {
	n := r.Substeps
	if n < 1 {
		n = 1
	}
	if t1 <= t0 {
		return x.Clone(), nil
	}

	dt := (t1 - t0) / float64(n)
	cur := x
	for i := 0; i < n; i++ {
		cur = r.Step(dyn, cur, u, t0+float64(i)*dt, dt)
	}
	return cur, nil
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	scratch := make(dynamo.State, n)

	k1 := dyn.Derive(x, u, t)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k1[i]
	}
	k2 := dyn.Derive(scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*0.5*k2[i]
	}
	k3 := dyn.Derive(scratch, u, t+dt*0.5)

	for i := 0; i < n; i++ {
		scratch[i] = x[i] + dt*k3[i]
	}
	k4 := dyn.Derive(scratch, u, t+dt)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}

	return result
}
