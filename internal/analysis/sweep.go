package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/physics"
)

// Plant is a process model whose parameters can be changed by name.
type Plant interface {
	dynamo.System
	dynamo.Configurable
}

// ParamTc sweeps the coolant temperature instead of a plant parameter.
const ParamTc = "Tc"

// SweepPoint holds the settled behaviour for one parameter value.
type SweepPoint struct {
	Param float64
	// Final is the state after the recording window.
	Final dynamo.State
	// Values are the distinct recorded values of the swept channel. One
	// value means a steady state; several mean the plant kept moving.
	Values []float64
	// Eigs linearize the plant at Final.
	Eigs   []complex128
	Stable bool
}

// Sweep walks a parameter over [Min, Max] and integrates each point with
// the coolant temperature held. Transient unit steps are discarded before
// Record steps are sampled.
type Sweep struct {
	Param     string
	Min, Max  float64
	Points    int
	Tc        float64
	Init      dynamo.State
	Transient int
	Record    int
	Channel   int
	// Continuation starts every point from the previous point's final
	// state and runs sequentially. Sweeping up and then down this way
	// exposes ignition and extinction hysteresis.
	Continuation bool
	Workers      int
}

func DefaultSweep() Sweep {
	return Sweep{
		Param:     ParamTc,
		Min:       290,
		Max:       310,
		Points:    41,
		Tc:        physics.SteadyTc,
		Init:      dynamo.State{physics.SteadyCa, physics.SteadyT},
		Transient: 200,
		Record:    50,
		Channel:   dynamo.T,
	}
}

// Reverse returns the same sweep walked from Max to Min.
func (s Sweep) Reverse() Sweep {
	s.Min, s.Max = s.Max, s.Min
	return s
}

// Values lists the swept parameter values in order.
func (s Sweep) Values() []float64 {
	if s.Points <= 1 {
		return []float64{s.Min}
	}
	return floats.Span(make([]float64, s.Points), s.Min, s.Max)
}

func (s Sweep) validate() error {
	var errs []error
	if s.Points < 1 {
		errs = append(errs, fmt.Errorf("points must be positive, got %d", s.Points))
	}
	if s.Transient < 0 || s.Record < 1 {
		errs = append(errs, fmt.Errorf("need transient >= 0 and record >= 1, got %d and %d", s.Transient, s.Record))
	}
	if s.Channel != dynamo.Ca && s.Channel != dynamo.T {
		errs = append(errs, fmt.Errorf("unknown channel %d", s.Channel))
	}
	if len(s.Init) != 2 {
		errs = append(errs, fmt.Errorf("%w: init has %d entries", dynamo.ErrDimensionMismatch, len(s.Init)))
	}
	return errors.Join(errs...)
}

// Run evaluates every point. newSystem must return a fresh plant per call
// so plant-parameter sweeps can run in parallel.
func (s Sweep) Run(ctx context.Context, newSystem func() Plant, integ dynamo.Integrator) ([]SweepPoint, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.Param != ParamTc {
		if _, ok := newSystem().GetParams()[s.Param]; !ok {
			return nil, fmt.Errorf("unknown param: %s", s.Param)
		}
	}

	params := s.Values()
	points := make([]SweepPoint, len(params))

	if s.Continuation {
		sys := newSystem()
		x := s.Init.Clone()
		for i, p := range params {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pt, err := s.point(sys, integ, p, x)
			if err != nil {
				return nil, err
			}
			points[i] = pt
			x = pt.Final
		}
		return points, nil
	}

	errs := make([]error, len(params))
	dynamo.ParallelFor(len(params), s.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			points[i], errs[i] = s.point(newSystem(), integ, params[i], s.Init.Clone())
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return points, nil
}

func (s Sweep) point(sys Plant, integ dynamo.Integrator, p float64, x dynamo.State) (SweepPoint, error) {
	tc := s.Tc
	if s.Param == ParamTc {
		tc = p
	} else if err := sys.SetParam(s.Param, p); err != nil {
		return SweepPoint{}, err
	}
	u := dynamo.Control{tc}

	var err error
	t := 0.0
	for i := 0; i < s.Transient; i++ {
		if x, err = integ.Advance(sys, x, u, t, t+1); err != nil {
			return SweepPoint{}, fmt.Errorf("%s=%g: %w", s.Param, p, err)
		}
		t++
	}

	values := make([]float64, 0, 4)
	seen := make(map[int64]bool)
	for i := 0; i < s.Record; i++ {
		if x, err = integ.Advance(sys, x, u, t, t+1); err != nil {
			return SweepPoint{}, fmt.Errorf("%s=%g: %w", s.Param, p, err)
		}
		t++

		// quantize to 1e-3 to collapse a settled channel to one value
		val := x[s.Channel]
		key := int64(math.Round(val * 1000))
		if !seen[key] {
			seen[key] = true
			values = append(values, val)
		}
	}

	pt := SweepPoint{Param: p, Final: x, Values: values}
	if pt.Eigs, err = Eigenvalues(sys, x, u); err == nil {
		pt.Stable = Stable(pt.Eigs)
	}
	return pt, nil
}

// SweepToASCII draws the recorded values, one column per point.
func SweepToASCII(data []SweepPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, p := range data {
		for _, v := range p.Values {
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if math.IsInf(minVal, 1) {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range data {
		col := i * width / len(data)
		if col >= width {
			col = width - 1
		}
		for _, v := range p.Values {
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height {
				canvas[row][col] = '•'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteByte('\n')
	}
	return sb.String()
}
