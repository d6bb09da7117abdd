package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/experiment"
)

var (
	ErrNoCandidates  = errors.New("no candidate completed")
	ErrUnknownMetric = errors.New("unknown metric")
)

// BuildFunc turns one grid point into an experiment.
type BuildFunc func(params map[string]float64) (*experiment.Experiment, error)

// GridSearch scores every combination of parameter values with a
// closed-loop episode and keeps the lowest metric value.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	log        zerolog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, log: zerolog.Nop()}
}

func (g *GridSearch) WithLogger(l zerolog.Logger) *GridSearch {
	g.log = l
	return g
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

type searchState struct {
	build      BuildFunc
	metricName string
	best       float64
	bestParams map[string]float64
	evaluated  int
}

// Search runs every grid point. Points whose episode fails or whose metric
// is not finite are skipped; an unstable gain set usually ends that way.
func (g *GridSearch) Search(ctx context.Context, build BuildFunc, metricName string) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid has %d names and %d ranges", len(g.paramNames), len(g.ranges))
	}

	st := &searchState{build: build, metricName: metricName, best: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), st); err != nil {
		return nil, 0, err
	}
	if st.bestParams == nil {
		return nil, 0, ErrNoCandidates
	}

	g.log.Info().
		Int("evaluated", st.evaluated).
		Str("metric", metricName).
		Float64("best", st.best).
		Msg("grid search complete")
	return st.bestParams, st.best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, st *searchState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		exp, err := st.build(current)
		if err != nil {
			return err
		}

		ep, err := exp.RunEpisode(ctx, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			g.log.Debug().Err(err).Interface("params", current).Msg("candidate failed")
			return nil
		}
		st.evaluated++

		val, ok := ep.Metrics[st.metricName]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownMetric, st.metricName)
		}
		if !math.IsNaN(val) && !math.IsInf(val, 0) && val < st.best {
			st.best = val
			st.bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				st.bestParams[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, st); err != nil {
			return err
		}
	}
	return nil
}

// GainBuilder returns a BuildFunc that copies base and overrides the PID
// gains named by their config keys (kp_t, ki_ca, ...).
func GainBuilder(base *config.Config, reg *experiment.Registry) BuildFunc {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := *base
		for name, v := range params {
			if err := SetGain(&cfg.Control.Gains, name, v); err != nil {
				return nil, err
			}
		}
		return experiment.New(&cfg, reg), nil
	}
}

func SetGain(g *config.GainsConfig, name string, v float64) error {
	switch name {
	case "kp_ca":
		g.KpCa = v
	case "ki_ca":
		g.KiCa = v
	case "kd_ca":
		g.KdCa = v
	case "kp_t":
		g.KpT = v
	case "ki_t":
		g.KiT = v
	case "kd_t":
		g.KdT = v
	default:
		return fmt.Errorf("unknown gain: %s", name)
	}
	return nil
}

// Linspace returns n evenly spaced values over [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
