package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/noise"
	"github.com/san-kum/cstrsim/internal/sim"
)

// BuildTrace returns the n coolant temperatures held over the unit steps
// of an open-loop batch. seed only affects random_walk traces.
func BuildTrace(tc config.TraceConfig, n int, seed int64) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("trace length must not be negative, got %d", n)
	}

	switch tc.Kind {
	case config.TraceConstant, "":
		return constant(n, tc.Value), nil
	case config.TraceStep:
		trace := constant(n, tc.Value)
		for i := max(tc.StepAt, 0); i < n; i++ {
			trace[i] = tc.StepTo
		}
		return trace, nil
	case config.TraceRandomWalk:
		return randomWalk(tc, n, noise.NewSource(seed)), nil
	case config.TraceFile:
		return readTrace(tc.Path, n)
	default:
		return nil, fmt.Errorf("unknown trace kind: %q", tc.Kind)
	}
}

func constant(n int, v float64) []float64 {
	trace := make([]float64, n)
	for i := range trace {
		trace[i] = v
	}
	return trace
}

// randomWalk moves by up to Span per step, held inside [Lower, Upper]
// when that range is non-empty.
func randomWalk(tc config.TraceConfig, n int, rng dynamo.RandSource) []float64 {
	bounded := tc.Lower < tc.Upper
	trace := make([]float64, n)
	v := tc.Value
	for i := range trace {
		trace[i] = v
		v += tc.Span * (2*rng.Float64() - 1)
		if bounded {
			v = sim.Clip(v, tc.Lower, tc.Upper)
		}
	}
	return trace
}

// readTrace takes the first column of a CSV file. A non-numeric first row
// is treated as a header.
func readTrace(path string, n int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	trace := make([]float64, 0, n)
	for row := 0; len(trace) < n; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace file %s: %w", path, err)
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("trace file %s line %d: %w", path, row+1, err)
		}
		trace = append(trace, v)
	}

	if len(trace) < n {
		return nil, fmt.Errorf("%w: %s has %d values, need %d", dynamo.ErrTraceTooShort, path, len(trace), n)
	}
	return trace, nil
}
