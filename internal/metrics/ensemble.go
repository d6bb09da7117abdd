package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/sim"
)

// ChannelStats holds per-step statistics across repetitions.
type ChannelStats struct {
	Mean []float64
	Std  []float64
	Min  []float64
	Max  []float64
}

type Summary struct {
	Repetitions int
	Steps       int
	Ca          ChannelStats
	T           ChannelStats
}

// Summarize computes per-step ensemble statistics. Repetitions listed in
// ens.Failed are left out.
func Summarize(ens *sim.Ensemble) Summary {
	failed := make(map[int]bool, len(ens.Failed))
	for _, r := range ens.Failed {
		failed[r] = true
	}

	keep := make([]int, 0, ens.Len())
	for r := 0; r < ens.Len(); r++ {
		if !failed[r] {
			keep = append(keep, r)
		}
	}

	steps := ens.Steps()
	sum := Summary{
		Repetitions: len(keep),
		Steps:       steps,
		Ca:          newChannelStats(steps),
		T:           newChannelStats(steps),
	}
	if len(keep) == 0 {
		return sum
	}

	col := make([]float64, len(keep))
	for i := 0; i < steps; i++ {
		for j, r := range keep {
			col[j] = ens.Ca[r][i]
		}
		sum.Ca.fill(i, col)

		for j, r := range keep {
			col[j] = ens.T[r][i]
		}
		sum.T.fill(i, col)
	}
	return sum
}

func newChannelStats(steps int) ChannelStats {
	return ChannelStats{
		Mean: make([]float64, steps),
		Std:  make([]float64, steps),
		Min:  make([]float64, steps),
		Max:  make([]float64, steps),
	}
}

func (c *ChannelStats) fill(step int, col []float64) {
	if len(col) > 1 {
		c.Mean[step], c.Std[step] = stat.MeanStdDev(col, nil)
	} else {
		c.Mean[step] = col[0]
	}
	c.Min[step] = floats.Min(col)
	c.Max[step] = floats.Max(col)
}

// Channel returns the statistics for dynamo.Ca or dynamo.T.
func (s Summary) Channel(ch int) ChannelStats {
	if ch == dynamo.T {
		return s.T
	}
	return s.Ca
}
