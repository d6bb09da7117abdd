package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/sim"
)

type PlotOptions struct {
	Width  int
	Height int
}

func DefaultPlotOptions() PlotOptions {
	return PlotOptions{Width: 80, Height: 12}
}

// ChannelName is the display name of a state channel.
func ChannelName(ch int) string {
	if ch == dynamo.T {
		return "T [K]"
	}
	return "Ca [mol/L]"
}

// PlotEnsemble charts the ensemble mean of a channel with a one standard
// deviation band.
func PlotEnsemble(sum metrics.Summary, ch int, opts PlotOptions) string {
	stats := sum.Channel(ch)
	if len(stats.Mean) < 2 {
		return ""
	}

	upper := make([]float64, len(stats.Mean))
	lower := make([]float64, len(stats.Mean))
	for i := range stats.Mean {
		upper[i] = stats.Mean[i] + stats.Std[i]
		lower[i] = stats.Mean[i] - stats.Std[i]
	}

	caption := fmt.Sprintf("%s mean ±1σ over %d repetitions", ChannelName(ch), sum.Repetitions)
	return asciigraph.PlotMany([][]float64{lower, stats.Mean, upper},
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.SeriesColors(asciigraph.DarkGray, asciigraph.Cyan, asciigraph.DarkGray),
		asciigraph.Caption(caption),
	)
}

// PlotTrajectory charts one repetition of an ensemble.
func PlotTrajectory(ens *sim.Ensemble, rep, ch int, opts PlotOptions) string {
	src := ens.Ca
	if ch == dynamo.T {
		src = ens.T
	}
	if rep < 0 || rep >= len(src) || len(src[rep]) < 2 {
		return ""
	}
	return asciigraph.Plot(src[rep],
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Caption(fmt.Sprintf("%s repetition %d", ChannelName(ch), rep)),
	)
}

// PlotEpisode charts Ca, T and the applied coolant temperature of a
// closed-loop run, one chart per signal.
func PlotEpisode(ep *sim.Episode, opts PlotOptions) string {
	if len(ep.States) < 2 {
		return ""
	}

	ca := make([]float64, len(ep.States))
	temp := make([]float64, len(ep.States))
	for i, x := range ep.States {
		ca[i] = x[dynamo.Ca]
		temp[i] = x[dynamo.T]
	}

	charts := []string{
		asciigraph.Plot(ca, asciigraph.Height(opts.Height), asciigraph.Width(opts.Width),
			asciigraph.Caption(ChannelName(dynamo.Ca))),
		asciigraph.Plot(temp, asciigraph.Height(opts.Height), asciigraph.Width(opts.Width),
			asciigraph.Caption(ChannelName(dynamo.T))),
		asciigraph.Plot(ep.Tc, asciigraph.Height(opts.Height/2+1), asciigraph.Width(opts.Width),
			asciigraph.SeriesColors(asciigraph.Goldenrod),
			asciigraph.Caption("Tc [K]")),
	}
	return strings.Join(charts, "\n\n")
}
