package export

import (
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/sim"
	"github.com/san-kum/cstrsim/internal/viz"
)

const (
	background = "#0a0a0a"
	axisColor  = "#444444"
	textColor  = "#bbbbbb"
	padding    = 40.0
)

// Series is one polyline. X may be nil, in which case the sample index is
// used. Non-finite points break the line.
type Series struct {
	Name   string
	X      []float64
	Y      []float64
	Stroke string
	Dashed bool
}

// Chart is one panel with its own axes.
type Chart struct {
	Title  string
	Series []Series
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (s Series) at(i int) (float64, float64) {
	if s.X != nil {
		return s.X[i], s.Y[i]
	}
	return float64(i), s.Y[i]
}

func (s Series) n() int {
	if s.X != nil {
		return min(len(s.X), len(s.Y))
	}
	return len(s.Y)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (c Chart) bounds() (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	found := false
	for _, s := range c.Series {
		for i := 0; i < s.n(); i++ {
			x, y := s.at(i)
			if !finite(x) || !finite(y) {
				continue
			}
			found = true
			b.minX, b.maxX = math.Min(b.minX, x), math.Max(b.maxX, x)
			b.minY, b.maxY = math.Min(b.minY, y), math.Max(b.maxY, y)
		}
	}
	if b.maxX == b.minX {
		b.maxX = b.minX + 1
	}
	if b.maxY == b.minY {
		b.maxY = b.minY + 1
	}
	// 10% headroom on y only; x spans the data
	pad := (b.maxY - b.minY) * 0.1
	b.minY -= pad
	b.maxY += pad
	return b, found
}

// WriteSVG renders charts stacked vertically, each panelHeight tall.
func WriteSVG(w io.Writer, charts []Chart, width, panelHeight int) error {
	var sb strings.Builder
	total := panelHeight * len(charts)

	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, total, width, total, background)

	for i, c := range charts {
		writePanel(&sb, c, 0, float64(i*panelHeight), float64(width), float64(panelHeight))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func writePanel(sb *strings.Builder, c Chart, x0, y0, width, height float64) {
	left, right := x0+padding, x0+width-padding/2
	top, bottom := y0+padding/2, y0+height-padding/2

	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" fill="%s" font-family="monospace" font-size="12">%s</text>
`, left, y0+14, textColor, html.EscapeString(c.Title))
	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s"/>
`, left, top, right-left, bottom-top, axisColor)

	b, ok := c.bounds()
	if !ok {
		return
	}
	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" fill="%s" font-family="monospace" font-size="10" text-anchor="end">%.4g</text>
`, left-4, top+10, textColor, b.maxY)
	fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" fill="%s" font-family="monospace" font-size="10" text-anchor="end">%.4g</text>
`, left-4, bottom, textColor, b.minY)

	sx := (right - left) / (b.maxX - b.minX)
	sy := (bottom - top) / (b.maxY - b.minY)

	for _, s := range c.Series {
		stroke := s.Stroke
		if stroke == "" {
			stroke = "#00ff00"
		}
		dash := ""
		if s.Dashed {
			dash = ` stroke-dasharray="4 3"`
		}

		var d strings.Builder
		pen := false
		for i := 0; i < s.n(); i++ {
			x, y := s.at(i)
			if !finite(x) || !finite(y) {
				pen = false
				continue
			}
			px := left + (x-b.minX)*sx
			py := bottom - (y-b.minY)*sy
			if pen {
				fmt.Fprintf(&d, " L%.1f,%.1f", px, py)
			} else {
				fmt.Fprintf(&d, " M%.1f,%.1f", px, py)
				pen = true
			}
		}
		if d.Len() == 0 {
			continue
		}
		fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5"%s d="%s"><title>%s</title></path>
`, stroke, dash, strings.TrimSpace(d.String()), html.EscapeString(s.Name))
	}
}

// EnsembleChart plots the mean of a channel with a one standard deviation
// band.
func EnsembleChart(sum metrics.Summary, ch int) Chart {
	stats := sum.Channel(ch)
	upper := make([]float64, len(stats.Mean))
	lower := make([]float64, len(stats.Mean))
	for i := range stats.Mean {
		upper[i] = stats.Mean[i] + stats.Std[i]
		lower[i] = stats.Mean[i] - stats.Std[i]
	}
	return Chart{
		Title: fmt.Sprintf("%s mean ±1σ over %d repetitions", viz.ChannelName(ch), sum.Repetitions),
		Series: []Series{
			{Name: "mean-σ", Y: lower, Stroke: "#666666", Dashed: true},
			{Name: "mean", Y: stats.Mean, Stroke: "#00d7ff"},
			{Name: "mean+σ", Y: upper, Stroke: "#666666", Dashed: true},
		},
	}
}

// TrajectoryChart plots one repetition.
func TrajectoryChart(ens *sim.Ensemble, rep, ch int) Chart {
	src := ens.Ca
	if ch == dynamo.T {
		src = ens.T
	}
	return Chart{
		Title:  fmt.Sprintf("%s repetition %d", viz.ChannelName(ch), rep),
		Series: []Series{{Name: "trajectory", Y: src[rep], Stroke: "#00ff00"}},
	}
}

// EpisodeCharts plots Ca, T and Tc of a closed-loop run and its phase
// portrait.
func EpisodeCharts(ep *sim.Episode) []Chart {
	ca := make([]float64, len(ep.States))
	temp := make([]float64, len(ep.States))
	for i, x := range ep.States {
		ca[i] = x[dynamo.Ca]
		temp[i] = x[dynamo.T]
	}
	return []Chart{
		{Title: viz.ChannelName(dynamo.Ca), Series: []Series{{Name: "Ca", Y: ca, Stroke: "#00d7ff"}}},
		{Title: viz.ChannelName(dynamo.T), Series: []Series{{Name: "T", Y: temp, Stroke: "#ff5f00"}}},
		{Title: "Tc [K]", Series: []Series{{Name: "Tc", Y: ep.Tc, Stroke: "#d7af00"}}},
		{Title: "phase: T vs Ca", Series: []Series{{Name: "phase", X: ca, Y: temp, Stroke: "#00ff00"}}},
	}
}
