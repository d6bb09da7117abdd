package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/export"
	"github.com/san-kum/cstrsim/internal/metrics"
	"github.com/san-kum/cstrsim/internal/storage"
	"github.com/san-kum/cstrsim/internal/viz"
)

func (c *cli) openStore() (*storage.Store, error) {
	st := storage.New(c.dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *cli) runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := c.resolveConfig(cmd, "simulate")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, nil).WithLogger(c.log)
	exp.Preset = c.preset
	res, err := exp.RunBatch(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, res.Summary)
	if len(res.Ensemble.Failed) > 0 {
		fmt.Fprintf(out, "failed repetitions: %v\n", res.Ensemble.Failed)
	}
	if c.plot {
		opts := viz.DefaultPlotOptions()
		fmt.Fprintln(out)
		fmt.Fprintln(out, viz.PlotEnsemble(res.Summary, dynamo.Ca, opts))
		fmt.Fprintln(out)
		fmt.Fprintln(out, viz.PlotEnsemble(res.Summary, dynamo.T, opts))
	}

	if c.noSave {
		return nil
	}
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := st.SaveEnsemble(exp.BatchMetadata(res), res.Ensemble)
	if err != nil {
		return err
	}
	c.log.Info().Str("run_id", runID).Msg("run saved")
	fmt.Fprintf(out, "\nrun: %s\n", runID)
	return nil
}

func printSummary(w io.Writer, sum metrics.Summary) {
	last := sum.Steps - 1
	fmt.Fprintf(w, "repetitions: %d  steps: %d\n", sum.Repetitions, sum.Steps)
	if last < 0 || sum.Repetitions == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tMEAN\tSTD\tMIN\tMAX")
	for _, ch := range []int{dynamo.Ca, dynamo.T} {
		s := sum.Channel(ch)
		fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%.6f\t%.6f\n",
			viz.ChannelName(ch), s.Mean[last], s.Std[last], s.Min[last], s.Max[last])
	}
	tw.Flush()
}

func (c *cli) runControl(cmd *cobra.Command, args []string) error {
	cfg, err := c.resolveConfig(cmd, "control")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, nil).WithLogger(c.log)
	exp.Preset = c.preset
	ep, err := exp.RunEpisode(ctx, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	final := ep.States[len(ep.States)-1]
	fmt.Fprintf(out, "steps: %d  final: %s  Tc: %.3f\n", ep.Len(), final, ep.Tc[len(ep.Tc)-1])
	printValues(out, "METRIC", ep.Metrics)
	if c.plot {
		fmt.Fprintln(out)
		fmt.Fprintln(out, viz.PlotEpisode(ep, viz.DefaultPlotOptions()))
	}

	if c.noSave {
		return nil
	}
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := st.SaveEpisode(exp.EpisodeMetadata(), ep)
	if err != nil {
		return err
	}
	c.log.Info().Str("run_id", runID).Msg("run saved")
	fmt.Fprintf(out, "\nrun: %s\n", runID)
	return nil
}

func printValues(w io.Writer, heading string, m map[string]float64) {
	if len(m) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tVALUE\n", heading)
	for _, name := range sortedNames(m) {
		fmt.Fprintf(tw, "%s\t%.6g\n", name, m[name])
	}
	tw.Flush()
}

func (c *cli) runLive(cmd *cobra.Command, args []string) error {
	cfg, err := c.resolveConfig(cmd, "control")
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, nil)
	s, err := exp.Simulator()
	if err != nil {
		return err
	}
	ctrl, err := exp.Controller()
	if err != nil {
		return err
	}

	model := viz.NewModel(s, ctrl, exp.StepInput(), cfg.Control.Steps, cfg.Control.Seed)
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(viz.Model); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}

func (c *cli) listRuns(cmd *cobra.Command, args []string) error {
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tREPS\tSTEPS\tNOISE\tINTEG\tCTRL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.3f\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Repetitions,
			run.Steps,
			run.Noise,
			run.Integrator,
			run.Controller,
		)
	}
	return w.Flush()
}

func (c *cli) plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(c.dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var channels []int
	switch strings.ToLower(c.channel) {
	case "ca":
		channels = []int{dynamo.Ca}
	case "t":
		channels = []int{dynamo.T}
	case "both", "":
		channels = []int{dynamo.Ca, dynamo.T}
	default:
		return fmt.Errorf("unknown channel: %s", c.channel)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "kind: %s\n\n", meta.Kind)

	var charts []export.Chart
	opts := viz.DefaultPlotOptions()
	switch meta.Kind {
	case storage.KindSimulate:
		ens, err := st.LoadEnsemble(runID)
		if err != nil {
			return err
		}
		if c.rep >= ens.Len() {
			return fmt.Errorf("run has %d repetitions", ens.Len())
		}
		sum := metrics.Summarize(ens)
		for _, ch := range channels {
			if c.rep >= 0 {
				charts = append(charts, export.TrajectoryChart(ens, c.rep, ch))
				fmt.Fprintln(out, viz.PlotTrajectory(ens, c.rep, ch, opts))
			} else {
				charts = append(charts, export.EnsembleChart(sum, ch))
				fmt.Fprintln(out, viz.PlotEnsemble(sum, ch, opts))
			}
			fmt.Fprintln(out)
		}
	case storage.KindControl:
		ep, err := st.LoadEpisode(runID)
		if err != nil {
			return err
		}
		charts = export.EpisodeCharts(ep)
		fmt.Fprintln(out, viz.PlotEpisode(ep, opts))
	default:
		return fmt.Errorf("run %s has unknown kind %q", runID, meta.Kind)
	}

	if c.svg == "" {
		return nil
	}
	f, err := os.Create(c.svg)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := export.WriteSVG(f, charts, 800, 240); err != nil {
		return err
	}
	fmt.Fprintf(out, "svg: %s\n", c.svg)
	return nil
}

func (c *cli) exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(c.dataDir)

	w := cmd.OutOrStdout()
	if c.out != "" {
		f, err := os.Create(c.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return st.ExportJSON(w, args[0])
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
