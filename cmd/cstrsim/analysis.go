package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/cstrsim/internal/analysis"
	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/optim"
	"github.com/san-kum/cstrsim/internal/physics"
)

var defaultGrid = []string{"kp_t=0:1:5", "ki_t=0:0.1:3"}

// parseGrid reads name=lo:hi:n or name=v1,v2,...
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, vals, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("bad grid %q: want name=lo:hi:n or name=v1,v2", spec)
		}

		var r []float64
		if parts := strings.Split(vals, ":"); len(parts) == 3 {
			lo, err1 := strconv.ParseFloat(parts[0], 64)
			hi, err2 := strconv.ParseFloat(parts[1], 64)
			n, err3 := strconv.Atoi(parts[2])
			if err1 != nil || err2 != nil || err3 != nil || n < 1 {
				return nil, nil, fmt.Errorf("bad grid range %q", spec)
			}
			r = optim.Linspace(lo, hi, n)
		} else {
			for _, s := range strings.Split(vals, ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, nil, fmt.Errorf("bad grid value in %q: %w", spec, err)
				}
				r = append(r, v)
			}
		}
		names = append(names, name)
		ranges = append(ranges, r)
	}
	return names, ranges, nil
}

func (c *cli) runTune(cmd *cobra.Command, args []string) error {
	cfg, err := c.resolveConfig(cmd, "control")
	if err != nil {
		return err
	}
	specs := c.grid
	if len(specs) == 0 {
		specs = defaultGrid
	}
	names, ranges, err := parseGrid(specs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	g := optim.NewGridSearch(names, ranges).WithLogger(c.log)
	c.log.Info().Int("points", g.Size()).Str("metric", c.metric).Msg("tuning gains")

	best, score, err := g.Search(ctx, optim.GainBuilder(cfg, experiment.NewRegistry()), c.metric)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "grid points: %d  metric: %s  best: %.6g\n", g.Size(), c.metric, score)
	printValues(out, "GAIN", best)

	if c.saveConfig != "" {
		for name, v := range best {
			if err := optim.SetGain(&cfg.Control.Gains, name, v); err != nil {
				return err
			}
		}
		if err := config.Save(c.saveConfig, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nconfig: %s\n", c.saveConfig)
	}
	return nil
}

func (c *cli) runSweep(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if c.configFile != "" {
		loaded, err := config.Load(c.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator.Name = c.integrator
	}
	integ, err := experiment.NewRegistry().GetIntegrator(cfg.Integrator)
	if err != nil {
		return err
	}

	sw := analysis.DefaultSweep()
	sw.Param = c.sweepParam
	sw.Min, sw.Max, sw.Points = c.sweepMin, c.sweepMax, c.sweepPoints
	sw.Transient, sw.Record = c.transient, c.record
	sw.Tc = c.sweepTc
	sw.Workers = c.workers
	switch strings.ToLower(c.sweepCh) {
	case "t", "":
		sw.Channel = dynamo.T
	case "ca":
		sw.Channel = dynamo.Ca
	default:
		return fmt.Errorf("unknown channel: %s", c.sweepCh)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	newPlant := func() analysis.Plant { return physics.NewCSTR() }
	out := cmd.OutOrStdout()

	if !c.hysteresis {
		points, err := sw.Run(ctx, newPlant, integ)
		if err != nil {
			return err
		}
		printSweep(out, sw.Param, points)
		fmt.Fprintln(out)
		fmt.Fprint(out, analysis.SweepToASCII(points, 60, 15))
		return nil
	}

	sw.Continuation = true
	up, err := sw.Run(ctx, newPlant, integ)
	if err != nil {
		return err
	}
	down, err := sw.Reverse().Run(ctx, newPlant, integ)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "upward:")
	printSweep(out, sw.Param, up)
	fmt.Fprintln(out, "\ndownward:")
	printSweep(out, sw.Param, down)
	return nil
}

func printSweep(w io.Writer, param string, points []analysis.SweepPoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCA\tT\tSTABLE\tVALUES\n", strings.ToUpper(param))
	for _, p := range points {
		fmt.Fprintf(tw, "%.3f\t%.6f\t%.3f\t%t\t%d\n",
			p.Param, p.Final[dynamo.Ca], p.Final[dynamo.T], p.Stable, len(p.Values))
	}
	tw.Flush()
}
