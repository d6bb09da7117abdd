package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/cstrsim/internal/analysis"
	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/logging"
)

// cli holds flag values shared by the commands.
type cli struct {
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFormat  string

	integrator string
	steps      int
	reps       int
	noise      float64
	seed       int64
	workers    int
	tc         float64
	isolate    bool
	noSave     bool
	plot       bool

	controller string
	idealCa    float64
	idealT     float64
	upperTc    float64
	lowerTc    float64
	kpT        float64
	kiT        float64
	kdT        float64
	kpCa       float64
	kiCa       float64
	kdCa       float64

	rep     int
	channel string
	out     string
	svg     string

	grid       []string
	metric     string
	saveConfig string

	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int
	sweepTc     float64
	sweepCh     string
	transient   int
	record      int
	hysteresis  bool

	log zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:           "cstrsim",
		Short:         "noisy CSTR ensemble and closed-loop simulator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(c.logLevel, c.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.log = logger
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.dataDir, "data", ".cstrsim", "data directory")
	pf.StringVar(&c.configFile, "config", "", "config file path (yaml or toml)")
	pf.StringVar(&c.logLevel, "log-level", "info", "log level")
	pf.StringVar(&c.logFormat, "log-format", "console", "log format (console or json)")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "run an open-loop ensemble",
		Args:  cobra.NoArgs,
		RunE:  c.runSimulate,
	}
	sf := simulateCmd.Flags()
	sf.StringVar(&c.preset, "preset", "", "use preset configuration")
	sf.StringVar(&c.integrator, "integrator", config.DefaultIntegrator, "integrator (rk45, rk4)")
	sf.IntVar(&c.steps, "steps", config.DefaultTimeSteps, "time steps including the initial state")
	sf.IntVar(&c.reps, "reps", config.DefaultRepetitions, "repetitions")
	sf.Float64Var(&c.noise, "noise", config.DefaultNoise, "noise level")
	sf.Int64Var(&c.seed, "seed", 0, "random seed")
	sf.IntVar(&c.workers, "workers", 0, "worker goroutines (0 = NumCPU)")
	sf.Float64Var(&c.tc, "tc", config.DefaultTc, "constant coolant temperature")
	sf.BoolVar(&c.isolate, "isolate-failures", false, "keep going when a repetition fails")
	sf.BoolVar(&c.noSave, "no-save", false, "do not store the run")
	sf.BoolVar(&c.plot, "plot", true, "print ensemble charts")

	controlCmd := &cobra.Command{
		Use:   "control",
		Short: "run a closed-loop episode",
		Args:  cobra.NoArgs,
		RunE:  c.runControl,
	}
	c.controlFlags(controlCmd)
	controlCmd.Flags().BoolVar(&c.noSave, "no-save", false, "do not store the run")
	controlCmd.Flags().BoolVar(&c.plot, "plot", true, "print episode charts")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the closed loop with a live view",
		Args:  cobra.NoArgs,
		RunE:  c.runLive,
	}
	c.controlFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  c.listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  c.plotRun,
	}
	plotCmd.Flags().IntVar(&c.rep, "rep", -1, "plot one repetition instead of the ensemble mean")
	plotCmd.Flags().StringVar(&c.channel, "channel", "both", "channel to plot (ca, t, both)")
	plotCmd.Flags().StringVar(&c.svg, "svg", "", "also write the charts to an SVG file")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search controller gains on the closed loop",
		Args:  cobra.NoArgs,
		RunE:  c.runTune,
	}
	c.controlFlags(tuneCmd)
	tf := tuneCmd.Flags()
	tf.StringArrayVar(&c.grid, "grid", nil, "gain grid as name=lo:hi:n or name=v1,v2 (repeatable)")
	tf.StringVar(&c.metric, "metric", "iae_t", "metric to minimize")
	tf.StringVar(&c.saveConfig, "save-config", "", "write the tuned configuration to this file")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "map open-loop steady states over a parameter range",
		Args:  cobra.NoArgs,
		RunE:  c.runSweep,
	}
	def := analysis.DefaultSweep()
	wf := sweepCmd.Flags()
	wf.StringVar(&c.integrator, "integrator", config.DefaultIntegrator, "integrator (rk45, rk4)")
	wf.StringVar(&c.sweepParam, "param", def.Param, "parameter to sweep (Tc or a plant parameter such as UA)")
	wf.Float64Var(&c.sweepMin, "min", def.Min, "start of the sweep")
	wf.Float64Var(&c.sweepMax, "max", def.Max, "end of the sweep")
	wf.IntVar(&c.sweepPoints, "points", def.Points, "number of parameter values")
	wf.IntVar(&c.transient, "transient", def.Transient, "unit steps discarded before recording")
	wf.IntVar(&c.record, "record", def.Record, "unit steps recorded per point")
	wf.Float64Var(&c.sweepTc, "tc", def.Tc, "coolant temperature when sweeping a plant parameter")
	wf.StringVar(&c.sweepCh, "channel", "t", "channel to record (ca, t)")
	wf.IntVar(&c.workers, "workers", 0, "worker goroutines (0 = NumCPU)")
	wf.BoolVar(&c.hysteresis, "hysteresis", false, "sweep up then down, carrying the state between points")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  c.exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&c.out, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [mode]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := config.ListModes()
			if len(args) == 1 {
				modes = args[:1]
			}
			out := cmd.OutOrStdout()
			for _, mode := range modes {
				presets := config.ListPresets(mode)
				if len(presets) == 0 {
					fmt.Fprintf(out, "no presets for mode: %s\n", mode)
					continue
				}
				fmt.Fprintf(out, "presets for %s:\n", mode)
				for _, p := range presets {
					fmt.Fprintf(out, "  %s\n", p)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(simulateCmd, controlCmd, liveCmd, tuneCmd, sweepCmd, listCmd, plotCmd, exportJSONCmd, presetsCmd)
	return rootCmd
}

func (c *cli) controlFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.preset, "preset", "", "use preset configuration")
	f.StringVar(&c.integrator, "integrator", config.DefaultIntegrator, "integrator (rk45, rk4)")
	f.StringVar(&c.controller, "controller", config.DefaultController, "controller (pid, gain, none, manual)")
	f.IntVar(&c.steps, "steps", config.DefaultLoopSteps, "closed-loop steps (0 = unlimited in live)")
	f.Float64Var(&c.noise, "noise", config.DefaultNoise, "noise level")
	f.Int64Var(&c.seed, "seed", 0, "random seed")
	f.Float64Var(&c.tc, "tc", config.DefaultTc, "initial coolant temperature")
	f.Float64Var(&c.idealCa, "ideal-ca", config.DefaultIdealCa, "Ca setpoint")
	f.Float64Var(&c.idealT, "ideal-t", config.DefaultIdealT, "T setpoint")
	f.Float64Var(&c.upperTc, "upper", config.DefaultUpperTc, "upper coolant bound")
	f.Float64Var(&c.lowerTc, "lower", config.DefaultLowerTc, "lower coolant bound")
	f.Float64Var(&c.kpT, "kp-t", config.DefaultKpT, "pid kp on T")
	f.Float64Var(&c.kiT, "ki-t", config.DefaultKiT, "pid ki on T")
	f.Float64Var(&c.kdT, "kd-t", config.DefaultKdT, "pid kd on T")
	f.Float64Var(&c.kpCa, "kp-ca", 0, "pid kp on Ca")
	f.Float64Var(&c.kiCa, "ki-ca", 0, "pid ki on Ca")
	f.Float64Var(&c.kdCa, "kd-ca", 0, "pid kd on Ca")
}

// resolveConfig layers defaults, preset, config file and changed flags, in
// that order.
func (c *cli) resolveConfig(cmd *cobra.Command, mode string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if c.preset != "" {
		cfg = config.GetPreset(mode, c.preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", c.preset, config.ListPresets(mode))
		}
	}

	if c.configFile != "" {
		if err := config.LoadInto(c.configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("integrator") {
		cfg.Integrator.Name = c.integrator
	}

	switch mode {
	case "simulate":
		sc := &cfg.Simulate
		if changed("steps") {
			sc.TimeSteps = c.steps
		}
		if changed("reps") {
			sc.Repetitions = c.reps
		}
		if changed("noise") {
			sc.Noise = c.noise
		}
		if changed("seed") {
			sc.Seed = c.seed
		}
		if changed("workers") {
			sc.Workers = c.workers
		}
		if changed("isolate-failures") {
			sc.IsolateFailures = c.isolate
		}
		if changed("tc") {
			sc.Trace = config.TraceConfig{Kind: config.TraceConstant, Value: c.tc}
		}
	case "control":
		cc := &cfg.Control
		if changed("controller") {
			cc.Controller = c.controller
		}
		if changed("steps") {
			cc.Steps = c.steps
		}
		if changed("noise") {
			cc.Noise = c.noise
		}
		if changed("seed") {
			cc.Seed = c.seed
		}
		if changed("tc") {
			cc.Tc = c.tc
		}
		if changed("ideal-ca") {
			cc.IdealCa = c.idealCa
		}
		if changed("ideal-t") {
			cc.IdealT = c.idealT
		}
		if changed("upper") {
			cc.UpperTc = c.upperTc
		}
		if changed("lower") {
			cc.LowerTc = c.lowerTc
		}
		gains := []struct {
			flag string
			dst  *float64
			val  float64
		}{
			{"kp-t", &cc.Gains.KpT, c.kpT},
			{"ki-t", &cc.Gains.KiT, c.kiT},
			{"kd-t", &cc.Gains.KdT, c.kdT},
			{"kp-ca", &cc.Gains.KpCa, c.kpCa},
			{"ki-ca", &cc.Gains.KiCa, c.kiCa},
			{"kd-ca", &cc.Gains.KdCa, c.kdCa},
		}
		for _, g := range gains {
			if changed(g.flag) {
				*g.dst = g.val
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
