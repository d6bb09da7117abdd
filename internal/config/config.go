package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultIntegrator  = "rk45"
	DefaultController  = "pid"
	DefaultTimeSteps   = 201
	DefaultRepetitions = 1000
	DefaultNoise       = 0.1
	DefaultInitCa      = 0.87725294608097
	DefaultInitT       = 324.475443431599
	DefaultTc          = 300.0
	DefaultIdealCa     = 0.8
	DefaultIdealT      = 330.0
	DefaultUpperTc     = 305.0
	DefaultLowerTc     = 295.0
	DefaultLoopSteps   = 100
	DefaultKpT         = 0.5
	DefaultKiT         = 0.05
	DefaultKdT         = 0.1
)

// Trace kinds for open-loop coolant inputs.
const (
	TraceConstant   = "constant"
	TraceStep       = "step"
	TraceRandomWalk = "random_walk"
	TraceFile       = "file"
)

type Config struct {
	Integrator IntegratorConfig `yaml:"integrator" toml:"integrator"`
	Simulate   SimulateConfig   `yaml:"simulate" toml:"simulate"`
	Control    ControlConfig    `yaml:"control" toml:"control"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

type IntegratorConfig struct {
	Name     string  `yaml:"name" toml:"name"`
	RelTol   float64 `yaml:"rtol" toml:"rtol"`
	AbsTol   float64 `yaml:"atol" toml:"atol"`
	MaxSteps int     `yaml:"max_steps" toml:"max_steps"`
	Substeps int     `yaml:"substeps" toml:"substeps"`
}

type SimulateConfig struct {
	TimeSteps       int         `yaml:"time_steps" toml:"time_steps"`
	Repetitions     int         `yaml:"repetitions" toml:"repetitions"`
	Noise           float64     `yaml:"noise" toml:"noise"`
	Seed            int64       `yaml:"seed" toml:"seed"`
	Workers         int         `yaml:"workers" toml:"workers"`
	IsolateFailures bool        `yaml:"isolate_failures" toml:"isolate_failures"`
	InitCa          float64     `yaml:"init_ca" toml:"init_ca"`
	InitT           float64     `yaml:"init_t" toml:"init_t"`
	Trace           TraceConfig `yaml:"trace" toml:"trace"`
}

// TraceConfig describes the coolant temperature held at each step.
type TraceConfig struct {
	Kind   string  `yaml:"kind" toml:"kind"`
	Value  float64 `yaml:"value" toml:"value"`
	StepAt int     `yaml:"step_at" toml:"step_at"`
	StepTo float64 `yaml:"step_to" toml:"step_to"`
	Span   float64 `yaml:"span" toml:"span"`
	Lower  float64 `yaml:"lower" toml:"lower"`
	Upper  float64 `yaml:"upper" toml:"upper"`
	Path   string  `yaml:"path" toml:"path"`
}

type ControlConfig struct {
	Steps      int         `yaml:"steps" toml:"steps"`
	Controller string      `yaml:"controller" toml:"controller"`
	Tc         float64     `yaml:"tc" toml:"tc"`
	InitCa     float64     `yaml:"init_ca" toml:"init_ca"`
	InitT      float64     `yaml:"init_t" toml:"init_t"`
	IdealCa    float64     `yaml:"ideal_ca" toml:"ideal_ca"`
	IdealT     float64     `yaml:"ideal_t" toml:"ideal_t"`
	UpperTc    float64     `yaml:"upper_tc" toml:"upper_tc"`
	LowerTc    float64     `yaml:"lower_tc" toml:"lower_tc"`
	Noise      float64     `yaml:"noise" toml:"noise"`
	Seed       int64       `yaml:"seed" toml:"seed"`
	Gains      GainsConfig `yaml:"gains" toml:"gains"`
}

type GainsConfig struct {
	KpCa float64 `yaml:"kp_ca" toml:"kp_ca"`
	KiCa float64 `yaml:"ki_ca" toml:"ki_ca"`
	KdCa float64 `yaml:"kd_ca" toml:"kd_ca"`
	KpT  float64 `yaml:"kp_t" toml:"kp_t"`
	KiT  float64 `yaml:"ki_t" toml:"ki_t"`
	KdT  float64 `yaml:"kd_t" toml:"kd_t"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Integrator: IntegratorConfig{
			Name: DefaultIntegrator,
		},
		Simulate: SimulateConfig{
			TimeSteps:   DefaultTimeSteps,
			Repetitions: DefaultRepetitions,
			Noise:       DefaultNoise,
			InitCa:      DefaultInitCa,
			InitT:       DefaultInitT,
			Trace: TraceConfig{
				Kind:  TraceConstant,
				Value: DefaultTc,
				Lower: DefaultLowerTc,
				Upper: DefaultUpperTc,
			},
		},
		Control: ControlConfig{
			Steps:      DefaultLoopSteps,
			Controller: DefaultController,
			Tc:         DefaultTc,
			InitCa:     DefaultInitCa,
			InitT:      DefaultInitT,
			IdealCa:    DefaultIdealCa,
			IdealT:     DefaultIdealT,
			UpperTc:    DefaultUpperTc,
			LowerTc:    DefaultLowerTc,
			Noise:      DefaultNoise,
			Gains: GainsConfig{
				KpT: DefaultKpT,
				KiT: DefaultKiT,
				KdT: DefaultKdT,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a YAML or TOML file (by extension) over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto decodes a YAML or TOML file over base, so keys the file leaves
// out keep base's values, then validates the result.
func LoadInto(path string, base *Config) error {
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, base); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(data, base); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}
	if err := base.Validate(); err != nil {
		return fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Integrator.Name {
	case "rk45", "rk4":
	default:
		errs = append(errs, fmt.Errorf("unknown integrator: %q", c.Integrator.Name))
	}
	if c.Simulate.TimeSteps < 1 {
		errs = append(errs, fmt.Errorf("simulate.time_steps must be at least 1"))
	}
	if c.Simulate.Repetitions < 1 {
		errs = append(errs, fmt.Errorf("simulate.repetitions must be at least 1"))
	}
	switch c.Simulate.Trace.Kind {
	case TraceConstant, TraceStep, TraceRandomWalk:
	case TraceFile:
		if c.Simulate.Trace.Path == "" {
			errs = append(errs, fmt.Errorf("simulate.trace.path required for file traces"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown trace kind: %q", c.Simulate.Trace.Kind))
	}
	if c.Control.Steps < 0 {
		errs = append(errs, fmt.Errorf("control.steps must not be negative"))
	}
	if c.Control.LowerTc > c.Control.UpperTc {
		errs = append(errs, fmt.Errorf("control.lower_tc %.2f above upper_tc %.2f", c.Control.LowerTc, c.Control.UpperTc))
	}
	return errors.Join(errs...)
}

// Gains returns per-channel PID gains ordered (Ca, T).
func (g GainsConfig) Gains() (kp, ki, kd [2]float64) {
	return [2]float64{g.KpCa, g.KpT}, [2]float64{g.KiCa, g.KiT}, [2]float64{g.KdCa, g.KdT}
}
