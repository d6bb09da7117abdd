package config

import "sort"

// Presets groups ready-made configurations by mode ("simulate" or "control").
var Presets = map[string]map[string]*Config{
	"simulate": {
		"steady": preset(func(c *Config) {
			c.Simulate.Repetitions = 200
		}),
		"cool": preset(func(c *Config) {
			c.Simulate.Trace = TraceConfig{Kind: TraceConstant, Value: 295}
		}),
		"step": preset(func(c *Config) {
			c.Simulate.Trace = TraceConfig{Kind: TraceStep, Value: 300, StepAt: 50, StepTo: 297}
		}),
		"runaway": preset(func(c *Config) {
			c.Simulate.TimeSteps = 21
			c.Simulate.Repetitions = 50
			c.Simulate.IsolateFailures = true
			c.Simulate.Trace = TraceConfig{Kind: TraceConstant, Value: 305}
		}),
		"wander": preset(func(c *Config) {
			c.Simulate.Trace = TraceConfig{Kind: TraceRandomWalk, Value: 300, Span: 0.5, Lower: 295, Upper: 302}
		}),
	},
	"control": {
		"track": preset(func(c *Config) {}),
		"quiet": preset(func(c *Config) {
			c.Control.Noise = 0
		}),
		"tight": preset(func(c *Config) {
			c.Control.UpperTc = 301
			c.Control.LowerTc = 299
		}),
		"open": preset(func(c *Config) {
			c.Control.Controller = "none"
		}),
	},
}

func preset(mod func(c *Config)) *Config {
	c := DefaultConfig()
	mod(c)
	return c
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(mode, name string) *Config {
	modePresets, ok := Presets[mode]
	if !ok {
		return nil
	}
	cfg, ok := modePresets[name]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func ListPresets(mode string) []string {
	modePresets, ok := Presets[mode]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modePresets))
	for name := range modePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListModes() []string {
	modes := make([]string, 0, len(Presets))
	for m := range Presets {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}
