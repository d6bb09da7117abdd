package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/metrics"
)

type Registry struct {
	integrators map[string]func(config.IntegratorConfig) dynamo.Integrator
	controllers map[string]func(config.GainsConfig) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func(config.IntegratorConfig) dynamo.Integrator),
		controllers: make(map[string]func(config.GainsConfig) dynamo.Controller),
	}

	r.integrators["rk45"] = func(cfg config.IntegratorConfig) dynamo.Integrator {
		rk := integrators.NewRK45()
		if cfg.RelTol > 0 {
			rk.RelTol = cfg.RelTol
		}
		if cfg.AbsTol > 0 {
			rk.AbsTol = cfg.AbsTol
		}
		if cfg.MaxSteps > 0 {
			rk.MaxSteps = cfg.MaxSteps
		}
		return rk
	}
	r.integrators["rk4"] = func(cfg config.IntegratorConfig) dynamo.Integrator {
		rk := integrators.NewRK4()
		if cfg.Substeps > 0 {
			rk.Substeps = cfg.Substeps
		}
		return rk
	}

	r.controllers["none"] = func(config.GainsConfig) dynamo.Controller { return control.NewNone() }
	r.controllers["manual"] = func(config.GainsConfig) dynamo.Controller { return control.NewManual() }
	r.controllers["pid"] = func(g config.GainsConfig) dynamo.Controller {
		return control.NewPID(g.Gains())
	}
	r.controllers["gain"] = func(g config.GainsConfig) dynamo.Controller {
		return control.NewGain(g.KpCa, g.KpT)
	}

	return r
}

func (r *Registry) GetIntegrator(cfg config.IntegratorConfig) (dynamo.Integrator, error) {
	fn, ok := r.integrators[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", cfg.Name)
	}
	return fn(cfg), nil
}

func (r *Registry) GetController(name string, gains config.GainsConfig) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(gains), nil
}

func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

// DefaultMetrics is the metric set attached to every closed-loop episode.
func (r *Registry) DefaultMetrics(ideal dynamo.State) []dynamo.Metric {
	return metrics.ClosedLoop(ideal)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
