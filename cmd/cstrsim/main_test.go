package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/storage"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), "cstrsim %s", strings.Join(args, " "))
	return out.String()
}

var runIDPattern = regexp.MustCompile(`run: ([0-9a-f-]{36})`)

func TestSimulateListExport(t *testing.T) {
	data := t.TempDir()

	out := execute(t, "simulate", "--data", data, "--steps", "4", "--reps", "3", "--noise", "0", "--plot=false", "--log-level", "warn")
	assert.Contains(t, out, "repetitions: 3  steps: 4")

	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, "no run id in output: %s", out)
	runID := m[1]

	out = execute(t, "list", "--data", data)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, storage.KindSimulate)

	out = execute(t, "plot", runID, "--data", data, "--channel", "t")
	assert.Contains(t, out, "T [K]")

	out = execute(t, "export-json", runID, "--data", data)
	var exported storage.ExportData
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Equal(t, runID, exported.Run.ID)
	require.Len(t, exported.T, 3)
	assert.Len(t, exported.T[0], 4)
}

func TestControlSavesEpisode(t *testing.T) {
	data := t.TempDir()

	out := execute(t, "control", "--data", data, "--steps", "5", "--noise", "0", "--controller", "pid", "--plot=false", "--log-level", "error")
	assert.Contains(t, out, "steps: 5")
	assert.Contains(t, out, "iae_t")

	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)

	path := filepath.Join(t.TempDir(), "ep.json")
	execute(t, "export-json", m[1], "--data", data, "-o", path)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var exported storage.ExportData
	require.NoError(t, json.Unmarshal(raw, &exported))
	assert.Len(t, exported.Episode, 6)
	assert.Equal(t, "pid", exported.Run.Controller)
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[simulate]\ntime_steps = 3\nrepetitions = 2\nnoise = 0.0\n"), 0644))

	// --reps overrides the file, time_steps comes from it
	out := execute(t, "simulate", "--config", cfgPath, "--reps", "4", "--no-save", "--plot=false", "--log-level", "error")
	assert.Contains(t, out, "repetitions: 4  steps: 3")
	assert.NotContains(t, out, "run: ")
}

func TestConfigFileLayersOverPreset(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "log.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: error\n"), 0644))

	out := execute(t, "simulate", "--preset", "runaway", "--config", cfgPath, "--no-save", "--plot=false")
	assert.Contains(t, out, "repetitions: 50  steps: 21")
}

func TestPresets(t *testing.T) {
	out := execute(t, "presets")
	assert.Contains(t, out, "presets for control:")
	assert.Contains(t, out, "presets for simulate:")

	out = execute(t, "presets", "simulate")
	assert.Contains(t, out, "runaway")
	assert.NotContains(t, out, "control")
}

func TestUnknownPreset(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"simulate", "--preset", "missing", "--no-save"})
	assert.Error(t, cmd.Execute())
}

func TestTuneWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuned.yaml")
	out := execute(t, "tune", "--steps", "10", "--noise", "0",
		"--kp-t", "0", "--kd-t", "0", "--grid", "ki_t=0,0.05",
		"--save-config", path, "--log-level", "error")
	assert.Contains(t, out, "grid points: 2")
	assert.Contains(t, out, "ki_t")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Control.Gains.KiT)
	assert.Equal(t, 10, cfg.Control.Steps)
}

func TestParseGrid(t *testing.T) {
	names, ranges, err := parseGrid([]string{"kp_t=0:1:3", "ki_ca=0.1, 0.2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"kp_t", "ki_ca"}, names)
	assert.Equal(t, [][]float64{{0, 0.5, 1}, {0.1, 0.2}}, ranges)

	for _, bad := range []string{"kp_t", "=1,2", "kp_t=a:b:c", "kp_t=0:1:0", "kp_t=x"} {
		_, _, err := parseGrid([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSweep(t *testing.T) {
	out := execute(t, "sweep", "--min", "295", "--max", "300", "--points", "2",
		"--transient", "10", "--record", "2", "--log-level", "error")
	assert.Contains(t, out, "TC")
	assert.Contains(t, out, "295.000")
	assert.Contains(t, out, "300.000")

	out = execute(t, "sweep", "--min", "295", "--max", "300", "--points", "2",
		"--transient", "5", "--record", "1", "--hysteresis", "--log-level", "error")
	assert.Contains(t, out, "upward:")
	assert.Contains(t, out, "downward:")
}

func TestPlotSVG(t *testing.T) {
	data := t.TempDir()
	out := execute(t, "control", "--data", data, "--steps", "3", "--noise", "0", "--plot=false", "--log-level", "error")
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)

	path := filepath.Join(t.TempDir(), "ep.svg")
	out = execute(t, "plot", m[1], "--data", data, "--svg", path)
	assert.Contains(t, out, "svg: "+path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<?xml"))
	assert.Equal(t, 4, strings.Count(string(raw), "<path"))
}
