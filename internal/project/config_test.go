package project

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/piwi3910/gerbmerge/internal/engine"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/outline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
panel:
  width: 10
  height: 8
jobs:
  - name: cpu
    repeat: 3
    gerber:
      toplayer: cpu/top.gtl
      boardoutline: /abs/cpu.gko
    drills: cpu/drills.xln
`

// ─── Load Tests ────────────────────────────────────────────

func TestLoadAppliesDefaultsAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0644))

	cfg, err := Load(path, filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, model.UnitsInch, cfg.Units)
	assert.Equal(t, 0.125, cfg.XSpacing())
	assert.Equal(t, 0.125, cfg.YSpacing())
	assert.True(t, cfg.Trim.Gerber)
	assert.Equal(t, "hybrid", cfg.Search.Strategy)
	assert.Equal(t, 0.01, cfg.Cutlines.Width)

	require.Len(t, cfg.Jobs, 1)
	job := cfg.Jobs[0]
	assert.Equal(t, 3, job.Repeat)
	assert.Equal(t, filepath.Join(dir, "cpu/top.gtl"), job.Gerber["toplayer"])
	assert.Equal(t, "/abs/cpu.gko", job.Gerber["boardoutline"])
	assert.Equal(t, filepath.Join(dir, "cpu/drills.xln"), job.Drills)
	assert.Equal(t, filepath.Join(dir, "."), cfg.Outputs.Dir)
}

func TestParseMetricDefaultsAndOverrides(t *testing.T) {
	doc := `
units: metric
panel: {width: 250, height: 200, spacing: 2, y_spacing: 0, margins: {left: 5, bottom: 5}}
search: {strategy: random, timeout_seconds: 1.5, seed: 7}
jobs:
  - name: a
    gerber: {toplayer: a.gtl}
`
	cfg, err := Parse([]byte(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, model.UnitsMetric, cfg.Units)
	assert.InDelta(t, 0.254, cfg.Cutlines.Width, 1e-12)
	assert.Equal(t, 2.0, cfg.XSpacing())
	assert.Equal(t, 0.0, cfg.YSpacing(), "explicit zero wins over spacing")
	assert.Equal(t, 1, cfg.Jobs[0].Repeat)

	opts := cfg.EngineOptions()
	assert.Equal(t, engine.StrategyRandom, opts.Strategy)
	assert.Equal(t, 245.0, opts.PanelWidth)
	assert.Equal(t, 195.0, opts.PanelHeight)
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
	assert.Equal(t, int64(7), opts.Seed)
}

func TestParseLayersUserDefaults(t *testing.T) {
	defaults := "panel: {width: 12, height: 9}\ncutlines: {width: 0.02, layers: [topsilkscreen]}\n"
	cfg, err := Parse([]byte("panel: {width: 6}\njobs: [{name: a, drills: a.xln}]\n"), []byte(defaults))
	require.NoError(t, err)
	assert.Equal(t, 6.0, cfg.Panel.Width)
	assert.Equal(t, 9.0, cfg.Panel.Height)
	assert.Equal(t, []string{"topsilkscreen"}, cfg.OutlineOptions().CutlineLayers)
	assert.Equal(t, 0.02, cfg.OutlineOptions().CutlineWidth)
}

func TestParseRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "panel: {width: 1, height: 1}\nbogus: 1\n"},
		{"bad strategy", "panel: {width: 1, height: 1}\nsearch: {strategy: genetic}\n"},
		{"negative spacing", "panel: {width: 1, height: 1, spacing: -1}\n"},
		{"bad job name", "panel: {width: 1, height: 1}\njobs: [{name: '1st', drills: a}]\n"},
		{"missing panel", "jobs: [{name: a, drills: a}]\n"},
		{"duplicate job", "panel: {width: 1, height: 1}\njobs: [{name: a, drills: a}, {name: a, drills: b}]\n"},
		{"job without files", "panel: {width: 1, height: 1}\njobs: [{name: a}]\n"},
		{"bad fiducial", "panel: {width: 1, height: 1}\nfiducials: {points: [[1]]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), nil)
			assert.Error(t, err)
		})
	}
}

func TestValidateDocuments(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate([]byte("panel: {width: 12.5, height: 8, spacing: 0.1}\nsearch: {seed: 3}\n")))

	err := Validate([]byte("panel: {width: 1, height: 1, spacing: -0.5}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	err = Validate([]byte("panel: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestOutlineOptionsFiducials(t *testing.T) {
	cfg, err := Parse([]byte("panel: {width: 1, height: 1}\nfiducials: {points: [[0.125, 0.125], [-0.125, -0.125]]}\n"), nil)
	require.NoError(t, err)
	opts := cfg.OutlineOptions()
	assert.Equal(t, []model.Point{{X: 0.125, Y: 0.125}, {X: -0.125, Y: -0.125}}, opts.FiducialPoints)
	assert.Equal(t, 0.08, opts.FiducialCopper)
}

func TestDefaultsFollowArtworkDefaults(t *testing.T) {
	want := outline.DefaultOptions()
	got := Defaults(model.UnitsInch).OutlineOptions()
	assert.Equal(t, want.CutlineWidth, got.CutlineWidth)
	assert.Equal(t, want.CropMarkWidth, got.CropMarkWidth)
	assert.Equal(t, want.FiducialCopper, got.FiducialCopper)
	assert.Equal(t, want.FiducialMask, got.FiducialMask)
	assert.Equal(t, want.FiducialCopperLayers, got.FiducialCopperLayers)
	assert.Equal(t, want.FiducialMaskLayers, got.FiducialMaskLayers)

	metric := Defaults(model.UnitsMetric).OutlineOptions()
	assert.InDelta(t, want.FiducialCopper*25.4, metric.FiducialCopper, 1e-9)
}

func TestExcellonOptionsPerJobDecimals(t *testing.T) {
	cfg := Defaults(model.UnitsInch)
	cfg.Excellon.Decimals = 4
	job := &JobConfig{Name: "a", ExcellonDecimals: 3}
	assert.Equal(t, 3, cfg.ExcellonOptions(job, nil).Decimals)
	assert.Equal(t, 4, cfg.ExcellonOptions(&JobConfig{Name: "b"}, nil).Decimals)
}

// ─── Defaults File Tests ───────────────────────────────────

func TestSaveDefaultsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "defaults.yaml")
	cfg := Defaults(model.UnitsInch)
	cfg.Panel.Width, cfg.Panel.Height = 16, 10
	cfg.Octagons = "rotate"
	cfg.Jobs = []JobConfig{{Name: "dropped", Drills: "x"}}
	require.NoError(t, SaveDefaults(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NoError(t, Validate(data))

	loaded, err := Parse([]byte("jobs: [{name: a, drills: a.xln}]\n"), data)
	require.NoError(t, err)
	assert.Equal(t, "rotate", loaded.Octagons)
	assert.Equal(t, 16.0, loaded.Panel.Width)
	require.Len(t, loaded.Jobs, 1)
	assert.Equal(t, "a", loaded.Jobs[0].Name)
}

func TestWriteProducesValidDocument(t *testing.T) {
	cfg, err := Parse([]byte(minimal), nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cfg))
	assert.NoError(t, Validate(buf.Bytes()))
}

func TestDefaultDefaultsPath(t *testing.T) {
	assert.Equal(t, "defaults.yaml", filepath.Base(DefaultDefaultsPath()))
	assert.Equal(t, ".gerbmerge", filepath.Base(DefaultConfigDir()))
}
