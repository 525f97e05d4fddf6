// Package project loads the panel configuration: a YAML file describing the
// panel, the jobs to merge and the outputs to write.
package project

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/outline"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

var loadSchema = sync.OnceValues(compileSchema)

// Config is a complete panel configuration. Lengths are in Units.
type Config struct {
	Units                 model.Units        `yaml:"units" json:"units"`
	Octagons              string             `yaml:"octagons" json:"octagons"`
	ToolList              string             `yaml:"tool_list,omitempty" json:"tool_list,omitempty"`
	DrillClusterTolerance float64            `yaml:"drill_cluster_tolerance" json:"drill_cluster_tolerance"`
	MinimumFeature        map[string]float64 `yaml:"minimum_feature,omitempty" json:"minimum_feature,omitempty"`
	Panel                 PanelConfig        `yaml:"panel" json:"panel"`
	Trim                  TrimConfig         `yaml:"trim" json:"trim"`
	Search                SearchConfig       `yaml:"search" json:"search"`
	Fiducials             FiducialConfig     `yaml:"fiducials" json:"fiducials"`
	Cutlines              LineConfig         `yaml:"cutlines" json:"cutlines"`
	CropMarks             LineConfig         `yaml:"cropmarks" json:"cropmarks"`
	Excellon              ExcellonConfig     `yaml:"excellon" json:"excellon"`
	Outputs               OutputConfig       `yaml:"outputs" json:"outputs"`
	Jobs                  []JobConfig        `yaml:"jobs" json:"jobs"`
}

// PanelConfig is the raw panel size and the space kept around and between
// jobs. Spacing sets both directions unless XSpacing or YSpacing is given.
type PanelConfig struct {
	Width    float64  `yaml:"width" json:"width"`
	Height   float64  `yaml:"height" json:"height"`
	Spacing  float64  `yaml:"spacing" json:"spacing"`
	XSpacing *float64 `yaml:"x_spacing,omitempty" json:"x_spacing,omitempty"`
	YSpacing *float64 `yaml:"y_spacing,omitempty" json:"y_spacing,omitempty"`
	Margins  Margins  `yaml:"margins" json:"margins"`
}

// Margins are kept free at the panel edges.
type Margins struct {
	Left   float64 `yaml:"left" json:"left"`
	Right  float64 `yaml:"right" json:"right"`
	Top    float64 `yaml:"top" json:"top"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
}

type TrimConfig struct {
	Gerber   bool `yaml:"gerber" json:"gerber"`
	Excellon bool `yaml:"excellon" json:"excellon"`
}

type SearchConfig struct {
	Strategy       string  `yaml:"strategy" json:"strategy"`
	TimeoutSeconds float64 `yaml:"timeout_seconds" json:"timeout_seconds"`
	SubsetSize     int     `yaml:"subset_size" json:"subset_size"`
	Seed           int64   `yaml:"seed" json:"seed"`
	Workers        int     `yaml:"workers" json:"workers"`
	MaxIterations  int     `yaml:"max_iterations" json:"max_iterations"`
	AllowRotation  bool    `yaml:"allow_rotation" json:"allow_rotation"`
}

// FiducialConfig places fiducials. Positive coordinates are measured from
// the lower-left panel corner, negative ones from the upper-right.
type FiducialConfig struct {
	Points         [][2]float64 `yaml:"points,omitempty" json:"points,omitempty"`
	CopperDiameter float64      `yaml:"copper_diameter" json:"copper_diameter"`
	MaskDiameter   float64      `yaml:"mask_diameter" json:"mask_diameter"`
	CopperLayers   []string     `yaml:"copper_layers" json:"copper_layers"`
	MaskLayers     []string     `yaml:"mask_layers" json:"mask_layers"`
}

// LineConfig is the aperture width and the target layers of cut lines or
// crop marks. No layers means none are drawn.
type LineConfig struct {
	Width  float64  `yaml:"width" json:"width"`
	Layers []string `yaml:"layers,omitempty" json:"layers,omitempty"`
}

type ExcellonConfig struct {
	Decimals     int  `yaml:"decimals" json:"decimals"`
	LeadingZeros bool `yaml:"leading_zeros" json:"leading_zeros"`
}

// OutputConfig selects the files written next to the merged Gerbers.
type OutputConfig struct {
	Dir        string `yaml:"dir" json:"dir"`
	Prefix     string `yaml:"prefix" json:"prefix"`
	Outline    bool   `yaml:"outline" json:"outline"`
	Scoring    bool   `yaml:"scoring" json:"scoring"`
	FabDrawing bool   `yaml:"fab_drawing" json:"fab_drawing"`
	Report     bool   `yaml:"report" json:"report"`
	Chart      bool   `yaml:"chart" json:"chart"`
	Preview    bool   `yaml:"preview" json:"preview"`
}

// JobConfig names one board's files. Gerber maps layer names to files.
type JobConfig struct {
	Name             string            `yaml:"name" json:"name"`
	Repeat           int               `yaml:"repeat" json:"repeat"`
	Gerber           map[string]string `yaml:"gerber" json:"gerber"`
	Drills           string            `yaml:"drills,omitempty" json:"drills,omitempty"`
	ToolList         string            `yaml:"tool_list,omitempty" json:"tool_list,omitempty"`
	OutlineDXF       string            `yaml:"outline_dxf,omitempty" json:"outline_dxf,omitempty"`
	ExcellonDecimals int               `yaml:"excellon_decimals,omitempty" json:"excellon_decimals,omitempty"`
}

// Defaults returns the built-in configuration for u. Lengths are the
// classic inch values converted to u.
func Defaults(u model.Units) Config {
	if u == "" {
		u = model.UnitsInch
	}
	in := func(v float64) float64 { return model.UnitsInch.Convert(v, u) }
	art := outline.DefaultOptions()
	return Config{
		Units:    u,
		Octagons: "normal",
		Panel:    PanelConfig{Spacing: in(0.125)},
		Trim:     TrimConfig{Gerber: true, Excellon: true},
		Search: SearchConfig{
			Strategy:      "hybrid",
			SubsetSize:    2,
			Seed:          1,
			AllowRotation: true,
		},
		Fiducials: FiducialConfig{
			CopperDiameter: in(art.FiducialCopper),
			MaskDiameter:   in(art.FiducialMask),
			CopperLayers:   art.FiducialCopperLayers,
			MaskLayers:     art.FiducialMaskLayers,
		},
		Cutlines:  LineConfig{Width: in(art.CutlineWidth)},
		CropMarks: LineConfig{Width: in(art.CropMarkWidth)},
		Outputs:   OutputConfig{Dir: ".", Prefix: "merged", Outline: true},
	}
}

// XSpacing returns the horizontal gap between jobs.
func (c *Config) XSpacing() float64 {
	if c.Panel.XSpacing != nil {
		return *c.Panel.XSpacing
	}
	return c.Panel.Spacing
}

// YSpacing returns the vertical gap between jobs.
func (c *Config) YSpacing() float64 {
	if c.Panel.YSpacing != nil {
		return *c.Panel.YSpacing
	}
	return c.Panel.Spacing
}

// Load reads the configuration at path on top of the built-in defaults and,
// when defaultsPath names an existing file, the user's defaults. Relative
// file names are resolved against the configuration file's directory.
func Load(path, defaultsPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var userDefaults []byte
	if defaultsPath != "" {
		userDefaults, err = os.ReadFile(defaultsPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read defaults: %w", err)
		}
	}
	cfg, err := Parse(data, userDefaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	cfg.Resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates a configuration document, optionally layered
// over a user defaults document.
func Parse(data, userDefaults []byte) (*Config, error) {
	var head struct {
		Units model.Units `yaml:"units"`
	}
	for _, doc := range [][]byte{userDefaults, data} {
		if len(doc) == 0 {
			continue
		}
		if err := Validate(doc); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(doc, &head); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg := Defaults(head.Units)
	for _, doc := range [][]byte{userDefaults, data} {
		if len(doc) == 0 {
			continue
		}
		if err := yaml.Unmarshal(doc, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// check enforces what the schema cannot express.
func (c *Config) check() error {
	if c.Panel.Width <= 0 || c.Panel.Height <= 0 {
		return fmt.Errorf("panel width and height are required")
	}
	seen := make(map[string]bool, len(c.Jobs))
	for i := range c.Jobs {
		j := &c.Jobs[i]
		if seen[j.Name] {
			return fmt.Errorf("job %s is listed twice", j.Name)
		}
		seen[j.Name] = true
		if j.Repeat == 0 {
			j.Repeat = 1
		}
		if len(j.Gerber) == 0 && j.Drills == "" {
			return fmt.Errorf("job %s has no gerber or drill files", j.Name)
		}
	}
	return nil
}

// Resolve makes every relative file name absolute against dir.
func (c *Config) Resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.ToolList = abs(c.ToolList)
	c.Outputs.Dir = abs(c.Outputs.Dir)
	for i := range c.Jobs {
		j := &c.Jobs[i]
		for layer, p := range j.Gerber {
			j.Gerber[layer] = abs(p)
		}
		j.Drills = abs(j.Drills)
		j.ToolList = abs(j.ToolList)
		j.OutlineDXF = abs(j.OutlineDXF)
	}
}

// Validate checks a YAML document against the configuration schema.
func Validate(doc []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	var raw any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		return nil
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}
	var value any
	if err := json.Unmarshal(jsonData, &value); err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	var schemaData any
	if err := yaml.Unmarshal(schemaYAML, &schemaData); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	schema, err := jsonschema.CompileString("gerbmerge.schema.json", string(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// Write encodes c as YAML.
func Write(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
