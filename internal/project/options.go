package project

import (
	"time"

	"github.com/piwi3910/gerbmerge/internal/engine"
	"github.com/piwi3910/gerbmerge/internal/excellon"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/outline"
	"github.com/piwi3910/gerbmerge/internal/registry"
	"github.com/piwi3910/gerbmerge/internal/trim"
)

// UsableWidth is the panel width left for jobs once margins are removed.
func (c *Config) UsableWidth() float64 {
	return c.Panel.Width - c.Panel.Margins.Left - c.Panel.Margins.Right
}

// UsableHeight is the panel height left for jobs once margins are removed.
func (c *Config) UsableHeight() float64 {
	return c.Panel.Height - c.Panel.Margins.Top - c.Panel.Margins.Bottom
}

// EngineOptions returns the search options. The logger is left to the caller.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Strategy:      engine.Strategy(c.Search.Strategy),
		PanelWidth:    c.UsableWidth(),
		PanelHeight:   c.UsableHeight(),
		XSpacing:      c.XSpacing(),
		YSpacing:      c.YSpacing(),
		AllowRotation: c.Search.AllowRotation,
		SubsetSize:    c.Search.SubsetSize,
		Seed:          c.Search.Seed,
		Workers:       c.Search.Workers,
		MaxIterations: c.Search.MaxIterations,
		Timeout:       time.Duration(c.Search.TimeoutSeconds * float64(time.Second)),
	}
}

// TrimOptions returns the trimming switches.
func (c *Config) TrimOptions() trim.Options {
	return trim.Options{Gerber: c.Trim.Gerber, Excellon: c.Trim.Excellon}
}

// OutlineOptions returns the panel artwork settings.
func (c *Config) OutlineOptions() outline.Options {
	points := make([]model.Point, len(c.Fiducials.Points))
	for i, p := range c.Fiducials.Points {
		points[i] = model.Point{X: p[0], Y: p[1]}
	}
	return outline.Options{
		CutlineWidth:         c.Cutlines.Width,
		CutlineLayers:        c.Cutlines.Layers,
		CropMarkWidth:        c.CropMarks.Width,
		CropMarkLayers:       c.CropMarks.Layers,
		FiducialPoints:       points,
		FiducialCopper:       c.Fiducials.CopperDiameter,
		FiducialMask:         c.Fiducials.MaskDiameter,
		FiducialCopperLayers: c.Fiducials.CopperLayers,
		FiducialMaskLayers:   c.Fiducials.MaskLayers,
	}
}

// OctagonRotation returns the octagon macro variant.
func (c *Config) OctagonRotation() registry.OctagonRotation {
	return registry.OctagonRotation(c.Octagons)
}

// ExcellonOptions returns the drill reader settings for job. tools is the
// job's tool list, or the global one.
func (c *Config) ExcellonOptions(job *JobConfig, tools []model.ToolDef) excellon.Options {
	decimals := c.Excellon.Decimals
	if job.ExcellonDecimals > 0 {
		decimals = job.ExcellonDecimals
	}
	return excellon.Options{
		Units:        c.Units,
		Decimals:     decimals,
		LeadingZeros: c.Excellon.LeadingZeros,
		ToolList:     tools,
	}
}
