// Package export writes the human-facing artefacts of a merge: statistics,
// the fabrication drawing, a spreadsheet report, an HTML chart and a PNG
// preview of the panel.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/piwi3910/gerbmerge/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ToolStat is the usage of one global tool.
type ToolStat struct {
	Code     string
	Diameter float64
	Hits     int
}

// Stats summarizes a merged panel.
type Stats struct {
	Units  model.Units
	Width  float64 // merged extent, margins included
	Height float64
	// JobArea is the area covered by job instances.
	JobArea float64
	// Estimated is the job area over the configured panel area, Achieved
	// the job area over the merged extent.
	Estimated float64
	Achieved  float64

	DrillHits    int
	DrillDensity float64 // hits per square inch, or per square centimeter
	Tools        []ToolStat
	SmallestTool float64 // 0 without drills
}

// Area returns the merged extent's area.
func (s Stats) Area() float64 { return s.Width * s.Height }

// Compute gathers the statistics of panel. panelW and panelH are the
// configured panel size.
func Compute(panel *model.Panel, jobs map[string]*model.Job, panelW, panelH float64) Stats {
	s := Stats{Units: panel.Units, Width: panel.Width, Height: panel.Height}
	for _, inst := range panel.Instances {
		if j, ok := jobs[inst.Job]; ok {
			s.JobArea += j.Area()
		}
	}
	if a := s.Area(); a > 0 {
		s.Achieved = s.JobArea / a
	}
	if a := panelW * panelH; a > 0 {
		s.Estimated = s.JobArea / a
	}

	hits := make(map[string]int)
	for _, d := range panel.Drills {
		hits[d.Tool]++
	}
	s.SmallestTool = math.Inf(1)
	for _, t := range panel.Tools {
		if hits[t.Code] == 0 {
			continue
		}
		s.Tools = append(s.Tools, ToolStat{Code: t.Code, Diameter: t.Diameter, Hits: hits[t.Code]})
		s.DrillHits += hits[t.Code]
		s.SmallestTool = math.Min(s.SmallestTool, t.Diameter)
	}
	if len(s.Tools) == 0 {
		s.SmallestTool = 0
	}
	if a := s.Area(); a > 0 {
		s.DrillDensity = float64(s.DrillHits) / a
		if s.Units == model.UnitsMetric {
			s.DrillDensity *= 100 // per cm2
		}
	}
	return s
}

// Print writes the statistics block shown at the end of a run, formatted
// for tag.
func (s Stats) Print(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)
	unit, area, density := `"`, "sq. in.", "hits/sq.in."
	if s.Units == model.UnitsMetric {
		unit, area, density = "mm", "mm2", "hits/cm2"
	}

	lines := []string{
		p.Sprintf("     Job Size : %.4f%s x %.4f%s", s.Width, unit, s.Height, unit),
		p.Sprintf("     Job Area : %.2f %s", s.Area(), area),
		p.Sprintf("   Area Usage : %.1f%% (estimated %.1f%%)", s.Achieved*100, s.Estimated*100),
		p.Sprintf("   Drill hits : %d", s.DrillHits),
		p.Sprintf("Drill density : %.2f %s", s.DrillDensity, density),
		"",
		"Tool List:",
	}
	for _, t := range s.Tools {
		lines = append(lines, p.Sprintf("  %s %.4f%s %5d hits", t.Code, t.Diameter, unit, t.Hits))
	}
	if len(s.Tools) > 0 {
		lines = append(lines, p.Sprintf("Smallest Tool: %.4f%s", s.SmallestTool, unit))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
