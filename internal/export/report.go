package export

import (
	"fmt"
	"io"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/xuri/excelize/v2"
)

// Report sheet names.
const (
	SheetPlacements = "Placements"
	SheetTools      = "Tools"
	SheetStatistics = "Statistics"
)

// Report writes an xlsx workbook with the placements, the drill tools and
// the statistics of panel.
func Report(w io.Writer, panel *model.Panel, jobs map[string]*model.Job, stats Stats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetPlacements); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, SheetPlacements, 1, "Label", "Job", "X", "Y", "Rotation", "Width", "Height"); err != nil {
		return err
	}
	for i, inst := range panel.Instances {
		var bw, bh float64
		if j, ok := jobs[inst.Job]; ok {
			b := inst.Bounds(j.Width(), j.Height())
			bw, bh = b.Width(), b.Height()
		}
		if err := setRow(f, SheetPlacements, i+2, inst.Label(), inst.Job, inst.X, inst.Y, inst.Rotation, bw, bh); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetTools); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := setRow(f, SheetTools, 1, "Tool", "Diameter", "Hits"); err != nil {
		return err
	}
	for i, t := range stats.Tools {
		if err := setRow(f, SheetTools, i+2, t.Code, t.Diameter, t.Hits); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetStatistics); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	rows := [][]any{
		{"Panel", panel.ID},
		{"Units", string(stats.Units)},
		{"Width", stats.Width},
		{"Height", stats.Height},
		{"Area", stats.Area()},
		{"Job area", stats.JobArea},
		{"Estimated usage", stats.Estimated},
		{"Achieved usage", stats.Achieved},
		{"Drill hits", stats.DrillHits},
		{"Drill density", stats.DrillDensity},
		{"Smallest tool", stats.SmallestTool},
	}
	for i, r := range rows {
		if err := setRow(f, SheetStatistics, i+1, r...); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to fill %s row %d: %w", sheet, row, err)
	}
	return nil
}
