package engine

import (
	"fmt"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// RowEntry names one job in a manual layout row.
type RowEntry struct {
	Job     string
	Rotated bool
}

// Rows lays out a manual arrangement. Rows are stacked from the bottom of
// the panel upwards and each row is filled left to right; a row is as tall
// as its tallest job. Every mention of a job is a separate instance.
func Rows(rows [][]RowEntry, jobs map[string]*model.Job, opts Options) (Result, error) {
	var res Result
	seen := make(map[string]int)
	y := 0.0
	for ri, row := range rows {
		if len(row) == 0 {
			continue
		}
		if ri > 0 && len(res.Instances) > 0 {
			y += opts.YSpacing
		}
		x, rowH := 0.0, 0.0
		for ci, e := range row {
			j, ok := jobs[e.Job]
			if !ok {
				return Result{}, fmt.Errorf("layout row %d references unknown job %q", ri+1, e.Job)
			}
			if ci > 0 {
				x += opts.XSpacing
			}
			seen[e.Job]++
			inst := model.PlacementInstance{Job: e.Job, X: x, Y: y, Index: seen[e.Job]}
			w, h := j.Width(), j.Height()
			if e.Rotated {
				inst.Rotation = 90
				w, h = h, w
			}
			res.Instances = append(res.Instances, inst)
			x += w
			rowH = max(rowH, h)
			res.Width = max(res.Width, x)
		}
		y += rowH
		res.Height = y
	}
	res.Complete = true
	return res, Check(res.Instances, jobs, opts)
}

// Check verifies a fixed arrangement: every instance names a known job,
// stays inside the usable panel area, and keeps the configured spacing to
// every other instance.
func Check(instances []model.PlacementInstance, jobs map[string]*model.Job, opts Options) error {
	bounds := make([]model.Rect, len(instances))
	for i, inst := range instances {
		j, ok := jobs[inst.Job]
		if !ok {
			return fmt.Errorf("placement %s references unknown job %q", inst.Label(), inst.Job)
		}
		if inst.Rotation%90 != 0 {
			return fmt.Errorf("placement %s: rotation %d is not a multiple of 90", inst.Label(), inst.Rotation)
		}
		b := inst.Bounds(j.Width(), j.Height())
		if b.MinX < -eps || b.MinY < -eps || b.MaxX > opts.PanelWidth+eps || b.MaxY > opts.PanelHeight+eps {
			return fmt.Errorf("placement %s at (%g, %g) leaves the %gx%g panel area: %w",
				inst.Label(), inst.X, inst.Y, opts.PanelWidth, opts.PanelHeight, model.ErrNoFeasiblePlacement)
		}
		bounds[i] = b
		for k := 0; k < i; k++ {
			if spaced(bounds[k], opts.XSpacing, opts.YSpacing).Overlaps(b) {
				return fmt.Errorf("placements %s and %s overlap: %w",
					instances[k].Label(), inst.Label(), model.ErrNoFeasiblePlacement)
			}
		}
	}
	return nil
}

// spaced inflates r by the spacing, less a hair so that instances sitting
// exactly one spacing apart do not count as overlapping.
func spaced(r model.Rect, xsp, ysp float64) model.Rect {
	return model.Rect{
		MinX: r.MinX - xsp + eps, MinY: r.MinY - ysp + eps,
		MaxX: r.MaxX + xsp - eps, MaxY: r.MaxY + ysp - eps,
	}
}
