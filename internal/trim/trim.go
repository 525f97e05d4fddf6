// Package trim clips a job's artwork and drill hits to its board outline so
// that neighbouring jobs on a panel cannot bleed into each other.
package trim

import (
	"math"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/geometry"
	"github.com/piwi3910/gerbmerge/internal/model"
)

// Options selects what gets trimmed.
type Options struct {
	Gerber   bool
	Excellon bool
	// MinFlash is the smallest width or height kept when a rectangular
	// flash is cut down. Zero means ten output resolution steps.
	MinFlash float64
}

// Job returns a trimmed copy of job. The outline polygon of the job is the
// trim boundary.
//
// An outline that is not a closed simple polygon with positive area is
// never guessed at: the job is returned untouched together with a
// *model.OutlineError, which callers report as a warning.
func Job(job *model.Job, opts Options) (*model.Job, error) {
	if !opts.Gerber && !opts.Excellon {
		return job, nil
	}
	boundary := job.Boundary().Open()
	if err := geometry.Validate(boundary); err != nil {
		return job, &model.OutlineError{Job: job.Name, Reason: err.Error()}
	}
	if opts.MinFlash <= 0 {
		opts.MinFlash = 10 * job.Units.Resolution()
	}

	out := job.Clone()
	if opts.Gerber {
		t := &trimmer{job: out, boundary: boundary, minFlash: opts.MinFlash}
		for i := range out.Layers {
			out.Layers[i].Primitives = t.primitives(out.Layers[i].Primitives)
		}
	}
	if opts.Excellon {
		out.Drills, out.Tools = Drills(out.Drills, out.Tools, boundary)
	}
	return out, nil
}

// Drills keeps the hits inside boundary, edge included, and drops tools
// left without hits.
func Drills(hits []model.DrillHit, tools []model.ToolDef, boundary model.Polygon) ([]model.DrillHit, []model.ToolDef) {
	kept := make([]model.DrillHit, 0, len(hits))
	used := make(map[string]bool)
	for _, h := range hits {
		if geometry.Contains(boundary, h.At) {
			kept = append(kept, h)
			used[h.Tool] = true
		}
	}
	var keptTools []model.ToolDef
	for _, t := range tools {
		if used[t.Code] {
			keptTools = append(keptTools, t)
		}
	}
	return kept, keptTools
}

type trimmer struct {
	job      *model.Job
	boundary model.Polygon
	minFlash float64
}

func (t *trimmer) primitives(in []model.Primitive) []model.Primitive {
	out := make([]model.Primitive, 0, len(in))
	for _, p := range in {
		switch p.Kind {
		case model.KindLine:
			for _, s := range geometry.ClipSegment(p.Start, p.End, t.boundary) {
				q := p
				q.Start, q.End = s.Start, s.End
				out = append(out, q)
			}
		case model.KindArc:
			out = append(out, geometry.ClipArc(p, t.boundary)...)
		case model.KindFlash:
			out = append(out, t.flash(p)...)
		case model.KindRegion:
			for _, poly := range geometry.ClipPolygon(p.Vertices, t.boundary) {
				q := p
				q.Vertices = poly
				out = append(out, q)
			}
		default:
			panic("trim: unknown primitive kind " + p.Kind.String())
		}
	}
	return out
}

// flash keeps a flash whose footprint is inside the outline. A rectangle
// sticking out is replaced by a smaller rectangle, or by region pieces when
// a non-rectangular outline cuts it. Other shapes are kept when their
// center is inside.
func (t *trimmer) flash(p model.Primitive) []model.Primitive {
	a, ok := t.job.Aperture(p.Aperture)
	if !ok || a.Shape != model.ShapeRectangle {
		if geometry.Contains(t.boundary, p.Start) {
			return []model.Primitive{p}
		}
		return nil
	}
	w, h := a.Width()/2, a.Height()/2
	footprint := model.Rect{MinX: p.Start.X - w, MinY: p.Start.Y - h, MaxX: p.Start.X + w, MaxY: p.Start.Y + h}.Polygon()
	pieces := geometry.ClipPolygon(footprint, t.boundary)
	if len(pieces) == 1 && samePolygon(pieces[0], footprint) {
		return []model.Primitive{p}
	}
	if len(pieces) == 1 && isAxisRect(pieces[0]) {
		bb := pieces[0].BoundingBox()
		if math.Min(bb.Width(), bb.Height()) < t.minFlash {
			return nil
		}
		q := p
		q.Aperture = t.localAperture(model.Rectangle(bb.Width(), bb.Height()))
		q.Start = model.Point{X: (bb.MinX + bb.MaxX) / 2, Y: (bb.MinY + bb.MaxY) / 2}
		return []model.Primitive{q}
	}
	var out []model.Primitive
	for _, poly := range pieces {
		r := model.Region(poly)
		r.Polarity = p.Polarity
		out = append(out, r)
	}
	return out
}

// localAperture returns a local code for a, adding a definition with an
// unused D-code when the job has none.
func (t *trimmer) localAperture(a model.Aperture) string {
	key := a.Key()
	highest := 9
	for _, d := range t.job.Apertures {
		if d.Aperture.Key() == key {
			return d.Code
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(d.Code, "D")); err == nil && n > highest {
			highest = n
		}
	}
	code := "D" + strconv.Itoa(highest+1)
	t.job.Apertures = append(t.job.Apertures, model.ApertureDef{Code: code, Aperture: a})
	return code
}

func samePolygon(a, b model.Polygon) bool {
	return len(a) == len(b) && math.Abs(a.Area()-b.Area()) <= geometry.Zeroish
}

func isAxisRect(p model.Polygon) bool {
	if len(p) != 4 {
		return false
	}
	bb := p.BoundingBox()
	return math.Abs(bb.Width()*bb.Height()-p.Area()) <= geometry.Zeroish
}
