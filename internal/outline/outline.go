// Package outline draws the panel-level artwork around assembled jobs: cut
// lines, crop marks, fiducials, the panel outline and scoring lines.
package outline

import (
	"math"
	"sort"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/registry"
)

// Options configures the artwork added to the panel layers.
type Options struct {
	CutlineWidth  float64
	CutlineLayers []string

	CropMarkWidth  float64
	CropMarkLayers []string

	// FiducialPoints are offsets from the lower-left corner of the panel;
	// a negative coordinate is measured from the upper-right corner instead.
	FiducialPoints       []model.Point
	FiducialCopper       float64
	FiducialMask         float64
	FiducialCopperLayers []string
	FiducialMaskLayers   []string
}

// DefaultOptions returns the inch defaults.
func DefaultOptions() Options {
	return Options{
		CutlineWidth:         0.01,
		CropMarkWidth:        0.01,
		FiducialCopper:       0.08,
		FiducialMask:         0.128,
		FiducialCopperLayers: []string{"toplayer", "bottomlayer"},
		FiducialMaskLayers:   []string{"topsoldermask", "bottomsoldermask"},
	}
}

// Builder adds panel artwork, interning its apertures in the panel's
// aperture registry.
type Builder struct {
	apertures *registry.ApertureRegistry
	opts      Options
}

// New returns a builder drawing into panels built from apertures.
func New(apertures *registry.ApertureRegistry, opts Options) *Builder {
	return &Builder{apertures: apertures, opts: opts}
}

// Decorate appends cut lines, crop marks and fiducials to the configured
// layers of panel, after the job artwork. jobs resolves the panel's
// instances to the geometry that was assembled.
func (b *Builder) Decorate(panel *model.Panel, jobs map[string]*model.Job) {
	if b.opts.CutlineWidth > 0 && len(b.opts.CutlineLayers) > 0 {
		code := b.apertures.Intern(model.Circle(b.opts.CutlineWidth))
		var lines []model.Primitive
		for _, inst := range panel.Instances {
			if j, ok := jobs[inst.Job]; ok {
				lines = append(lines, b.cutlines(panel, j, inst, code)...)
			}
		}
		appendTo(panel, b.opts.CutlineLayers, lines)
	}
	if b.opts.CropMarkWidth > 0 && len(b.opts.CropMarkLayers) > 0 {
		code := b.apertures.Intern(model.Circle(b.opts.CropMarkWidth))
		appendTo(panel, b.opts.CropMarkLayers, CropMarks(panel, b.opts.CropMarkWidth, code))
	}
	if len(b.opts.FiducialPoints) > 0 {
		if b.opts.FiducialCopper > 0 {
			code := b.apertures.Intern(model.Circle(b.opts.FiducialCopper))
			appendTo(panel, b.opts.FiducialCopperLayers, Fiducials(panel, b.opts.FiducialPoints, code))
		}
		if b.opts.FiducialMask > 0 {
			code := b.apertures.Intern(model.Circle(b.opts.FiducialMask))
			appendTo(panel, b.opts.FiducialMaskLayers, Fiducials(panel, b.opts.FiducialPoints, code))
		}
	}
	panel.Apertures = b.apertures.Definitions()
	panel.Macros = b.apertures.Macros()
}

func appendTo(panel *model.Panel, layers []string, prims []model.Primitive) {
	if len(prims) == 0 {
		return
	}
	for _, name := range layers {
		if l, ok := panel.Layer(name); ok {
			l.Primitives = append(l.Primitives, prims...)
		}
	}
}

// cutlines traces one instance's board edge. An explicit outline polygon
// wins, then the job's board outline layer redrawn with the cut line
// aperture, then the instance rectangle.
func (b *Builder) cutlines(panel *model.Panel, j *model.Job, inst model.PlacementInstance, code string) []model.Primitive {
	t := model.NewTransform(j, inst)
	if j.OutlineExplicit && len(j.Outline) >= 3 {
		poly := j.Outline.Open()
		out := make([]model.Primitive, len(poly))
		for i := range poly {
			out[i] = model.Line(t.Apply(poly[i]), t.Apply(poly[(i+1)%len(poly)]), code)
		}
		return out
	}
	if l, ok := j.Layer(model.BoardOutlineLayer); ok && len(l.Primitives) > 0 {
		var out []model.Primitive
		for _, p := range l.Primitives {
			switch p.Kind {
			case model.KindLine, model.KindArc:
				q := p.MapPoints(t.Apply)
				q.Aperture, q.Polarity = code, model.PolarityDark
				out = append(out, q)
			case model.KindRegion:
				v := model.Polygon(p.Vertices).Open()
				for i := range v {
					out = append(out, model.Line(t.Apply(v[i]), t.Apply(v[(i+1)%len(v)]), code))
				}
			case model.KindFlash:
			default:
				panic("outline: unknown primitive kind " + p.Kind.String())
			}
		}
		return out
	}
	return rectangleCutline(inst.Bounds(j.Width(), j.Height()), panel, b.opts.CutlineWidth/2, code)
}

// rectangleCutline draws r grown by radius so the line runs just outside
// the board. Sides on a panel edge are pulled in so the line stays on the
// panel.
func rectangleCutline(r model.Rect, panel *model.Panel, radius float64, code string) []model.Primitive {
	onEdge := func(a, b float64) bool { return math.Abs(a-b) < 0.001 }
	g := r.Inflate(radius)
	if onEdge(r.MinX, 0) {
		g.MinX += 2 * radius
	}
	if onEdge(r.MaxX, panel.Width) {
		g.MaxX -= 2 * radius
	}
	if onEdge(r.MinY, 0) {
		g.MinY += 2 * radius
	}
	if onEdge(r.MaxY, panel.Height) {
		g.MaxY -= 2 * radius
	}
	return closedPath(g.Polygon(), code)
}

func closedPath(poly model.Polygon, code string) []model.Primitive {
	out := make([]model.Primitive, len(poly))
	for i := range poly {
		out[i] = model.Line(poly[i], poly[(i+1)%len(poly)], code)
	}
	return out
}

// CropMarkArm returns the length of each crop mark arm.
func CropMarkArm(u model.Units) float64 {
	if u == model.UnitsMetric {
		return 3
	}
	return 0.125
}

// CropMarks draws an L at each panel corner with the outer edge of the line
// flush with the panel border.
func CropMarks(panel *model.Panel, width float64, code string) []model.Primitive {
	arm := CropMarkArm(panel.Units)
	off := width / 2
	minX, minY := off, off
	maxX, maxY := panel.Width-off, panel.Height-off
	corner := func(x, y, dx, dy float64) []model.Primitive {
		c := model.Point{X: x, Y: y}
		return []model.Primitive{
			model.Line(model.Point{X: x + dx, Y: y}, c, code),
			model.Line(c, model.Point{X: x, Y: y + dy}, code),
		}
	}
	var out []model.Primitive
	out = append(out, corner(minX, minY, arm, arm)...)
	out = append(out, corner(maxX, minY, -arm, arm)...)
	out = append(out, corner(maxX, maxY, -arm, -arm)...)
	out = append(out, corner(minX, maxY, arm, -arm)...)
	return out
}

// Fiducials flashes code at every fiducial point.
func Fiducials(panel *model.Panel, points []model.Point, code string) []model.Primitive {
	out := make([]model.Primitive, 0, len(points))
	for _, p := range points {
		x, y := p.X, p.Y
		if x < 0 {
			x += panel.Width
		}
		if y < 0 {
			y += panel.Height
		}
		out = append(out, model.Flash(model.Point{X: x, Y: y}, code))
	}
	return out
}

// Drawing is a stand-alone layer with its own aperture table.
type Drawing struct {
	Layer     model.Layer
	Apertures []model.ApertureDef
}

// hairline is the aperture used for the panel outline and scoring files.
var hairline = model.ApertureDef{Code: "D10", Aperture: model.Circle(0.001)}

// PanelOutline draws the panel border.
func PanelOutline(panel *model.Panel) Drawing {
	r := model.Rect{MaxX: panel.Width, MaxY: panel.Height}
	return Drawing{
		Layer:     model.Layer{Name: "outline", Primitives: closedPath(r.Polygon(), hairline.Code)},
		Apertures: []model.ApertureDef{hairline},
	}
}

// Scoring draws a line across the whole panel at every job edge that is
// not a panel edge. Facing edges of neighbouring jobs at most gap apart
// share one line down the middle of the gap.
func Scoring(panel *model.Panel, jobs map[string]*model.Job, gap float64) Drawing {
	var xs, ys []float64
	for _, inst := range panel.Instances {
		j, ok := jobs[inst.Job]
		if !ok {
			continue
		}
		r := inst.Bounds(j.Width(), j.Height())
		xs = append(xs, r.MinX, r.MaxX)
		ys = append(ys, r.MinY, r.MaxY)
	}
	var prims []model.Primitive
	for _, x := range scoreLines(xs, gap, panel.Width) {
		prims = append(prims, model.Line(model.Point{X: x, Y: 0}, model.Point{X: x, Y: panel.Height}, hairline.Code))
	}
	for _, y := range scoreLines(ys, gap, panel.Height) {
		prims = append(prims, model.Line(model.Point{X: 0, Y: y}, model.Point{X: panel.Width, Y: y}, hairline.Code))
	}
	return Drawing{
		Layer:     model.Layer{Name: "scoring", Primitives: prims},
		Apertures: []model.ApertureDef{hairline},
	}
}

// scoreLines clusters sorted edge positions no more than gap apart and
// returns each cluster's midpoint, skipping those on the panel border.
func scoreLines(edges []float64, gap, limit float64) []float64 {
	const near = 0.001
	sort.Float64s(edges)
	var out []float64
	for i := 0; i < len(edges); {
		k := i
		for k+1 < len(edges) && edges[k+1]-edges[i] <= gap+near {
			k++
		}
		if mid := (edges[i] + edges[k]) / 2; mid > near && mid < limit-near {
			out = append(out, mid)
		}
		i = k + 1
	}
	return out
}
