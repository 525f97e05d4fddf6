package model

import (
	"fmt"
	"math"
)

// BoardOutlineLayer is the layer whose drawn objects describe the board edge.
const BoardOutlineLayer = "boardoutline"

// Layer is an ordered list of primitives from one Gerber file.
type Layer struct {
	Name       string      `json:"name"`
	Primitives []Primitive `json:"primitives"`
}

// ToolDef binds a tool code to a drill diameter.
type ToolDef struct {
	Code     string  `json:"code"` // e.g. "T01"
	Diameter float64 `json:"diameter"`
}

// DrillHit is a single plunge of a tool.
type DrillHit struct {
	Tool string `json:"tool"`
	At   Point  `json:"at"`
}

// Job is the parsed CAM data of one board. A Job is built once and treated
// as read-only afterwards; transformations return copies.
type Job struct {
	Name            string        `json:"name"`
	Units           Units         `json:"units"`
	Outline         Polygon       `json:"outline,omitempty"` // trim boundary; nil means the extents rectangle
	OutlineExplicit bool          `json:"outline_explicit"`  // Outline came from a dedicated outline source
	Layers          []Layer       `json:"layers"`
	Apertures       []ApertureDef `json:"apertures"` // first-seen order
	Macros          []Macro       `json:"macros,omitempty"`
	Tools           []ToolDef     `json:"tools"` // first-seen order
	Drills          []DrillHit    `json:"drills"`
	Repeat          int           `json:"repeat"`
}

// Layer returns the named layer.
func (j *Job) Layer(name string) (*Layer, bool) {
	for i := range j.Layers {
		if j.Layers[i].Name == name {
			return &j.Layers[i], true
		}
	}
	return nil, false
}

// Aperture looks up a local aperture definition by D-code.
func (j *Job) Aperture(code string) (Aperture, bool) {
	for _, ad := range j.Apertures {
		if ad.Code == code {
			return ad.Aperture, true
		}
	}
	return Aperture{}, false
}

// Macro looks up a local macro by name.
func (j *Job) Macro(name string) (Macro, bool) {
	for _, m := range j.Macros {
		if m.Name == name {
			return m, true
		}
	}
	return Macro{}, false
}

// ToolDiameter looks up a local tool diameter.
func (j *Job) ToolDiameter(code string) (float64, bool) {
	for _, t := range j.Tools {
		if t.Code == code {
			return t.Diameter, true
		}
	}
	return 0, false
}

// Extents returns the job's bounding box: the explicit outline when one is
// set, else the drawn extent of the board outline layer, else everything
// drawn or drilled.
func (j *Job) Extents() Rect {
	if j.OutlineExplicit && len(j.Outline) >= 3 {
		return j.Outline.BoundingBox()
	}
	if l, ok := j.Layer(BoardOutlineLayer); ok && len(l.Primitives) > 0 {
		return l.Extents()
	}
	r := EmptyRect()
	for i := range j.Layers {
		r = r.Union(j.Layers[i].Extents())
	}
	for _, d := range j.Drills {
		r = r.Extend(d.At)
	}
	if len(j.Outline) >= 3 {
		r = r.Union(j.Outline.BoundingBox())
	}
	if r.IsEmpty() {
		return Rect{}
	}
	return r
}

// Boundary returns the polygon used for trimming and cutlines.
func (j *Job) Boundary() Polygon {
	if len(j.Outline) >= 3 {
		return j.Outline
	}
	return j.Extents().Polygon()
}

func (j *Job) Width() float64  { return j.Extents().Width() }
func (j *Job) Height() float64 { return j.Extents().Height() }
func (j *Job) Area() float64   { return j.Width() * j.Height() }

// MaxDimension returns the larger of width and height.
func (j *Job) MaxDimension() float64 { return math.Max(j.Width(), j.Height()) }

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	out := *j
	out.Outline = append(Polygon(nil), j.Outline...)
	out.Layers = make([]Layer, len(j.Layers))
	for i, l := range j.Layers {
		prims := make([]Primitive, len(l.Primitives))
		for k, p := range l.Primitives {
			prims[k] = p.MapPoints(func(pt Point) Point { return pt })
		}
		out.Layers[i] = Layer{Name: l.Name, Primitives: prims}
	}
	out.Apertures = append([]ApertureDef(nil), j.Apertures...)
	out.Macros = append([]Macro(nil), j.Macros...)
	out.Tools = append([]ToolDef(nil), j.Tools...)
	out.Drills = append([]DrillHit(nil), j.Drills...)
	return &out
}

// Shifted returns a copy of the job with every coordinate moved by dx, dy.
func (j *Job) Shifted(dx, dy float64) *Job {
	out := j.Clone()
	move := func(p Point) Point { return Point{X: p.X + dx, Y: p.Y + dy} }
	for i := range out.Layers {
		for k, p := range out.Layers[i].Primitives {
			out.Layers[i].Primitives[k] = p.MapPoints(move)
		}
	}
	for i := range out.Drills {
		out.Drills[i].At = move(out.Drills[i].At)
	}
	if len(out.Outline) > 0 {
		out.Outline = out.Outline.Translate(dx, dy)
	}
	return out
}

// Normalized returns a copy of the job moved so that no coordinate is
// negative. Jobs already in the first quadrant are returned unchanged.
func (j *Job) Normalized() *Job {
	r := EmptyRect()
	for i := range j.Layers {
		r = r.Union(j.Layers[i].Extents())
	}
	for _, d := range j.Drills {
		r = r.Extend(d.At)
	}
	if len(j.Outline) > 0 {
		r = r.Union(j.Outline.BoundingBox())
	}
	if r.IsEmpty() {
		return j
	}
	dx, dy := math.Max(0, -r.MinX), math.Max(0, -r.MinY)
	if dx == 0 && dy == 0 {
		return j
	}
	return j.Shifted(dx, dy)
}

// Validate checks the structural invariants of a parsed job.
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job has no name")
	}
	if j.Repeat < 1 {
		return fmt.Errorf("job %s: repeat must be at least 1, got %d", j.Name, j.Repeat)
	}
	for _, l := range j.Layers {
		for _, p := range l.Primitives {
			if p.Kind == KindRegion || p.Aperture == "" {
				continue
			}
			if _, ok := j.Aperture(p.Aperture); !ok {
				return fmt.Errorf("job %s: layer %s references undefined aperture %s", j.Name, l.Name, p.Aperture)
			}
		}
	}
	for _, d := range j.Drills {
		if _, ok := j.ToolDiameter(d.Tool); !ok {
			return fmt.Errorf("job %s: drill hit uses undefined tool %s", j.Name, d.Tool)
		}
	}
	return nil
}

// Extents returns the path extents of every primitive in the layer.
func (l *Layer) Extents() Rect {
	r := EmptyRect()
	for _, p := range l.Primitives {
		r = r.Union(p.Bounds())
	}
	return r
}
