package model

import "fmt"

// PlacementInstance places one copy of a job on the panel. X and Y locate the
// lower-left corner of the rotated job's extents.
type PlacementInstance struct {
	Job      string  `json:"job"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation int     `json:"rotation"` // 0, 90, 180 or 270, counter-clockwise
	Index    int     `json:"index"`    // distinguishes repeats of the same job
}

// Label returns the instance label written to placement files.
func (p PlacementInstance) Label() string {
	return fmt.Sprintf("%s#%d", p.Job, p.Index)
}

// Rotated reports whether the instance is turned by a quarter turn, which
// swaps its width and height.
func (p PlacementInstance) Rotated() bool {
	r := NormalizeRotation(p.Rotation)
	return r == 90 || r == 270
}

// Bounds returns the panel area occupied by the instance of a w x h job.
func (p PlacementInstance) Bounds(w, h float64) Rect {
	if p.Rotated() {
		w, h = h, w
	}
	return Rect{MinX: p.X, MinY: p.Y, MaxX: p.X + w, MaxY: p.Y + h}
}

// Transform maps job coordinates into panel coordinates for one instance.
type Transform struct {
	Origin   Point // job extents lower-left corner
	W, H     float64
	Rotation int
	Offset   Point // instance position
}

// NewTransform builds the transform placing job according to inst.
func NewTransform(job *Job, inst PlacementInstance) Transform {
	e := job.Extents()
	return Transform{
		Origin:   Point{X: e.MinX, Y: e.MinY},
		W:        e.Width(),
		H:        e.Height(),
		Rotation: NormalizeRotation(inst.Rotation),
		Offset:   Point{X: inst.X, Y: inst.Y},
	}
}

// Apply rotates p about the job's lower-left corner and moves it so the
// rotated extents start at the instance position.
func (t Transform) Apply(p Point) Point {
	q := p.Sub(t.Origin)
	switch t.Rotation {
	case 90:
		q = Point{X: t.H - q.Y, Y: q.X}
	case 180:
		q = Point{X: t.W - q.X, Y: t.H - q.Y}
	case 270:
		q = Point{X: q.Y, Y: t.W - q.X}
	}
	return q.Add(t.Offset)
}

// Panel is the assembled result: placed jobs merged into global coordinates
// with panel-global aperture and tool numbering.
type Panel struct {
	ID        string              `json:"id"`
	Units     Units               `json:"units"`
	Width     float64             `json:"width"`  // final extent including margins
	Height    float64             `json:"height"` // final extent including margins
	Instances []PlacementInstance `json:"instances"`
	Layers    []Layer             `json:"layers"`
	Drills    []DrillHit          `json:"drills"`
	Apertures []ApertureDef       `json:"apertures"`
	Macros    []Macro             `json:"macros,omitempty"`
	Tools     []ToolDef           `json:"tools"`
}

// Layer returns the named merged layer.
func (p *Panel) Layer(name string) (*Layer, bool) {
	for i := range p.Layers {
		if p.Layers[i].Name == name {
			return &p.Layers[i], true
		}
	}
	return nil, false
}

// Aperture resolves a global aperture code.
func (p *Panel) Aperture(code string) (Aperture, bool) {
	for _, ad := range p.Apertures {
		if ad.Code == code {
			return ad.Aperture, true
		}
	}
	return Aperture{}, false
}

// ToolDiameter resolves a global tool code.
func (p *Panel) ToolDiameter(code string) (float64, bool) {
	for _, t := range p.Tools {
		if t.Code == code {
			return t.Diameter, true
		}
	}
	return 0, false
}

// Area returns the panel area.
func (p *Panel) Area() float64 { return p.Width * p.Height }
