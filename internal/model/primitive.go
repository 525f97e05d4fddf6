package model

import "math"

// PrimitiveKind tags the variant held by a Primitive.
type PrimitiveKind int

const (
	KindLine   PrimitiveKind = iota // exposed straight draw from Start to End
	KindArc                         // exposed circular draw from Start to End around Center
	KindFlash                       // aperture flashed at Start
	KindRegion                      // filled polygon through Vertices
)

func (k PrimitiveKind) String() string {
	switch k {
	case KindLine:
		return "Line"
	case KindArc:
		return "Arc"
	case KindFlash:
		return "Flash"
	case KindRegion:
		return "Region"
	default:
		return "Unknown"
	}
}

// Polarity is the Gerber layer polarity a primitive is drawn with.
type Polarity int

const (
	PolarityDark  Polarity = iota // %LPD
	PolarityClear                 // %LPC
)

// Primitive is one drawing object of a Gerber layer. It is a closed tagged
// union: Kind selects which fields are meaningful.
//
//	Line:   Start, End, Aperture
//	Arc:    Start, End, Center, Clockwise, Aperture
//	Flash:  Start, Aperture
//	Region: Vertices (Aperture is empty)
type Primitive struct {
	Kind      PrimitiveKind `json:"kind"`
	Start     Point         `json:"start"`
	End       Point         `json:"end"`
	Center    Point         `json:"center"`
	Clockwise bool          `json:"clockwise,omitempty"`
	Vertices  []Point       `json:"vertices,omitempty"`
	Aperture  string        `json:"aperture,omitempty"` // D-code, local to its job until assembled
	Polarity  Polarity      `json:"polarity,omitempty"`
}

func Line(start, end Point, aperture string) Primitive {
	return Primitive{Kind: KindLine, Start: start, End: end, Aperture: aperture}
}

func Arc(center, start, end Point, clockwise bool, aperture string) Primitive {
	return Primitive{Kind: KindArc, Center: center, Start: start, End: end, Clockwise: clockwise, Aperture: aperture}
}

func Flash(at Point, aperture string) Primitive {
	return Primitive{Kind: KindFlash, Start: at, Aperture: aperture}
}

func Region(vertices []Point) Primitive {
	return Primitive{Kind: KindRegion, Vertices: vertices}
}

// MapPoints returns a copy of p with every coordinate passed through f.
func (p Primitive) MapPoints(f func(Point) Point) Primitive {
	out := p
	switch p.Kind {
	case KindLine:
		out.Start, out.End = f(p.Start), f(p.End)
	case KindArc:
		out.Start, out.End, out.Center = f(p.Start), f(p.End), f(p.Center)
	case KindFlash:
		out.Start = f(p.Start)
	case KindRegion:
		out.Vertices = make([]Point, len(p.Vertices))
		for i, v := range p.Vertices {
			out.Vertices[i] = f(v)
		}
	default:
		panic("model: unknown primitive kind " + p.Kind.String())
	}
	return out
}

// Bounds returns the extents of the primitive's path, ignoring the
// aperture size.
func (p Primitive) Bounds() Rect {
	r := EmptyRect()
	switch p.Kind {
	case KindLine:
		r = r.Extend(p.Start).Extend(p.End)
	case KindArc:
		r = r.Extend(p.Start).Extend(p.End)
		radius := p.Center.Dist(p.Start)
		a0, sweep := ArcAngles(p)
		// axis crossings inside the sweep
		for k := 0; k < 4; k++ {
			a := float64(k) * math.Pi / 2
			if angleInSweep(a, a0, sweep) {
				r = r.Extend(Point{X: p.Center.X + radius*math.Cos(a), Y: p.Center.Y + radius*math.Sin(a)})
			}
		}
	case KindFlash:
		r = r.Extend(p.Start)
	case KindRegion:
		for _, v := range p.Vertices {
			r = r.Extend(v)
		}
	default:
		panic("model: unknown primitive kind " + p.Kind.String())
	}
	return r
}

// ArcAngles returns the start angle and the signed sweep of an arc
// primitive. The sweep is negative for clockwise arcs. Coincident start
// and end points describe a full circle.
func ArcAngles(p Primitive) (start, sweep float64) {
	start = math.Atan2(p.Start.Y-p.Center.Y, p.Start.X-p.Center.X)
	end := math.Atan2(p.End.Y-p.Center.Y, p.End.X-p.Center.X)
	if p.Start.Dist(p.End) < 1e-9 {
		if p.Clockwise {
			return start, -2 * math.Pi
		}
		return start, 2 * math.Pi
	}
	sweep = end - start
	if p.Clockwise {
		for sweep >= 0 {
			sweep -= 2 * math.Pi
		}
	} else {
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}
	return start, sweep
}

func angleInSweep(a, start, sweep float64) bool {
	d := a - start
	if sweep < 0 {
		d = -d
		sweep = -sweep
	}
	d = math.Mod(d, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d <= sweep
}
