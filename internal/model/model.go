package model

import (
	"fmt"
	"math"
)

// Units is the measurement system of a job or a panel.
type Units string

const (
	UnitsInch   Units = "inch"
	UnitsMetric Units = "metric"
)

// Resolution returns the smallest coordinate step written to output files:
// 1e-5 in (format 2.5) or 1e-3 mm (format 5.3).
func (u Units) Resolution() float64 {
	if u == UnitsMetric {
		return 0.001
	}
	return 0.00001
}

// Convert converts v from units u into units to.
func (u Units) Convert(v float64, to Units) float64 {
	switch {
	case u == to:
		return v
	case u == UnitsInch && to == UnitsMetric:
		return v * 25.4
	default:
		return v / 25.4
	}
}

// Point is a 2D coordinate in job units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns a + b.
func (a Point) Add(b Point) Point { return Point{X: a.X + b.X, Y: a.Y + b.Y} }

// Sub returns a - b.
func (a Point) Sub(b Point) Point { return Point{X: a.X - b.X, Y: a.Y - b.Y} }

// Dist returns the euclidean distance between a and b.
func (a Point) Dist(b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

func (a Point) String() string { return fmt.Sprintf("(%g,%g)", a.X, a.Y) }

// Rect is an axis aligned box.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// EmptyRect returns a box that any Extend call replaces.
func EmptyRect() Rect {
	return Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// IsEmpty reports whether nothing has been added to r.
func (r Rect) IsEmpty() bool { return r.MinX > r.MaxX || r.MinY > r.MaxY }

func (r Rect) Width() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxX - r.MinX
}

func (r Rect) Height() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxY - r.MinY
}

// Extend grows r to include p.
func (r Rect) Extend(p Point) Rect {
	r.MinX = math.Min(r.MinX, p.X)
	r.MinY = math.Min(r.MinY, p.Y)
	r.MaxX = math.Max(r.MaxX, p.X)
	r.MaxY = math.Max(r.MaxY, p.Y)
	return r
}

// Union returns the smallest box holding r and o.
func (r Rect) Union(o Rect) Rect {
	if o.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return o
	}
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Inflate grows r by d on every side.
func (r Rect) Inflate(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// Overlaps reports whether the interiors of r and o intersect. Touching
// edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	const eps = 1e-9
	return r.MinX < o.MaxX-eps && o.MinX < r.MaxX-eps &&
		r.MinY < o.MaxY-eps && o.MinY < r.MaxY-eps
}

// Contains reports whether o lies inside r, edges included.
func (r Rect) Contains(o Rect) bool {
	const eps = 1e-9
	return o.MinX >= r.MinX-eps && o.MaxX <= r.MaxX+eps &&
		o.MinY >= r.MinY-eps && o.MaxY <= r.MaxY+eps
}

// Polygon returns the four corners of r counter-clockwise from lower-left.
func (r Rect) Polygon() Polygon {
	return Polygon{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}
}

// Polygon is a closed sequence of points. The polygon is implicitly closed:
// the last point connects back to the first.
type Polygon []Point

// BoundingBox returns the extents of the polygon.
func (p Polygon) BoundingBox() Rect {
	r := EmptyRect()
	for _, pt := range p {
		r = r.Extend(pt)
	}
	return r
}

// Translate shifts all points by dx, dy.
func (p Polygon) Translate(dx, dy float64) Polygon {
	result := make(Polygon, len(p))
	for i, pt := range p {
		result[i] = Point{X: pt.X + dx, Y: pt.Y + dy}
	}
	return result
}

// SignedArea returns the shoelace area, positive for counter-clockwise order.
func (p Polygon) SignedArea() float64 {
	n := len(p)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return sum / 2
}

// Area returns the absolute enclosed area.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// Open drops a trailing point equal to the first one, so explicitly closed
// input can be treated like implicitly closed polygons.
func (p Polygon) Open() Polygon {
	if len(p) > 1 && p[0].Dist(p[len(p)-1]) < 1e-9 {
		return p[:len(p)-1]
	}
	return p
}

// CounterClockwise returns p with counter-clockwise winding.
func (p Polygon) CounterClockwise() Polygon {
	if p.SignedArea() >= 0 {
		return p
	}
	result := make(Polygon, len(p))
	for i, pt := range p {
		result[len(p)-1-i] = pt
	}
	return result
}
