// Package geometry provides the 2D predicates and clipping routines used to
// trim board artwork to its outline. Polygons follow the model package
// conventions: x increases to the right, y increases up the page, and the
// last vertex connects back to the first.
package geometry

import (
	"fmt"
	"math"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Zeroish absorbs rounding error in geometric predicates. Coordinates are in
// inches or millimeters, so 1e-6 is well below any output resolution.
var Zeroish = 1e-6

type Point = model.Point

// cross returns the z component of (a-o) x (b-o). Positive means b is left
// of the directed line o->a.
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func dot(a, b Point) float64 { return a.X*b.X + a.Y*b.Y }

func lerp(a, b Point, t float64) Point {
	return Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// OnSegment reports whether p lies on the segment a->b within Zeroish.
func OnSegment(p, a, b Point) bool {
	ab := b.Sub(a)
	l2 := dot(ab, ab)
	if l2 < Zeroish*Zeroish {
		return p.Dist(a) <= Zeroish
	}
	t := dot(p.Sub(a), ab) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return p.Dist(lerp(a, b, t)) <= Zeroish
}

// Contains reports whether p is inside poly or on its boundary.
func Contains(poly model.Polygon, p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if OnSegment(p, poly[i], poly[(i+1)%n]) {
			return true
		}
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// IsConvex reports whether every turn of the polygon has the same sign.
// Collinear vertices are allowed.
func IsConvex(poly model.Polygon) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		c := cross(poly[i], poly[(i+1)%n], poly[(i+2)%n])
		if math.Abs(c) <= Zeroish*Zeroish {
			continue
		}
		s := 1
		if c < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return sign != 0
}

// segmentsTouch reports whether the closed segments a->b and c->d share
// any point.
func segmentsTouch(a, b, c, d Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	if ((d1 > Zeroish && d2 < -Zeroish) || (d1 < -Zeroish && d2 > Zeroish)) &&
		((d3 > Zeroish && d4 < -Zeroish) || (d3 < -Zeroish && d4 > Zeroish)) {
		return true
	}
	return OnSegment(a, c, d) || OnSegment(b, c, d) || OnSegment(c, a, b) || OnSegment(d, a, b)
}

// Validate checks that poly is a closed, simple polygon with positive area.
// A trailing vertex equal to the first is accepted as an explicit closure.
func Validate(poly model.Polygon) error {
	p := poly.Open()
	n := len(p)
	if n < 3 {
		return fmt.Errorf("outline has %d vertices, need at least 3", n)
	}
	for i := 0; i < n; i++ {
		if p[i].Dist(p[(i+1)%n]) <= Zeroish {
			return fmt.Errorf("outline repeats vertex %v", p[i])
		}
	}
	if p.Area() <= Zeroish {
		return fmt.Errorf("outline has zero area")
	}
	for i := 0; i < n; i++ {
		a, b := p[i], p[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // adjacent through the closing edge
			}
			if segmentsTouch(a, b, p[j], p[(j+1)%n]) {
				return fmt.Errorf("outline is self-intersecting near %v", a)
			}
		}
	}
	return nil
}

// Triangulate splits a simple polygon into triangles by ear clipping.
// Collinear vertices are dropped. The result is counter-clockwise.
func Triangulate(poly model.Polygon) []model.Polygon {
	p := poly.Open().CounterClockwise()
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	var tris []model.Polygon
	for len(idx) > 3 {
		progress := false
		for i := range idx {
			prev := p[idx[(i+len(idx)-1)%len(idx)]]
			cur := p[idx[i]]
			next := p[idx[(i+1)%len(idx)]]
			c := cross(prev, cur, next)
			if math.Abs(c) <= Zeroish*Zeroish {
				idx = append(idx[:i], idx[i+1:]...)
				progress = true
				break
			}
			if c < 0 {
				continue // reflex
			}
			ear := true
			for _, k := range idx {
				q := p[k]
				if q == prev || q == cur || q == next {
					continue
				}
				if inTriangle(q, prev, cur, next) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			tris = append(tris, model.Polygon{prev, cur, next})
			idx = append(idx[:i], idx[i+1:]...)
			progress = true
			break
		}
		if !progress {
			break
		}
	}
	if len(idx) == 3 {
		t := model.Polygon{p[idx[0]], p[idx[1]], p[idx[2]]}
		if t.Area() > Zeroish*Zeroish {
			tris = append(tris, t)
		}
	}
	return tris
}

// inTriangle reports whether q is inside or on the counter-clockwise
// triangle a, b, c.
func inTriangle(q, a, b, c Point) bool {
	return cross(a, b, q) >= -Zeroish*Zeroish &&
		cross(b, c, q) >= -Zeroish*Zeroish &&
		cross(c, a, q) >= -Zeroish*Zeroish
}
