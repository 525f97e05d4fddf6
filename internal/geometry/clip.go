package geometry

import (
	"math"
	"sort"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Segment is a straight piece of a clipped line.
type Segment struct {
	Start, End Point
}

// ClipSegment returns the parts of the segment a->b lying inside poly, in
// order from a to b. Parts running along the boundary count as inside.
func ClipSegment(a, b Point, poly model.Polygon) []Segment {
	if a.Dist(b) <= Zeroish {
		if Contains(poly, a) {
			return []Segment{{Start: a, End: b}}
		}
		return nil
	}
	r := b.Sub(a)
	ts := []float64{0, 1}
	n := len(poly)
	for i := 0; i < n; i++ {
		c, d := poly[i], poly[(i+1)%n]
		s := d.Sub(c)
		denom := r.X*s.Y - r.Y*s.X
		ca := c.Sub(a)
		if math.Abs(denom) > Zeroish*Zeroish {
			t := (ca.X*s.Y - ca.Y*s.X) / denom
			u := (ca.X*r.Y - ca.Y*r.X) / denom
			if t > 0 && t < 1 && u >= -Zeroish && u <= 1+Zeroish {
				ts = append(ts, t)
			}
			continue
		}
		// parallel: only collinear edges add breakpoints
		if math.Abs(ca.X*r.Y-ca.Y*r.X) > Zeroish*math.Hypot(r.X, r.Y) {
			continue
		}
		l2 := dot(r, r)
		for _, q := range []Point{c, d} {
			if t := dot(q.Sub(a), r) / l2; t > 0 && t < 1 {
				ts = append(ts, t)
			}
		}
	}
	return keepInside(ts, func(t float64) Point { return lerp(a, b, t) }, poly,
		func(t0, t1 float64) Segment {
			seg := Segment{Start: lerp(a, b, t0), End: lerp(a, b, t1)}
			if t1 == 1 {
				seg.End = b
			}
			return seg
		})
}

// ClipArc returns the parts of an arc primitive lying inside poly as arc
// primitives with the same center, direction and aperture.
func ClipArc(arc model.Primitive, poly model.Polygon) []model.Primitive {
	start, sweep := model.ArcAngles(arc)
	radius := arc.Center.Dist(arc.Start)
	at := func(t float64) Point {
		a := start + sweep*t
		return Point{X: arc.Center.X + radius*math.Cos(a), Y: arc.Center.Y + radius*math.Sin(a)}
	}
	if radius <= Zeroish {
		if Contains(poly, arc.Start) {
			return []model.Primitive{arc}
		}
		return nil
	}
	ts := []float64{0, 1}
	n := len(poly)
	for i := 0; i < n; i++ {
		for _, q := range circleSegment(arc.Center, radius, poly[i], poly[(i+1)%n]) {
			a := math.Atan2(q.Y-arc.Center.Y, q.X-arc.Center.X)
			d := a - start
			if sweep < 0 {
				d = -d
			}
			d = math.Mod(d, 2*math.Pi)
			if d < 0 {
				d += 2 * math.Pi
			}
			if t := d / math.Abs(sweep); t > 0 && t < 1 {
				ts = append(ts, t)
			}
		}
	}
	return keepInside(ts, at, poly, func(t0, t1 float64) model.Primitive {
		if t0 == 0 && t1 == 1 {
			return arc
		}
		out := arc
		out.Start, out.End = at(t0), at(t1)
		if t0 == 0 {
			out.Start = arc.Start
		}
		if t1 == 1 {
			out.End = arc.End
		}
		return out
	})
}

// keepInside sorts the breakpoints of a parametrized path, tests the
// midpoint of each piece and joins consecutive inside pieces.
func keepInside[T any](ts []float64, at func(float64) Point, poly model.Polygon, piece func(t0, t1 float64) T) []T {
	sort.Float64s(ts)
	uniq := ts[:1]
	for _, t := range ts[1:] {
		if t-uniq[len(uniq)-1] > 1e-12 {
			uniq = append(uniq, t)
		}
	}
	var out []T
	runStart := -1.0
	for i := 0; i+1 < len(uniq); i++ {
		t0, t1 := uniq[i], uniq[i+1]
		inside := Contains(poly, at((t0+t1)/2))
		switch {
		case inside && runStart < 0:
			runStart = t0
		case !inside && runStart >= 0:
			out = append(out, piece(runStart, t0))
			runStart = -1
		}
	}
	if runStart >= 0 {
		out = append(out, piece(runStart, uniq[len(uniq)-1]))
	}
	return out
}

// circleSegment returns the intersections of a circle with the segment c->d.
func circleSegment(center Point, radius float64, c, d Point) []Point {
	s := d.Sub(c)
	f := c.Sub(center)
	qa := dot(s, s)
	if qa < Zeroish*Zeroish {
		return nil
	}
	qb := 2 * dot(f, s)
	qc := dot(f, f) - radius*radius
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	var pts []Point
	for _, u := range []float64{(-qb - sq) / (2 * qa), (-qb + sq) / (2 * qa)} {
		if u >= -Zeroish && u <= 1+Zeroish {
			pts = append(pts, lerp(c, d, u))
		}
	}
	return pts
}

// ClipPolygon returns the parts of subject inside clip. A convex clip
// polygon is applied with Sutherland-Hodgman in one pass; a concave one is
// triangulated first, so the result may hold several pieces.
func ClipPolygon(subject, clip model.Polygon) []model.Polygon {
	subject = subject.Open()
	clip = clip.Open().CounterClockwise()
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	if containsPolygon(clip, subject) {
		return []model.Polygon{subject}
	}
	pieces := []model.Polygon{clip}
	if !IsConvex(clip) {
		pieces = Triangulate(clip)
	}
	var out []model.Polygon
	for _, piece := range pieces {
		if res := sutherlandHodgman(subject, piece); len(res) >= 3 && res.Area() > Zeroish*Zeroish {
			out = append(out, res)
		}
	}
	return out
}

// containsPolygon reports whether every vertex of inner is inside outer and
// no edge of inner leaves outer.
func containsPolygon(outer, inner model.Polygon) bool {
	n := len(inner)
	for i := 0; i < n; i++ {
		segs := ClipSegment(inner[i], inner[(i+1)%n], outer)
		if len(segs) != 1 || segs[0].Start.Dist(inner[i]) > Zeroish || segs[0].End.Dist(inner[(i+1)%n]) > Zeroish {
			return false
		}
	}
	return true
}

func sutherlandHodgman(subject, clip model.Polygon) model.Polygon {
	out := subject
	n := len(clip)
	for i := 0; i < n && len(out) > 0; i++ {
		a, b := clip[i], clip[(i+1)%n]
		in := out
		out = nil
		prev := in[len(in)-1]
		prevIn := cross(a, b, prev) >= -Zeroish*Zeroish
		for _, cur := range in {
			curIn := cross(a, b, cur) >= -Zeroish*Zeroish
			if curIn != prevIn {
				out = appendDistinct(out, lineCross(prev, cur, a, b))
			}
			if curIn {
				out = appendDistinct(out, cur)
			}
			prev, prevIn = cur, curIn
		}
	}
	if len(out) > 1 && out[0].Dist(out[len(out)-1]) <= Zeroish {
		out = out[:len(out)-1]
	}
	return out
}

func appendDistinct(pts model.Polygon, p Point) model.Polygon {
	if len(pts) > 0 && pts[len(pts)-1].Dist(p) <= Zeroish {
		return pts
	}
	return append(pts, p)
}

// lineCross intersects segment p->q with the infinite line through a, b.
func lineCross(p, q, a, b Point) Point {
	cp := cross(a, b, p)
	cq := cross(a, b, q)
	if cp == cq {
		return p
	}
	return lerp(p, q, cp/(cp-cq))
}
