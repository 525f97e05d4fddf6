// Package importer reads board outlines drawn in DXF.
package importer

import (
	"fmt"
	"math"
	"sort"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"
	"github.com/yofu/dxf/entity"
)

// chainTolerance is the largest gap between two endpoints that are still
// considered connected.
const chainTolerance = 1e-4

// segment represents a line segment between two 2D points, used for
// chaining disconnected LINE and ARC entities into closed outlines.
type segment struct {
	start model.Point
	end   model.Point
}

// Result is the outline found in a DXF file.
type Result struct {
	Outline  model.Polygon
	Warnings []string
}

// ImportDXF reads the board outline from a DXF file. Every closed shape
// (LWPOLYLINE, CIRCLE, or chain of connected LINEs and ARCs) is a candidate
// and the one enclosing the largest area wins. Coordinates are taken as
// they are, in the units of the job's Gerber files.
func ImportDXF(path string) (Result, error) {
	d, err := dxf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("cannot open DXF file: %w", err)
	}
	return outlineFromDrawing(d)
}

func outlineFromDrawing(d *drawing.Drawing) (Result, error) {
	var result Result
	entities := d.Entities()
	if len(entities) == 0 {
		return result, fmt.Errorf("DXF file contains no entities")
	}

	var outlines []model.Polygon
	var segments []segment
	for _, ent := range entities {
		switch e := ent.(type) {
		case *entity.LwPolyline:
			outline := lwPolylineToOutline(e)
			if len(outline) >= 3 {
				outlines = append(outlines, outline)
			} else {
				result.Warnings = append(result.Warnings, "skipped LWPOLYLINE with fewer than 3 vertices")
			}
		case *entity.Circle:
			outlines = append(outlines, circleToOutline(e, 64))
		case *entity.Arc:
			pts := arcToPoints(e, 32)
			segments = append(segments, pointsToSegments(pts)...)
		case *entity.Line:
			segments = append(segments, segment{
				start: model.Point{X: e.Start[0], Y: e.Start[1]},
				end:   model.Point{X: e.End[0], Y: e.End[1]},
			})
		default:
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped unsupported %T entity", ent))
		}
	}

	outlines = append(outlines, chainSegments(segments, chainTolerance)...)
	if len(outlines) == 0 {
		return result, fmt.Errorf("no closed shapes found in DXF file")
	}

	// largest first
	sort.SliceStable(outlines, func(i, j int) bool {
		return outlines[i].Area() > outlines[j].Area()
	})
	if len(outlines) > 1 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("found %d closed shapes, using the largest as the board outline", len(outlines)))
	}
	result.Outline = outlines[0].CounterClockwise()
	return result, nil
}

// lwPolylineToOutline converts a DXF LWPOLYLINE entity to a polygon.
// Bulge values on vertices produce interpolated arc segments.
func lwPolylineToOutline(lw *entity.LwPolyline) model.Polygon {
	var outline model.Polygon
	for i, v := range lw.Vertices {
		current := model.Point{X: v[0], Y: v[1]}
		bulge := 0.0
		if i < len(lw.Bulges) {
			bulge = lw.Bulges[i]
		}
		if math.Abs(bulge) > 1e-9 {
			nextIdx := (i + 1) % len(lw.Vertices)
			next := model.Point{X: lw.Vertices[nextIdx][0], Y: lw.Vertices[nextIdx][1]}
			arcPts := bulgeArcPoints(current, next, bulge, 32)
			// the next vertex adds the arc's end point
			outline = append(outline, arcPts[:len(arcPts)-1]...)
		} else {
			outline = append(outline, current)
		}
	}
	return outline.Open()
}

// bulgeArcPoints generates points along an arc defined by two endpoints and a
// DXF bulge factor. The bulge is the tangent of 1/4 the included angle,
// positive for counter-clockwise arcs.
func bulgeArcPoints(p1, p2 model.Point, bulge float64, numSegments int) []model.Point {
	chord := p1.Dist(p2)
	if chord < 1e-9 {
		return []model.Point{p1, p2}
	}

	sagitta := math.Abs(bulge) * chord / 2
	radius := (chord*chord/(4*sagitta) + sagitta) / 2

	// center sits on the chord's perpendicular, left of p1->p2 for a
	// counter-clockwise arc of less than half a turn
	mid := model.Point{X: (p1.X + p2.X) / 2, Y: (p1.Y + p2.Y) / 2}
	perp := model.Point{X: -(p2.Y - p1.Y) / chord, Y: (p2.X - p1.X) / chord}
	dist := radius - sagitta
	if bulge < 0 {
		perp = model.Point{X: -perp.X, Y: -perp.Y}
	}
	c := model.Point{X: mid.X + perp.X*dist, Y: mid.Y + perp.Y*dist}

	sweep := 4 * math.Atan(bulge)
	start := math.Atan2(p1.Y-c.Y, p1.X-c.X)
	pts := make([]model.Point, numSegments+1)
	for i := range pts {
		a := start + sweep*float64(i)/float64(numSegments)
		pts[i] = model.Point{X: c.X + radius*math.Cos(a), Y: c.Y + radius*math.Sin(a)}
	}
	pts[numSegments] = p2
	return pts
}

// circleToOutline approximates a circle as a regular polygon.
func circleToOutline(c *entity.Circle, numSegments int) model.Polygon {
	outline := make(model.Polygon, numSegments)
	cx, cy, r := c.Center[0], c.Center[1], c.Radius
	for i := range outline {
		angle := 2 * math.Pi * float64(i) / float64(numSegments)
		outline[i] = model.Point{X: cx + r*math.Cos(angle), Y: cy + r*math.Sin(angle)}
	}
	return outline
}

// arcToPoints converts a DXF ARC entity to a series of line points. DXF
// arcs always run counter-clockwise from the start to the end angle.
func arcToPoints(a *entity.Arc, numSegments int) []model.Point {
	cx, cy := a.Circle.Center[0], a.Circle.Center[1]
	r := a.Circle.Radius
	startRad := a.Angle[0] * math.Pi / 180
	endRad := a.Angle[1] * math.Pi / 180
	if endRad <= startRad {
		endRad += 2 * math.Pi
	}

	pts := make([]model.Point, numSegments+1)
	for i := range pts {
		angle := startRad + float64(i)/float64(numSegments)*(endRad-startRad)
		pts[i] = model.Point{X: cx + r*math.Cos(angle), Y: cy + r*math.Sin(angle)}
	}
	return pts
}

// pointsToSegments converts a point sequence to a slice of connected segments.
func pointsToSegments(pts []model.Point) []segment {
	segs := make([]segment, 0, len(pts)-1)
	for i := 0; i < len(pts)-1; i++ {
		segs = append(segs, segment{start: pts[i], end: pts[i+1]})
	}
	return segs
}

// chainSegments connects individual segments into closed outlines. Chains
// that do not close are dropped.
func chainSegments(segs []segment, tolerance float64) []model.Polygon {
	used := make([]bool, len(segs))
	var outlines []model.Polygon

	for startIdx := range segs {
		if used[startIdx] {
			continue
		}
		chain := []model.Point{segs[startIdx].start, segs[startIdx].end}
		used[startIdx] = true

		changed := true
		for changed {
			changed = false
			tail := chain[len(chain)-1]
			for i, seg := range segs {
				if used[i] {
					continue
				}
				if tail.Dist(seg.start) <= tolerance {
					chain = append(chain, seg.end)
				} else if tail.Dist(seg.end) <= tolerance {
					chain = append(chain, seg.start)
				} else {
					continue
				}
				used[i] = true
				changed = true
				break
			}
		}

		if len(chain) >= 4 && chain[0].Dist(chain[len(chain)-1]) <= tolerance {
			outlines = append(outlines, model.Polygon(chain[:len(chain)-1]))
		}
	}
	return outlines
}
