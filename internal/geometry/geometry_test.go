package geometry

import (
	"math"
	"testing"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(size float64) model.Polygon {
	return model.Rect{MaxX: size, MaxY: size}.Polygon()
}

// lShape is a 2x2 square with the upper-right 1x1 quadrant removed.
func lShape() model.Polygon {
	return model.Polygon{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}}
}

// ─── Predicate Tests ───────────────────────────────────────

func TestContainsBoundaryInclusive(t *testing.T) {
	sq := square(1)
	assert.True(t, Contains(sq, Point{X: 0.5, Y: 0.5}))
	assert.True(t, Contains(sq, Point{X: 1, Y: 0.5}), "edge point")
	assert.True(t, Contains(sq, Point{X: 0, Y: 0}), "corner")
	assert.True(t, Contains(sq, Point{X: 1 + 1e-9, Y: 0.5}), "within tolerance")
	assert.False(t, Contains(sq, Point{X: 1.01, Y: 0.5}))
	assert.False(t, Contains(lShape(), Point{X: 1.5, Y: 1.5}))
	assert.True(t, Contains(lShape(), Point{X: 0.5, Y: 1.5}))
}

func TestIsConvex(t *testing.T) {
	assert.True(t, IsConvex(square(1)))
	assert.False(t, IsConvex(lShape()))
	assert.False(t, IsConvex(model.Polygon{{X: 0, Y: 0}, {X: 1, Y: 1}}))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(square(1)))
	require.NoError(t, Validate(lShape()))
	require.NoError(t, Validate(append(square(1), Point{X: 0, Y: 0})), "explicitly closed")

	bowtie := model.Polygon{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 1}}
	assert.ErrorContains(t, Validate(bowtie), "self-intersecting")

	assert.ErrorContains(t, Validate(model.Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}}), "at least 3")

	flat := model.Polygon{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	assert.Error(t, Validate(flat))
}

func TestTriangulatePreservesArea(t *testing.T) {
	tris := Triangulate(lShape())
	require.Len(t, tris, 4)
	sum := 0.0
	for _, tri := range tris {
		assert.Greater(t, tri.SignedArea(), 0.0)
		sum += tri.Area()
	}
	assert.InDelta(t, 3.0, sum, 1e-9)
}

// ─── Segment Tests ─────────────────────────────────────────

func TestClipSegmentCases(t *testing.T) {
	sq := square(1)

	// both ends inside
	segs := ClipSegment(Point{X: 0.2, Y: 0.2}, Point{X: 0.8, Y: 0.8}, sq)
	require.Len(t, segs, 1)
	assert.Equal(t, Point{X: 0.8, Y: 0.8}, segs[0].End)

	// outside to inside
	segs = ClipSegment(Point{X: -1, Y: 0.5}, Point{X: 0.5, Y: 0.5}, sq)
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.0, segs[0].Start.X, 1e-12)
	assert.InDelta(t, 0.5, segs[0].End.X, 1e-12)

	// crossing through
	segs = ClipSegment(Point{X: -1, Y: 0.5}, Point{X: 2, Y: 0.5}, sq)
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.0, segs[0].Start.X, 1e-12)
	assert.InDelta(t, 1.0, segs[0].End.X, 1e-12)

	// fully outside
	assert.Empty(t, ClipSegment(Point{X: -1, Y: 2}, Point{X: 2, Y: 2}, sq))
}

func TestClipSegmentConcaveSplits(t *testing.T) {
	// a horizontal line at y=1.5 enters the L, leaves at the notch
	segs := ClipSegment(Point{X: -1, Y: 1.5}, Point{X: 3, Y: 1.5}, lShape())
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.0, segs[0].Start.X, 1e-12)
	assert.InDelta(t, 1.0, segs[0].End.X, 1e-12)

	// a vertical line at x=1.5 only crosses the lower arm
	segs = ClipSegment(Point{X: 1.5, Y: -1}, Point{X: 1.5, Y: 3}, lShape())
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.0, segs[0].Start.Y, 1e-12)
	assert.InDelta(t, 1.0, segs[0].End.Y, 1e-12)

	// a U shape produces two pieces
	u := model.Polygon{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}}
	segs = ClipSegment(Point{X: -1, Y: 1.5}, Point{X: 4, Y: 1.5}, u)
	require.Len(t, segs, 2)
	assert.InDelta(t, 1.0, segs[0].End.X, 1e-12)
	assert.InDelta(t, 2.0, segs[1].Start.X, 1e-12)
}

func TestClipSegmentAlongBoundaryKept(t *testing.T) {
	segs := ClipSegment(Point{X: -1, Y: 0}, Point{X: 2, Y: 0}, square(1))
	require.Len(t, segs, 1)
	assert.InDelta(t, 0.0, segs[0].Start.X, 1e-12)
	assert.InDelta(t, 1.0, segs[0].End.X, 1e-12)
}

// ─── Arc Tests ─────────────────────────────────────────────

func TestClipArcFullyInsideUnchanged(t *testing.T) {
	arc := model.Arc(Point{X: 0.5, Y: 0.5}, Point{X: 0.7, Y: 0.5}, Point{X: 0.3, Y: 0.5}, false, "D10")
	got := ClipArc(arc, square(1))
	require.Len(t, got, 1)
	assert.Equal(t, arc, got[0])
}

func TestClipArcCrossingEdge(t *testing.T) {
	// counter-clockwise quarter arc of radius 1 crossing the clip edge x=0.5
	arc := model.Arc(Point{X: 0, Y: 0}, Point{X: 1, Y: 0}, Point{X: 0, Y: 1}, false, "D10")
	clip := model.Rect{MinX: -1, MinY: -1, MaxX: 0.5, MaxY: 2}.Polygon()
	got := ClipArc(arc, clip)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Start.X, 1e-9)
	assert.InDelta(t, math.Sqrt(0.75), got[0].Start.Y, 1e-9)
	assert.Equal(t, Point{X: 0, Y: 1}, got[0].End)
	assert.False(t, got[0].Clockwise)
	for _, p := range []Point{got[0].Start, got[0].End} {
		assert.True(t, Contains(clip, p))
	}
}

func TestClipArcOutsideDropped(t *testing.T) {
	arc := model.Arc(Point{X: 5, Y: 5}, Point{X: 6, Y: 5}, Point{X: 6, Y: 5}, true, "D10")
	assert.Empty(t, ClipArc(arc, square(1)))
}

// ─── Polygon Tests ─────────────────────────────────────────

func TestClipPolygonConvex(t *testing.T) {
	subject := model.Rect{MinX: 0.5, MinY: 0.5, MaxX: 1.5, MaxY: 1.5}.Polygon()
	got := ClipPolygon(subject, square(1))
	require.Len(t, got, 1)
	assert.InDelta(t, 0.25, got[0].Area(), 1e-9)
	b := got[0].BoundingBox()
	assert.InDelta(t, 1.0, b.MaxX, 1e-9)
	assert.InDelta(t, 1.0, b.MaxY, 1e-9)
}

func TestClipPolygonInsideReturnedWhole(t *testing.T) {
	subject := model.Rect{MinX: 0.1, MinY: 0.1, MaxX: 0.4, MaxY: 0.4}.Polygon()
	got := ClipPolygon(subject, lShape())
	require.Len(t, got, 1)
	assert.Equal(t, subject, got[0])
}

func TestClipPolygonConcaveAreaMatches(t *testing.T) {
	// a 2x2 square covering the whole L: the clipped area equals the L's area
	subject := model.Rect{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2}.Polygon()
	got := ClipPolygon(subject, lShape())
	require.NotEmpty(t, got)
	sum := 0.0
	for _, p := range got {
		sum += p.Area()
		for _, v := range p {
			assert.True(t, Contains(lShape(), v))
		}
	}
	assert.InDelta(t, 3.0, sum, 1e-9)
}

func TestClipPolygonDisjoint(t *testing.T) {
	subject := model.Rect{MinX: 5, MinY: 5, MaxX: 6, MaxY: 6}.Polygon()
	assert.Empty(t, ClipPolygon(subject, square(1)))
}
