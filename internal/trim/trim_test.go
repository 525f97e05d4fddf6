package trim

import (
	"errors"
	"math"
	"testing"

	"github.com/piwi3910/gerbmerge/internal/geometry"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardJob(prims ...model.Primitive) *model.Job {
	return &model.Job{
		Name:            "board",
		Units:           model.UnitsInch,
		Repeat:          1,
		Outline:         model.Rect{MaxX: 1, MaxY: 1}.Polygon(),
		OutlineExplicit: true,
		Apertures: []model.ApertureDef{
			{Code: "D10", Aperture: model.Circle(0.01)},
			{Code: "D11", Aperture: model.Rectangle(0.2, 0.1)},
			{Code: "D12", Aperture: model.Circle(0.3)},
		},
		Layers: []model.Layer{{Name: "toplayer", Primitives: prims}},
		Tools:  []model.ToolDef{{Code: "T01", Diameter: 0.035}, {Code: "T02", Diameter: 0.125}},
	}
}

var both = Options{Gerber: true, Excellon: true}

// ─── Excellon Tests ────────────────────────────────────────

func TestDrillOnBoundaryRetained(t *testing.T) {
	j := boardJob()
	j.Drills = []model.DrillHit{
		{Tool: "T01", At: model.Point{X: 1, Y: 0.5}},  // on the right edge
		{Tool: "T01", At: model.Point{X: 0, Y: 0}},    // on a corner
		{Tool: "T02", At: model.Point{X: 1.5, Y: 0.5}}, // outside
	}
	out, err := Job(j, both)
	require.NoError(t, err)
	require.Len(t, out.Drills, 2)
	assert.Equal(t, []model.ToolDef{{Code: "T01", Diameter: 0.035}}, out.Tools, "tool without hits removed")
	assert.Len(t, j.Drills, 3, "input untouched")
}

func TestExcellonDisabledPassesThrough(t *testing.T) {
	j := boardJob()
	j.Drills = []model.DrillHit{{Tool: "T02", At: model.Point{X: 5, Y: 5}}}
	out, err := Job(j, Options{Gerber: true})
	require.NoError(t, err)
	assert.Equal(t, j.Drills, out.Drills)
	assert.Len(t, out.Tools, 2)
}

// ─── Gerber Tests ──────────────────────────────────────────

func TestLineClippedToOutline(t *testing.T) {
	j := boardJob(
		model.Line(model.Point{X: -0.5, Y: 0.5}, model.Point{X: 0.5, Y: 0.5}, "D10"),
		model.Line(model.Point{X: 2, Y: 2}, model.Point{X: 3, Y: 3}, "D10"),
		model.Line(model.Point{X: 0.2, Y: 0.2}, model.Point{X: 0.4, Y: 0.4}, "D10"),
	)
	out, err := Job(j, both)
	require.NoError(t, err)
	prims := out.Layers[0].Primitives
	require.Len(t, prims, 2)
	assert.InDelta(t, 0.0, prims[0].Start.X, 1e-12)
	assert.Equal(t, model.Point{X: 0.5, Y: 0.5}, prims[0].End)
	assert.Equal(t, j.Layers[0].Primitives[2], prims[1])
}

func TestGerberDisabledPassesThrough(t *testing.T) {
	j := boardJob(model.Line(model.Point{X: 2, Y: 2}, model.Point{X: 3, Y: 3}, "D10"))
	out, err := Job(j, Options{Excellon: true})
	require.NoError(t, err)
	assert.Equal(t, j.Layers, out.Layers)
}

func TestRectangleFlashCutDown(t *testing.T) {
	// 0.2 x 0.1 pad centered on the right edge: half of it survives
	j := boardJob(model.Flash(model.Point{X: 1, Y: 0.5}, "D11"))
	out, err := Job(j, both)
	require.NoError(t, err)
	prims := out.Layers[0].Primitives
	require.Len(t, prims, 1)
	assert.Equal(t, model.KindFlash, prims[0].Kind)
	assert.NotEqual(t, "D11", prims[0].Aperture)
	a, ok := out.Aperture(prims[0].Aperture)
	require.True(t, ok)
	assert.InDelta(t, 0.1, a.Width(), 1e-9)
	assert.InDelta(t, 0.1, a.Height(), 1e-9)
	assert.InDelta(t, 0.95, prims[0].Start.X, 1e-9)
	assert.Equal(t, "D13", prims[0].Aperture)
}

func TestRectangleFlashTooThinDropped(t *testing.T) {
	// only 0.00005 in of the pad overlaps the board
	j := boardJob(model.Flash(model.Point{X: 1.09995, Y: 0.5}, "D11"))
	out, err := Job(j, both)
	require.NoError(t, err)
	assert.Empty(t, out.Layers[0].Primitives)
}

func TestRoundFlashKeptByCenter(t *testing.T) {
	j := boardJob(
		model.Flash(model.Point{X: 0.95, Y: 0.5}, "D12"), // center inside, pad sticks out
		model.Flash(model.Point{X: 1.05, Y: 0.5}, "D12"), // center outside
	)
	out, err := Job(j, both)
	require.NoError(t, err)
	require.Len(t, out.Layers[0].Primitives, 1)
	assert.Equal(t, model.Point{X: 0.95, Y: 0.5}, out.Layers[0].Primitives[0].Start)
}

func TestRegionClippedSoundly(t *testing.T) {
	region := model.Region(model.Rect{MinX: 0.5, MinY: 0.5, MaxX: 1.5, MaxY: 1.5}.Polygon())
	region.Polarity = model.PolarityClear
	j := boardJob(region)
	out, err := Job(j, both)
	require.NoError(t, err)
	prims := out.Layers[0].Primitives
	require.Len(t, prims, 1)
	assert.Equal(t, model.PolarityClear, prims[0].Polarity)
	for _, v := range prims[0].Vertices {
		assert.True(t, geometry.Contains(j.Outline, v))
	}
	assert.InDelta(t, 0.25, model.Polygon(prims[0].Vertices).Area(), 1e-9)
}

func TestNonRectangularOutline(t *testing.T) {
	j := boardJob(
		model.Line(model.Point{X: -1, Y: 1.5}, model.Point{X: 3, Y: 1.5}, "D10"),
	)
	j.Outline = model.Polygon{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 2}, {X: 0, Y: 2}}
	out, err := Job(j, both)
	require.NoError(t, err)
	prims := out.Layers[0].Primitives
	require.Len(t, prims, 1)
	assert.InDelta(t, 1.0, prims[0].End.X, 1e-12)
}

func TestTrimSoundness(t *testing.T) {
	j := boardJob(
		model.Line(model.Point{X: -1, Y: -1}, model.Point{X: 2, Y: 2}, "D10"),
		model.Arc(model.Point{X: 0.5, Y: 0.5}, model.Point{X: 1.2, Y: 0.5}, model.Point{X: 1.2, Y: 0.5}, false, "D10"),
		model.Region(model.Polygon{{X: -0.5, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.8, Y: 1.7}}),
	)
	out, err := Job(j, both)
	require.NoError(t, err)
	for _, p := range out.Layers[0].Primitives {
		for _, v := range pathPoints(p) {
			assert.True(t, geometry.Contains(j.Outline, v), "%v point %v outside", p.Kind, v)
		}
	}
}

// pathPoints samples points along a primitive's path.
func pathPoints(p model.Primitive) []model.Point {
	switch p.Kind {
	case model.KindArc:
		start, sweep := model.ArcAngles(p)
		r := p.Center.Dist(p.Start)
		var pts []model.Point
		for i := 0; i <= 16; i++ {
			a := start + sweep*float64(i)/16
			pts = append(pts, model.Point{X: p.Center.X + r*math.Cos(a), Y: p.Center.Y + r*math.Sin(a)})
		}
		return pts
	case model.KindRegion:
		return p.Vertices
	default:
		return []model.Point{p.Start, p.End}
	}
}

// ─── Outline Policy Tests ──────────────────────────────────

func TestInvalidOutlinePassesThroughWithWarning(t *testing.T) {
	j := boardJob(model.Line(model.Point{X: 2, Y: 2}, model.Point{X: 3, Y: 3}, "D10"))
	j.Outline = model.Polygon{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 1}}
	out, err := Job(j, both)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrOutlineInvalid))
	assert.Same(t, j, out)
}

func TestNothingEnabledIsIdentity(t *testing.T) {
	j := boardJob()
	out, err := Job(j, Options{})
	require.NoError(t, err)
	assert.Same(t, j, out)
}
