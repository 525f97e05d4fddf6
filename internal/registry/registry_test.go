package registry

import (
	"errors"
	"testing"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobWith(name string, defs ...model.ApertureDef) *model.Job {
	return &model.Job{Name: name, Repeat: 1, Apertures: defs}
}

// ─── Aperture Tests ────────────────────────────────────────

func TestRegisterCoalescesIdenticalDefinitions(t *testing.T) {
	r := NewApertureRegistry(OctagonNormal)
	a, err := r.Register(jobWith("a", model.ApertureDef{Code: "D10", Aperture: model.Circle(0.01)}))
	require.NoError(t, err)
	b, err := r.Register(jobWith("b", model.ApertureDef{Code: "D10", Aperture: model.Circle(0.01)}))
	require.NoError(t, err)

	assert.Equal(t, "D10", a["D10"])
	assert.Equal(t, a["D10"], b["D10"])
	assert.Len(t, r.Definitions(), 1)
}

func TestRegisterSeparatesCollidingCodes(t *testing.T) {
	r := NewApertureRegistry(OctagonNormal)
	a, err := r.Register(jobWith("a", model.ApertureDef{Code: "D10", Aperture: model.Circle(0.01)}))
	require.NoError(t, err)
	b, err := r.Register(jobWith("b", model.ApertureDef{Code: "D10", Aperture: model.Rectangle(0.02, 0.03)}))
	require.NoError(t, err)

	assert.Equal(t, "D10", a["D10"])
	assert.Equal(t, "D11", b["D10"])
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, model.ShapeRectangle, defs[1].Aperture.Shape)
}

func TestRegisterIsDeterministic(t *testing.T) {
	build := func() []model.ApertureDef {
		r := NewApertureRegistry(OctagonNormal)
		for _, j := range []*model.Job{
			jobWith("a",
				model.ApertureDef{Code: "D12", Aperture: model.Circle(0.05)},
				model.ApertureDef{Code: "D10", Aperture: model.Circle(0.01)}),
			jobWith("b",
				model.ApertureDef{Code: "D10", Aperture: model.Circle(0.01)},
				model.ApertureDef{Code: "D11", Aperture: model.Rectangle(0.06, 0.02)}),
		} {
			_, err := r.Register(j)
			require.NoError(t, err)
		}
		return r.Definitions()
	}
	first := build()
	assert.Equal(t, first, build())
	// first-seen order, not local code order
	assert.Equal(t, model.Circle(0.05), first[0].Aperture)
}

func TestRegisterOctagonMacro(t *testing.T) {
	j := jobWith("a", model.ApertureDef{Code: "D15", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "OC8", Dims: []float64{0.06}}})
	j.Macros = []model.Macro{{Name: "OC8", Body: []string{"5,1,8,0,0,1.08239X$1,22.5"}}}

	r := NewApertureRegistry(OctagonRotate)
	m, err := r.Register(j)
	require.NoError(t, err)
	a, ok := r.Lookup(m["D15"])
	require.True(t, ok)
	assert.Equal(t, model.ShapeOctagon, a.Shape)
	assert.Empty(t, r.Macros())
	assert.Equal(t, []string{"5,1,8,0,0,1.08239X$1,0.0"}, r.OctagonMacro().Body)
	assert.Equal(t, []string{"5,1,8,0,0,1.08239X$1,22.5"}, OctagonMacro(OctagonNormal).Body)
}

func TestRegisterRejectsParameterizedMacro(t *testing.T) {
	j := jobWith("cpu", model.ApertureDef{Code: "D21", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "THERM", Dims: []float64{0.06, 0.04}}})
	j.Macros = []model.Macro{{Name: "THERM", Body: []string{"7,0,0,$1,$2,0.01,45"}}}

	_, err := NewApertureRegistry(OctagonNormal).Register(j)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnsupportedApertureMacro))
	var me *model.MacroError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "cpu", me.Job)
	assert.Equal(t, "D21", me.Code)
}

func TestRegisterZeroParameterMacrosCoalesceByBody(t *testing.T) {
	body := []string{"21,1,0.06,0.02,0,0,0"}
	a := jobWith("a", model.ApertureDef{Code: "D10", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "PAD"}})
	a.Macros = []model.Macro{{Name: "PAD", Body: body}}
	b := jobWith("b", model.ApertureDef{Code: "D10", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "SMD"}})
	b.Macros = []model.Macro{{Name: "SMD", Body: body}}
	c := jobWith("c", model.ApertureDef{Code: "D10", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "PAD"}})
	c.Macros = []model.Macro{{Name: "PAD", Body: []string{"1,1,0.05,0,0"}}}

	r := NewApertureRegistry(OctagonNormal)
	ma, err := r.Register(a)
	require.NoError(t, err)
	mb, err := r.Register(b)
	require.NoError(t, err)
	mc, err := r.Register(c)
	require.NoError(t, err)

	assert.Equal(t, ma["D10"], mb["D10"])
	assert.NotEqual(t, ma["D10"], mc["D10"])
	macros := r.Macros()
	require.Len(t, macros, 2)
	assert.Equal(t, "PAD", macros[0].Name)
	assert.Equal(t, "PAD_2", macros[1].Name)
}

func TestRotatedApertures(t *testing.T) {
	r := NewApertureRegistry(OctagonNormal)
	round := r.Intern(model.Circle(0.05))
	rect := r.Intern(model.Rectangle(0.02, 0.06))
	square := r.Intern(model.Rectangle(0.04, 0.04))

	got, err := r.Rotated(round, 90)
	require.NoError(t, err)
	assert.Equal(t, round, got)

	got, err = r.Rotated(square, 90)
	require.NoError(t, err)
	assert.Equal(t, square, got)

	got, err = r.Rotated(rect, 90)
	require.NoError(t, err)
	assert.NotEqual(t, rect, got)
	a, _ := r.Lookup(got)
	assert.Equal(t, []float64{0.06, 0.02}, a.Dims)

	again, err := r.Rotated(rect, 270)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	_, err = r.Rotated("D99", 90)
	assert.Error(t, err)
}

func TestRotatedMacroAperture(t *testing.T) {
	j := jobWith("a", model.ApertureDef{Code: "D10", Aperture: model.Aperture{Shape: model.ShapeMacro, Macro: "PAD"}})
	j.Macros = []model.Macro{{Name: "PAD", Body: []string{"21,1,0.06,0.02,0,0,0"}}}
	r := NewApertureRegistry(OctagonNormal)
	m, err := r.Register(j)
	require.NoError(t, err)

	rot, err := r.Rotated(m["D10"], 90)
	require.NoError(t, err)
	a, ok := r.Lookup(rot)
	require.True(t, ok)
	assert.Equal(t, "PADR90", a.Macro)
	require.Len(t, r.Macros(), 2)
	assert.Equal(t, []string{"21,1,0.06,0.02,0,0,90"}, r.Macros()[1].Body)
}

func TestThickened(t *testing.T) {
	r := NewApertureRegistry(OctagonNormal)
	thin := r.Intern(model.Circle(0.004))
	thick := r.Intern(model.Circle(0.01))

	got := r.Thickened(thin, 0.008)
	assert.NotEqual(t, thin, got)
	a, _ := r.Lookup(got)
	assert.Equal(t, model.Circle(0.008), a)
	assert.Equal(t, thick, r.Thickened(thick, 0.008))
}

// ─── Tool Tests ────────────────────────────────────────────

func TestToolRegistryNumbersByFirstSeenDiameter(t *testing.T) {
	r := NewToolRegistry(0)
	a := r.Register(&model.Job{Name: "a", Tools: []model.ToolDef{{Code: "T01", Diameter: 0.035}, {Code: "T02", Diameter: 0.028}}})
	b := r.Register(&model.Job{Name: "b", Tools: []model.ToolDef{{Code: "T01", Diameter: 0.028}, {Code: "T05", Diameter: 0.125}}})

	assert.Equal(t, ToolMap{"T01": "T01", "T02": "T02"}, a)
	assert.Equal(t, ToolMap{"T01": "T02", "T05": "T03"}, b)
	assert.Len(t, r.Tools(), 3)
	d, ok := r.Diameter("T03")
	require.True(t, ok)
	assert.InDelta(t, 0.125, d, 1e-12)
}

func TestToolRegistryClusters(t *testing.T) {
	r := NewToolRegistry(0.002)
	assert.Equal(t, "T01", r.Intern(0.035))
	assert.Equal(t, "T02", r.Intern(0.040))
	assert.Equal(t, "T01", r.Intern(0.036))
	assert.Equal(t, "T02", r.Intern(0.0385))
	assert.Equal(t, "T03", r.Intern(0.050))
}
