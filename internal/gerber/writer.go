package gerber

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Decimals returns the number of coordinate decimals written for u: the
// output format is 2.5 for inches and 5.3 for millimeters.
func Decimals(u model.Units) int {
	if u == model.UnitsMetric {
		return 3
	}
	return 5
}

// Writer emits merged layers. Only apertures and macros used by a layer
// are defined in its file.
type Writer struct {
	Units     model.Units
	Apertures []model.ApertureDef
	Macros    []model.Macro
	Octagon   model.Macro // emitted when an octagon aperture is used
}

// Write writes layer as a complete RS274-X file.
func (wr *Writer) Write(w io.Writer, layer model.Layer) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, scale: math.Pow10(Decimals(wr.Units))}

	used := usedApertures(layer)
	defs := make([]model.ApertureDef, 0, len(used))
	for _, d := range wr.Apertures {
		if used[d.Code] {
			defs = append(defs, d)
		}
	}
	if len(defs) != len(used) {
		for code := range used {
			if !hasCode(defs, code) {
				return fmt.Errorf("layer %s uses undefined aperture %s", layer.Name, code)
			}
		}
	}

	e.header(wr.Units, layer.Name)
	wr.macros(e, defs)
	for _, d := range defs {
		e.printf("%%ADD%s%s*%%\n", strings.TrimPrefix(d.Code, "D"), apertureParams(d.Aperture))
	}
	e.body(layer)
	e.printf("M02*\n")
	if e.err != nil {
		return fmt.Errorf("failed to write layer %s: %w", layer.Name, e.err)
	}
	return bw.Flush()
}

func (wr *Writer) macros(e *encoder, defs []model.ApertureDef) {
	names := make(map[string]bool)
	octagon := false
	for _, d := range defs {
		switch d.Aperture.Shape {
		case model.ShapeMacro:
			names[d.Aperture.Macro] = true
		case model.ShapeOctagon:
			octagon = true
		}
	}
	if octagon {
		e.macro(wr.Octagon)
	}
	for _, m := range wr.Macros {
		if names[m.Name] {
			e.macro(m)
		}
	}
}

func usedApertures(layer model.Layer) map[string]bool {
	used := make(map[string]bool)
	for _, p := range layer.Primitives {
		if p.Aperture != "" {
			used[p.Aperture] = true
		}
	}
	return used
}

func hasCode(defs []model.ApertureDef, code string) bool {
	for _, d := range defs {
		if d.Code == code {
			return true
		}
	}
	return false
}

// apertureParams renders the template part of an %AD block.
func apertureParams(a model.Aperture) string {
	dims := make([]string, len(a.Dims))
	for i, d := range a.Dims {
		dims[i] = strconv.FormatFloat(d, 'f', -1, 64)
	}
	joined := strings.Join(dims, "X")
	switch a.Shape {
	case model.ShapeCircle:
		return "C," + joined
	case model.ShapeRectangle:
		return "R," + joined
	case model.ShapeOval:
		return "O," + joined
	case model.ShapePolygon:
		return "P," + joined
	case model.ShapeOctagon:
		return model.OctagonMacroName + "," + joined
	default:
		if joined != "" {
			return a.Macro + "," + joined
		}
		return a.Macro
	}
}

// encoder tracks the modal state of the output so that apertures, moves and
// polarity changes are only written when they change.
type encoder struct {
	w     *bufio.Writer
	scale float64
	err   error

	aperture string
	polarity model.Polarity
	current  *model.Point
}

func (e *encoder) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *encoder) header(u model.Units, name string) {
	e.printf("G04 gerbmerge panel layer %s*\n", name)
	if u == model.UnitsMetric {
		e.printf("%%MOMM*%%\n%%FSLAX53Y53*%%\n")
	} else {
		e.printf("%%MOIN*%%\n%%FSLAX25Y25*%%\n")
	}
	e.printf("%%IPPOS*%%\n%%LPD*%%\nG75*\n")
}

func (e *encoder) macro(m model.Macro) {
	e.printf("%%AM%s*\n", m.Name)
	for _, stmt := range m.Body {
		e.printf("%s*\n", stmt)
	}
	e.printf("%%\n")
}

func (e *encoder) coord(v float64) string {
	return strconv.FormatInt(int64(math.Round(v*e.scale)), 10)
}

func (e *encoder) xy(p model.Point) string {
	return "X" + e.coord(p.X) + "Y" + e.coord(p.Y)
}

func (e *encoder) moveTo(p model.Point) {
	if e.current != nil && e.xy(*e.current) == e.xy(p) {
		return
	}
	e.printf("%sD02*\n", e.xy(p))
	e.current = &p
}

func (e *encoder) setAperture(code string) {
	if code != e.aperture {
		e.printf("%s*\n", code)
		e.aperture = code
	}
}

func (e *encoder) setPolarity(pol model.Polarity) {
	if pol == e.polarity {
		return
	}
	if pol == model.PolarityClear {
		e.printf("%%LPC*%%\n")
	} else {
		e.printf("%%LPD*%%\n")
	}
	e.polarity = pol
}

func (e *encoder) body(layer model.Layer) {
	for _, p := range layer.Primitives {
		e.setPolarity(p.Polarity)
		switch p.Kind {
		case model.KindLine:
			e.setAperture(p.Aperture)
			e.moveTo(p.Start)
			e.printf("G01%sD01*\n", e.xy(p.End))
			end := p.End
			e.current = &end
		case model.KindArc:
			e.setAperture(p.Aperture)
			e.moveTo(p.Start)
			g := "G03"
			if p.Clockwise {
				g = "G02"
			}
			off := p.Center.Sub(p.Start)
			e.printf("%s%sI%sJ%sD01*\n", g, e.xy(p.End), e.coord(off.X), e.coord(off.Y))
			end := p.End
			e.current = &end
		case model.KindFlash:
			e.setAperture(p.Aperture)
			e.printf("%sD03*\n", e.xy(p.Start))
			at := p.Start
			e.current = &at
		case model.KindRegion:
			v := model.Polygon(p.Vertices).Open()
			if len(v) < 3 {
				continue
			}
			e.printf("G36*\n")
			e.current = nil
			e.moveTo(v[0])
			for _, q := range v[1:] {
				e.printf("G01%sD01*\n", e.xy(q))
			}
			e.printf("G01%sD01*\nG37*\n", e.xy(v[0]))
			first := v[0]
			e.current = &first
		default:
			panic("gerber: unknown primitive kind " + p.Kind.String())
		}
	}
}
