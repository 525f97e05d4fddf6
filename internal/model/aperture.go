package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ApertureShape identifies the standard or macro shape of an aperture.
type ApertureShape int

const (
	ShapeCircle    ApertureShape = iota // C: diameter [, hole]
	ShapeRectangle                      // R: width, height [, hole]
	ShapeOval                           // O: width, height [, hole]
	ShapePolygon                        // P: outer diameter, vertices [, rotation [, hole]]
	ShapeOctagon                        // OC8 macro: diameter
	ShapeMacro                          // named zero-parameter macro
)

func (s ApertureShape) String() string {
	switch s {
	case ShapeCircle:
		return "Circle"
	case ShapeRectangle:
		return "Rectangle"
	case ShapeOval:
		return "Oval"
	case ShapePolygon:
		return "Polygon"
	case ShapeOctagon:
		return "Octagon"
	default:
		return "Macro"
	}
}

// OctagonMacroName is the macro name used for octagonal pads.
const OctagonMacroName = "OC8"

// Aperture is a shape and size used to draw or flash Gerber primitives.
type Aperture struct {
	Shape ApertureShape `json:"shape"`
	Dims  []float64     `json:"dims,omitempty"`
	Macro string        `json:"macro,omitempty"` // macro name for ShapeMacro
}

// Circle returns a circular aperture of diameter d.
func Circle(d float64) Aperture {
	return Aperture{Shape: ShapeCircle, Dims: []float64{d}}
}

// Rectangle returns a w x h rectangular aperture.
func Rectangle(w, h float64) Aperture {
	return Aperture{Shape: ShapeRectangle, Dims: []float64{w, h}}
}

// Key returns the canonical identity of the aperture. Two apertures with
// equal keys are interchangeable in merged output.
func (a Aperture) Key() string {
	var b strings.Builder
	b.WriteString(a.Shape.String())
	if a.Shape == ShapeMacro {
		b.WriteByte(':')
		b.WriteString(a.Macro)
	}
	for _, d := range a.Dims {
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(int64(math.Round(d*1e5)), 10))
	}
	return b.String()
}

// Width returns the horizontal size of the aperture footprint. Macro
// apertures report zero since their extent is not known.
func (a Aperture) Width() float64 {
	if len(a.Dims) == 0 || a.Shape == ShapeMacro {
		return 0
	}
	return a.Dims[0]
}

// Height returns the vertical size of the aperture footprint.
func (a Aperture) Height() float64 {
	switch a.Shape {
	case ShapeRectangle, ShapeOval:
		if len(a.Dims) > 1 {
			return a.Dims[1]
		}
	}
	return a.Width()
}

// OrientationSensitive reports whether rotating the aperture by a right
// angle changes its footprint.
func (a Aperture) OrientationSensitive() bool {
	switch a.Shape {
	case ShapeRectangle, ShapeOval:
		return len(a.Dims) > 1 && math.Abs(a.Dims[0]-a.Dims[1]) > 1e-9
	case ShapePolygon, ShapeMacro:
		return true
	default:
		return false
	}
}

// Rotated returns the aperture turned counter-clockwise by deg, a multiple of
// 90. Macro apertures are returned unchanged; their definition is rotated by
// the aperture registry.
func (a Aperture) Rotated(deg int) Aperture {
	deg = NormalizeRotation(deg)
	if deg == 0 {
		return a
	}
	out := Aperture{Shape: a.Shape, Macro: a.Macro, Dims: append([]float64(nil), a.Dims...)}
	switch a.Shape {
	case ShapeRectangle, ShapeOval:
		if (deg == 90 || deg == 270) && len(out.Dims) > 1 {
			out.Dims[0], out.Dims[1] = out.Dims[1], out.Dims[0]
		}
	case ShapePolygon:
		for len(out.Dims) < 3 {
			out.Dims = append(out.Dims, 0)
		}
		out.Dims[2] = math.Mod(out.Dims[2]+float64(deg), 360)
	}
	return out
}

// Thickened returns a copy of the aperture grown so that every dimension is
// at least min, and whether anything changed.
func (a Aperture) Thickened(min float64) (Aperture, bool) {
	if a.Shape == ShapeMacro || len(a.Dims) == 0 {
		return a, false
	}
	out := Aperture{Shape: a.Shape, Macro: a.Macro, Dims: append([]float64(nil), a.Dims...)}
	n := 1
	if a.Shape == ShapeRectangle || a.Shape == ShapeOval {
		n = 2
	}
	changed := false
	for i := 0; i < n && i < len(out.Dims); i++ {
		if out.Dims[i] < min {
			out.Dims[i] = min
			changed = true
		}
	}
	return out, changed
}

func (a Aperture) String() string {
	if a.Shape == ShapeMacro {
		return "Macro " + a.Macro
	}
	parts := make([]string, len(a.Dims))
	for i, d := range a.Dims {
		parts[i] = strconv.FormatFloat(d, 'f', -1, 64)
	}
	return fmt.Sprintf("%s %s", a.Shape, strings.Join(parts, "x"))
}

// ApertureDef binds a D-code to an aperture.
type ApertureDef struct {
	Code     string   `json:"code"` // e.g. "D10"
	Aperture Aperture `json:"aperture"`
}

// Macro is an aperture macro definition. Body holds the primitive
// statements without their terminating '*'.
type Macro struct {
	Name string   `json:"name"`
	Body []string `json:"body"`
}

// Key returns the canonical body of the macro, independent of its name.
func (m Macro) Key() string {
	return strings.Join(m.Body, "*")
}

// Parameterized reports whether the macro uses parameters, variables or
// arithmetic.
func (m Macro) Parameterized() bool {
	for _, stmt := range m.Body {
		if strings.HasPrefix(stmt, "0 ") || stmt == "0" {
			continue
		}
		if strings.ContainsAny(stmt, "$=xX/+") {
			return true
		}
		// a '-' that is not a sign is subtraction
		for i := 1; i < len(stmt); i++ {
			if stmt[i] == '-' && stmt[i-1] != ',' {
				return true
			}
		}
	}
	return false
}

// IsOctagon reports whether the macro is the single-parameter regular
// octagon used for octagonal pads.
func (m Macro) IsOctagon() bool {
	var prims []string
	for _, stmt := range m.Body {
		if strings.HasPrefix(stmt, "0 ") || stmt == "0" {
			continue
		}
		prims = append(prims, stmt)
	}
	if len(prims) != 1 {
		return false
	}
	f := strings.Split(prims[0], ",")
	if len(f) != 7 || strings.TrimSpace(f[0]) != "5" || strings.TrimSpace(f[2]) != "8" {
		return false
	}
	dia := strings.ReplaceAll(f[5], " ", "")
	if !strings.Contains(dia, "$1") || strings.Contains(strings.ReplaceAll(dia, "$1", ""), "$") {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(f[6]), 64)
	return err == nil
}

// Rotated returns the macro with every primitive turned counter-clockwise
// by deg around the macro origin. Only zero-parameter macros can be rotated.
func (m Macro) Rotated(deg int) (Macro, error) {
	deg = NormalizeRotation(deg)
	out := Macro{Name: m.Name, Body: make([]string, len(m.Body))}
	if deg != 0 {
		out.Name = fmt.Sprintf("%sR%d", m.Name, deg)
	}
	for i, stmt := range m.Body {
		f := strings.Split(stmt, ",")
		code := strings.TrimSpace(f[0])
		if deg == 0 || code == "0" || strings.HasPrefix(code, "0 ") {
			out.Body[i] = stmt
			continue
		}
		if code == "1" && len(f) == 5 {
			f = append(f, "0")
		}
		if len(f) < 2 {
			return Macro{}, fmt.Errorf("macro %s: malformed primitive %q", m.Name, stmt)
		}
		last := len(f) - 1
		rot, err := strconv.ParseFloat(strings.TrimSpace(f[last]), 64)
		if err != nil {
			return Macro{}, fmt.Errorf("macro %s: rotation of %q: %w", m.Name, stmt, err)
		}
		f[last] = strconv.FormatFloat(math.Mod(rot+float64(deg), 360), 'f', -1, 64)
		out.Body[i] = strings.Join(f, ",")
	}
	return out, nil
}

// NormalizeRotation maps any multiple of 90 degrees into [0, 360).
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
