// Package registry assigns panel-global aperture and tool codes. Each job's
// local D-codes and T-codes are mapped onto one numbering shared by the whole
// panel; identical definitions from different jobs share a global code.
package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// OctagonRotation selects the start angle of the octagon macro.
type OctagonRotation string

const (
	OctagonNormal OctagonRotation = "normal" // flat sides on the axes (22.5 degrees)
	OctagonRotate OctagonRotation = "rotate" // vertices on the axes (0 degrees)
)

// firstApertureCode is the lowest D-code available for apertures; D01-D03
// are operations and D04-D09 are reserved.
const firstApertureCode = 10

// ApertureMap maps a job's local D-codes to global D-codes.
type ApertureMap map[string]string

// ApertureRegistry is the panel-global aperture table. The zero value is
// not usable; create one with NewApertureRegistry.
type ApertureRegistry struct {
	octagon    OctagonRotation
	defs       []model.ApertureDef
	byKey      map[string]string
	macros     []model.Macro
	macroByKey map[string]string
}

// NewApertureRegistry returns an empty registry.
func NewApertureRegistry(octagon OctagonRotation) *ApertureRegistry {
	if octagon == "" {
		octagon = OctagonNormal
	}
	return &ApertureRegistry{
		octagon:    octagon,
		byKey:      make(map[string]string),
		macroByKey: make(map[string]string),
	}
}

// Register adds every aperture of job to the registry in the job's
// first-seen order and returns the local to global code mapping.
//
// Aperture macros are accepted when they take no parameters, or when they
// are the single-parameter octagon. Anything else fails with a
// *model.MacroError naming the job and the aperture code.
func (r *ApertureRegistry) Register(job *model.Job) (ApertureMap, error) {
	mapping := make(ApertureMap, len(job.Apertures))
	for _, def := range job.Apertures {
		a := def.Aperture
		if a.Shape == model.ShapeMacro {
			m, ok := job.Macro(a.Macro)
			if !ok {
				return nil, fmt.Errorf("job %s: aperture %s references undefined macro %s", job.Name, def.Code, a.Macro)
			}
			switch {
			case m.IsOctagon():
				if len(a.Dims) != 1 {
					return nil, &model.MacroError{Job: job.Name, Code: def.Code, Macro: m.Name}
				}
				a = model.Aperture{Shape: model.ShapeOctagon, Dims: a.Dims}
			case m.Parameterized() || len(a.Dims) > 0:
				return nil, &model.MacroError{Job: job.Name, Code: def.Code, Macro: m.Name}
			default:
				a = model.Aperture{Shape: model.ShapeMacro, Macro: r.internMacro(m)}
			}
		}
		mapping[def.Code] = r.Intern(a)
	}
	return mapping, nil
}

// Intern returns the global code of a, adding it when no identical
// aperture is registered yet. Macro apertures must name a registered macro.
func (r *ApertureRegistry) Intern(a model.Aperture) string {
	key := a.Key()
	if code, ok := r.byKey[key]; ok {
		return code
	}
	code := "D" + strconv.Itoa(firstApertureCode+len(r.defs))
	r.defs = append(r.defs, model.ApertureDef{Code: code, Aperture: a})
	r.byKey[key] = code
	return code
}

func (r *ApertureRegistry) internMacro(m model.Macro) string {
	key := m.Key()
	if name, ok := r.macroByKey[key]; ok {
		return name
	}
	name := m.Name
	for i := 2; r.macroNameTaken(name); i++ {
		name = fmt.Sprintf("%s_%d", m.Name, i)
	}
	r.macros = append(r.macros, model.Macro{Name: name, Body: append([]string(nil), m.Body...)})
	r.macroByKey[key] = name
	return name
}

func (r *ApertureRegistry) macroNameTaken(name string) bool {
	if strings.EqualFold(name, model.OctagonMacroName) {
		return true
	}
	for _, m := range r.macros {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Lookup resolves a global code.
func (r *ApertureRegistry) Lookup(code string) (model.Aperture, bool) {
	for _, d := range r.defs {
		if d.Code == code {
			return d.Aperture, true
		}
	}
	return model.Aperture{}, false
}

// Rotated returns the global code of the aperture code turned by deg.
// Orientation-insensitive apertures keep their code.
func (r *ApertureRegistry) Rotated(code string, deg int) (string, error) {
	deg = model.NormalizeRotation(deg)
	a, ok := r.Lookup(code)
	if !ok {
		return "", fmt.Errorf("unknown aperture %s", code)
	}
	if deg == 0 || !a.OrientationSensitive() {
		return code, nil
	}
	if a.Shape != model.ShapeMacro {
		return r.Intern(a.Rotated(deg)), nil
	}
	m, ok := r.macro(a.Macro)
	if !ok {
		return "", fmt.Errorf("aperture %s references unknown macro %s", code, a.Macro)
	}
	rm, err := m.Rotated(deg)
	if err != nil {
		return "", fmt.Errorf("failed to rotate aperture %s: %w", code, err)
	}
	return r.Intern(model.Aperture{Shape: model.ShapeMacro, Macro: r.internMacro(rm)}), nil
}

// Thickened returns the code of the aperture grown to at least min in
// every dimension.
func (r *ApertureRegistry) Thickened(code string, min float64) string {
	a, ok := r.Lookup(code)
	if !ok {
		return code
	}
	if t, changed := a.Thickened(min); changed {
		return r.Intern(t)
	}
	return code
}

func (r *ApertureRegistry) macro(name string) (model.Macro, bool) {
	for _, m := range r.macros {
		if m.Name == name {
			return m, true
		}
	}
	return model.Macro{}, false
}

// Definitions returns the global apertures in code order.
func (r *ApertureRegistry) Definitions() []model.ApertureDef {
	return append([]model.ApertureDef(nil), r.defs...)
}

// Macros returns the global zero-parameter macros in registration order.
// The octagon macro is not included; see OctagonMacro.
func (r *ApertureRegistry) Macros() []model.Macro {
	return append([]model.Macro(nil), r.macros...)
}

// OctagonMacro returns the octagon macro definition for the configured
// rotation.
func (r *ApertureRegistry) OctagonMacro() model.Macro {
	return OctagonMacro(r.octagon)
}

// OctagonMacro returns the single-parameter octagon macro. $1 is the
// flat-to-flat size; 1.08239 converts it to the circumscribed diameter.
func OctagonMacro(rot OctagonRotation) model.Macro {
	angle := "22.5"
	if rot == OctagonRotate {
		angle = "0.0"
	}
	return model.Macro{Name: model.OctagonMacroName, Body: []string{"5,1,8,0,0,1.08239X$1," + angle}}
}
