package gerber

import (
	"fmt"
	"strconv"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// AddToJob appends the file's layer to job. Every layer of a job shares the
// job's aperture table, so the file's D-codes are renumbered into it:
// identical apertures reuse the job's code and new ones get the next free
// code. Macros clashing by name with a different body are renamed.
func (f *File) AddToJob(job *model.Job) error {
	if len(job.Layers) > 0 && f.Units != job.Units {
		return fmt.Errorf("layer %s is in %s but job %s is in %s", f.Layer.Name, f.Units, job.Name, job.Units)
	}
	if len(job.Layers) == 0 && job.Units == "" {
		job.Units = f.Units
	}
	if _, dup := job.Layer(f.Layer.Name); dup {
		return fmt.Errorf("job %s already has a %s layer", job.Name, f.Layer.Name)
	}

	macroNames := make(map[string]string, len(f.Macros))
	for _, m := range f.Macros {
		macroNames[m.Name] = addMacro(job, m)
	}

	codes := make(map[string]string, len(f.Apertures))
	next := nextCode(job)
	for _, def := range f.Apertures {
		a := def.Aperture
		if a.Shape == model.ShapeMacro {
			if renamed, ok := macroNames[a.Macro]; ok {
				a.Macro = renamed
			}
		}
		if code, ok := findAperture(job, a); ok {
			codes[def.Code] = code
			continue
		}
		code := "D" + strconv.Itoa(next)
		next++
		job.Apertures = append(job.Apertures, model.ApertureDef{Code: code, Aperture: a})
		codes[def.Code] = code
	}

	layer := model.Layer{Name: f.Layer.Name, Primitives: make([]model.Primitive, len(f.Layer.Primitives))}
	for i, p := range f.Layer.Primitives {
		if p.Aperture != "" {
			code, ok := codes[p.Aperture]
			if !ok {
				return fmt.Errorf("layer %s uses undefined aperture %s", f.Layer.Name, p.Aperture)
			}
			p.Aperture = code
		}
		layer.Primitives[i] = p
	}
	job.Layers = append(job.Layers, layer)
	return nil
}

func addMacro(job *model.Job, m model.Macro) string {
	name := m.Name
	for i := 2; ; i++ {
		existing, ok := job.Macro(name)
		if !ok {
			job.Macros = append(job.Macros, model.Macro{Name: name, Body: m.Body})
			return name
		}
		if existing.Key() == m.Key() {
			return name
		}
		name = fmt.Sprintf("%s_%d", m.Name, i)
	}
}

func findAperture(job *model.Job, a model.Aperture) (string, bool) {
	key := a.Key()
	for _, d := range job.Apertures {
		if d.Aperture.Key() == key {
			return d.Code, true
		}
	}
	return "", false
}

func nextCode(job *model.Job) int {
	next := 10
	for _, d := range job.Apertures {
		if n, err := strconv.Atoi(d.Code[1:]); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}
