// Package assemble merges placed jobs into one panel in global coordinates
// with panel-global aperture and tool codes.
package assemble

import (
	"fmt"

	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/registry"
)

// Assembler collects jobs and their registry mappings, then builds panels
// from placements. Register every job before calling Assemble.
type Assembler struct {
	apertures *registry.ApertureRegistry
	tools     *registry.ToolRegistry
	jobs      map[string]*entry
	layers    []string // first-seen order across registered jobs

	// MinimumFeature grows apertures on the named layers to at least the
	// given size. Layers not listed are left alone.
	MinimumFeature map[string]float64
}

type entry struct {
	job   *model.Job
	apmap registry.ApertureMap
	tmap  registry.ToolMap
}

// New returns an assembler filling the given registries.
func New(apertures *registry.ApertureRegistry, tools *registry.ToolRegistry) *Assembler {
	return &Assembler{
		apertures: apertures,
		tools:     tools,
		jobs:      make(map[string]*entry),
	}
}

// Register adds a job's apertures and tools to the registries.
func (a *Assembler) Register(job *model.Job) error {
	if _, dup := a.jobs[job.Name]; dup {
		return fmt.Errorf("job %s registered twice", job.Name)
	}
	apmap, err := a.apertures.Register(job)
	if err != nil {
		return err
	}
	a.jobs[job.Name] = &entry{job: job, apmap: apmap, tmap: a.tools.Register(job)}
	for _, l := range job.Layers {
		if !contains(a.layers, l.Name) {
			a.layers = append(a.layers, l.Name)
		}
	}
	return nil
}

// Assemble transforms every instance's geometry into panel coordinates.
// Layer contents follow placement order, then the job's own order. Drill
// hits are grouped by global tool in tool order, then placement order.
func (a *Assembler) Assemble(instances []model.PlacementInstance, width, height float64) (*model.Panel, error) {
	panel := &model.Panel{
		Width:     width,
		Height:    height,
		Instances: append([]model.PlacementInstance(nil), instances...),
	}
	for _, name := range a.layers {
		panel.Layers = append(panel.Layers, model.Layer{Name: name})
	}

	hitsByTool := make(map[string][]model.DrillHit)
	for _, inst := range instances {
		e, ok := a.jobs[inst.Job]
		if !ok {
			return nil, fmt.Errorf("placement %s references unregistered job %s", inst.Label(), inst.Job)
		}
		if panel.Units == "" {
			panel.Units = e.job.Units
		}
		t := model.NewTransform(e.job, inst)

		for _, l := range e.job.Layers {
			out, _ := panel.Layer(l.Name)
			for _, p := range l.Primitives {
				q, err := a.primitive(p, e, l.Name, t)
				if err != nil {
					return nil, fmt.Errorf("failed to place %s on %s: %w", inst.Label(), l.Name, err)
				}
				out.Primitives = append(out.Primitives, q)
			}
		}

		for _, h := range e.job.Drills {
			code, ok := e.tmap[h.Tool]
			if !ok {
				return nil, fmt.Errorf("job %s: drill hit uses undefined tool %s", e.job.Name, h.Tool)
			}
			hitsByTool[code] = append(hitsByTool[code], model.DrillHit{Tool: code, At: t.Apply(h.At)})
		}
	}

	panel.Tools = a.tools.Tools()
	for _, tool := range panel.Tools {
		panel.Drills = append(panel.Drills, hitsByTool[tool.Code]...)
	}
	panel.Apertures = a.apertures.Definitions()
	panel.Macros = a.apertures.Macros()
	return panel, nil
}

// primitive maps p into panel space. Apertures that look different when
// turned are replaced by a rotated global aperture.
func (a *Assembler) primitive(p model.Primitive, e *entry, layer string, t model.Transform) (model.Primitive, error) {
	q := p.MapPoints(t.Apply)
	if p.Aperture == "" {
		if p.Kind != model.KindRegion {
			return q, fmt.Errorf("%v without aperture", p.Kind)
		}
		return q, nil
	}
	code, ok := e.apmap[p.Aperture]
	if !ok {
		return q, fmt.Errorf("undefined aperture %s", p.Aperture)
	}
	code, err := a.apertures.Rotated(code, t.Rotation)
	if err != nil {
		return q, err
	}
	if size, ok := a.MinimumFeature[layer]; ok && size > 0 {
		code = a.apertures.Thickened(code, size)
	}
	q.Aperture = code
	return q, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
