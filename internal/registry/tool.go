package registry

import (
	"fmt"
	"math"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// ToolMap maps a job's local tool codes to global tool codes.
type ToolMap map[string]string

// ToolRegistry is the panel-global drill table. Tools are numbered T01,
// T02, ... by diameter in first-seen order.
type ToolRegistry struct {
	tolerance float64
	tools     []model.ToolDef
}

// NewToolRegistry returns an empty registry. A positive tolerance merges a
// new diameter into the closest registered tool within that distance.
func NewToolRegistry(tolerance float64) *ToolRegistry {
	return &ToolRegistry{tolerance: tolerance}
}

// Register adds the job's tools in their first-seen order and returns the
// local to global mapping.
func (r *ToolRegistry) Register(job *model.Job) ToolMap {
	mapping := make(ToolMap, len(job.Tools))
	for _, t := range job.Tools {
		mapping[t.Code] = r.Intern(t.Diameter)
	}
	return mapping
}

// Intern returns the global code for diameter d.
func (r *ToolRegistry) Intern(d float64) string {
	best, bestDist := -1, math.Inf(1)
	for i, t := range r.tools {
		dist := math.Abs(t.Diameter - d)
		if dist < 1e-9 {
			return t.Code
		}
		if r.tolerance > 0 && dist <= r.tolerance && dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best >= 0 {
		return r.tools[best].Code
	}
	code := fmt.Sprintf("T%02d", len(r.tools)+1)
	r.tools = append(r.tools, model.ToolDef{Code: code, Diameter: d})
	return code
}

// Diameter resolves a global tool code.
func (r *ToolRegistry) Diameter(code string) (float64, bool) {
	for _, t := range r.tools {
		if t.Code == code {
			return t.Diameter, true
		}
	}
	return 0, false
}

// Tools returns the global tool table in code order.
func (r *ToolRegistry) Tools() []model.ToolDef {
	return append([]model.ToolDef(nil), r.tools...)
}
