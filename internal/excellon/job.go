package excellon

import (
	"fmt"
	"math"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// AddToJob merges the file's tools and hits into job, converting them to the
// job's units. Tools without hits are dropped. A local code already used by
// the job for another diameter is moved to the next free code.
func (f *File) AddToJob(job *model.Job) error {
	if job.Units == "" {
		job.Units = f.Units
	}
	counts := Counts(f.Hits)
	codes := make(map[string]string, len(f.Tools))
	for _, t := range f.Tools {
		if counts[t.Code] == 0 {
			continue
		}
		d := f.Units.Convert(t.Diameter, job.Units)
		codes[t.Code] = addTool(job, t.Code, d)
	}
	for _, h := range f.Hits {
		code, ok := codes[h.Tool]
		if !ok {
			return fmt.Errorf("hit uses undefined tool %s", h.Tool)
		}
		at := model.Point{X: f.Units.Convert(h.At.X, job.Units), Y: f.Units.Convert(h.At.Y, job.Units)}
		job.Drills = append(job.Drills, model.DrillHit{Tool: code, At: at})
	}
	return nil
}

func addTool(job *model.Job, code string, d float64) string {
	for _, t := range job.Tools {
		if math.Abs(t.Diameter-d) < 1e-9 {
			return t.Code
		}
	}
	if _, taken := job.ToolDiameter(code); taken {
		for n := 1; ; n++ {
			code = fmt.Sprintf("T%02d", n)
			if _, taken := job.ToolDiameter(code); !taken {
				break
			}
		}
	}
	job.Tools = append(job.Tools, model.ToolDef{Code: code, Diameter: d})
	return code
}

// Counts returns the number of hits per tool code.
func Counts(hits []model.DrillHit) map[string]int {
	counts := make(map[string]int)
	for _, h := range hits {
		counts[h.Tool]++
	}
	return counts
}
