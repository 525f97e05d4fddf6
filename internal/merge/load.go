package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/piwi3910/gerbmerge/internal/excellon"
	"github.com/piwi3910/gerbmerge/internal/gerber"
	"github.com/piwi3910/gerbmerge/internal/importer"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/project"
	"github.com/piwi3910/gerbmerge/internal/trim"
)

// LoadJob reads the Gerber layers, drill file and outline named by jc. Layers
// are read in name order. Warnings from the outline import are returned
// alongside the job.
func LoadJob(cfg *project.Config, jc *project.JobConfig, globalTools []model.ToolDef) (*model.Job, []string, error) {
	job := &model.Job{Name: jc.Name, Units: cfg.Units, Repeat: jc.Repeat}
	var warnings []string

	layers := make([]string, 0, len(jc.Gerber))
	for name := range jc.Gerber {
		layers = append(layers, name)
	}
	sort.Strings(layers)
	for _, name := range layers {
		f, err := gerber.ReadFile(jc.Gerber[name], name)
		if err != nil {
			return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
		if f.Units != cfg.Units {
			return nil, nil, fmt.Errorf("job %s: layer %s is in %s, the panel in %s", jc.Name, name, f.Units, cfg.Units)
		}
		if err := f.AddToJob(job); err != nil {
			return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
	}

	if jc.Drills != "" {
		tools := globalTools
		if jc.ToolList != "" {
			var err error
			tools, err = excellon.ReadToolList(jc.ToolList, cfg.Units)
			if err != nil {
				return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
			}
		}
		f, err := excellon.ReadFile(jc.Drills, cfg.ExcellonOptions(jc, tools))
		if err != nil {
			return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
		if err := f.AddToJob(job); err != nil {
			return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
	}

	if jc.OutlineDXF != "" {
		res, err := importer.ImportDXF(jc.OutlineDXF)
		if err != nil {
			return nil, nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
		for _, w := range res.Warnings {
			warnings = append(warnings, fmt.Sprintf("job %s: %s", jc.Name, w))
		}
		job.Outline = res.Outline
		job.OutlineExplicit = true
	}

	if err := job.Validate(); err != nil {
		return nil, nil, err
	}
	return job.Normalized(), warnings, nil
}

// prepare trims job. An invalid outline leaves the job untrimmed and comes
// back as a warning.
func prepare(job *model.Job, opts trim.Options, log *slog.Logger) (*model.Job, string, error) {
	out, err := trim.Job(job, opts)
	if err == nil {
		return out, "", nil
	}
	var oe *model.OutlineError
	if errors.As(err, &oe) {
		log.Warn("board outline is invalid, job left untrimmed", "job", job.Name, "reason", oe.Reason)
		return out, err.Error(), nil
	}
	return nil, "", fmt.Errorf("failed to trim job %s: %w", job.Name, err)
}
