// Package merge runs a complete panelization: it loads and trims the jobs of
// a configuration, arranges them, assembles the panel and writes every
// output file.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/piwi3910/gerbmerge/internal/assemble"
	"github.com/piwi3910/gerbmerge/internal/engine"
	"github.com/piwi3910/gerbmerge/internal/excellon"
	"github.com/piwi3910/gerbmerge/internal/export"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/outline"
	"github.com/piwi3910/gerbmerge/internal/placement"
	"github.com/piwi3910/gerbmerge/internal/project"
	"github.com/piwi3910/gerbmerge/internal/registry"
	"golang.org/x/text/language"
)

const eps = 1e-9

// Options selects the placement source and where diagnostics go. With
// neither PlaceFile nor LayoutFile set the placement is searched for.
type Options struct {
	PlaceFile  string // absolute placement written by an earlier run
	LayoutFile string // manual row layout

	Logger *slog.Logger
	Stdout io.Writer    // statistics; nil discards them
	Locale language.Tag // statistics number formatting
}

// Result describes a finished run.
type Result struct {
	Panel    *model.Panel
	Stats    export.Stats
	Files    []string // every file written, in write order
	Manifest string   // run manifest, not listed in Files
	Warnings []string
}

// Run merges the jobs of cfg. The placement file is written as soon as a
// placement exists, so later failures do not lose it.
//
// A panel larger than configured is still written in full; Run then
// returns the result together with an error wrapping model.ErrPanelExceeded.
func Run(ctx context.Context, cfg *project.Config, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	log := opts.Logger
	res := &Result{}

	var globalTools []model.ToolDef
	if cfg.ToolList != "" {
		var err error
		globalTools, err = excellon.ReadToolList(cfg.ToolList, cfg.Units)
		if err != nil {
			return nil, err
		}
	}

	ordered := make([]*model.Job, 0, len(cfg.Jobs))
	jobs := make(map[string]*model.Job, len(cfg.Jobs))
	for i := range cfg.Jobs {
		jc := &cfg.Jobs[i]
		job, warnings, err := LoadJob(cfg, jc, globalTools)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			log.Warn(w)
		}
		res.Warnings = append(res.Warnings, warnings...)

		job, warning, err := prepare(job, cfg.TrimOptions(), log)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		log.Info("loaded job", "job", job.Name,
			"width", job.Width(), "height", job.Height(),
			"layers", len(job.Layers), "drills", len(job.Drills), "repeat", job.Repeat)
		ordered = append(ordered, job)
		jobs[job.Name] = job
	}

	apertures := registry.NewApertureRegistry(cfg.OctagonRotation())
	tools := registry.NewToolRegistry(cfg.DrillClusterTolerance)
	asm := assemble.New(apertures, tools)
	asm.MinimumFeature = cfg.MinimumFeature
	for _, job := range ordered {
		if err := asm.Register(job); err != nil {
			return nil, err
		}
	}

	id, instances, err := arrange(ctx, cfg, opts, ordered, jobs)
	if err != nil {
		return nil, err
	}

	out := newOutputs(cfg)
	manifest := out.path("manifest.json")
	prev := previousManifest(manifest, log)
	if err := out.add(out.path("placement.txt"), func(path string) error {
		return placement.WriteFile(path, id, instances)
	}); err != nil {
		return nil, err
	}
	log.Info("placement written", "file", out.files[0], "instances", len(instances))

	width, height := extent(cfg, instances, jobs)
	panel, err := asm.Assemble(instances, width, height)
	if err != nil {
		res.Files = out.files
		return res, err
	}
	panel.ID = id
	panel.Units = cfg.Units
	outline.New(apertures, cfg.OutlineOptions()).Decorate(panel, jobs)
	res.Panel = panel
	res.Stats = export.Compute(panel, jobs, cfg.Panel.Width, cfg.Panel.Height)

	warnings, err := out.writeAll(ctx, panel, jobs, res.Stats, log)
	res.Files = out.files
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		return res, err
	}

	if err := res.Stats.Print(opts.Stdout, opts.Locale); err != nil {
		return res, fmt.Errorf("failed to print statistics: %w", err)
	}

	if err := out.pruneStale(prev, log); err != nil {
		return res, err
	}
	if err := project.WriteManifest(manifest, project.NewManifest(id, *cfg, res.Files, res.Warnings)); err != nil {
		return res, err
	}
	res.Manifest = manifest

	if panel.Width > cfg.Panel.Width+eps || panel.Height > cfg.Panel.Height+eps {
		return res, fmt.Errorf("%gx%g merged panel, %gx%g configured: %w",
			panel.Width, panel.Height, cfg.Panel.Width, cfg.Panel.Height, model.ErrPanelExceeded)
	}
	return res, nil
}

// arrange produces the panel placement and its id. Instances come back in
// absolute panel coordinates, margins included.
func arrange(ctx context.Context, cfg *project.Config, opts Options, ordered []*model.Job, jobs map[string]*model.Job) (string, []model.PlacementInstance, error) {
	log := opts.Logger
	eopts := cfg.EngineOptions()
	eopts.Logger = log
	left, bottom := cfg.Panel.Margins.Left, cfg.Panel.Margins.Bottom

	switch {
	case opts.PlaceFile != "":
		p, err := placement.ReadFile(opts.PlaceFile)
		if err != nil {
			return "", nil, err
		}
		for _, inst := range p.Instances {
			if _, ok := jobs[inst.Job]; !ok {
				return "", nil, fmt.Errorf("placement file references unknown job %q", inst.Job)
			}
		}
		if err := engine.Check(shift(p.Instances, -left, -bottom), jobs, eopts); err != nil {
			return "", nil, fmt.Errorf("placement file %s: %w", opts.PlaceFile, err)
		}
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		log.Info("using placement file", "file", opts.PlaceFile, "instances", len(p.Instances))
		return id, p.Instances, nil

	case opts.LayoutFile != "":
		rows, err := placement.ReadLayoutFile(opts.LayoutFile)
		if err != nil {
			return "", nil, err
		}
		r, err := engine.Rows(rows, jobs, eopts)
		if err != nil {
			return "", nil, err
		}
		log.Info("using layout file", "file", opts.LayoutFile, "instances", len(r.Instances))
		return uuid.NewString(), shift(r.Instances, left, bottom), nil

	default:
		log.Info("searching placement", "strategy", eopts.Strategy,
			"panel_width", eopts.PanelWidth, "panel_height", eopts.PanelHeight)
		r, err := engine.Search(ctx, ordered, eopts)
		if err != nil {
			return "", nil, err
		}
		if !r.Complete {
			if errors.Is(ctx.Err(), context.Canceled) {
				log.Warn("search interrupted, using best placement found")
			} else {
				log.Info("search stopped before covering every candidate")
			}
		}
		log.Info("placement found", "width", r.Width, "height", r.Height, "candidates", r.Evaluated)
		return uuid.NewString(), shift(r.Instances, left, bottom), nil
	}
}

func shift(instances []model.PlacementInstance, dx, dy float64) []model.PlacementInstance {
	out := make([]model.PlacementInstance, len(instances))
	for i, inst := range instances {
		inst.X += dx
		inst.Y += dy
		out[i] = inst
	}
	return out
}

// extent is the merged panel size: the instances' upper-right corner plus
// the right and top margins.
func extent(cfg *project.Config, instances []model.PlacementInstance, jobs map[string]*model.Job) (float64, float64) {
	m := cfg.Panel.Margins
	if len(instances) == 0 {
		return m.Left + m.Right, m.Bottom + m.Top
	}
	var maxX, maxY float64
	for _, inst := range instances {
		j := jobs[inst.Job]
		b := inst.Bounds(j.Width(), j.Height())
		maxX = max(maxX, b.MaxX)
		maxY = max(maxY, b.MaxY)
	}
	return maxX + m.Right, maxY + m.Top
}

// previousManifest reads the manifest an earlier run left at path. A missing
// or unreadable manifest yields an empty one.
func previousManifest(path string, log *slog.Logger) project.Manifest {
	m, err := project.ReadManifest(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("ignoring previous run manifest", "file", path, "error", err)
		}
		return project.Manifest{}
	}
	return m
}

// removeStale deletes a file left over from an earlier run.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
