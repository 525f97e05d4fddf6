package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/piwi3910/gerbmerge/internal/excellon"
	"github.com/piwi3910/gerbmerge/internal/export"
	"github.com/piwi3910/gerbmerge/internal/gerber"
	"github.com/piwi3910/gerbmerge/internal/model"
	"github.com/piwi3910/gerbmerge/internal/outline"
	"github.com/piwi3910/gerbmerge/internal/project"
	"github.com/piwi3910/gerbmerge/internal/registry"
	"golang.org/x/sync/errgroup"
)

// outputs names and records the files of one run.
type outputs struct {
	cfg *project.Config

	mu    sync.Mutex
	files []string
}

func newOutputs(cfg *project.Config) *outputs {
	return &outputs{cfg: cfg}
}

// path returns <dir>/<prefix>.<suffix>.
func (o *outputs) path(suffix string) string {
	return filepath.Join(o.cfg.Outputs.Dir, o.cfg.Outputs.Prefix+"."+suffix)
}

// add writes path through write and records it.
func (o *outputs) add(path string, write func(path string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := write(path); err != nil {
		return err
	}
	o.mu.Lock()
	o.files = append(o.files, path)
	o.mu.Unlock()
	return nil
}

// create writes one file through fn and records it.
func (o *outputs) create(path string, fn func(io.Writer) error) error {
	return o.add(path, func(path string) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	})
}

// pruneStale removes the files an earlier run listed in prev that this run
// did not write. Only files in the output directory are touched.
func (o *outputs) pruneStale(prev project.Manifest, log *slog.Logger) error {
	written := make(map[string]bool, len(o.files))
	for _, f := range o.files {
		written[filepath.Clean(f)] = true
	}
	dir := filepath.Clean(o.cfg.Outputs.Dir)
	for _, f := range prev.Files {
		f = filepath.Clean(f)
		if written[f] || filepath.Dir(f) != dir {
			continue
		}
		if err := removeStale(f); err != nil {
			return err
		}
		log.Info("removed stale output", "file", f)
	}
	return nil
}

// writeAll writes the merged layers and drills, then the optional
// artefacts. Layers are written concurrently; the file list keeps layer
// order regardless.
func (o *outputs) writeAll(ctx context.Context, panel *model.Panel, jobs map[string]*model.Job, stats export.Stats, log *slog.Logger) ([]string, error) {
	var warnings []string
	gw := &gerber.Writer{
		Units:     panel.Units,
		Apertures: panel.Apertures,
		Macros:    panel.Macros,
		Octagon:   registry.OctagonMacro(o.cfg.OctagonRotation()),
	}

	layerFiles := make([]string, len(panel.Layers))
	for i, l := range panel.Layers {
		layerFiles[i] = o.path(l.Name + ".ger")
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	layerOut := &outputs{cfg: o.cfg}
	for i := range panel.Layers {
		layer := panel.Layers[i]
		path := layerFiles[i]
		g.Go(func() error {
			return layerOut.create(path, func(w io.Writer) error { return gw.Write(w, layer) })
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.files = append(o.files, layerFiles...)
	log.Info("gerber layers written", "layers", len(layerFiles))

	xw := &excellon.Writer{Units: panel.Units, LeadingZeros: o.cfg.Excellon.LeadingZeros}
	if err := o.create(o.path("xln"), func(w io.Writer) error {
		return xw.Write(w, panel.Tools, panel.Drills)
	}); err != nil {
		return nil, err
	}
	if err := o.create(o.path("toollist.txt"), func(w io.Writer) error {
		return excellon.WriteToolList(w, panel.Units, panel.Tools)
	}); err != nil {
		return nil, err
	}

	outs := o.cfg.Outputs
	if outs.Outline {
		if err := o.drawing(outline.PanelOutline(panel), gw); err != nil {
			return nil, err
		}
	}
	if outs.Scoring {
		gap := max(o.cfg.XSpacing(), o.cfg.YSpacing())
		if err := o.drawing(outline.Scoring(panel, jobs, gap), gw); err != nil {
			return nil, err
		}
	}

	drawable := panel.Width > 0 && panel.Height > 0
	if outs.FabDrawing && drawable {
		path := o.path("fab.pdf")
		err := o.create(path, func(w io.Writer) error { return export.FabDrawing(w, panel, jobs, stats) })
		switch {
		case errors.Is(err, model.ErrToolCountOverflow):
			log.Warn("fabrication drawing omitted", "tools", len(stats.Tools), "max", export.MaxDrawingTools)
			warnings = append(warnings, fmt.Sprintf("fabrication drawing omitted: %d tools, at most %d can be lettered",
				len(stats.Tools), export.MaxDrawingTools))
			if err := removeStale(path); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		}
	}
	if outs.Report {
		if err := o.create(o.path("report.xlsx"), func(w io.Writer) error {
			return export.Report(w, panel, jobs, stats)
		}); err != nil {
			return nil, err
		}
	}
	if outs.Chart {
		if err := o.create(o.path("chart.html"), func(w io.Writer) error {
			return export.Chart(w, stats)
		}); err != nil {
			return nil, err
		}
	}
	if outs.Preview && drawable {
		if err := o.create(o.path("preview.png"), func(w io.Writer) error {
			return export.Preview(w, panel, jobs, export.DefaultPreviewSize)
		}); err != nil {
			return nil, err
		}
	}
	return warnings, nil
}

// drawing writes a stand-alone outline or scoring layer.
func (o *outputs) drawing(d outline.Drawing, base *gerber.Writer) error {
	w := &gerber.Writer{Units: base.Units, Apertures: d.Apertures}
	return o.create(o.path(d.Layer.Name+".ger"), func(out io.Writer) error {
		return w.Write(out, d.Layer)
	})
}
