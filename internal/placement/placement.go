package placement

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/engine"
	"github.com/piwi3910/gerbmerge/internal/model"
)

// Placement is the content of a placement file.
type Placement struct {
	ID        string // run id from the header, empty for older files
	Instances []model.PlacementInstance
}

// Write writes instances in placement order. Coordinates use the shortest
// representation that reads back to the same value.
func Write(w io.Writer, id string, instances []model.PlacementInstance) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# gerbmerge placement %s\n", id)
	for _, inst := range instances {
		fmt.Fprintf(bw, "%s %s %s %d %s\n",
			inst.Job, formatFloat(inst.X), formatFloat(inst.Y),
			model.NormalizeRotation(inst.Rotation), inst.Label())
	}
	return bw.Flush()
}

// WriteFile writes a placement file at path.
func WriteFile(path, id string, instances []model.PlacementInstance) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create placement file: %w", err)
	}
	if err := Write(f, id, instances); err != nil {
		f.Close()
		return fmt.Errorf("failed to write placement file: %w", err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Read parses a placement file.
func Read(r io.Reader) (*Placement, error) {
	ast, err := placementParser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	out := &Placement{}
	if ast.Header != "" {
		fields := strings.Fields(ast.Header)
		if len(fields) > 0 {
			if id := fields[len(fields)-1]; id != "placement" {
				out.ID = id
			}
		}
	}

	seen := make(map[string]int)
	for _, rec := range ast.Records {
		inst, err := rec.instance(seen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rec.Pos, err)
		}
		out.Instances = append(out.Instances, inst)
	}
	return out, nil
}

// ReadFile parses the placement file at path.
func ReadFile(path string) (*Placement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open placement file: %w", err)
	}
	defer f.Close()
	p, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p, nil
}

func (rec *placementRecord) instance(seen map[string]int) (model.PlacementInstance, error) {
	inst := model.PlacementInstance{Job: rec.Name, X: rec.X, Y: rec.Y}
	if rec.Legacy != "" && rec.Rotation != nil {
		return inst, fmt.Errorf("job %s has both a legacy rotation suffix and a rotation column", rec.Name)
	}
	switch {
	case rec.Legacy == "*rotated":
		inst.Rotation = 90
	case rec.Legacy != "":
		inst.Rotation, _ = strconv.Atoi(strings.TrimPrefix(rec.Legacy, "*rotated"))
	case rec.Rotation != nil:
		if *rec.Rotation%90 != 0 {
			return inst, fmt.Errorf("job %s: rotation %d is not a multiple of 90", rec.Name, *rec.Rotation)
		}
		inst.Rotation = model.NormalizeRotation(*rec.Rotation)
	}

	seen[rec.Name]++
	inst.Index = seen[rec.Name]
	if rec.Label != "" {
		name, n, ok := strings.Cut(rec.Label, "#")
		if name != rec.Name {
			return inst, fmt.Errorf("label %s does not belong to job %s", rec.Label, rec.Name)
		}
		if ok {
			idx, err := strconv.Atoi(n)
			if err != nil || idx < 1 {
				return inst, fmt.Errorf("bad instance number in label %s", rec.Label)
			}
			inst.Index = idx
		}
	}
	return inst, nil
}

// ReadLayout parses a layout file into rows for engine.Rows. Rows are listed
// bottom row first; "rotated" after a job name turns that instance by 90
// degrees.
func ReadLayout(r io.Reader) ([][]engine.RowEntry, error) {
	ast, err := layoutParser.Parse("", r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	rows := make([][]engine.RowEntry, 0, len(ast.Rows))
	for _, row := range ast.Rows {
		if len(row.Entries) == 0 {
			return nil, fmt.Errorf("%s: empty row", row.Pos)
		}
		entries := make([]engine.RowEntry, len(row.Entries))
		for i, e := range row.Entries {
			entries[i] = engine.RowEntry{Job: e.Name, Rotated: e.Rotated}
		}
		rows = append(rows, entries)
	}
	return rows, nil
}

// ReadLayoutFile parses the layout file at path.
func ReadLayoutFile(path string) ([][]engine.RowEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout file: %w", err)
	}
	defer f.Close()
	rows, err := ReadLayout(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
