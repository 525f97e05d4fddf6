package excellon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// ReadToolList reads a tool list file: one "Tnn <diameter>" entry per line,
// the diameter optionally suffixed with "in" or "mm". Unsuffixed diameters
// are taken to be in u. Blank lines and lines starting with '#' or ';' are
// skipped.
func ReadToolList(path string, u model.Units) ([]model.ToolDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool list: %w", err)
	}
	defer f.Close()
	tools, err := ParseToolList(f, u)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tools, nil
}

// ParseToolList reads tool list entries from r, converting diameters to u.
func ParseToolList(r io.Reader, u model.Units) ([]model.ToolDef, error) {
	var tools []model.ToolDef
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 || len(fields[0]) < 2 || fields[0][0] != 'T' {
			return nil, fmt.Errorf("line %d: expected \"Tnn diameter\", got %q", n, line)
		}
		num, err := strconv.Atoi(fields[0][1:])
		if err != nil || num <= 0 {
			return nil, fmt.Errorf("line %d: bad tool code %q", n, fields[0])
		}
		from, text := u, fields[1]
		switch {
		case strings.HasSuffix(text, "in"):
			from, text = model.UnitsInch, strings.TrimSuffix(text, "in")
		case strings.HasSuffix(text, "mm"):
			from, text = model.UnitsMetric, strings.TrimSuffix(text, "mm")
		}
		d, err := strconv.ParseFloat(text, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("line %d: bad diameter %q", n, fields[1])
		}
		code := fmt.Sprintf("T%02d", num)
		if _, dup := lookup(tools, code); dup {
			return nil, fmt.Errorf("line %d: tool %s listed twice", n, code)
		}
		tools = append(tools, model.ToolDef{Code: code, Diameter: from.Convert(d, u)})
	}
	return tools, sc.Err()
}

// WriteToolList writes the tools in the panel's units.
func WriteToolList(w io.Writer, u model.Units, tools []model.ToolDef) error {
	suffix := "in"
	if u == model.UnitsMetric {
		suffix = "mm"
	}
	bw := bufio.NewWriter(w)
	for _, t := range tools {
		fmt.Fprintf(bw, "%s %.4f%s\n", t.Code, t.Diameter, suffix)
	}
	return bw.Flush()
}
