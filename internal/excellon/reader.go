// Package excellon reads and writes Excellon drill files and the plain
// tool list files that accompany them.
package excellon

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Options control how coordinates without an explicit decimal point are
// read. Header commands (INCH, METRIC, LZ, TZ, 000.000) override them.
type Options struct {
	Units        model.Units     // assumed when the file does not declare units
	Decimals     int             // implied decimals; 0 means 4 for inch, 3 for metric
	LeadingZeros bool            // coordinates keep leading zeros (trailing ones suppressed)
	ToolList     []model.ToolDef // diameters for tools the file selects but never defines
}

// File is one parsed drill file. Coordinates and diameters are in Units.
type File struct {
	Units model.Units
	Tools []model.ToolDef
	Hits  []model.DrillHit
}

// ReadFile parses the drill file at path.
func ReadFile(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open drill file: %w", err)
	}
	defer f.Close()
	out, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

// Parse reads an Excellon program from r.
func Parse(r io.Reader, opts Options) (*File, error) {
	if opts.Units == "" {
		opts.Units = model.UnitsInch
	}
	p := &parser{
		opts: opts,
		file: &File{Units: opts.Units},
		lz:   opts.LeadingZeros,
	}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		if err := p.line(strings.TrimSpace(sc.Text())); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if p.done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return p.file, nil
}

type parser struct {
	opts Options
	file *File

	lz          bool
	intDigits   int
	decimals    int
	incremental bool
	tool        string
	last        model.Point
	done        bool
}

var ignored = map[string]bool{
	"%": true, "M48": true, "M95": true, "M00": true,
	"G00": true, "G01": true, "G05": true, "T0": true, "T00": true,
	"ICI,OFF": true, "FMAT,2": true,
}

func (p *parser) line(s string) error {
	switch {
	case s == "" || s[0] == ';' || ignored[s]:
		return nil
	case s == "M30":
		p.done = true
	case s == "FMAT,1":
		return fmt.Errorf("format 1 commands are not supported")
	case s == "G90":
		p.incremental = false
	case s == "G91":
		p.incremental = true
	case s == "M72":
		p.file.Units = model.UnitsInch
	case s == "M71":
		p.file.Units = model.UnitsMetric
	case strings.HasPrefix(s, "VER,"), strings.HasPrefix(s, "ATC,"), strings.HasPrefix(s, "DETECT,"):
		return nil
	case strings.HasPrefix(s, "INCH"), strings.HasPrefix(s, "METRIC"):
		return p.units(s)
	case s[0] == 'T':
		return p.toolWord(s)
	case s[0] == 'X' || s[0] == 'Y':
		return p.hit(s)
	default:
		return fmt.Errorf("uninterpretable line %q", s)
	}
	return nil
}

// units handles INCH/METRIC headers with their optional zero mode and
// number format, e.g. "METRIC,TZ,000.000".
func (p *parser) units(s string) error {
	parts := strings.Split(s, ",")
	if parts[0] == "INCH" {
		p.file.Units = model.UnitsInch
	} else {
		p.file.Units = model.UnitsMetric
	}
	for _, part := range parts[1:] {
		switch {
		case part == "LZ":
			p.lz = true
		case part == "TZ":
			p.lz = false
		case strings.Contains(part, "."):
			dot := strings.Index(part, ".")
			p.intDigits = dot
			p.decimals = len(part) - dot - 1
		default:
			return fmt.Errorf("unknown unit option %q", part)
		}
	}
	return nil
}

func (p *parser) format() (intDigits, decimals int) {
	metric := p.file.Units == model.UnitsMetric
	intDigits, decimals = p.intDigits, p.decimals
	if decimals == 0 {
		decimals = p.opts.Decimals
	}
	if decimals == 0 {
		decimals = 4
		if metric {
			decimals = 3
		}
	}
	if intDigits == 0 {
		intDigits = 2
		if metric {
			intDigits = 3
		}
	}
	return intDigits, decimals
}

// toolWord handles both tool definitions (T1C0.035, T01F200S65C0.035,
// T01C0.035F200S65) and tool changes (T1).
func (p *parser) toolWord(s string) error {
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 {
		return fmt.Errorf("malformed tool word %q", s)
	}
	n, _ := strconv.Atoi(s[1:i])
	if n == 0 {
		return nil
	}
	code := fmt.Sprintf("T%02d", n)

	params, err := toolParams(s[i:])
	if err != nil {
		return fmt.Errorf("tool %s: %w", code, err)
	}
	if d, ok := params['C']; ok {
		if d <= 0 {
			return fmt.Errorf("tool %s has illegal diameter %g", code, d)
		}
		if p.defined(code) {
			return fmt.Errorf("tool %s is defined more than once", code)
		}
		p.file.Tools = append(p.file.Tools, model.ToolDef{Code: code, Diameter: d})
		p.tool = code
		return nil
	}

	if !p.defined(code) {
		d, ok := lookup(p.opts.ToolList, code)
		if !ok {
			return fmt.Errorf("tool %s is not defined in the file or the tool list", code)
		}
		p.file.Tools = append(p.file.Tools, model.ToolDef{Code: code, Diameter: d})
	}
	p.tool = code
	return nil
}

func toolParams(s string) (map[byte]float64, error) {
	params := make(map[byte]float64)
	for len(s) > 0 {
		letter := s[0]
		if letter < 'A' || letter > 'Z' {
			return nil, fmt.Errorf("unexpected %q", s)
		}
		j := 1
		for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.' || s[j] == '-' || s[j] == '+') {
			j++
		}
		v, err := strconv.ParseFloat(s[1:j], 64)
		if err != nil {
			return nil, fmt.Errorf("bad %c value %q", letter, s[1:j])
		}
		params[letter] = v
		s = s[j:]
	}
	return params, nil
}

func (p *parser) defined(code string) bool {
	_, ok := lookup(p.file.Tools, code)
	return ok
}

func lookup(tools []model.ToolDef, code string) (float64, bool) {
	for _, t := range tools {
		if t.Code == code {
			return t.Diameter, true
		}
	}
	return 0, false
}

// hit handles a plunge. Either coordinate may be omitted, in which case the
// previous value is repeated.
func (p *parser) hit(s string) error {
	if p.tool == "" {
		return fmt.Errorf("plunge %q without a selected tool", s)
	}
	at := p.last
	if p.incremental {
		at = model.Point{}
	}
	rest := s
	for rest != "" {
		axis := rest[0]
		j := 1
		for j < len(rest) && rest[j] != 'X' && rest[j] != 'Y' {
			j++
		}
		v, err := p.coordinate(rest[1:j])
		if err != nil {
			return fmt.Errorf("bad coordinate in %q: %w", s, err)
		}
		switch axis {
		case 'X':
			at.X = v
		case 'Y':
			at.Y = v
		default:
			return fmt.Errorf("unsupported plunge %q", s)
		}
		rest = rest[j:]
	}
	if p.incremental {
		at = p.last.Add(at)
	}
	p.file.Hits = append(p.file.Hits, model.DrillHit{Tool: p.tool, At: at})
	p.last = at
	return nil
}

func (p *parser) coordinate(s string) (float64, error) {
	if strings.Contains(s, ".") {
		return strconv.ParseFloat(s, 64)
	}
	sign := 1.0
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("unexpected %q", c)
		}
	}
	intDigits, decimals := p.format()
	if p.lz && len(s) < intDigits+decimals {
		s += strings.Repeat("0", intDigits+decimals-len(s))
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return sign * float64(n) / math.Pow10(decimals), nil
}
