// Package gerber reads and writes RS274-X artwork.
//
// The reader turns one Gerber file into a model.Layer plus the apertures and
// macros it defines. The writer emits a merged panel layer with the panel's
// global aperture table.
package gerber

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

// File is one parsed Gerber file.
type File struct {
	Units     model.Units
	Apertures []model.ApertureDef
	Macros    []model.Macro
	Layer     model.Layer
}

// ReadFile parses the Gerber file at path as layer name.
func ReadFile(path, name string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gerber file: %w", err)
	}
	defer f.Close()
	out, err := Parse(f, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

// Parse reads RS274-X from r.
func Parse(r io.Reader, name string) (*File, error) {
	p := &parser{
		file:     &File{Units: model.UnitsInch, Layer: model.Layer{Name: name}},
		format:   coordFormat{xInt: 2, xDec: 5, yInt: 2, yDec: 5, leading: true},
		mode:     1,
		multi:    true,
		lastOp:   2,
		polarity: model.PolarityDark,
	}
	br := bufio.NewReader(r)
	line := 1
	for {
		block, extended, err := nextBlock(br, &line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if extended {
			err = p.extended(block)
		} else {
			err = p.word(block)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.done {
			break
		}
	}
	p.flushRegion()
	return p.file, nil
}

// nextBlock returns the next '*'-terminated word, or the content of a
// %...% extended block with its parameters still '*'-separated.
func nextBlock(br *bufio.Reader, line *int) (string, bool, error) {
	var b strings.Builder
	extended := false
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && strings.TrimSpace(b.String()) != "" {
				return "", false, fmt.Errorf("unterminated block %q", b.String())
			}
			return "", false, err
		}
		switch {
		case c == '\n':
			*line++
		case c == '\r' || c == ' ' && !extended && b.Len() == 0:
		case c == '%':
			if extended {
				return strings.TrimSuffix(b.String(), "*"), true, nil
			}
			if strings.TrimSpace(b.String()) != "" {
				return "", false, fmt.Errorf("unterminated word %q", b.String())
			}
			b.Reset()
			extended = true
		case c == '*' && !extended:
			if b.Len() == 0 {
				continue
			}
			return b.String(), false, nil
		default:
			b.WriteByte(c)
		}
	}
}

type coordFormat struct {
	xInt, xDec, yInt, yDec int
	leading                bool // leading zeros omitted
	incremental            bool
}

type parser struct {
	file   *File
	format coordFormat

	aperture string
	mode     int  // 1 linear, 2 clockwise, 3 counter-clockwise
	multi    bool // G75 multi-quadrant arcs
	lastOp   int
	current  model.Point

	region   bool
	contour  []model.Point
	polarity model.Polarity

	done bool
}

func (p *parser) extended(block string) error {
	switch {
	case strings.HasPrefix(block, "FS"):
		return p.formatSpec(block[2:])
	case block == "MOIN":
		p.file.Units = model.UnitsInch
	case block == "MOMM":
		p.file.Units = model.UnitsMetric
	case strings.HasPrefix(block, "AD"):
		return p.apertureDef(block[2:])
	case strings.HasPrefix(block, "AM"):
		return p.macroDef(block[2:])
	case block == "LPD":
		p.polarity = model.PolarityDark
	case block == "LPC":
		p.polarity = model.PolarityClear
	case strings.HasPrefix(block, "SR") && block != "SR":
		return fmt.Errorf("step and repeat blocks are not supported")
	}
	// IP, OF, IN, LN, TF, TA, TO, TD and friends carry nothing to merge.
	return nil
}

// formatSpec parses e.g. "LAX25Y25".
func (p *parser) formatSpec(s string) error {
	f := coordFormat{leading: true}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'L':
			f.leading = true
		case 'T':
			f.leading = false
		case 'A':
			f.incremental = false
		case 'I':
			f.incremental = true
		case 'X', 'Y':
			if i+2 >= len(s) {
				return fmt.Errorf("bad format spec %q", s)
			}
			n, d := int(s[i+1]-'0'), int(s[i+2]-'0')
			if s[i] == 'X' {
				f.xInt, f.xDec = n, d
			} else {
				f.yInt, f.yDec = n, d
			}
			i += 2
		}
	}
	if f.xDec == 0 && f.yDec == 0 {
		return fmt.Errorf("format spec %q has no coordinate format", s)
	}
	p.format = f
	return nil
}

// apertureDef parses e.g. "D10C,0.010" or "D12OC8,0.06" or "D13PAD".
func (p *parser) apertureDef(s string) error {
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 || s[0] != 'D' {
		return fmt.Errorf("bad aperture definition %q", s)
	}
	code := "D" + strings.TrimLeft(s[1:i], "0")
	name, params, _ := strings.Cut(s[i:], ",")
	var dims []float64
	if params != "" {
		for _, f := range strings.Split(params, "X") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("aperture %s: bad parameter %q", code, f)
			}
			dims = append(dims, v)
		}
	}
	a := model.Aperture{Dims: dims}
	switch name {
	case "C":
		a.Shape = model.ShapeCircle
	case "R":
		a.Shape = model.ShapeRectangle
	case "O":
		a.Shape = model.ShapeOval
	case "P":
		a.Shape = model.ShapePolygon
	default:
		a.Shape, a.Macro = model.ShapeMacro, name
	}
	if a.Shape != model.ShapeMacro && len(dims) == 0 {
		return fmt.Errorf("aperture %s has no size", code)
	}
	p.file.Apertures = append(p.file.Apertures, model.ApertureDef{Code: code, Aperture: a})
	return nil
}

// macroDef parses "NAME*stmt*stmt".
func (p *parser) macroDef(s string) error {
	parts := strings.Split(s, "*")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return fmt.Errorf("aperture macro without a name")
	}
	var body []string
	for _, stmt := range parts[1:] {
		stmt = strings.Join(strings.Fields(stmt), "")
		if stmt != "" {
			body = append(body, stmt)
		}
	}
	p.file.Macros = append(p.file.Macros, model.Macro{Name: name, Body: body})
	return nil
}

// word executes one function code block such as "G01X100Y200D01".
func (p *parser) word(w string) error {
	w = strings.TrimSpace(w)
	if strings.HasPrefix(w, "G04") || strings.HasPrefix(w, "G4 ") {
		return nil
	}
	var (
		x, y, i, j       *float64
		op               = 0
		hasCoord, hasArc bool
	)
	for pos := 0; pos < len(w); {
		letter := w[pos]
		pos++
		start := pos
		for pos < len(w) && (w[pos] == '-' || w[pos] == '+' || w[pos] == '.' || (w[pos] >= '0' && w[pos] <= '9')) {
			pos++
		}
		num := w[start:pos]
		switch letter {
		case 'G':
			n, err := strconv.Atoi(num)
			if err != nil {
				return fmt.Errorf("bad G code in %q", w)
			}
			p.gcode(n)
		case 'M':
			if num == "02" || num == "2" || num == "00" || num == "0" {
				p.done = true
			}
		case 'D':
			n, err := strconv.Atoi(num)
			if err != nil {
				return fmt.Errorf("bad D code in %q", w)
			}
			if n >= 10 {
				p.aperture = "D" + strconv.Itoa(n)
			} else {
				op = n
			}
		case 'X', 'Y', 'I', 'J':
			isX := letter == 'X' || letter == 'I'
			v, err := p.coordinate(num, isX)
			if err != nil {
				return fmt.Errorf("%w in %q", err, w)
			}
			switch letter {
			case 'X':
				x = &v
			case 'Y':
				y = &v
			case 'I':
				i = &v
			case 'J':
				j = &v
			}
			hasCoord = hasCoord || letter == 'X' || letter == 'Y'
			hasArc = hasArc || letter == 'I' || letter == 'J'
		case 'N':
			// sequence number
		default:
			return fmt.Errorf("unexpected %q in %q", letter, w)
		}
	}
	if op == 0 {
		if !hasCoord && !hasArc {
			return nil
		}
		op = p.lastOp
	}
	p.lastOp = op

	target := p.current
	if x != nil {
		target.X = *x
		if p.format.incremental {
			target.X += p.current.X
		}
	}
	if y != nil {
		target.Y = *y
		if p.format.incremental {
			target.Y += p.current.Y
		}
	}
	var off model.Point
	if i != nil {
		off.X = *i
	}
	if j != nil {
		off.Y = *j
	}
	return p.operate(op, target, off)
}

func (p *parser) gcode(n int) {
	switch n {
	case 1, 2, 3:
		p.mode = n
	case 36:
		p.region, p.contour = true, nil
	case 37:
		p.flushRegion()
		p.region = false
	case 70:
		p.file.Units = model.UnitsInch
	case 71:
		p.file.Units = model.UnitsMetric
	case 74:
		p.multi = false
	case 75:
		p.multi = true
	case 90:
		p.format.incremental = false
	case 91:
		p.format.incremental = true
	}
	// G54 selects a tool before a D code and needs no handling.
}

// coordinate decodes a fixed-point number using the coordinate format.
func (p *parser) coordinate(s string, isX bool) (float64, error) {
	if strings.Contains(s, ".") {
		return strconv.ParseFloat(s, 64)
	}
	intDigits, dec := p.format.yInt, p.format.yDec
	if isX {
		intDigits, dec = p.format.xInt, p.format.xDec
	}
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimLeft(s, "+-")
	if digits == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	if !p.format.leading {
		for len(digits) < intDigits+dec {
			digits += "0"
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad coordinate %q", s)
	}
	v := float64(n) / math.Pow10(dec)
	if neg {
		v = -v
	}
	return v, nil
}

func (p *parser) operate(op int, target, off model.Point) error {
	defer func() { p.current = target }()
	switch op {
	case 1:
		if p.region {
			if len(p.contour) == 0 {
				p.contour = append(p.contour, p.current)
			}
			if p.mode == 1 {
				p.contour = append(p.contour, target)
				return nil
			}
			arc, err := p.arc(target, off)
			if err != nil {
				return err
			}
			p.contour = append(p.contour, arcPoints(arc)...)
			return nil
		}
		if p.aperture == "" {
			return fmt.Errorf("draw before any aperture was selected")
		}
		if p.mode == 1 {
			p.emit(model.Line(p.current, target, p.aperture))
			return nil
		}
		arc, err := p.arc(target, off)
		if err != nil {
			return err
		}
		p.emit(arc)
	case 2:
		if p.region {
			p.flushRegion()
		}
	case 3:
		if p.region {
			return fmt.Errorf("flash inside a region")
		}
		if p.aperture == "" {
			return fmt.Errorf("flash before any aperture was selected")
		}
		p.emit(model.Flash(target, p.aperture))
	default:
		return fmt.Errorf("unknown operation D%02d", op)
	}
	return nil
}

func (p *parser) emit(prim model.Primitive) {
	prim.Polarity = p.polarity
	p.file.Layer.Primitives = append(p.file.Layer.Primitives, prim)
}

func (p *parser) flushRegion() {
	if len(p.contour) >= 3 {
		r := model.Region(model.Polygon(p.contour).Open())
		r.Polarity = p.polarity
		p.file.Layer.Primitives = append(p.file.Layer.Primitives, r)
	}
	p.contour = nil
}

// arc builds the arc from the current point to target. In single-quadrant
// mode the offsets are unsigned and the center is the candidate giving an
// arc of at most 90 degrees with the closest matching radii.
func (p *parser) arc(target, off model.Point) (model.Primitive, error) {
	cw := p.mode == 2
	if p.multi {
		c := p.current.Add(off)
		return model.Arc(c, p.current, target, cw, p.aperture), nil
	}
	best, bestErr := model.Primitive{}, math.Inf(1)
	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			c := p.current.Add(model.Point{X: sx * math.Abs(off.X), Y: sy * math.Abs(off.Y)})
			a := model.Arc(c, p.current, target, cw, p.aperture)
			_, sweep := model.ArcAngles(a)
			if p.current == target {
				sweep = 0
			}
			if math.Abs(sweep) > math.Pi/2+1e-6 {
				continue
			}
			if e := math.Abs(c.Dist(p.current) - c.Dist(target)); e < bestErr {
				best, bestErr = a, e
			}
		}
	}
	if math.IsInf(bestErr, 1) {
		return best, fmt.Errorf("no single-quadrant arc from %v to %v", p.current, target)
	}
	if p.current == target {
		return model.Line(p.current, target, p.aperture), nil
	}
	return best, nil
}

// arcPoints approximates an arc inside a region contour, excluding its
// start point.
func arcPoints(a model.Primitive) []model.Point {
	start, sweep := model.ArcAngles(a)
	r := a.Center.Dist(a.Start)
	n := int(math.Ceil(math.Abs(sweep) / (math.Pi / 36)))
	if n < 1 {
		n = 1
	}
	pts := make([]model.Point, 0, n)
	for k := 1; k < n; k++ {
		ang := start + sweep*float64(k)/float64(n)
		pts = append(pts, model.Point{X: a.Center.X + r*math.Cos(ang), Y: a.Center.Y + r*math.Sin(ang)})
	}
	return append(pts, a.End)
}
