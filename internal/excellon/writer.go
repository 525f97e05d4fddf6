package excellon

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/piwi3910/gerbmerge/internal/model"
)

// Writer emits a merged drill file. Coordinates are written without a
// decimal point: 2.4 for inches, 3.3 for millimeters.
type Writer struct {
	Units        model.Units
	LeadingZeros bool
}

// Decimals returns the implied decimals of written coordinates.
func Decimals(u model.Units) int {
	if u == model.UnitsMetric {
		return 3
	}
	return 4
}

// Write writes tools and hits. Only tools with hits are defined, and hits
// are grouped per tool in table order.
func (wr *Writer) Write(w io.Writer, tools []model.ToolDef, hits []model.DrillHit) error {
	bw := bufio.NewWriter(w)
	byTool := make(map[string][]model.Point)
	for _, h := range hits {
		byTool[h.Tool] = append(byTool[h.Tool], h.At)
	}
	for code := range byTool {
		if _, ok := lookup(tools, code); !ok {
			return fmt.Errorf("drill hit uses undefined tool %s", code)
		}
	}

	zeros := "TZ"
	if wr.LeadingZeros {
		zeros = "LZ"
	}
	fmt.Fprintf(bw, "M48\n")
	if wr.Units == model.UnitsMetric {
		fmt.Fprintf(bw, "METRIC,%s,000.000\n", zeros)
	} else {
		fmt.Fprintf(bw, "INCH,%s,00.0000\n", zeros)
	}
	for _, t := range tools {
		if len(byTool[t.Code]) > 0 {
			fmt.Fprintf(bw, "%sC%f\n", t.Code, t.Diameter)
		}
	}
	fmt.Fprintf(bw, "%%\nG90\n")

	const width = 6 // both 2.4 and 3.3
	scale := math.Pow10(Decimals(wr.Units))
	coord := func(v float64) string {
		n := int64(math.Round(v * scale))
		if !wr.LeadingZeros {
			return strconv.FormatInt(n, 10)
		}
		if n < 0 {
			return fmt.Sprintf("-%0*d", width, -n)
		}
		return fmt.Sprintf("%0*d", width, n)
	}
	for _, t := range tools {
		points := byTool[t.Code]
		if len(points) == 0 {
			continue
		}
		fmt.Fprintf(bw, "%s\n", t.Code)
		for _, p := range points {
			fmt.Fprintf(bw, "X%sY%s\n", coord(p.X), coord(p.Y))
		}
	}
	fmt.Fprintf(bw, "M30\n")
	return bw.Flush()
}
