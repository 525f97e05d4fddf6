package export

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"
	"github.com/piwi3910/gerbmerge/internal/model"
)

// jobColor represents an RGB color for a placed job.
type jobColor struct {
	R, G, B int
}

// jobColors cycles through distinct fills for the jobs on a panel.
var jobColors = []jobColor{
	{R: 76, G: 175, B: 80},  // green
	{R: 33, G: 150, B: 243}, // blue
	{R: 255, G: 152, B: 0},  // orange
	{R: 156, G: 39, B: 176}, // purple
	{R: 0, G: 188, B: 212},  // cyan
	{R: 244, G: 67, B: 54},  // red
	{R: 255, G: 235, B: 59}, // yellow
	{R: 121, G: 85, B: 72},  // brown
}

// MaxDrawingTools is the number of drill symbols available: one letter
// A through Z per tool.
const MaxDrawingTools = 26

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	legendWidth  = 70.0
	drawAreaTop  = marginTop + headerHeight + 5.0
)

// FabDrawing renders the fabrication drawing of panel: the panel outline
// with every job instance, each drill hit marked with its tool's letter, a
// drill legend and a QR code identifying the panel. More than
// MaxDrawingTools tools cannot be lettered and yield
// model.ErrToolCountOverflow without writing anything.
func FabDrawing(w io.Writer, panel *model.Panel, jobs map[string]*model.Job, stats Stats) error {
	if len(stats.Tools) > MaxDrawingTools {
		return fmt.Errorf("%d tools in use: %w", len(stats.Tools), model.ErrToolCountOverflow)
	}
	if panel.Width <= 0 || panel.Height <= 0 {
		return fmt.Errorf("panel has no extent")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetXY(marginLeft, marginTop)
	title := fmt.Sprintf("Panel %s", panel.ID)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, headerHeight, title, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	summary := fmt.Sprintf("Instances: %d | Drill hits: %d | Usage: %.1f%%",
		len(panel.Instances), stats.DrillHits, stats.Achieved*100)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 5, summary, "", 0, "L", false, 0, "")

	// Scale the panel into the area left of the legend
	drawWidth := pageWidth - marginLeft - marginRight - legendWidth - 5
	drawHeight := pageHeight - drawAreaTop - marginBottom - 8
	scale := math.Min(drawWidth/panel.Width, drawHeight/panel.Height)
	canvasW := panel.Width * scale
	canvasH := panel.Height * scale
	offsetX := marginLeft + (drawWidth-canvasW)/2
	offsetY := drawAreaTop

	// panel Y grows upwards, page Y downwards
	toPage := func(p model.Point) (float64, float64) {
		return offsetX + p.X*scale, offsetY + canvasH - p.Y*scale
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Rect(offsetX, offsetY, canvasW, canvasH, "FD")

	drawInstances(pdf, panel, jobs, scale, toPage)
	drawHits(pdf, panel, stats, toPage)
	drawDimensionAnnotations(pdf, panel, offsetX, offsetY, canvasW, canvasH)

	legendX := pageWidth - marginRight - legendWidth
	y := drawLegend(pdf, stats, legendX, drawAreaTop)

	qr, err := QRCode(NewPanelLabel(panel, stats), 256)
	if err != nil {
		return err
	}
	pdf.RegisterImageOptionsReader("panel_qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	if y+qrSize < pageHeight-marginBottom {
		pdf.ImageOptions("panel_qr", legendX, y+5, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(pageWidth-marginLeft-marginRight, 4, "Generated by gerbmerge", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// drawInstances fills each instance's footprint and labels it when the
// rectangle is large enough.
func drawInstances(pdf *fpdf.Fpdf, panel *model.Panel, jobs map[string]*model.Job, scale float64, toPage func(model.Point) (float64, float64)) {
	colorOf := make(map[string]jobColor)
	for _, inst := range panel.Instances {
		job, ok := jobs[inst.Job]
		if !ok {
			continue
		}
		col, ok := colorOf[inst.Job]
		if !ok {
			col = jobColors[len(colorOf)%len(jobColors)]
			colorOf[inst.Job] = col
		}
		b := inst.Bounds(job.Width(), job.Height())
		px, py := toPage(model.Point{X: b.MinX, Y: b.MaxY})
		pw, ph := b.Width()*scale, b.Height()*scale

		pdf.SetFillColor(col.R, col.G, col.B)
		pdf.SetDrawColor(30, 30, 30)
		pdf.SetLineWidth(0.3)
		pdf.Rect(px, py, pw, ph, "FD")

		if pw > 15 && ph > 8 {
			pdf.SetFont("Helvetica", "", labelFontSize(pw, ph))
			pdf.SetTextColor(0, 0, 0)
			label := inst.Label()
			if inst.Rotation != 0 {
				label += fmt.Sprintf(" (%d)", inst.Rotation)
			}
			if lw := pdf.GetStringWidth(label); lw < pw-2 {
				pdf.SetXY(px+(pw-lw)/2, py+ph/2-2)
				pdf.CellFormat(lw, 4, label, "", 0, "C", false, 0, "")
			}
		}
	}
}

// drawHits writes each tool's letter centered on its drill hits.
func drawHits(pdf *fpdf.Fpdf, panel *model.Panel, stats Stats, toPage func(model.Point) (float64, float64)) {
	letters := make(map[string]string, len(stats.Tools))
	for i, t := range stats.Tools {
		letters[t.Code] = string(rune('A' + i))
	}
	pdf.SetFont("Helvetica", "B", 4)
	pdf.SetTextColor(0, 0, 0)
	for _, d := range panel.Drills {
		letter, ok := letters[d.Tool]
		if !ok {
			continue
		}
		x, y := toPage(d.At)
		pdf.SetXY(x-1, y-1)
		pdf.CellFormat(2, 2, letter, "", 0, "C", false, 0, "")
	}
}

// drawDimensionAnnotations adds width and height labels outside the panel.
func drawDimensionAnnotations(pdf *fpdf.Fpdf, panel *model.Panel, offsetX, offsetY, canvasW, canvasH float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(80, 80, 80)
	unit := "in"
	if panel.Units == model.UnitsMetric {
		unit = "mm"
	}

	widthLabel := fmt.Sprintf("%.3f %s", panel.Width, unit)
	wLabelW := pdf.GetStringWidth(widthLabel)
	pdf.SetXY(offsetX+(canvasW-wLabelW)/2, offsetY+canvasH+1)
	pdf.CellFormat(wLabelW, 4, widthLabel, "", 0, "C", false, 0, "")

	heightLabel := fmt.Sprintf("%.3f %s", panel.Height, unit)
	pdf.TransformBegin()
	pdf.TransformRotate(90, offsetX-3, offsetY+canvasH/2)
	hLabelW := pdf.GetStringWidth(heightLabel)
	pdf.SetXY(offsetX-3-hLabelW/2, offsetY+canvasH/2-2)
	pdf.CellFormat(hLabelW, 4, heightLabel, "", 0, "C", false, 0, "")
	pdf.TransformEnd()

	pdf.SetTextColor(0, 0, 0)
}

// drawLegend renders the drill table and returns the Y position below it.
func drawLegend(pdf *fpdf.Fpdf, stats Stats, x, y float64) float64 {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(x, y)
	pdf.CellFormat(legendWidth, 6, "Drill Legend", "", 0, "L", false, 0, "")
	y += 7

	colWidths := []float64{10, 14, 28, 18}
	headers := []string{"Sym", "Tool", "Diameter", "Hits"}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(230, 230, 230)
	xPos := x
	for i, header := range headers {
		pdf.SetXY(xPos, y)
		pdf.CellFormat(colWidths[i], 5, header, "1", 0, "C", true, 0, "")
		xPos += colWidths[i]
	}
	y += 5

	unit := `"`
	if stats.Units == model.UnitsMetric {
		unit = "mm"
	}
	pdf.SetFont("Helvetica", "", 8)
	for i, t := range stats.Tools {
		row := []string{
			string(rune('A' + i)),
			t.Code,
			fmt.Sprintf("%.4f%s", t.Diameter, unit),
			fmt.Sprintf("%d", t.Hits),
		}
		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		xPos = x
		for j, cell := range row {
			pdf.SetXY(xPos, y)
			pdf.CellFormat(colWidths[j], 5, cell, "1", 0, "C", true, 0, "")
			xPos += colWidths[j]
		}
		y += 5
	}
	return y
}

// labelFontSize returns an appropriate font size based on the rectangle dimensions.
func labelFontSize(w, h float64) float64 {
	minDim := math.Min(w, h)
	switch {
	case minDim > 40:
		return 8
	case minDim > 20:
		return 7
	default:
		return 6
	}
}
