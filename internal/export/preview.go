package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/piwi3910/gerbmerge/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// DefaultPreviewSize is the longest side of the preview image in pixels.
const DefaultPreviewSize = 1200

const previewBorder = 10

// Preview renders a PNG of panel with its instances and drill hits. size is
// the longest side in pixels; values <= 0 select DefaultPreviewSize.
func Preview(w io.Writer, panel *model.Panel, jobs map[string]*model.Job, size int) error {
	if panel.Width <= 0 || panel.Height <= 0 {
		return fmt.Errorf("panel has no extent")
	}
	if size <= 0 {
		size = DefaultPreviewSize
	}
	scale := float64(size-2*previewBorder) / math.Max(panel.Width, panel.Height)
	imgW := int(math.Ceil(panel.Width*scale)) + 2*previewBorder
	imgH := int(math.Ceil(panel.Height*scale)) + 2*previewBorder
	img := image.NewRGBA(image.Rect(0, 0, imgW, imgH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	// panel Y grows upwards, image Y downwards
	toPx := func(p model.Point) (float32, float32) {
		return float32(previewBorder + p.X*scale), float32(float64(imgH-previewBorder) - p.Y*scale)
	}

	fillRect(img, toPx, model.Rect{MaxX: panel.Width, MaxY: panel.Height}, color.RGBA{R: 240, G: 240, B: 240, A: 255})

	colorOf := make(map[string]color.RGBA)
	for _, inst := range panel.Instances {
		job, ok := jobs[inst.Job]
		if !ok {
			continue
		}
		col, ok := colorOf[inst.Job]
		if !ok {
			c := jobColors[len(colorOf)%len(jobColors)]
			col = color.RGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255}
			colorOf[inst.Job] = col
		}
		b := inst.Bounds(job.Width(), job.Height())
		fillRect(img, toPx, b, col)
		drawLabel(img, toPx, b, inst.Label())
	}

	for _, d := range panel.Drills {
		radius := 1.5
		if dia, ok := panel.ToolDiameter(d.Tool); ok {
			radius = math.Max(radius, dia*scale/2)
		}
		x, y := toPx(d.At)
		fillCircle(img, x, y, float32(radius), color.Black)
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return nil
}

func fillRect(img *image.RGBA, toPx func(model.Point) (float32, float32), r model.Rect, c color.Color) {
	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	x0, y0 := toPx(model.Point{X: r.MinX, Y: r.MinY})
	x1, y1 := toPx(model.Point{X: r.MaxX, Y: r.MaxY})
	z.MoveTo(x0, y0)
	z.LineTo(x1, y0)
	z.LineTo(x1, y1)
	z.LineTo(x0, y1)
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

func fillCircle(img *image.RGBA, cx, cy, r float32, c color.Color) {
	const segments = 16
	z := vector.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	z.MoveTo(cx+r, cy)
	for i := 1; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		z.LineTo(cx+r*float32(math.Cos(a)), cy+r*float32(math.Sin(a)))
	}
	z.ClosePath()
	z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
}

// drawLabel centers text in r when it fits.
func drawLabel(img *image.RGBA, toPx func(model.Point) (float32, float32), r model.Rect, text string) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	x0, y0 := toPx(model.Point{X: r.MinX, Y: r.MinY})
	x1, y1 := toPx(model.Point{X: r.MaxX, Y: r.MaxY})
	tw := d.MeasureString(text).Ceil()
	if float32(tw+4) > x1-x0 || y0-y1 < 17 {
		return
	}
	cx := int((x0+x1)/2) - tw/2
	cy := int((y0+y1)/2) + 4
	d.Dot = fixed.P(cx, cy)
	d.DrawString(text)
}
