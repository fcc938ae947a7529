package trafficviz

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/image/font/basicfont"
)

const (
	// TIME_LABEL_LAYOUT is layout of time label drawn over the map
	TIME_LABEL_LAYOUT = "2006-01-02 15:04"
	// fileTimeLayout is timestamp layout safe for file names
	fileTimeLayout = "2006-01-02T15-04-05"

	nodeHighlightRadius = 10.0
	legendWidth         = 160
	legendHeight        = 10
	legendMargin        = 12
	legendSteps         = 64
)

var (
	BackgroundColor = color.NRGBA{R: 34, G: 34, B: 34, A: 255}
	labelColor      = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// ScreenshotName returns file name for screenshot of given time step: road_network_<timestamp>.<ext>
func ScreenshotName(ts time.Time, ext string) string {
	return fmt.Sprintf("road_network_%s.%s", ts.UTC().Format(fileTimeLayout), strings.TrimPrefix(ext, "."))
}

// RenderFrame draws current state of session for the view onto a new raster canvas:
// edges, route, highlighted node, time label and legend
func RenderFrame(session *Session, vp Viewport) *ImageCanvas {
	return session.snapshot(session.current).render(vp)
}

// RenderSample draws sample with given index for the view keeping current selection. Time cursor is not moved
func RenderSample(session *Session, idx int, vp Viewport) (*ImageCanvas, error) {
	if idx < 0 || idx >= len(session.samples) {
		return nil, errors.Wrapf(ErrNoDensitySample, "sample index %d", idx)
	}
	return session.snapshot(idx).render(vp), nil
}

// WritePNG writes raster screenshot of session for the view
func WritePNG(w io.Writer, session *Session, vp Viewport) error {
	if err := RenderFrame(session, vp).EncodePNG(w); err != nil {
		return errors.Wrap(err, "Can't encode PNG")
	}
	return nil
}

// WriteSVG writes vector screenshot of session for the view
func WriteSVG(w io.Writer, session *Session, vp Viewport) error {
	state := session.snapshot(session.current)
	canvas := NewSVGCanvas(w, vp.Width, vp.Height, BackgroundColor)
	state.draw(canvas, vp)
	drawVectorDecorations(canvas.SVG(), vp.Width, vp.Height, state.ts, state.layer.Scale())
	canvas.Close()
	return nil
}

// drawDisk fills circle (plus 1px of outline) by stroking a ring of half radius with a line as wide as the radius
func drawDisk(canvas Canvas, center orb.Point, radius float64, clr color.Color) {
	outer := radius + 1
	canvas.NewPath()
	for i := 0; i <= 32; i++ {
		angle := 2 * math.Pi * float64(i) / 32
		x := center[0] + outer/2*math.Cos(angle)
		y := center[1] + outer/2*math.Sin(angle)
		if i == 0 {
			canvas.MoveTo(x, y)
			continue
		}
		canvas.LineTo(x, y)
	}
	canvas.SetColor(clr)
	canvas.SetLineWidth(outer)
	canvas.Stroke()
}

func drawRasterDecorations(canvas *ImageCanvas, ts time.Time, scale ColorScale) {
	dc := canvas.Context()
	width, height := canvas.Size()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(labelColor)
	dc.DrawStringAnchored(ts.Format(TIME_LABEL_LAYOUT), float64(width)/2, legendMargin+6, 0.5, 0.5)

	x0 := float64(width - legendWidth - legendMargin)
	y0 := float64(height - legendHeight - 2*legendMargin)
	step := float64(legendWidth) / legendSteps
	for i := 0; i < legendSteps; i++ {
		d := scale.Max * float64(i) / float64(legendSteps-1)
		dc.DrawRectangle(x0+float64(i)*step, y0, step+0.5, legendHeight)
		dc.SetColor(scale.Color(d))
		dc.Fill()
	}
	dc.SetColor(labelColor)
	labelsY := y0 + legendHeight + legendMargin/2 + 4
	dc.DrawStringAnchored("0", x0, labelsY, 0, 0.5)
	dc.DrawStringAnchored(formatDensity(scale.Max/2), x0+legendWidth/2, labelsY, 0.5, 0.5)
	dc.DrawStringAnchored(formatDensity(scale.Max), x0+legendWidth, labelsY, 1, 0.5)
}

func drawVectorDecorations(canvas *svg.SVG, width, height int, ts time.Time, scale ColorScale) {
	textStyle := "fill:white;font-family:sans-serif;font-size:13px"
	canvas.Text(width/2, legendMargin+10, ts.Format(TIME_LABEL_LAYOUT), textStyle+";text-anchor:middle")

	low, mid, high := scale.Color(0), scale.Color(scale.Max/2), scale.Color(scale.Max)
	canvas.Def()
	canvas.LinearGradient("density-legend", 0, 0, 100, 0, []svg.Offcolor{
		{Offset: 0, Color: cssColor(low), Opacity: opacity(low)},
		{Offset: 50, Color: cssColor(mid), Opacity: opacity(mid)},
		{Offset: 100, Color: cssColor(high), Opacity: opacity(high)},
	})
	canvas.DefEnd()
	x0 := width - legendWidth - legendMargin
	y0 := height - legendHeight - 2*legendMargin
	canvas.Rect(x0, y0, legendWidth, legendHeight, "fill:url(#density-legend)")
	labelsY := y0 + legendHeight + 14
	canvas.Text(x0, labelsY, "0", textStyle)
	canvas.Text(x0+legendWidth/2, labelsY, formatDensity(scale.Max/2), textStyle+";text-anchor:middle")
	canvas.Text(x0+legendWidth, labelsY, formatDensity(scale.Max), textStyle+";text-anchor:end")
}

func formatDensity(d float64) string {
	if d == math.Trunc(d) {
		return fmt.Sprintf("%.0f", d)
	}
	return fmt.Sprintf("%.1f", d)
}
