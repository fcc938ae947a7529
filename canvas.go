package trafficviz

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
)

// Canvas is 2-D drawing surface edges are rendered onto
type Canvas interface {
	Size() (int, int)
	Clear()
	NewPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	SetColor(c color.Color)
	SetLineWidth(w float64)
	SetDash(dashes ...float64)
	StrokePreserve()
	Stroke()
}

// ImageCanvas is raster Canvas backed by gg.Context
type ImageCanvas struct {
	dc         *gg.Context
	background color.Color
}

// NewImageCanvas creates raster canvas of given size. Clear() fills it with background
func NewImageCanvas(width, height int, background color.Color) *ImageCanvas {
	if background == nil {
		background = color.Transparent
	}
	dc := gg.NewContext(width, height)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return &ImageCanvas{dc: dc, background: background}
}

func (c *ImageCanvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

func (c *ImageCanvas) Clear() {
	c.dc.ClearPath()
	c.dc.SetColor(c.background)
	c.dc.Clear()
}

func (c *ImageCanvas) NewPath() {
	c.dc.ClearPath()
}

func (c *ImageCanvas) MoveTo(x, y float64) {
	c.dc.MoveTo(x, y)
}

func (c *ImageCanvas) LineTo(x, y float64) {
	c.dc.LineTo(x, y)
}

func (c *ImageCanvas) SetColor(clr color.Color) {
	c.dc.SetColor(clr)
}

func (c *ImageCanvas) SetLineWidth(w float64) {
	c.dc.SetLineWidth(w)
}

func (c *ImageCanvas) SetDash(dashes ...float64) {
	c.dc.SetDash(dashes...)
}

func (c *ImageCanvas) StrokePreserve() {
	c.dc.StrokePreserve()
}

func (c *ImageCanvas) Stroke() {
	c.dc.Stroke()
}

// Context exposes underlying gg.Context for decorations (labels, legend)
func (c *ImageCanvas) Context() *gg.Context {
	return c.dc
}

// Image returns current raster
func (c *ImageCanvas) Image() image.Image {
	return c.dc.Image()
}

// EncodePNG writes current raster as PNG
func (c *ImageCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}

// SVGCanvas is vector Canvas which writes every stroke as SVG path
type SVGCanvas struct {
	canvas     *svg.SVG
	width      int
	height     int
	background color.Color
	path       strings.Builder
	color      color.Color
	lineWidth  float64
	dashes     []float64
}

// NewSVGCanvas starts SVG document of given size. Close must be called to finish the document
func NewSVGCanvas(w io.Writer, width, height int, background color.Color) *SVGCanvas {
	canvas := svg.New(w)
	canvas.Start(width, height)
	return &SVGCanvas{
		canvas:     canvas,
		width:      width,
		height:     height,
		background: background,
		color:      color.Black,
		lineWidth:  1,
	}
}

func (c *SVGCanvas) Size() (int, int) {
	return c.width, c.height
}

// Clear paints background. SVG output is append-only so previous strokes stay under it
func (c *SVGCanvas) Clear() {
	c.path.Reset()
	if c.background == nil {
		return
	}
	c.canvas.Rect(0, 0, c.width, c.height, fmt.Sprintf("fill:%s;fill-opacity:%.2f", cssColor(c.background), opacity(c.background)))
}

func (c *SVGCanvas) NewPath() {
	c.path.Reset()
}

func (c *SVGCanvas) MoveTo(x, y float64) {
	fmt.Fprintf(&c.path, "M%.2f %.2f ", x, y)
}

func (c *SVGCanvas) LineTo(x, y float64) {
	fmt.Fprintf(&c.path, "L%.2f %.2f ", x, y)
}

func (c *SVGCanvas) SetColor(clr color.Color) {
	c.color = clr
}

func (c *SVGCanvas) SetLineWidth(w float64) {
	c.lineWidth = w
}

func (c *SVGCanvas) SetDash(dashes ...float64) {
	c.dashes = dashes
}

func (c *SVGCanvas) StrokePreserve() {
	d := strings.TrimSpace(c.path.String())
	if d == "" {
		return
	}
	style := fmt.Sprintf("fill:none;stroke:%s;stroke-opacity:%.2f;stroke-width:%.2f;stroke-linecap:round;stroke-linejoin:round", cssColor(c.color), opacity(c.color), c.lineWidth)
	if len(c.dashes) > 0 {
		parts := make([]string, len(c.dashes))
		for i, d := range c.dashes {
			parts[i] = fmt.Sprintf("%g", d)
		}
		style += ";stroke-dasharray:" + strings.Join(parts, ",")
	}
	c.canvas.Path(d, style)
}

func (c *SVGCanvas) Stroke() {
	c.StrokePreserve()
	c.path.Reset()
}

// SVG exposes underlying document for decorations (labels, legend)
func (c *SVGCanvas) SVG() *svg.SVG {
	return c.canvas
}

// Close finishes SVG document
func (c *SVGCanvas) Close() {
	c.canvas.End()
}

func cssColor(clr color.Color) string {
	n := color.NRGBAModel.Convert(clr).(color.NRGBA)
	return fmt.Sprintf("rgb(%d,%d,%d)", n.R, n.G, n.B)
}

func opacity(clr color.Color) float64 {
	n := color.NRGBAModel.Convert(clr).(color.NRGBA)
	return float64(n.A) / 255
}
