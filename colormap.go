package trafficviz

import (
	"fmt"
	"image/color"
	"math"
)

const (
	DEFAULT_MAX_DENSITY = 200.0
	// DEFAULT_ALPHA is opacity of every density color
	DEFAULT_ALPHA = 0.69
)

var (
	colorLow  = [3]float64{0, 128, 0}
	colorMid  = [3]float64{255, 255, 0}
	colorHigh = [3]float64{255, 0, 0}

	HighlightColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// ColorScale maps density to color with three stops: 0 -> green, max/2 -> yellow, max -> red.
//
// Input is not clamped: values outside of [0, max] extrapolate along the outer segment and
// only resulting channels are clamped to [0, 255].
type ColorScale struct {
	Max   float64
	Alpha float64
}

// NewColorScale returns scale with given ceiling. Non-positive ceiling falls back to DEFAULT_MAX_DENSITY
func NewColorScale(max float64) ColorScale {
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		max = DEFAULT_MAX_DENSITY
	}
	return ColorScale{Max: max, Alpha: DEFAULT_ALPHA}
}

// RGB returns unrounded, unclamped channels for given density
func (scale ColorScale) RGB(density float64) (float64, float64, float64) {
	half := scale.Max / 2
	from, to := colorLow, colorMid
	t := density / half
	if density > half {
		from, to = colorMid, colorHigh
		t = (density - half) / half
	}
	return from[0] + (to[0]-from[0])*t,
		from[1] + (to[1]-from[1])*t,
		from[2] + (to[2]-from[2])*t
}

// Color returns color for given density
func (scale ColorScale) Color(density float64) color.NRGBA {
	r, g, b := scale.RGB(density)
	return color.NRGBA{
		R: channel(r),
		G: channel(g),
		B: channel(b),
		A: channel(scale.Alpha * 255),
	}
}

// CSS returns color in rgba() notation
func (scale ColorScale) CSS(density float64) string {
	c := scale.Color(density)
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", c.R, c.G, c.B, scale.Alpha)
}

func channel(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// StrokeWidth returns line width for given density and zoom level:
// max(1, (3 + zoom - referenceZoom) * (0.5 + min(density/maxDensity, 2)))
func StrokeWidth(density, maxDensity, zoom, referenceZoom float64) float64 {
	base := 3 + (zoom - referenceZoom)
	factor := math.Min(density/maxDensity, 2.0)
	width := base * (0.5 + factor)
	// catches NaN too
	if !(width >= 1) {
		return 1
	}
	return width
}
