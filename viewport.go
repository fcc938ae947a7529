package trafficviz

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	DEFAULT_REFERENCE_ZOOM = 13.0
	DEFAULT_MIN_ZOOM       = 0.0
	DEFAULT_MAX_ZOOM       = 18.0
	// DEFAULT_NODE_ZOOM is zoom used to center view on searched node
	DEFAULT_NODE_ZOOM = 18.0
	// DEFAULT_FIT_PADDING is padding (pixels) used when view is fitted to selected edge
	DEFAULT_FIT_PADDING = 20.0
)

// Viewport describes visible part of the map: (lon, lat) center, zoom level and size in pixels
type Viewport struct {
	Center orb.Point
	Zoom   float64
	Width  int
	Height int
}

func (vp Viewport) String() string {
	return fmt.Sprintf("center: (%f, %f) | zoom: %.2f | size: %dx%d", vp.Center.Lon(), vp.Center.Lat(), vp.Zoom, vp.Width, vp.Height)
}

// Project converts (lon, lat) point into screen pixels of the viewport
func (vp Viewport) Project(pt orb.Point) orb.Point {
	size := worldSize(vp.Zoom)
	p := mercatorUnit(pt)
	c := mercatorUnit(vp.Center)
	return orb.Point{
		(p[0]-c[0])*size + float64(vp.Width)/2,
		(p[1]-c[1])*size + float64(vp.Height)/2,
	}
}

// Unproject converts screen pixels into (lon, lat) point
func (vp Viewport) Unproject(px orb.Point) orb.Point {
	size := worldSize(vp.Zoom)
	c := mercatorUnit(vp.Center)
	return mercatorUnitInverse(orb.Point{
		c[0] + (px[0]-float64(vp.Width)/2)/size,
		c[1] + (px[1]-float64(vp.Height)/2)/size,
	})
}

// Pan shifts the view by given number of pixels
func (vp Viewport) Pan(dx, dy float64) Viewport {
	vp.Center = vp.Unproject(orb.Point{float64(vp.Width)/2 + dx, float64(vp.Height)/2 + dy})
	return vp
}

// Resize changes size of the view keeping its center
func (vp Viewport) Resize(width, height int) Viewport {
	vp.Width = width
	vp.Height = height
	return vp
}

// FitBound returns view centered on the bound with the biggest integer zoom
// at which whole bound fits into the view minus padding on every side.
func (vp Viewport) FitBound(bound orb.Bound, padding float64) Viewport {
	minP := mercatorUnit(orb.Point{bound.Min.Lon(), bound.Max.Lat()})
	maxP := mercatorUnit(orb.Point{bound.Max.Lon(), bound.Min.Lat()})
	vp.Center = mercatorUnitInverse(orb.Point{(minP[0] + maxP[0]) / 2, (minP[1] + maxP[1]) / 2})

	availW := float64(vp.Width) - 2*padding
	availH := float64(vp.Height) - 2*padding
	spanW := maxP[0] - minP[0]
	spanH := maxP[1] - minP[1]
	zoom := DEFAULT_MAX_ZOOM
	if availW > 0 && availH > 0 && (spanW > 0 || spanH > 0) {
		scale := math.Inf(1)
		if spanW > 0 {
			scale = math.Min(scale, availW/spanW)
		}
		if spanH > 0 {
			scale = math.Min(scale, availH/spanH)
		}
		zoom = math.Floor(math.Log2(scale / tileSize))
	}
	vp.Zoom = math.Max(DEFAULT_MIN_ZOOM, math.Min(DEFAULT_MAX_ZOOM, zoom))
	return vp
}

// pixelsToUnits converts distance in pixels to mercator units at viewport's zoom
func (vp Viewport) pixelsToUnits(px float64) float64 {
	return px / worldSize(vp.Zoom)
}
