package trafficviz

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthR   = 20037508.34
	tileSize = 256.0
)

func epsg4326To3857(lon, lat float64) (float64, float64) {
	x := lon * earthR / 180
	y := math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * earthR / 180
	return x, y
}

func epsg3857To4326(x, y float64) (float64, float64) {
	lon := x * 180 / earthR
	lat := math.Atan(math.Exp(y*math.Pi/earthR))*360/math.Pi - 90
	return lon, lat
}

// mercatorUnit projects (lon, lat) into unit square [0, 1] x [0, 1] with Y axis pointing down.
// Multiplying by 256*2^zoom gives pixel coordinates of the world map at that zoom.
func mercatorUnit(pt orb.Point) orb.Point {
	x, y := epsg4326To3857(pt.Lon(), pt.Lat())
	return orb.Point{
		(x + earthR) / (2 * earthR),
		(earthR - y) / (2 * earthR),
	}
}

// mercatorUnitInverse is inverse for mercatorUnit
func mercatorUnitInverse(pt orb.Point) orb.Point {
	x := pt.X()*2*earthR - earthR
	y := earthR - pt.Y()*2*earthR
	lon, lat := epsg3857To4326(x, y)
	return orb.Point{lon, lat}
}

// worldSize returns size of the whole map in pixels at given zoom
func worldSize(zoom float64) float64 {
	return tileSize * math.Pow(2, zoom)
}
