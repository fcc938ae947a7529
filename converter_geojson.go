package trafficviz

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
)

// PrepareGeoJSONLinestring returns GeoJSON representation of LineString
func PrepareGeoJSONLinestring(pts orb.LineString) string {
	b, err := geojson.NewLineStringGeometry(lineStringCoordinates(pts)).MarshalJSON()
	if err != nil {
		fmt.Printf("[WARNING]: Can't convert geometry to geojson format: %s\n", err.Error())
		return ""
	}
	return string(b)
}

// PrepareGeoJSONPoint returns GeoJSON representation of Point
func PrepareGeoJSONPoint(pt orb.Point) string {
	b, err := geojson.NewPointGeometry([]float64{pt.Lon(), pt.Lat()}).MarshalJSON()
	if err != nil {
		fmt.Printf("[WARNING]: Can't convert geometry to geojson format: %s\n", err.Error())
		return ""
	}
	return string(b)
}

// EdgesFeatureCollection builds collection of edges with their attributes and (optionally) densities of the given sample.
// Edges with empty geometry are skipped. Color is rendered with the given scale
func EdgesFeatureCollection(edges []Edge, sample *DensitySample, scale ColorScale) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range edges {
		edge := &edges[i]
		if len(edge.Geom) == 0 {
			continue
		}
		f := geojson.NewLineStringFeature(lineStringCoordinates(edge.Geom))
		f.ID = int64(edge.ID)
		f.SetProperty("id", edge.ID)
		f.SetProperty("source", edge.Source)
		f.SetProperty("target", edge.Target)
		f.SetProperty("name", edge.Name)
		f.SetProperty("maxspeed", edge.MaxSpeed)
		f.SetProperty("nlanes", edge.Lanes)
		f.SetProperty("length", edge.Length)
		if sample != nil {
			d := sample.At(i)
			f.SetProperty("density", d)
			f.SetProperty("color", scale.CSS(d))
		}
		fc.AddFeature(f)
	}
	return fc
}

func lineStringCoordinates(pts orb.LineString) [][]float64 {
	coords := make([][]float64, len(pts))
	for i := range pts {
		coords[i] = []float64{pts[i].Lon(), pts[i].Lat()}
	}
	return coords
}
