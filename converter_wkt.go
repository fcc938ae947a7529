package trafficviz

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// PrepareWKTLinestring returns WKT representation of LineString
func PrepareWKTLinestring(pts orb.LineString) string {
	return wkt.MarshalString(pts)
}

// PrepareWKTPoint returns WKT representation of Point
func PrepareWKTPoint(pt orb.Point) string {
	return wkt.MarshalString(pt)
}

// ParseWKTLinestring parses LINESTRING geometry.
// Empty or malformed input gives empty geometry, so such edge is skipped by drawing and hit-testing
func ParseWKTLinestring(str string) (orb.LineString, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return orb.LineString{}, nil
	}
	ls, err := wkt.UnmarshalLineString(str)
	if err != nil {
		return orb.LineString{}, err
	}
	return ls, nil
}
