package trafficviz

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// PointToSegmentDistance returns Euclidean distance between point p and segment [a, b].
// Projection of p on the segment is clamped to the segment, so for points beyond either end
// it is distance to the nearer endpoint. Degenerate segment (a == b) is treated as a point.
func PointToSegmentDistance(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy
	param := -1.0
	if lenSq != 0 {
		param = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
	}
	var xx, yy float64
	switch {
	case param < 0:
		xx, yy = a[0], a[1]
	case param > 1:
		xx, yy = b[0], b[1]
	default:
		xx, yy = a[0]+param*dx, a[1]+param*dy
	}
	return math.Hypot(p[0]-xx, p[1]-yy)
}

// pointToLineDistance returns minimal distance between point and any segment of the line.
// Returns +Inf for lines with less than 2 points
func pointToLineDistance(p orb.Point, line []orb.Point) float64 {
	minDist := math.Inf(1)
	for i := 1; i < len(line); i++ {
		dist := PointToSegmentDistance(p, line[i-1], line[i])
		if dist < minDist {
			minDist = dist
		}
	}
	return minDist
}

// medianCenter returns point made of median longitude and median latitude of all edges points
func medianCenter(edges []Edge) (orb.Point, bool) {
	lons := []float64{}
	lats := []float64{}
	for i := range edges {
		for _, pt := range edges[i].Geom {
			lons = append(lons, pt.Lon())
			lats = append(lats, pt.Lat())
		}
	}
	if len(lons) == 0 {
		return orb.Point{}, false
	}
	sort.Float64s(lons)
	sort.Float64s(lats)
	return orb.Point{lons[len(lons)/2], lats[len(lats)/2]}, true
}

// expandBound returns bound extended by delta in every direction
func expandBound(bound orb.Bound, delta float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{bound.Min[0] - delta, bound.Min[1] - delta},
		Max: orb.Point{bound.Max[0] + delta, bound.Max[1] + delta},
	}
}
