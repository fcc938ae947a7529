package trafficviz

import (
	"github.com/paulmach/orb"
)

type EdgeID int64

type NodeID int64

// Edge is a directed road segment with its geometry and static attributes.
// Geom holds (lon, lat) pairs.
type Edge struct {
	ID       EdgeID
	Source   NodeID
	Target   NodeID
	Name     string
	MaxSpeed float64
	Lanes    int
	Length   float64
	Geom     orb.LineString
}

// Bound returns bounding box of edge geometry. ok is false for empty geometry
func (edge *Edge) Bound() (orb.Bound, bool) {
	if len(edge.Geom) == 0 {
		return orb.Bound{}, false
	}
	return edge.Geom.Bound(), true
}

// EdgeInfo is what gets reported for selected edge. HasDensity is false when there is no
// record for the edge at current time step, Density is zero then
type EdgeInfo struct {
	ID         EdgeID  `json:"id"`
	Source     NodeID  `json:"source"`
	Target     NodeID  `json:"target"`
	Name       string  `json:"name"`
	MaxSpeed   float64 `json:"maxspeed"`
	Lanes      int     `json:"nlanes"`
	Length     float64 `json:"length"`
	Density    float64 `json:"density"`
	HasDensity bool    `json:"has_density"`
}

// edgeIndex maps edge identifiers to their positions in the ordered edge list
func edgeIndex(edges []Edge) map[EdgeID]int {
	idx := make(map[EdgeID]int, len(edges))
	for i := range edges {
		if _, ok := idx[edges[i].ID]; !ok {
			idx[edges[i].ID] = i
		}
	}
	return idx
}
