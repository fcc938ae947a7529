package trafficviz

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	// boundEpsilon keeps envelopes of straight horizontal/vertical edges non-degenerate
	boundEpsilon = 1e-12
)

// indexedEdge is envelope of an edge in zoom-independent mercator units
type indexedEdge struct {
	index    int
	envelope rtreego.Rect
}

func (ie *indexedEdge) Bounds() rtreego.Rect {
	return ie.envelope
}

// edgeIndexTree is R-tree over edges envelopes. It is used to narrow down hit-test candidates
// only: exact distances are always computed on edge geometry.
type edgeIndexTree struct {
	tree *rtreego.Rtree
	size int
}

// newEdgeIndexTree indexes every edge which has at least 2 points
func newEdgeIndexTree(edges []Edge) *edgeIndexTree {
	objs := make([]rtreego.Spatial, 0, len(edges))
	for i := range edges {
		if len(edges[i].Geom) < 2 {
			continue
		}
		minP := orb.Point{1, 1}
		maxP := orb.Point{0, 0}
		for _, pt := range edges[i].Geom {
			u := mercatorUnit(pt)
			if u[0] < minP[0] {
				minP[0] = u[0]
			}
			if u[1] < minP[1] {
				minP[1] = u[1]
			}
			if u[0] > maxP[0] {
				maxP[0] = u[0]
			}
			if u[1] > maxP[1] {
				maxP[1] = u[1]
			}
		}
		rect, err := unitRect(orb.Bound{Min: minP, Max: maxP})
		if err != nil {
			continue
		}
		objs = append(objs, &indexedEdge{index: i, envelope: rect})
	}
	return &edgeIndexTree{
		tree: rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...),
		size: len(objs),
	}
}

// candidates returns indices of edges whose envelopes intersect square of given half-size around center
func (idx *edgeIndexTree) candidates(center orb.Point, halfSize float64) []int {
	if idx == nil || idx.size == 0 {
		return nil
	}
	rect, err := unitRect(expandBound(orb.Bound{Min: center, Max: center}, halfSize))
	if err != nil {
		return nil
	}
	found := idx.tree.SearchIntersect(rect)
	result := make([]int, 0, len(found))
	for _, obj := range found {
		result = append(result, obj.(*indexedEdge).index)
	}
	return result
}

func unitRect(bound orb.Bound) (rtreego.Rect, error) {
	w := bound.Max[0] - bound.Min[0]
	h := bound.Max[1] - bound.Min[1]
	if w < boundEpsilon {
		w = boundEpsilon
	}
	if h < boundEpsilon {
		h = boundEpsilon
	}
	return rtreego.NewRect(rtreego.Point{bound.Min[0], bound.Min[1]}, []float64{w, h})
}
