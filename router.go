package trafficviz

import (
	"fmt"
	"time"

	"github.com/LdDl/ch"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

var (
	ErrNoPath = errors.New("no path between nodes")
)

type nodePair struct {
	source NodeID
	target NodeID
}

// Router answers shortest path queries over edge list. Weight of an edge is its length in meters
// (haversine length of geometry when length is unknown)
type Router struct {
	graph    ch.Graph
	vertices map[NodeID]struct{}
	// cheapest edge between pair of nodes
	byPair map[nodePair]int
	cost   []float64
}

// NewRouter builds contraction hierarchies over given edges
func NewRouter(edges []Edge, verbose ...bool) (*Router, error) {
	router := &Router{
		graph:    ch.Graph{},
		vertices: make(map[NodeID]struct{}),
		byPair:   make(map[nodePair]int),
		cost:     make([]float64, len(edges)),
	}
	for i := range edges {
		edge := &edges[i]
		cost := edge.Length
		if cost <= 0 && len(edge.Geom) > 1 {
			cost = geo.LengthHaversine(edge.Geom)
		}
		router.cost[i] = cost
		pair := nodePair{edge.Source, edge.Target}
		if prev, ok := router.byPair[pair]; ok && router.cost[prev] <= cost {
			continue
		}
		router.byPair[pair] = i
	}
	for i := range edges {
		pair := nodePair{edges[i].Source, edges[i].Target}
		if router.byPair[pair] != i {
			continue
		}
		source := int64(pair.source)
		target := int64(pair.target)
		err := router.graph.CreateVertex(source)
		if err != nil {
			return nil, errors.Wrap(err, "Can't create source vertex")
		}
		err = router.graph.CreateVertex(target)
		if err != nil {
			return nil, errors.Wrap(err, "Can't create target vertex")
		}
		err = router.graph.AddEdge(source, target, router.cost[i])
		if err != nil {
			return nil, errors.Wrap(err, "Can't wrap source and target vertices as edge")
		}
		router.vertices[pair.source] = struct{}{}
		router.vertices[pair.target] = struct{}{}
	}
	st := time.Now()
	router.graph.PrepareContractionHierarchies()
	if len(verbose) > 0 && verbose[0] {
		fmt.Printf("Done contraction process in %v\n", time.Since(st))
	}
	return router, nil
}

// ShortestPath returns indices of edges forming shortest path between two nodes and its total cost
func (router *Router) ShortestPath(from, to NodeID) ([]int, float64, error) {
	if _, ok := router.vertices[from]; !ok {
		return nil, 0, errors.Wrapf(ErrNodeNotFound, "node %d", from)
	}
	if _, ok := router.vertices[to]; !ok {
		return nil, 0, errors.Wrapf(ErrNodeNotFound, "node %d", to)
	}
	if from == to {
		return []int{}, 0, nil
	}
	cost, vertices := router.graph.ShortestPath(int64(from), int64(to))
	if cost < 0 || len(vertices) < 2 {
		return nil, 0, errors.Wrapf(ErrNoPath, "from %d to %d", from, to)
	}
	path := make([]int, 0, len(vertices)-1)
	for i := 1; i < len(vertices); i++ {
		idx, ok := router.byPair[nodePair{NodeID(vertices[i-1]), NodeID(vertices[i])}]
		if !ok {
			return nil, 0, fmt.Errorf("Can't find edge from %d to %d", vertices[i-1], vertices[i])
		}
		path = append(path, idx)
	}
	return path, cost, nil
}
