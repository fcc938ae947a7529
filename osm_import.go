package trafficviz

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

type osmNode struct {
	point    orb.Point
	useCount int
}

// ImportEdgesFromOSM reads *.osm / *.xml / *.osm.pbf file and builds directed edges for ways
// with one of given highway types (DEFAULT_HIGHWAY_TYPES when none given).
//
// Ways are split at every node which is shared with another way (or used twice by the same way).
// Non-oneway ways produce edge for both directions. Source and target of an edge are OSM node identifiers.
func ImportEdgesFromOSM(filename string, highwayTypes []HighwayType, verbose bool) ([]Edge, error) {
	if len(highwayTypes) == 0 {
		highwayTypes = DEFAULT_HIGHWAY_TYPES
	}
	allowed := make(map[HighwayType]struct{}, len(highwayTypes))
	for _, highway := range highwayTypes {
		allowed[highway] = struct{}{}
	}

	if verbose {
		fmt.Printf("Opening file: '%s'...\n", filename)
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open OSM file")
	}
	defer file.Close()

	/* Process ways */
	if verbose {
		fmt.Printf("\tProcessing ways... ")
	}
	st := time.Now()
	ways := []*wayData{}
	nodes := make(map[osm.NodeID]*osmNode)
	{
		scannerWays, err := newOSMScanner(filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			obj := scannerWays.Object()
			if obj.ObjectID().Type() != "way" {
				continue
			}
			way := newWayData(obj.(*osm.Way), allowed, verbose)
			if way == nil || len(way.Nodes) < 2 {
				continue
			}
			for i, nodeID := range way.Nodes {
				node, ok := nodes[nodeID]
				if !ok {
					node = &osmNode{}
					nodes[nodeID] = node
				}
				if i == 0 || i == len(way.Nodes)-1 {
					node.useCount += 2
				} else {
					node.useCount++
				}
			}
			ways = append(ways, way)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on ways")
		}
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	if verbose {
		fmt.Printf("\tProcessing nodes... ")
	}
	st = time.Now()
	found := 0
	{
		scannerNodes, err := newOSMScanner(filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			obj := scannerNodes.Object()
			if obj.ObjectID().Type() != "node" {
				continue
			}
			node := obj.(*osm.Node)
			if prepared, ok := nodes[node.ID]; ok {
				prepared.point = orb.Point{node.Lon, node.Lat}
				found++
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on nodes")
		}
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	if found != len(nodes) {
		return nil, fmt.Errorf("Missing %d nodes referenced by ways", len(nodes)-found)
	}

	/* Prepare edges */
	if verbose {
		fmt.Printf("\tPreparing edges... ")
	}
	st = time.Now()
	edges := []Edge{}
	nextID := EdgeID(1)
	for _, way := range ways {
		for _, segment := range way.segments(nodes) {
			geom := make(orb.LineString, len(segment))
			for i, nodeID := range segment {
				geom[i] = nodes[nodeID].point
			}
			length := geo.LengthHaversine(geom)
			source, target := segment[0], segment[len(segment)-1]
			if !way.oneway || !way.isReversed {
				edges = append(edges, Edge{
					ID:       nextID,
					Source:   NodeID(source),
					Target:   NodeID(target),
					Name:     way.name,
					MaxSpeed: way.speed(),
					Lanes:    way.lanesFor(true),
					Length:   length,
					Geom:     geom,
				})
				nextID++
			}
			if !way.oneway || way.isReversed {
				edges = append(edges, Edge{
					ID:       nextID,
					Source:   NodeID(target),
					Target:   NodeID(source),
					Name:     way.name,
					MaxSpeed: way.speed(),
					Lanes:    way.lanesFor(false),
					Length:   length,
					Geom:     reversed(geom),
				})
				nextID++
			}
		}
	}
	if verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
		fmt.Printf("Number of ways: %d\n", len(ways))
		fmt.Printf("Number of nodes: %d\n", len(nodes))
		fmt.Printf("Number of edges: %d\n", len(edges))
	}
	return edges, nil
}

// segments splits way at intermediate nodes which are used more than once
func (way *wayData) segments(nodes map[osm.NodeID]*osmNode) [][]osm.NodeID {
	result := [][]osm.NodeID{}
	current := []osm.NodeID{way.Nodes[0]}
	for i := 1; i < len(way.Nodes); i++ {
		nodeID := way.Nodes[i]
		current = append(current, nodeID)
		if i == len(way.Nodes)-1 || nodes[nodeID].useCount > 1 {
			result = append(result, current)
			current = []osm.NodeID{nodeID}
		}
	}
	return result
}

func newOSMScanner(filename string, file *os.File) (OSMScanner, error) {
	// Guess file extension and prepare correct scanner
	ext := filepath.Ext(filename)
	switch {
	case ext == ".osm" || ext == ".xml":
		return osmxml.New(context.Background(), file), nil
	case ext == ".pbf" || strings.HasSuffix(filename, ".osm.pbf"):
		return osmpbf.New(context.Background(), file, 4), nil
	default:
		return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
}

func reversed(ls orb.LineString) orb.LineString {
	result := make(orb.LineString, len(ls))
	for i := range ls {
		result[len(ls)-1-i] = ls[i]
	}
	return result
}
