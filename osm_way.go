package trafficviz

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
)

const mphToKmh = 1.609344

// wayData is OSM way reduced to attributes needed for edges
type wayData struct {
	ID            osm.WayID
	Nodes         []osm.NodeID
	name          string
	highway       HighwayType
	oneway        bool
	isReversed    bool
	maxSpeed      float64
	lanes         int
	lanesForward  int
	lanesBackward int
}

var (
	numberRegExp = regexp.MustCompile(`\d+\.?\d*`)
)

// newWayData returns nil for ways which are not roads of interest
func newWayData(way *osm.Way, allowed map[HighwayType]struct{}, verbose bool) *wayData {
	highway := getHighwayType(way.Tags.Find("highway"))
	if highway == 0 {
		return nil
	}
	if _, ok := allowed[highway]; !ok {
		return nil
	}
	data := &wayData{
		ID:            way.ID,
		Nodes:         make([]osm.NodeID, 0, len(way.Nodes)),
		name:          way.Tags.Find("name"),
		highway:       highway,
		maxSpeed:      -1,
		lanes:         -1,
		lanesForward:  -1,
		lanesBackward: -1,
	}
	for _, node := range way.Nodes {
		data.Nodes = append(data.Nodes, node.ID)
	}
	data.processOneway(way.Tags, verbose)
	data.processTags(way.Tags, verbose)
	return data
}

func (way *wayData) processOneway(tags osm.Tags, verbose bool) {
	onewayText := tags.Find("oneway")
	if onewayText == "" {
		if _, ok := junctionTypes[tags.Find("junction")]; ok {
			way.oneway = true
		}
		return
	}
	switch onewayText {
	case "yes", "1", "true":
		way.oneway = true
	case "no", "0", "false":
		way.oneway = false
	case "-1":
		way.oneway = true
		way.isReversed = true
	default:
		if _, found := onewayReversible[onewayText]; found {
			way.oneway = false
			return
		}
		if verbose {
			fmt.Printf("[WARNING]: Unhandled `oneway` tag value has been met: '%s'. Way ID: '%d'\n", onewayText, way.ID)
		}
	}
}

func (way *wayData) processTags(tags osm.Tags, verbose bool) {
	way.lanes = parseLanes(tags.Find("lanes"), "lanes", way.ID, verbose)
	way.lanesForward = parseLanes(tags.Find("lanes:forward"), "lanes:forward", way.ID, verbose)
	way.lanesBackward = parseLanes(tags.Find("lanes:backward"), "lanes:backward", way.ID, verbose)

	maxSpeed := strings.TrimSpace(tags.Find("maxspeed"))
	if maxSpeed == "" {
		return
	}
	number := numberRegExp.FindString(maxSpeed)
	if number == "" {
		if verbose {
			fmt.Printf("[WARNING]: Provided `maxspeed` tag value should be a number. Got '%s'. Way ID: '%d'\n", maxSpeed, way.ID)
		}
		return
	}
	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return
	}
	if strings.Contains(maxSpeed, "mph") {
		value *= mphToKmh
	}
	way.maxSpeed = value
}

func parseLanes(text, tag string, wayID osm.WayID, verbose bool) int {
	if text == "" {
		return -1
	}
	lanes, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || lanes <= 0 {
		if verbose {
			fmt.Printf("[WARNING]: Provided `%s` tag value should be a positive integer. Got '%s'. Way ID: '%d'\n", tag, text, wayID)
		}
		return -1
	}
	return lanes
}

// speed returns speed limit (km/h) or default one for the highway type
func (way *wayData) speed() float64 {
	if way.maxSpeed > 0 {
		return way.maxSpeed
	}
	return defaultSpeedByHighway[way.highway]
}

// lanesFor returns number of lanes in forward or backward direction.
// Two-way roads without directional tags get half of total lanes per direction
func (way *wayData) lanesFor(forward bool) int {
	directional := way.lanesBackward
	if forward {
		directional = way.lanesForward
	}
	if directional > 0 {
		return directional
	}
	lanes := way.lanes
	if lanes <= 0 {
		return defaultLanesByHighway[way.highway]
	}
	if way.oneway {
		return lanes
	}
	half := lanes / 2
	if half < 1 {
		return 1
	}
	return half
}
