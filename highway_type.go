package trafficviz

import "fmt"

type HighwayType uint16

const (
	HIGHWAY_MOTORWAY = HighwayType(iota + 1)
	HIGHWAY_MOTORWAY_LINK
	HIGHWAY_TRUNK
	HIGHWAY_TRUNK_LINK
	HIGHWAY_PRIMARY
	HIGHWAY_PRIMARY_LINK
	HIGHWAY_SECONDARY
	HIGHWAY_SECONDARY_LINK
	HIGHWAY_TERTIARY
	HIGHWAY_TERTIARY_LINK
	HIGHWAY_RESIDENTIAL
	HIGHWAY_RESIDENTIAL_LINK
	HIGHWAY_LIVING_STREET
	HIGHWAY_SERVICE
	HIGHWAY_SERVICES
	HIGHWAY_CYCLEWAY
	HIGHWAY_FOOTWAY
	HIGHWAY_PEDESTRIAN
	HIGHWAY_STEPS
	HIGHWAY_TRACK
	HIGHWAY_UNCLASSIFIED
	HIGHWAY_ROAD
)

func (iotaIdx HighwayType) String() string {
	return [...]string{"motorway", "motorway_link", "trunk", "trunk_link", "primary", "primary_link", "secondary", "secondary_link", "tertiary", "tertiary_link", "residential", "residential_link", "living_street", "service", "services", "cycleway", "footway", "pedestrian", "steps", "track", "unclassified", "road"}[iotaIdx-1]
}

func getHighwayType(str string) HighwayType {
	if found, ok := highwaysTypes[str]; ok {
		return found
	}
	return 0
}

// DEFAULT_HIGHWAY_TYPES is set of highway tags imported by default: roads for motor vehicles only
var DEFAULT_HIGHWAY_TYPES = []HighwayType{
	HIGHWAY_MOTORWAY, HIGHWAY_MOTORWAY_LINK,
	HIGHWAY_TRUNK, HIGHWAY_TRUNK_LINK,
	HIGHWAY_PRIMARY, HIGHWAY_PRIMARY_LINK,
	HIGHWAY_SECONDARY, HIGHWAY_SECONDARY_LINK,
	HIGHWAY_TERTIARY, HIGHWAY_TERTIARY_LINK,
	HIGHWAY_RESIDENTIAL, HIGHWAY_UNCLASSIFIED, HIGHWAY_ROAD,
}

// ParseHighwayTypes converts tag values into highway types. Unknown values are reported as error
func ParseHighwayTypes(tags []string) ([]HighwayType, error) {
	types := make([]HighwayType, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		found := getHighwayType(tag)
		if found == 0 {
			return nil, fmt.Errorf("Unknown highway type '%s'", tag)
		}
		types = append(types, found)
	}
	return types, nil
}

var (
	highwaysTypes = map[string]HighwayType{
		"motorway":         HIGHWAY_MOTORWAY,
		"motorway_link":    HIGHWAY_MOTORWAY_LINK,
		"trunk":            HIGHWAY_TRUNK,
		"trunk_link":       HIGHWAY_TRUNK_LINK,
		"primary":          HIGHWAY_PRIMARY,
		"primary_link":     HIGHWAY_PRIMARY_LINK,
		"secondary":        HIGHWAY_SECONDARY,
		"secondary_link":   HIGHWAY_SECONDARY_LINK,
		"tertiary":         HIGHWAY_TERTIARY,
		"tertiary_link":    HIGHWAY_TERTIARY_LINK,
		"residential":      HIGHWAY_RESIDENTIAL,
		"residential_link": HIGHWAY_RESIDENTIAL_LINK,
		"living_street":    HIGHWAY_LIVING_STREET,
		"service":          HIGHWAY_SERVICE,
		"services":         HIGHWAY_SERVICES,
		"cycleway":         HIGHWAY_CYCLEWAY,
		"footway":          HIGHWAY_FOOTWAY,
		"pedestrian":       HIGHWAY_PEDESTRIAN,
		"steps":            HIGHWAY_STEPS,
		"track":            HIGHWAY_TRACK,
		"unclassified":     HIGHWAY_UNCLASSIFIED,
		"road":             HIGHWAY_ROAD,
	}

	// Link kinds share defaults with their main road
	defaultLanesByHighway = map[HighwayType]int{
		HIGHWAY_MOTORWAY:         4,
		HIGHWAY_MOTORWAY_LINK:    4,
		HIGHWAY_TRUNK:            3,
		HIGHWAY_TRUNK_LINK:       3,
		HIGHWAY_PRIMARY:          3,
		HIGHWAY_PRIMARY_LINK:     3,
		HIGHWAY_SECONDARY:        2,
		HIGHWAY_SECONDARY_LINK:   2,
		HIGHWAY_TERTIARY:         2,
		HIGHWAY_TERTIARY_LINK:    2,
		HIGHWAY_RESIDENTIAL:      1,
		HIGHWAY_RESIDENTIAL_LINK: 1,
		HIGHWAY_LIVING_STREET:    1,
		HIGHWAY_SERVICE:          1,
		HIGHWAY_SERVICES:         1,
		HIGHWAY_CYCLEWAY:         1,
		HIGHWAY_FOOTWAY:          1,
		HIGHWAY_PEDESTRIAN:       1,
		HIGHWAY_STEPS:            1,
		HIGHWAY_TRACK:            1,
		HIGHWAY_UNCLASSIFIED:     1,
		HIGHWAY_ROAD:             1,
	}
	defaultSpeedByHighway = map[HighwayType]float64{
		HIGHWAY_MOTORWAY:         120,
		HIGHWAY_MOTORWAY_LINK:    120,
		HIGHWAY_TRUNK:            100,
		HIGHWAY_TRUNK_LINK:       100,
		HIGHWAY_PRIMARY:          80,
		HIGHWAY_PRIMARY_LINK:     80,
		HIGHWAY_SECONDARY:        60,
		HIGHWAY_SECONDARY_LINK:   60,
		HIGHWAY_TERTIARY:         40,
		HIGHWAY_TERTIARY_LINK:    40,
		HIGHWAY_RESIDENTIAL:      30,
		HIGHWAY_RESIDENTIAL_LINK: 30,
		HIGHWAY_LIVING_STREET:    30,
		HIGHWAY_SERVICE:          30,
		HIGHWAY_SERVICES:         30,
		HIGHWAY_CYCLEWAY:         5,
		HIGHWAY_FOOTWAY:          5,
		HIGHWAY_PEDESTRIAN:       5,
		HIGHWAY_STEPS:            5,
		HIGHWAY_TRACK:            30,
		HIGHWAY_UNCLASSIFIED:     30,
		HIGHWAY_ROAD:             30,
	}

	junctionTypes = map[string]struct{}{
		"circular":   {},
		"roundabout": {},
	}

	onewayReversible = map[string]struct{}{
		"reversible":  {},
		"alternating": {},
	}
)
