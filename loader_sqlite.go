package trafficviz

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	COLUMN_MEAN_DENSITY = "mean_density_vpk"
	COLUMN_MEAN_SPEED   = "mean_speed_kph"
	COLUMN_TOTAL_COUNTS = "total_counts"
)

var (
	// GlobalColumns is list of aggregated columns available for the chart
	GlobalColumns = []string{COLUMN_MEAN_DENSITY, COLUMN_MEAN_SPEED, COLUMN_TOTAL_COUNTS}

	requiredTables = []string{"edges", "road_data", "simulations"}

	timestampLayouts = []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
	}
)

// Simulation is single run stored in database
type Simulation struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GlobalPoint is aggregated statistics over all edges for single timestamp
type GlobalPoint struct {
	Time   time.Time
	Values map[string]float64
}

// Database is read-only access to simulation results
type Database struct {
	db   *sql.DB
	path string
}

// OpenDatabase opens SQLite file in read-only mode and checks that every needed table exists
func OpenDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open database")
	}
	tables, err := listTables(db)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't list tables")
	}
	for _, table := range requiredTables {
		if _, ok := tables[table]; !ok {
			db.Close()
			return nil, fmt.Errorf("Database missing '%s' table", table)
		}
	}
	return &Database{db: db, path: path}, nil
}

// Path returns path to database file
func (database *Database) Path() string {
	return database.path
}

func (database *Database) Close() error {
	if database.db != nil {
		return database.db.Close()
	}
	return nil
}

// Simulations returns available simulations ordered by identifier
func (database *Database) Simulations() ([]Simulation, error) {
	rows, err := database.db.Query("SELECT id, name FROM simulations ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "Can't query simulations")
	}
	defer rows.Close()
	simulations := []Simulation{}
	for rows.Next() {
		var sim Simulation
		var name sql.NullString
		if err := rows.Scan(&sim.ID, &name); err != nil {
			return nil, errors.Wrap(err, "Can't scan simulation")
		}
		sim.Name = name.String
		if !name.Valid || name.String == "" {
			sim.Name = fmt.Sprintf("Simulation %d", sim.ID)
		}
		simulations = append(simulations, sim)
	}
	return simulations, rows.Err()
}

// Edges returns edges in table order. Missing lanes count defaults to 1, missing speed and length to 0.
// Malformed geometry gives an edge with empty geometry
func (database *Database) Edges(verbose bool) ([]Edge, error) {
	rows, err := database.db.Query("SELECT id, source, target, length, maxspeed, name, nlanes, geometry FROM edges")
	if err != nil {
		return nil, errors.Wrap(err, "Can't query edges")
	}
	defer rows.Close()
	edges := []Edge{}
	for rows.Next() {
		var id, source, target int64
		var length, maxSpeed sql.NullFloat64
		var name, geometry sql.NullString
		var lanes sql.NullInt64
		if err := rows.Scan(&id, &source, &target, &length, &maxSpeed, &name, &lanes, &geometry); err != nil {
			return nil, errors.Wrap(err, "Can't scan edge")
		}
		geom, err := ParseWKTLinestring(geometry.String)
		if err != nil && verbose {
			fmt.Printf("[WARNING]: Can't parse geometry of edge %d: %s\n", id, err.Error())
		}
		edge := Edge{
			ID:       EdgeID(id),
			Source:   NodeID(source),
			Target:   NodeID(target),
			Name:     name.String,
			MaxSpeed: maxSpeed.Float64,
			Lanes:    int(lanes.Int64),
			Length:   length.Float64,
			Geom:     geom,
		}
		if edge.Lanes <= 0 {
			edge.Lanes = 1
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// DensityRecords returns raw (timestamp, edge, density) rows of simulation
func (database *Database) DensityRecords(simulationID int64) ([]DensityRecord, error) {
	rows, err := database.db.Query("SELECT datetime, street_id, density_vpk FROM road_data WHERE simulation_id = ? ORDER BY datetime, street_id", simulationID)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query road data")
	}
	defer rows.Close()
	records := []DensityRecord{}
	for rows.Next() {
		var raw interface{}
		var streetID int64
		var density sql.NullFloat64
		if err := rows.Scan(&raw, &streetID, &density); err != nil {
			return nil, errors.Wrap(err, "Can't scan road data")
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse datetime of street %d", streetID)
		}
		records = append(records, DensityRecord{Time: ts, EdgeID: EdgeID(streetID), Density: density.Float64})
	}
	return records, rows.Err()
}

// DensitySamples returns per-timestamp densities of simulation aligned by index with given edges
func (database *Database) DensitySamples(simulationID int64, edges []Edge) ([]DensitySample, error) {
	records, err := database.DensityRecords(simulationID)
	if err != nil {
		return nil, err
	}
	return ReshapeDensities(records, edges), nil
}

// GlobalData returns per-timestamp aggregates: mean density, mean speed and total counts
func (database *Database) GlobalData(simulationID int64) ([]GlobalPoint, error) {
	rows, err := database.db.Query(`
		SELECT datetime,
			AVG(density_vpk) AS mean_density_vpk,
			AVG(avg_speed_kph) AS mean_speed_kph,
			SUM(counts) AS total_counts
		FROM road_data
		WHERE simulation_id = ?
		GROUP BY datetime
		ORDER BY datetime`, simulationID)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query global data")
	}
	defer rows.Close()
	points := []GlobalPoint{}
	for rows.Next() {
		var raw interface{}
		var density, speed, counts sql.NullFloat64
		if err := rows.Scan(&raw, &density, &speed, &counts); err != nil {
			return nil, errors.Wrap(err, "Can't scan global data")
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, errors.Wrap(err, "Can't parse datetime of global data")
		}
		points = append(points, GlobalPoint{
			Time: ts,
			Values: map[string]float64{
				COLUMN_MEAN_DENSITY: density.Float64,
				COLUMN_MEAN_SPEED:   speed.Float64,
				COLUMN_TOTAL_COUNTS: counts.Float64,
			},
		})
	}
	return points, rows.Err()
}

// WriteEdges (re)creates edges table in database file. Empty road_data and simulations tables are created
// when missing, so the file could be opened with OpenDatabase right after
func WriteEdges(path string, edges []Edge) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrap(err, "Can't open database")
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	defer tx.Rollback()
	statements := []string{
		"DROP TABLE IF EXISTS edges",
		`CREATE TABLE edges (
			id INTEGER PRIMARY KEY,
			source INTEGER NOT NULL,
			target INTEGER NOT NULL,
			length REAL,
			maxspeed REAL,
			name TEXT,
			nlanes INTEGER,
			geometry TEXT
		)`,
		"CREATE TABLE IF NOT EXISTS simulations (id INTEGER PRIMARY KEY, name TEXT)",
		`CREATE TABLE IF NOT EXISTS road_data (
			simulation_id INTEGER NOT NULL,
			datetime TEXT NOT NULL,
			street_id INTEGER NOT NULL,
			density_vpk REAL,
			avg_speed_kph REAL,
			counts INTEGER
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return errors.Wrap(err, "Can't prepare tables")
		}
	}
	insert, err := tx.Prepare("INSERT INTO edges (id, source, target, length, maxspeed, name, nlanes, geometry) VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "Can't prepare insert statement")
	}
	defer insert.Close()
	for i := range edges {
		edge := &edges[i]
		_, err := insert.Exec(int64(edge.ID), int64(edge.Source), int64(edge.Target), edge.Length, edge.MaxSpeed, edge.Name, edge.Lanes, PrepareWKTLinestring(edge.Geom))
		if err != nil {
			return errors.Wrapf(err, "Can't insert edge %d", edge.ID)
		}
	}
	return tx.Commit()
}

func listTables(db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = struct{}{}
	}
	return tables, rows.Err()
}

// parseTimestamp accepts unix seconds or text in one of known layouts. Text without zone is UTC
func parseTimestamp(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case []byte:
		return ParseTime(string(v))
	case string:
		return ParseTime(v)
	case nil:
		return time.Time{}, errors.New("empty timestamp")
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", raw)
}

// ParseTime accepts unix seconds or text in one of known layouts. Text without zone is UTC
func ParseTime(str string) (time.Time, error) {
	str = strings.TrimSpace(str)
	if unix, err := strconv.ParseInt(str, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, str); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown timestamp format '%s'", str)
}
