package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/LdDl/trafficviz"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

const usage = `Usage: trafficviz <command> [flags]

Commands:
  serve   start HTTP / websocket viewer over simulation database
  render  write screenshot (PNG or SVG) of single time step
  record  write video (via ffmpeg) or PNG frames of simulation
  import  build edges table from OSM file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "render":
		err = runRender(os.Args[2:])
	case "record":
		err = runRecord(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	default:
		fmt.Print(usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// commonFlags are flags shared by commands which read simulation database
type commonFlags struct {
	config       *string
	database     *string
	simulationID *int64
	maxDensity   trafficviz.MaxDensitySetting
	verbose      *bool
	set          *flag.FlagSet
}

func newCommonFlags(name string) *commonFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cf := &commonFlags{
		config:       fs.String("config", "", "Path to YAML configuration file"),
		database:     fs.String("db", "", "Path to SQLite database with 'edges', 'road_data' and 'simulations' tables"),
		simulationID: fs.Int64("sim", 0, "Simulation ID. First simulation in database is used when not set"),
		verbose:      fs.Bool("verbose", false, "Print progress and warnings"),
		set:          fs,
	}
	fs.Var(&cf.maxDensity, "max", "Density (veh/km) mapped to red color, or 'auto'. Overrides config")
	return cf
}

// load reads configuration and applies flags on top of it
func (cf *commonFlags) load(args []string) (trafficviz.Config, error) {
	cf.set.Parse(args)
	cfg, err := trafficviz.LoadConfig(*cf.config)
	if err != nil {
		return cfg, err
	}
	cf.set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.Database = *cf.database
		case "sim":
			cfg.SimulationID = cf.simulationID
		case "max":
			cfg.MaxDensity = cf.maxDensity
		case "verbose":
			cfg.Verbose = *cf.verbose
		}
	})
	if cfg.Database == "" {
		return cfg, errors.New("Database file should be provided via -db flag or 'database' config key")
	}
	return cfg, cfg.Validate()
}

// simulationData is everything loaded from database for one simulation
type simulationData struct {
	simulations []trafficviz.Simulation
	simulation  trafficviz.Simulation
	session     *trafficviz.Session
	global      []trafficviz.GlobalPoint
}

func loadSimulation(cfg trafficviz.Config) (*simulationData, error) {
	st := time.Now()
	if cfg.Verbose {
		fmt.Printf("Loading database '%s'... ", cfg.Database)
	}
	database, err := trafficviz.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	simulations, err := database.Simulations()
	if err != nil {
		return nil, err
	}
	simulation, err := pickSimulation(simulations, cfg.SimulationID)
	if err != nil {
		return nil, err
	}
	edges, err := database.Edges(cfg.Verbose)
	if err != nil {
		return nil, err
	}
	samples, err := database.DensitySamples(simulation.ID, edges)
	if err != nil {
		return nil, err
	}
	global, err := database.GlobalData(simulation.ID)
	if err != nil {
		return nil, err
	}
	session, err := trafficviz.NewSession(edges, samples,
		trafficviz.WithVerbose(cfg.Verbose),
		trafficviz.WithLayerOptions(cfg.LayerOptions(samples)...),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't prepare simulation %d", simulation.ID)
	}
	if cfg.Verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
		fmt.Printf("\tSimulation: %d (%s)\n\tEdges: %d\n\tTime steps: %d (every %v)\n\tMax density: %.1f\n",
			simulation.ID, simulation.Name, len(edges), len(samples), session.SampleStep(), session.Layer().Scale().Max)
	}
	return &simulationData{
		simulations: simulations,
		simulation:  simulation,
		session:     session,
		global:      global,
	}, nil
}

// pickSimulation returns simulation with given id or the first one when id is not set
func pickSimulation(simulations []trafficviz.Simulation, id *int64) (trafficviz.Simulation, error) {
	if len(simulations) == 0 {
		return trafficviz.Simulation{}, errors.New("No simulations found in database")
	}
	if id == nil {
		return simulations[0], nil
	}
	for _, sim := range simulations {
		if sim.ID == *id {
			return sim, nil
		}
	}
	return trafficviz.Simulation{}, fmt.Errorf("Simulation %d not found in database", *id)
}

// viewFlags describes initial view and time step shared by render and record
type viewFlags struct {
	at   *string
	edge *int64
	node *int64
	lat  *float64
	lon  *float64
	zoom *float64
}

func newViewFlags(fs *flag.FlagSet) *viewFlags {
	return &viewFlags{
		at:   fs.String("time", "", "Time step (RFC3339 or '2006-01-02 15:04:05'). First one when not set"),
		edge: fs.Int64("edge", 0, "Highlight edge with given ID and fit view to it"),
		node: fs.Int64("node", 0, "Highlight node with given ID and center view on it"),
		lat:  fs.Float64("lat", 0, "Latitude of view center. Median of edges when not set"),
		lon:  fs.Float64("lon", 0, "Longitude of view center. Median of edges when not set"),
		zoom: fs.Float64("zoom", 0, "Zoom level. Reference zoom when not set"),
	}
}

func (vf *viewFlags) apply(session *trafficviz.Session, cfg trafficviz.Config) error {
	vp := session.InitialViewport(cfg.Viewport.Width, cfg.Viewport.Height)
	if *vf.lat != 0 || *vf.lon != 0 {
		vp.Center = orb.Point{*vf.lon, *vf.lat}
	}
	if *vf.zoom > 0 {
		vp.Zoom = *vf.zoom
	}
	session.SetViewport(vp)
	if *vf.at != "" {
		ts, err := trafficviz.ParseTime(*vf.at)
		if err != nil {
			return err
		}
		if err := session.SetTime(ts); err != nil {
			return err
		}
	}
	if *vf.edge != 0 {
		if _, err := session.SelectEdge(trafficviz.EdgeID(*vf.edge)); err != nil {
			return err
		}
	}
	if *vf.node != 0 {
		if _, err := session.SelectNode(trafficviz.NodeID(*vf.node)); err != nil {
			return err
		}
	}
	return nil
}

func runServe(args []string) error {
	cf := newCommonFlags("serve")
	addr := cf.set.String("addr", "", "Address to listen on. Overrides config")
	cfg, err := cf.load(args)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return srv.run(ctx)
}

func runRender(args []string) error {
	cf := newCommonFlags("render")
	vf := newViewFlags(cf.set)
	out := cf.set.String("out", "", "Output file (*.png or *.svg). Name is derived from time step when not set")
	format := cf.set.String("format", "png", "Output format when -out is not set. Expected values: png / svg")
	cfg, err := cf.load(args)
	if err != nil {
		return err
	}
	data, err := loadSimulation(cfg)
	if err != nil {
		return err
	}
	if err := vf.apply(data.session, cfg); err != nil {
		return err
	}
	filename := *out
	if filename == "" {
		filename = trafficviz.ScreenshotName(data.session.Time(), strings.ToLower(*format))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".png" && ext != ".svg" {
		return fmt.Errorf("File extension '%s' is not handled. Expected .png or .svg", ext)
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "Can't create output file")
	}
	defer file.Close()
	vp := data.session.Viewport()
	if ext == ".svg" {
		err = trafficviz.WriteSVG(file, data.session, vp)
	} else {
		err = trafficviz.WritePNG(file, data.session, vp)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Screenshot saved to %s\n", filename)
	return nil
}

func runRecord(args []string) error {
	cf := newCommonFlags("record")
	vf := newViewFlags(cf.set)
	out := cf.set.String("out", "", "Output video file. Name is derived from first time step when not set")
	framesDir := cf.set.String("frames", "", "Write numbered PNG frames into directory instead of video")
	fps := cf.set.Float64("fps", 0, "Frames per second. Overrides config")
	workers := cf.set.Int("workers", 0, "Number of parallel frame renderers. Number of CPUs when not set")
	cfg, err := cf.load(args)
	if err != nil {
		return err
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	data, err := loadSimulation(cfg)
	if err != nil {
		return err
	}
	if err := vf.apply(data.session, cfg); err != nil {
		return err
	}

	var sink trafficviz.FrameSink
	target := *framesDir
	if target != "" {
		sink, err = trafficviz.NewDirectorySink(target, "frame")
	} else {
		target = *out
		if target == "" {
			target = trafficviz.RecordingName(data.session.Time(), "mp4")
		}
		sink, err = trafficviz.NewFFmpegSink(cfg.FFmpeg.Path, target, cfg.FPS, cfg.FFmpeg.Bitrate)
	}
	if err != nil {
		return err
	}

	// Ctrl+C stops recording but keeps what has been written
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	st := time.Now()
	result, err := trafficviz.Record(ctx, data.session, data.session.Viewport(), sink, trafficviz.RecordOptions{
		Workers:  *workers,
		Progress: true,
	})
	if err != nil {
		return err
	}
	if result.Stopped {
		fmt.Printf("\nRecording stopped after %d frames\n", result.Frames)
	}
	fmt.Printf("\nDone in %v. %d frames saved to %s\n", time.Since(st), result.Frames, target)
	return nil
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	osmFileName := fs.String("file", "my_graph.osm.pbf", "Filename of *.osm.pbf / *.osm / *.xml file")
	tagStr := fs.String("tags", "", "Set of needed highway tags (separated by commas). Motor roads when not set")
	out := fs.String("out", "my_graph.sqlite", "SQLite database to write 'edges' table into")
	verbose := fs.Bool("verbose", true, "Print progress and warnings")
	fs.Parse(args)

	var tags []string
	if *tagStr != "" {
		tags = strings.Split(*tagStr, ",")
	}
	highwayTypes, err := trafficviz.ParseHighwayTypes(tags)
	if err != nil {
		return err
	}
	edges, err := trafficviz.ImportEdgesFromOSM(*osmFileName, highwayTypes, *verbose)
	if err != nil {
		return err
	}
	st := time.Now()
	if *verbose {
		fmt.Printf("Writing %d edges into '%s'... ", len(edges), *out)
	}
	if err := trafficviz.WriteEdges(*out, edges); err != nil {
		return err
	}
	if *verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	return nil
}
