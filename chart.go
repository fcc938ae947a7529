package trafficviz

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	DEFAULT_CHART_WIDTH  = 640
	DEFAULT_CHART_HEIGHT = 240
)

var (
	chartTitles = map[string]string{
		COLUMN_MEAN_DENSITY: "Mean density (veh/km)",
		COLUMN_MEAN_SPEED:   "Mean speed (km/h)",
		COLUMN_TOTAL_COUNTS: "Total counts",
	}
	chartLineColor   = drawing.Color{R: 70, G: 130, B: 180, A: 255}
	chartMarkerColor = drawing.Color{R: 255, G: 0, B: 0, A: 255}
)

// ChartOptions describes what RenderChart draws
type ChartOptions struct {
	Column  string
	Current time.Time
	Width   int
	Height  int
}

// RenderChart draws PNG line chart of single global column over time with a dot at current timestamp.
// At least 2 points are needed
func RenderChart(w io.Writer, points []GlobalPoint, options ChartOptions) error {
	if options.Column == "" {
		options.Column = COLUMN_MEAN_DENSITY
	}
	title, ok := chartTitles[options.Column]
	if !ok {
		return fmt.Errorf("Unknown chart column '%s'", options.Column)
	}
	if len(points) < 2 {
		return fmt.Errorf("Chart needs at least 2 points. Got %d", len(points))
	}
	if options.Width <= 0 {
		options.Width = DEFAULT_CHART_WIDTH
	}
	if options.Height <= 0 {
		options.Height = DEFAULT_CHART_HEIGHT
	}
	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i := range points {
		xs[i] = points[i].Time
		ys[i] = points[i].Values[options.Column]
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    title,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: chartLineColor,
				StrokeWidth: 2,
			},
		},
	}
	for i := range points {
		if !points[i].Time.Equal(options.Current) {
			continue
		}
		series = append(series, chart.TimeSeries{
			Name:    "Current",
			XValues: []time.Time{xs[i]},
			YValues: []float64{ys[i]},
			Style: chart.Style{
				StrokeWidth: 0,
				DotWidth:    5,
				DotColor:    chartMarkerColor,
			},
		})
		break
	}
	graph := chart.Chart{
		Title:      title,
		Width:      options.Width,
		Height:     options.Height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04"),
		},
		YAxis:  chart.YAxis{Name: title},
		Series: series,
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return errors.Wrap(err, "Can't render chart")
	}
	return nil
}
