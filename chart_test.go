package trafficviz

import (
	"bytes"
	"image/png"
	"testing"
	"time"
)

func testGlobalPoints() []GlobalPoint {
	points := []GlobalPoint{}
	for i := 0; i < 12; i++ {
		points = append(points, GlobalPoint{
			Time: sessionStart.Add(time.Duration(i) * 5 * time.Minute),
			Values: map[string]float64{
				COLUMN_MEAN_DENSITY: float64(10 + i*i),
				COLUMN_MEAN_SPEED:   float64(60 - i),
				COLUMN_TOTAL_COUNTS: float64(100 * i),
			},
		})
	}
	return points
}

func TestRenderChart(t *testing.T) {
	var buf bytes.Buffer
	err := RenderChart(&buf, testGlobalPoints(), ChartOptions{
		Column:  COLUMN_MEAN_SPEED,
		Current: sessionStart.Add(15 * time.Minute),
		Width:   400,
		Height:  200,
	})
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Errorf("Chart size must be 400x200, but got %v", img.Bounds())
	}
}

func TestRenderChartErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderChart(&buf, testGlobalPoints(), ChartOptions{Column: "median_speed"}); err == nil {
		t.Errorf("Unknown column must be rejected")
	}
	if err := RenderChart(&buf, testGlobalPoints()[:1], ChartOptions{}); err == nil {
		t.Errorf("Single point must be rejected")
	}
}
