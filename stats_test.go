package trafficviz

import (
	"math"
	"testing"
)

func TestAutoMaxDensity(t *testing.T) {
	samples := []DensitySample{
		{Densities: []float64{0, 1, 2, 3, 4, -1}},
		{Densities: []float64{5, 6, 7, 8, 9, 10, math.NaN()}},
	}
	max := AutoMaxDensity(samples, 0.55)
	if max != 6 {
		t.Errorf("Quantile must be %f, but got %f", 6.0, max)
	}
	max = AutoMaxDensity(samples, 1)
	if max != 10 {
		t.Errorf("Quantile must be %f, but got %f", 10.0, max)
	}
	empty := []DensitySample{{Densities: []float64{0, 0}}}
	if max := AutoMaxDensity(empty, 0.95); max != DEFAULT_MAX_DENSITY {
		t.Errorf("Ceiling must fall back to %f, but got %f", DEFAULT_MAX_DENSITY, max)
	}
}

func TestSummarize(t *testing.T) {
	sample := &DensitySample{Densities: []float64{2, 4, 4, 4, 5, 5, 7, 9}}
	summary := Summarize(sample)
	if summary.Mean != 5 {
		t.Errorf("Mean must be %f, but got %f", 5.0, summary.Mean)
	}
	if summary.Max != 9 {
		t.Errorf("Max must be %f, but got %f", 9.0, summary.Max)
	}
	correctStd := math.Sqrt(32.0 / 7.0)
	if Round(summary.StdDev, 1e-9) != Round(correctStd, 1e-9) {
		t.Errorf("Standard deviation must be %f, but got %f", correctStd, summary.StdDev)
	}
	if summary := Summarize(nil); summary != (SampleSummary{}) {
		t.Errorf("Summary of missing sample must be empty, but got %+v", summary)
	}
}
