package trafficviz

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// DEFAULT_DENSITY_QUANTILE is quantile of all observed densities used as automatic color ceiling
	DEFAULT_DENSITY_QUANTILE = 0.95
)

// AutoMaxDensity returns given quantile of all positive densities of all samples.
// Falls back to DEFAULT_MAX_DENSITY when there are no positive densities
func AutoMaxDensity(samples []DensitySample, quantile float64) float64 {
	if !(quantile > 0 && quantile <= 1) {
		quantile = DEFAULT_DENSITY_QUANTILE
	}
	values := []float64{}
	for i := range samples {
		for _, d := range samples[i].Densities {
			if d > 0 && !math.IsInf(d, 0) {
				values = append(values, d)
			}
		}
	}
	if len(values) == 0 {
		return DEFAULT_MAX_DENSITY
	}
	sort.Float64s(values)
	max := stat.Quantile(quantile, stat.Empirical, values, nil)
	if !(max > 0) {
		return DEFAULT_MAX_DENSITY
	}
	return max
}

// SampleSummary is mean and standard deviation of densities of single sample
type SampleSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// Summarize returns summary of densities of the sample
func Summarize(sample *DensitySample) SampleSummary {
	if sample == nil || len(sample.Densities) == 0 {
		return SampleSummary{}
	}
	values := make([]float64, len(sample.Densities))
	for i := range values {
		values[i] = sample.At(i)
	}
	mean, std := stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return SampleSummary{Mean: mean, StdDev: std, Max: max}
}
