package trafficviz

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

const (
	// DEFAULT_SAMPLE_STEP is used when step can't be derived from samples (seconds)
	DEFAULT_SAMPLE_STEP = 300
)

var (
	ErrNoDensitySample = errors.New("no density sample for requested timestamp")
)

// DensitySample is densities of every edge for single timestamp.
// Densities[i] corresponds to edges[i] of the edge list sample was built for.
type DensitySample struct {
	Time      time.Time
	Densities []float64
}

// At returns density for edge with given index. Missing and NaN values are treated as zero
func (sample *DensitySample) At(i int) float64 {
	if sample == nil || i < 0 || i >= len(sample.Densities) {
		return 0
	}
	d := sample.Densities[i]
	if math.IsNaN(d) {
		return 0
	}
	return d
}

// Has reports whether edge with given index has density value (NaN marks missing one)
func (sample *DensitySample) Has(i int) bool {
	if sample == nil || i < 0 || i >= len(sample.Densities) {
		return false
	}
	return !math.IsNaN(sample.Densities[i])
}

// DensityRecord is single row of density source: (timestamp, edge, value)
type DensityRecord struct {
	Time    time.Time
	EdgeID  EdgeID
	Density float64
}

// ReshapeDensities groups records by timestamp and aligns every group by index with the given edges.
// Edges which are missing in a group get NaN, which At reads as zero. Result is ordered by time.
func ReshapeDensities(records []DensityRecord, edges []Edge) []DensitySample {
	if len(records) == 0 {
		return []DensitySample{}
	}
	sorted := make([]DensityRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	positions := edgeIndex(edges)
	samples := []DensitySample{}
	var current map[EdgeID]float64
	var currentTime time.Time
	flush := func() {
		densities := make([]float64, len(edges))
		for i := range edges {
			d, ok := current[edges[i].ID]
			if !ok {
				d = math.NaN()
			}
			densities[i] = d
		}
		samples = append(samples, DensitySample{Time: currentTime, Densities: densities})
	}
	for i, record := range sorted {
		if i == 0 || !record.Time.Equal(currentTime) {
			if i != 0 {
				flush()
			}
			currentTime = record.Time
			current = make(map[EdgeID]float64, len(edges))
		}
		if _, ok := positions[record.EdgeID]; !ok {
			continue
		}
		current[record.EdgeID] = record.Density
	}
	flush()
	return samples
}

// SampleStep returns time between first two samples. Falls back to DEFAULT_SAMPLE_STEP seconds
func SampleStep(samples []DensitySample) time.Duration {
	if len(samples) < 2 {
		return DEFAULT_SAMPLE_STEP * time.Second
	}
	step := samples[1].Time.Sub(samples[0].Time).Round(time.Second)
	if step <= 0 {
		return DEFAULT_SAMPLE_STEP * time.Second
	}
	return step
}

// findSample returns index of sample with exactly the given timestamp or -1
func findSample(samples []DensitySample, ts time.Time) int {
	for i := range samples {
		if samples[i].Time.Equal(ts) {
			return i
		}
	}
	return -1
}
