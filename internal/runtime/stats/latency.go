package stats

import (
	"math"
	"slices"
	"time"
)

// DefaultLatencySamples is the ring size of the flush latency window.
const DefaultLatencySamples = 256

// LatencyMetrics summarizes the most recent flush durations.
type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = DefaultLatencySamples
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	metrics := LatencyMetrics{LastNs: lw.last}
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	slices.Sort(samples)

	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	return metrics
}

// percentile interpolates linearly between the two closest ranks of a
// sorted sample.
func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}
