package monitor

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	cpuSecondsMetric = "/cpu/classes/total:cpu-seconds"
	heapBytesMetric  = "/memory/classes/heap/objects:bytes"
	goroutinesMetric = "/sched/goroutines:goroutines"
)

// ResourceUsage is a coarse process sample.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

// ResourceTracker reads process usage from runtime/metrics in one pass.
// CPU percent covers the time since the previous sample, so the first
// sample reports 0.
type ResourceTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	samples []metrics.Sample
	cpus    float64

	prevCPU float64
	prevAt  time.Time
}

// NewResourceTracker stamps samples with now, or time.Now when nil.
func NewResourceTracker(now func() time.Time) *ResourceTracker {
	if now == nil {
		now = time.Now
	}
	return &ResourceTracker{
		now: now,
		samples: []metrics.Sample{
			{Name: cpuSecondsMetric},
			{Name: heapBytesMetric},
			{Name: goroutinesMetric},
		},
		cpus: float64(runtime.NumCPU()),
	}
}

func (r *ResourceTracker) Snapshot() ResourceUsage {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.Read(r.samples)
	at := r.now()

	var usage ResourceUsage
	for _, s := range r.samples {
		switch {
		case s.Name == heapBytesMetric && s.Value.Kind() == metrics.KindUint64:
			usage.MemoryBytes = s.Value.Uint64()
		case s.Name == goroutinesMetric && s.Value.Kind() == metrics.KindUint64:
			usage.Goroutines = int(s.Value.Uint64())
		case s.Name == cpuSecondsMetric && s.Value.Kind() == metrics.KindFloat64:
			usage.CPUPercent = r.cpuPercent(s.Value.Float64(), at)
		}
	}
	return usage
}

func (r *ResourceTracker) cpuPercent(cpuSeconds float64, at time.Time) float64 {
	defer func() {
		r.prevCPU, r.prevAt = cpuSeconds, at
	}()
	if r.prevAt.IsZero() {
		return 0
	}
	elapsed := at.Sub(r.prevAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return max((cpuSeconds-r.prevCPU)/elapsed/r.cpus*100, 0)
}
