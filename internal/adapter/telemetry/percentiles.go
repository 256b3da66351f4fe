package telemetry

import (
	"math/rand/v2"
	"sort"
	"sync"
)

// reservoirSampler implements reservoir sampling for memory-efficient
// percentile estimation: a fixed-size sample gives good statistical
// accuracy without retaining every latency a long-running endpoint ever saw.
type reservoirSampler struct {
	mu      sync.Mutex
	samples []int64
	size    int
	count   int64
}

func newReservoirSampler(size int) *reservoirSampler {
	if size <= 0 {
		size = 200
	}
	return &reservoirSampler{size: size, samples: make([]int64, 0, size)}
}

func (rs *reservoirSampler) add(value int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.count++
	if len(rs.samples) < rs.size {
		rs.samples = append(rs.samples, value)
		return
	}

	j := rand.Int64N(rs.count) //nolint:gosec // statistical sampling, not security sensitive
	if j < int64(rs.size) {
		rs.samples[j] = value
	}
}

func (rs *reservoirSampler) percentiles() (p50, p95, p99 int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.samples) == 0 {
		return 0, 0, 0
	}

	sorted := make([]int64, len(rs.samples))
	copy(sorted, rs.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int64 {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return sorted[i]
	}
	return idx(50), idx(95), idx(99)
}
