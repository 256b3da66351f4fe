// Package telemetry aggregates per-endpoint request outcomes and keeps a
// bounded log of recent attempts, the way the gateway's operators watch
// fleet health without wiring a metrics backend in front of every endpoint.
package telemetry

import (
	"container/ring"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/core/ports"
	"github.com/axleway/llmgate/internal/logger"
)

const (
	// MaxTrackedEndpoints bounds memory for long-running deployments whose
	// fleet config changes over time; a typical fleet has well under this.
	MaxTrackedEndpoints = 200
	EndpointTTL         = 1 * time.Hour
	CleanupInterval     = 5 * time.Minute
)

// Sink is the in-memory implementation of ports.TelemetrySink.
type Sink struct {
	log logger.StyledLogger

	endpoints *xsync.Map[string, *endpointStats]

	logMu sync.Mutex
	logs  *ring.Ring
	nLogs int

	lastCleanup int64
	cleanupMu   sync.Mutex

	mirror *Mirror
}

type endpointStats struct {
	total      *xsync.Counter
	successful *xsync.Counter
	failed     *xsync.Counter
	latencySum *xsync.Counter
	percentile *reservoirSampler

	minLatencyMs int64 // atomic, -1 sentinel for unset
	maxLatencyMs int64 // atomic
	lastUsedNano int64 // atomic
}

func newEndpointStats() *endpointStats {
	return &endpointStats{
		total:        xsync.NewCounter(),
		successful:   xsync.NewCounter(),
		failed:       xsync.NewCounter(),
		latencySum:   xsync.NewCounter(),
		percentile:   newReservoirSampler(200),
		minLatencyMs: -1,
	}
}

// New builds a Sink with a bounded recent-request log of maxLogs entries.
// mirror may be nil, in which case no Redis denormalisation occurs.
func New(log logger.StyledLogger, maxLogs int, mirror *Mirror) *Sink {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &Sink{
		log:         log,
		endpoints:   xsync.NewMap[string, *endpointStats](),
		logs:        ring.New(maxLogs),
		lastCleanup: time.Now().UnixNano(),
		mirror:      mirror,
	}
}

// RecordAttempt folds one terminal attempt into the endpoint's running
// counters and appends it to the recent-request log.
func (s *Sink) RecordAttempt(ctx context.Context, rec domain.TelemetryRecord) {
	now := time.Now().UnixNano()

	data, _ := s.endpoints.LoadOrCompute(rec.EndpointID, func() (*endpointStats, bool) {
		return newEndpointStats(), false
	})

	data.total.Inc()
	atomic.StoreInt64(&data.lastUsedNano, now)

	if rec.Success {
		data.successful.Inc()
		data.latencySum.Add(rec.LatencyMs)
		data.percentile.add(rec.LatencyMs)
		s.updateBounds(data, rec.LatencyMs)
	} else {
		data.failed.Inc()
	}

	s.appendLog(rec)
	s.tryCleanup(now)

	if s.mirror != nil {
		go func() {
			if err := s.mirror.Record(context.Background(), rec); err != nil && s.log != nil {
				s.log.Debug("telemetry mirror write failed", "endpoint", rec.EndpointID, "error", err)
			}
		}()
	}
}

func (s *Sink) updateBounds(data *endpointStats, latencyMs int64) {
	for {
		min := atomic.LoadInt64(&data.minLatencyMs)
		if min != -1 && latencyMs >= min {
			break
		}
		if atomic.CompareAndSwapInt64(&data.minLatencyMs, min, latencyMs) {
			break
		}
	}
	for {
		max := atomic.LoadInt64(&data.maxLatencyMs)
		if latencyMs <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&data.maxLatencyMs, max, latencyMs) {
			break
		}
	}
}

// EndpointStats returns a snapshot of every tracked endpoint's aggregate
// counters, keyed by endpoint ID.
func (s *Sink) EndpointStats() map[string]ports.EndpointStats {
	out := make(map[string]ports.EndpointStats)

	s.endpoints.Range(func(id string, data *endpointStats) bool {
		total := data.total.Value()
		successful := data.successful.Value()
		failed := data.failed.Value()

		var avg int64
		if successful > 0 {
			avg = data.latencySum.Value() / successful
		}

		var rate float64
		if total > 0 {
			rate = float64(successful) / float64(total) * 100
		}

		min := atomic.LoadInt64(&data.minLatencyMs)
		if min == -1 {
			min = 0
		}

		out[id] = ports.EndpointStats{
			ID:                 id,
			TotalRequests:      total,
			SuccessfulRequests: successful,
			FailedRequests:     failed,
			AverageLatencyMs:   avg,
			MinLatencyMs:       min,
			MaxLatencyMs:       atomic.LoadInt64(&data.maxLatencyMs),
			LastUsed:           time.Unix(0, atomic.LoadInt64(&data.lastUsedNano)),
			SuccessRate:        rate,
		}
		return true
	})

	return out
}

func (s *Sink) appendLog(rec domain.TelemetryRecord) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	s.logs.Value = rec
	s.logs = s.logs.Next()
	if s.nLogs < s.logs.Len() {
		s.nLogs++
	}
}

// RecentLogs returns up to limit most recent request-log records, newest
// first. limit <= 0 returns everything retained.
func (s *Sink) RecentLogs(limit int) []domain.TelemetryRecord {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	if limit <= 0 || limit > s.nLogs {
		limit = s.nLogs
	}

	out := make([]domain.TelemetryRecord, 0, limit)
	cur := s.logs.Prev()
	for i := 0; i < limit; i++ {
		if rec, ok := cur.Value.(domain.TelemetryRecord); ok {
			out = append(out, rec)
		}
		cur = cur.Prev()
	}
	return out
}

func (s *Sink) tryCleanup(now int64) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	if now-atomic.LoadInt64(&s.lastCleanup) < int64(CleanupInterval) {
		return
	}
	s.cleanup(now)
	atomic.StoreInt64(&s.lastCleanup, now)
}

func (s *Sink) cleanup(now int64) {
	cutoff := now - int64(EndpointTTL)

	var stale []string
	var count int
	s.endpoints.Range(func(id string, data *endpointStats) bool {
		count++
		if atomic.LoadInt64(&data.lastUsedNano) < cutoff {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		s.endpoints.Delete(id)
	}

	remaining := count - len(stale)
	if remaining <= MaxTrackedEndpoints {
		return
	}

	type aged struct {
		id   string
		used int64
	}
	ages := make([]aged, 0, remaining)
	s.endpoints.Range(func(id string, data *endpointStats) bool {
		ages = append(ages, aged{id, atomic.LoadInt64(&data.lastUsedNano)})
		return true
	})
	sort.Slice(ages, func(i, j int) bool { return ages[i].used < ages[j].used })

	evict := len(ages) - MaxTrackedEndpoints
	for i := 0; i < evict && i < len(ages); i++ {
		s.endpoints.Delete(ages[i].id)
	}
	if s.log != nil {
		s.log.Debug("telemetry cleanup evicted stale endpoints", "evicted", evict, "remaining", len(ages)-evict)
	}
}

var _ ports.TelemetrySink = (*Sink)(nil)
