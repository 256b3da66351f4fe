package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/logger"
)

func testLogger() logger.StyledLogger {
	cfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(cfg)
	return logger.NewPlainStyledLogger(log)
}

func TestSink_RecordAttempt_AggregatesPerEndpoint(t *testing.T) {
	sink := New(testLogger(), 100, nil)
	ctx := context.Background()

	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", Success: true, LatencyMs: 100, CreatedAt: time.Now()})
	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", Success: true, LatencyMs: 200, CreatedAt: time.Now()})
	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", Success: false, LatencyMs: 0, CreatedAt: time.Now()})

	stats := sink.EndpointStats()
	e1, ok := stats["e1"]
	if !ok {
		t.Fatal("expected e1 present in endpoint stats")
	}
	if e1.TotalRequests != 3 || e1.SuccessfulRequests != 2 || e1.FailedRequests != 1 {
		t.Fatalf("unexpected counters: %+v", e1)
	}
	if e1.AverageLatencyMs != 150 {
		t.Fatalf("expected average latency 150ms, got %d", e1.AverageLatencyMs)
	}
	if e1.MinLatencyMs != 100 || e1.MaxLatencyMs != 200 {
		t.Fatalf("expected min/max 100/200, got %d/%d", e1.MinLatencyMs, e1.MaxLatencyMs)
	}
	if e1.SuccessRate < 66.0 || e1.SuccessRate > 67.0 {
		t.Fatalf("expected success rate ~66.67%%, got %v", e1.SuccessRate)
	}
}

func TestSink_RecentLogs_NewestFirstAndBounded(t *testing.T) {
	sink := New(testLogger(), 2, nil)
	ctx := context.Background()

	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", ActualModel: "first"})
	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", ActualModel: "second"})
	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", ActualModel: "third"})

	logs := sink.RecentLogs(10)
	if len(logs) != 2 {
		t.Fatalf("expected log retained count bounded to 2, got %d", len(logs))
	}
	if logs[0].ActualModel != "third" || logs[1].ActualModel != "second" {
		t.Fatalf("expected newest-first ordering, got %+v", logs)
	}
}

func TestSink_EndpointStats_SeparatesEndpoints(t *testing.T) {
	sink := New(testLogger(), 100, nil)
	ctx := context.Background()

	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e1", Success: true, LatencyMs: 50})
	sink.RecordAttempt(ctx, domain.TelemetryRecord{EndpointID: "e2", Success: true, LatencyMs: 500})

	stats := sink.EndpointStats()
	if len(stats) != 2 {
		t.Fatalf("expected two distinct endpoints tracked, got %d", len(stats))
	}
	if stats["e1"].AverageLatencyMs == stats["e2"].AverageLatencyMs {
		t.Fatal("expected endpoint stats to be tracked independently")
	}
}

func TestReservoirSampler_PercentilesWithinRange(t *testing.T) {
	rs := newReservoirSampler(50)
	for i := int64(1); i <= 100; i++ {
		rs.add(i)
	}

	p50, p95, p99 := rs.percentiles()
	if p50 <= 0 || p50 > 100 {
		t.Fatalf("expected p50 within sample range, got %d", p50)
	}
	if p95 < p50 || p99 < p95 {
		t.Fatalf("expected percentiles non-decreasing, got p50=%d p95=%d p99=%d", p50, p95, p99)
	}
}
