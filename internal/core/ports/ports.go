package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/axleway/llmgate/internal/core/domain"
)

// PoolRegistry is the read-through view of persisted providers, endpoints
// and pools. The data plane only reads through it and increments counters;
// CRUD lives in the admin surface, an external collaborator.
type PoolRegistry interface {
	// ListPoolEndpoints returns enabled endpoints assigned to pool, joined
	// with their provider, ordered by descending weight.
	ListPoolEndpoints(ctx context.Context, pool domain.PoolKind) ([]*domain.Endpoint, error)

	// GetPool returns the pool's policy, auto-creating it with defaults on
	// first observation.
	GetPool(ctx context.Context, pool domain.PoolKind) (*domain.Pool, error)

	// IncrementEndpointStats records one terminal attempt against an
	// endpoint. On success, latencyMs feeds the incremental mean and
	// last_request_at advances; on failure, errMsg is recorded.
	IncrementEndpointStats(ctx context.Context, endpointID string, success bool, latencyMs int64, errMsg string) error

	// AppendRequestLog appends one telemetry record.
	AppendRequestLog(ctx context.Context, record domain.TelemetryRecord) error
}

// CooldownTracker answers "is this endpoint currently parked?" All
// operations are safe under concurrent callers.
type CooldownTracker interface {
	Park(id string, d time.Duration, reason string)
	IsParked(id string) bool
	Remaining(id string) time.Duration
	Clear(id string)
	ClearAll()
	Snapshot() map[string]time.Duration
}

// PoolManager selects a dispatchable endpoint within a pool using smooth
// weighted round robin over the currently available set.
type PoolManager interface {
	Select(ctx context.Context, pool domain.PoolKind) (*domain.Endpoint, error)
	MarkSuccess(ctx context.Context, endpointID string, latency time.Duration)
	MarkFailure(ctx context.Context, endpointID string, reason string)

	// WeightSnapshot exposes the current SWRR running weights for a pool,
	// for the read-only status endpoint.
	WeightSnapshot(pool domain.PoolKind) map[string]int
}

// Forwarder orchestrates one logical client request end to end: endpoint
// selection, retry/backoff, streaming pass-through, and telemetry
// emission. Exactly one of a buffered JSON body or a streamed SSE body is
// written to w; the returned error is non-nil only when nothing was
// written yet, so the HTTP adapter can still choose the response status.
type Forwarder interface {
	Forward(ctx context.Context, req ForwardRequest, w http.ResponseWriter) error
}

// ForwardRequest is everything the forwarder needs from the HTTP adapter.
type ForwardRequest struct {
	Pool           domain.PoolKind
	RequestedModel string
	Body           []byte
	Stream         bool
	RequestID      string
}

// TelemetrySink aggregates endpoint stats and appends request-log records.
type TelemetrySink interface {
	RecordAttempt(ctx context.Context, record domain.TelemetryRecord)
	EndpointStats() map[string]EndpointStats
	RecentLogs(limit int) []domain.TelemetryRecord
}

type EndpointStats struct {
	ID                 string    `json:"id"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	AverageLatencyMs   int64     `json:"avg_latency_ms"`
	MinLatencyMs       int64     `json:"min_latency_ms"`
	MaxLatencyMs       int64     `json:"max_latency_ms"`
	LastUsed           time.Time `json:"last_used"`
	SuccessRate        float64   `json:"success_rate_percent"`
}
