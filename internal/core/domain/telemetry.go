package domain

import "time"

// TelemetryRecord is one terminal per-endpoint outcome: either a success or
// a final (non-retryable-further) failure. The telemetry sink appends one
// of these per attempt that ends a logical request's work on an endpoint.
type TelemetryRecord struct {
	EndpointID     string
	Pool           PoolKind
	RequestedModel string
	ActualModel    string
	ProviderName   string
	Success        bool
	StatusCode     int
	ErrorMessage   string
	LatencyMs      int64
	InputTokens    int32
	OutputTokens   int32
	CreatedAt      time.Time
}

// CooldownEvent is published whenever the cooldown tracker parks or clears
// an endpoint, so an operator-facing subscriber can log fleet health
// transitions without polling Snapshot.
type CooldownEvent struct {
	EndpointID string
	Parked     bool // false means the park was cleared; expiry publishes no event
	Reason     string
	Duration   time.Duration
	At         time.Time
}
