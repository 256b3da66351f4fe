package domain

import (
	"fmt"
	"time"
)

// Endpoint is a (provider, concrete-model-id) pair assigned to exactly one
// pool. The forwarder dispatches to endpoints; the pool manager selects
// among them; the cooldown tracker parks them on failure.
type Endpoint struct {
	ID       string // stable identifier, used as the cooldown/SWRR key
	Provider *Provider
	ModelID  string // concrete upstream model identifier
	Pool     PoolKind
	Enabled  bool

	Weight             int // SWRR weight, default 1
	MinIntervalSeconds int // minimum wall-clock gap between successful dispatches

	LastRequestAt time.Time // updated only on success

	TotalRequests   int64
	SuccessRequests int64
	ErrorRequests   int64
	AvgLatencyMs    float64 // arithmetic mean over successful attempts only

	LastError string
}

// EffectiveWeight returns the endpoint's SWRR weight, treating a
// non-positive configured weight as 1.
func (e *Endpoint) EffectiveWeight() int {
	if e.Weight <= 0 {
		return 1
	}
	return e.Weight
}

// WithinMinInterval reports whether dispatching now would violate the
// endpoint's min-interval gate.
func (e *Endpoint) WithinMinInterval(now time.Time) bool {
	if e.MinIntervalSeconds <= 0 || e.LastRequestAt.IsZero() {
		return false
	}
	return now.Before(e.LastRequestAt.Add(time.Duration(e.MinIntervalSeconds) * time.Second))
}

func (e *Endpoint) String() string {
	if e.Provider == nil {
		return fmt.Sprintf("endpoint(%s model=%s)", e.ID, e.ModelID)
	}
	return fmt.Sprintf("endpoint(%s provider=%s model=%s)", e.ID, e.Provider.Name, e.ModelID)
}

// ErrEndpointNotFound is returned by registry lookups for an unknown id.
type ErrEndpointNotFound struct {
	ID string
}

func (e *ErrEndpointNotFound) Error() string {
	return fmt.Sprintf("endpoint not found: %s", e.ID)
}
