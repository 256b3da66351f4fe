package balancer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/core/ports"
)

// Scheduler selects endpoints within a pool using nginx-style smooth
// weighted round robin over the currently available set, skipping parked
// endpoints and endpoints still inside their min-interval window.
//
// Selection and weight-state mutation are serialized per pool behind a
// single mutex whose critical section does no I/O; counter updates flow
// through the registry outside that section.
type Scheduler struct {
	registry ports.PoolRegistry
	cooldown ports.CooldownTracker

	pools *xsync.Map[domain.PoolKind, *poolState]
}

type poolState struct {
	mu      sync.Mutex
	weights map[string]int // endpoint id -> current SWRR running weight
}

func NewScheduler(registry ports.PoolRegistry, cooldown ports.CooldownTracker) *Scheduler {
	return &Scheduler{
		registry: registry,
		cooldown: cooldown,
		pools:    xsync.NewMap[domain.PoolKind, *poolState](),
	}
}

func (s *Scheduler) stateFor(pool domain.PoolKind) *poolState {
	state, _ := s.pools.LoadOrCompute(pool, func() (*poolState, bool) {
		return &poolState{weights: make(map[string]int)}, false
	})
	return state
}

// Select returns one currently dispatchable endpoint for pool, or
// domain.NewNoEndpointAvailable() if none qualify.
func (s *Scheduler) Select(ctx context.Context, pool domain.PoolKind) (*domain.Endpoint, error) {
	endpoints, err := s.registry.ListPoolEndpoints(ctx, pool)
	if err != nil {
		return nil, domain.NewUnexpected(err)
	}

	now := time.Now()
	available := make([]*domain.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if !e.Enabled {
			continue
		}
		if s.cooldown.IsParked(e.ID) {
			continue
		}
		if e.WithinMinInterval(now) {
			continue
		}
		available = append(available, e)
	}

	if len(available) == 0 {
		return nil, domain.NewNoEndpointAvailable()
	}

	// Stable order so ties in the weight race resolve deterministically.
	sort.Slice(available, func(i, j int) bool { return available[i].ID < available[j].ID })

	state := s.stateFor(pool)

	state.mu.Lock()
	defer state.mu.Unlock()

	// Garbage-collect weight entries for endpoints no longer available.
	inSet := make(map[string]struct{}, len(available))
	for _, e := range available {
		inSet[e.ID] = struct{}{}
	}
	for id := range state.weights {
		if _, ok := inSet[id]; !ok {
			delete(state.weights, id)
		}
	}

	total := 0
	for _, e := range available {
		total += e.EffectiveWeight()
	}

	var chosen *domain.Endpoint
	best := 0
	for _, e := range available {
		state.weights[e.ID] += e.EffectiveWeight()
		if chosen == nil || state.weights[e.ID] > best {
			chosen = e
			best = state.weights[e.ID]
		}
	}

	state.weights[chosen.ID] -= total

	return chosen, nil
}

func (s *Scheduler) MarkSuccess(ctx context.Context, endpointID string, latency time.Duration) {
	s.cooldown.Clear(endpointID)
	_ = s.registry.IncrementEndpointStats(ctx, endpointID, true, latency.Milliseconds(), "")
}

func (s *Scheduler) MarkFailure(ctx context.Context, endpointID string, reason string) {
	_ = s.registry.IncrementEndpointStats(ctx, endpointID, false, 0, reason)
}

// WeightSnapshot exposes the current SWRR running weights for a pool, for
// the read-only status endpoint. It never mutates scheduler state.
func (s *Scheduler) WeightSnapshot(pool domain.PoolKind) map[string]int {
	state, ok := s.pools.Load(pool)
	if !ok {
		return map[string]int{}
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	out := make(map[string]int, len(state.weights))
	for id, w := range state.weights {
		out[id] = w
	}
	return out
}
