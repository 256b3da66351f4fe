// Package registry provides an in-memory ports.PoolRegistry, seeded once at
// startup from the fleet configuration. Endpoint copies are handed out on
// every read so callers can't mutate shared state by holding a pointer past
// the lock; stat increments go back through IncrementEndpointStats instead.
package registry

import (
	"container/ring"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/domain"
)

// Registry is an in-memory implementation of ports.PoolRegistry.
type Registry struct {
	mu sync.RWMutex

	providers map[string]*domain.Provider
	endpoints map[string]*domain.Endpoint // keyed by endpoint ID
	byPool    map[domain.PoolKind][]string

	pools map[domain.PoolKind]*domain.Pool

	defaults PoolDefaults

	logMu sync.Mutex
	logs  *ring.Ring // of domain.TelemetryRecord
	nLogs int
}

// PoolDefaults supplies the policy values a pool gets when auto-materialised
// (i.e. referenced by a request before it has been configured explicitly).
type PoolDefaults struct {
	CooldownSeconds int
	MaxRetries      int
}

// New builds an empty Registry. SeedFromConfig builds one populated from
// the fleet configuration.
func New(defaults PoolDefaults, maxLogs int) *Registry {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &Registry{
		providers: make(map[string]*domain.Provider),
		endpoints: make(map[string]*domain.Endpoint),
		byPool:    make(map[domain.PoolKind][]string),
		pools:     make(map[domain.PoolKind]*domain.Pool),
		defaults:  defaults,
		logs:      ring.New(maxLogs),
	}
}

// SeedFromConfig replaces the registry's contents with the providers and
// endpoints described by cfg. It is intended to run once at startup; a
// later iteration could diff and hot-reload, the way the configuration
// loader already hot-reloads everything else.
func SeedFromConfig(cfg *config.FleetConfig, defaults PoolDefaults, maxLogs int) *Registry {
	r := New(defaults, maxLogs)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pc := range cfg.Providers {
		provider := &domain.Provider{
			ID:      pc.Name,
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Format:  domain.APIFormat(pc.Format),
			Enabled: true,
		}
		r.providers[provider.ID] = provider

		for _, ec := range pc.Endpoints {
			pool := domain.PoolKind(ec.Pool)
			endpoint := &domain.Endpoint{
				ID:                 provider.ID + "/" + ec.ModelID,
				Provider:           provider,
				ModelID:            ec.ModelID,
				Pool:               pool,
				Enabled:            ec.Enabled,
				Weight:             ec.Weight,
				MinIntervalSeconds: ec.MinIntervalSeconds,
			}
			r.endpoints[endpoint.ID] = endpoint
			r.byPool[pool] = append(r.byPool[pool], endpoint.ID)
		}
	}

	return r
}

// ListPoolEndpoints returns fresh copies of the enabled endpoints assigned
// to pool, ordered by descending weight (ties by endpoint ID).
func (r *Registry) ListPoolEndpoints(ctx context.Context, pool domain.PoolKind) ([]*domain.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byPool[pool]
	out := make([]*domain.Endpoint, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.endpoints[id]; ok && e.Enabled {
			cp := *e
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetPool returns the pool's policy, materialising it from defaults on
// first reference.
func (r *Registry) GetPool(ctx context.Context, kind domain.PoolKind) (*domain.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pools[kind]; ok {
		cp := *p
		return &cp, nil
	}

	p := &domain.Pool{
		Kind:            kind,
		CooldownSeconds: r.defaults.CooldownSeconds,
		MaxRetries:      r.defaults.MaxRetries,
	}
	r.pools[kind] = p
	cp := *p
	return &cp, nil
}

// IncrementEndpointStats folds one attempt's outcome into the endpoint's
// running counters using Welford-style incremental averaging, so no history
// of individual latencies needs to be retained.
func (r *Registry) IncrementEndpointStats(ctx context.Context, id string, success bool, latencyMs int64, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return &domain.ErrEndpointNotFound{ID: id}
	}

	e.TotalRequests++

	if success {
		e.LastRequestAt = time.Now()
		e.SuccessRequests++
		n := float64(e.SuccessRequests)
		e.AvgLatencyMs += (float64(latencyMs) - e.AvgLatencyMs) / n
	} else {
		e.ErrorRequests++
		e.LastError = errMsg
	}

	return nil
}

// AppendRequestLog records one completed forward attempt into a bounded
// ring buffer, overwriting the oldest entry once full.
func (r *Registry) AppendRequestLog(ctx context.Context, record domain.TelemetryRecord) error {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	r.logs.Value = record
	r.logs = r.logs.Next()
	if r.nLogs < r.logs.Len() {
		r.nLogs++
	}
	return nil
}

// RecentLogs returns up to n most recently appended request log records,
// newest first.
func (r *Registry) RecentLogs(n int) []domain.TelemetryRecord {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	if n <= 0 || n > r.nLogs {
		n = r.nLogs
	}

	out := make([]domain.TelemetryRecord, 0, n)
	cur := r.logs.Prev() // most recently written slot
	for i := 0; i < n; i++ {
		if rec, ok := cur.Value.(domain.TelemetryRecord); ok {
			out = append(out, rec)
		}
		cur = cur.Prev()
	}
	return out
}

// Providers returns a snapshot of every configured provider, for the status
// endpoint.
func (r *Registry) Providers() []*domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		cp := *p
		out = append(out, &cp)
	}
	return out
}
