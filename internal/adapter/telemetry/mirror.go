package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axleway/llmgate/internal/core/domain"
)

// Mirror denormalises per-endpoint counters into Redis hashes, alongside
// the in-process xsync aggregation, so a fleet of gateway instances can be
// queried for a combined view without a shared database.
type Mirror struct {
	client *redis.Client
}

// NewMirror opens a Redis client against addr. It does not block on
// connectivity; a down Redis only degrades the mirror, never the data
// plane itself.
func NewMirror(addr string) (*Mirror, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis mirror: addr is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &Mirror{client: client}, nil
}

func (m *Mirror) key(endpointID string) string {
	return "llmgate:endpoint:" + endpointID
}

// Record pushes one attempt's outcome into the endpoint's Redis hash. Errors
// are swallowed by the caller's fire-and-forget goroutine; the mirror is
// advisory, not authoritative.
func (m *Mirror) Record(ctx context.Context, rec domain.TelemetryRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := m.client.TxPipeline()
	pipe.HIncrBy(ctx, m.key(rec.EndpointID), "total_requests", 1)
	if rec.Success {
		pipe.HIncrBy(ctx, m.key(rec.EndpointID), "successful_requests", 1)
	} else {
		pipe.HIncrBy(ctx, m.key(rec.EndpointID), "failed_requests", 1)
	}
	pipe.HSet(ctx, m.key(rec.EndpointID), "last_used", rec.CreatedAt.Unix())
	pipe.Expire(ctx, m.key(rec.EndpointID), 24*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

func (m *Mirror) Close() error {
	return m.client.Close()
}
