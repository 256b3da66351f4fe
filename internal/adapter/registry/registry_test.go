package registry

import (
	"context"
	"testing"

	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/domain"
)

func testConfig() *config.FleetConfig {
	return &config.FleetConfig{
		Providers: []config.ProviderConfig{
			{
				Name:    "anthropic-primary",
				BaseURL: "https://api.anthropic.com",
				Format:  "anthropic",
				Endpoints: []config.EndpointConfig{
					{ModelID: "claude-opus-4", Pool: "advanced", Weight: 3, Enabled: true},
					{ModelID: "claude-haiku-4.5", Pool: "tool", Weight: 1, Enabled: true},
				},
			},
			{
				Name:    "openai-secondary",
				BaseURL: "https://api.openai.com",
				Format:  "openai",
				Endpoints: []config.EndpointConfig{
					{ModelID: "gpt-4o", Pool: "normal", Weight: 2, Enabled: true},
				},
			},
		},
	}
}

func TestSeedFromConfig_ListPoolEndpoints(t *testing.T) {
	r := SeedFromConfig(testConfig(), PoolDefaults{CooldownSeconds: 30, MaxRetries: 3}, 100)
	ctx := context.Background()

	advanced, err := r.ListPoolEndpoints(ctx, domain.PoolAdvanced)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(advanced) != 1 || advanced[0].ModelID != "claude-opus-4" {
		t.Fatalf("expected one advanced endpoint for claude-opus-4, got %+v", advanced)
	}

	normal, _ := r.ListPoolEndpoints(ctx, domain.PoolNormal)
	if len(normal) != 1 || normal[0].Provider.Format != domain.FormatOpenAI {
		t.Fatalf("expected one openai normal endpoint, got %+v", normal)
	}
}

func TestListPoolEndpoints_ReturnsCopiesNotSharedState(t *testing.T) {
	r := SeedFromConfig(testConfig(), PoolDefaults{}, 100)
	ctx := context.Background()

	first, _ := r.ListPoolEndpoints(ctx, domain.PoolAdvanced)
	first[0].Enabled = false

	second, _ := r.ListPoolEndpoints(ctx, domain.PoolAdvanced)
	if !second[0].Enabled {
		t.Fatal("mutating a returned endpoint copy affected registry state")
	}
}

func TestGetPool_MaterialisesDefaultsOnFirstReference(t *testing.T) {
	r := New(PoolDefaults{CooldownSeconds: 45, MaxRetries: 5}, 100)
	ctx := context.Background()

	pool, err := r.GetPool(ctx, domain.PoolTool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.CooldownSeconds != 45 || pool.MaxRetries != 5 {
		t.Fatalf("expected default policy applied, got %+v", pool)
	}

	again, _ := r.GetPool(ctx, domain.PoolTool)
	if again.Kind != pool.Kind {
		t.Fatal("expected the same pool returned on repeated GetPool calls")
	}
}

func TestIncrementEndpointStats_TracksAverageLatencyAndErrors(t *testing.T) {
	r := SeedFromConfig(testConfig(), PoolDefaults{}, 100)
	ctx := context.Background()

	endpoints, _ := r.ListPoolEndpoints(ctx, domain.PoolAdvanced)
	id := endpoints[0].ID

	if err := r.IncrementEndpointStats(ctx, id, true, 100, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.IncrementEndpointStats(ctx, id, true, 200, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.IncrementEndpointStats(ctx, id, false, 0, "upstream 503"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, _ := r.ListPoolEndpoints(ctx, domain.PoolAdvanced)
	var found *domain.Endpoint
	for _, e := range updated {
		if e.ID == id {
			found = e
		}
	}
	if found == nil {
		t.Fatal("endpoint missing after stats update")
	}
	if found.TotalRequests != 3 || found.SuccessRequests != 2 || found.ErrorRequests != 1 {
		t.Fatalf("unexpected counters: %+v", found)
	}
	if found.AvgLatencyMs != 150 {
		t.Fatalf("expected average latency 150ms across two successes, got %v", found.AvgLatencyMs)
	}
	if found.LastError != "upstream 503" {
		t.Fatalf("expected last error recorded, got %q", found.LastError)
	}
}

func TestIncrementEndpointStats_UnknownEndpointReturnsNotFound(t *testing.T) {
	r := New(PoolDefaults{}, 100)
	err := r.IncrementEndpointStats(context.Background(), "missing", true, 10, "")
	if _, ok := err.(*domain.ErrEndpointNotFound); !ok {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestAppendRequestLogAndRecentLogs_NewestFirstAndBounded(t *testing.T) {
	r := New(PoolDefaults{}, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = r.AppendRequestLog(ctx, domain.TelemetryRecord{ActualModel: string(rune('a' + i))})
	}

	logs := r.RecentLogs(10)
	if len(logs) != 3 {
		t.Fatalf("expected ring buffer to bound logs at 3, got %d", len(logs))
	}
	if logs[0].ActualModel != "e" {
		t.Fatalf("expected newest-first ordering, got %+v", logs)
	}
}

func TestProviders_ReturnsSnapshot(t *testing.T) {
	r := SeedFromConfig(testConfig(), PoolDefaults{}, 10)
	providers := r.Providers()
	if len(providers) != 2 {
		t.Fatalf("expected two providers, got %d", len(providers))
	}
}
