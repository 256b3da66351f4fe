package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axleway/llmgate/internal/adapter/balancer"
	"github.com/axleway/llmgate/internal/adapter/cooldown"
	"github.com/axleway/llmgate/internal/adapter/registry"
	"github.com/axleway/llmgate/internal/adapter/telemetry"
	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/core/ports"
	"github.com/axleway/llmgate/internal/logger"
)

func testLogger() logger.StyledLogger {
	cfg := &logger.Config{Level: "error", Theme: "default"}
	log, _, _ := logger.New(cfg)
	return logger.NewPlainStyledLogger(log)
}

// newHarness wires real collaborators (registry, scheduler, cooldown
// tracker, telemetry sink) around one or more fake upstreams, the same way
// Application does, so the forwarder is exercised against its real
// dependencies rather than hand-rolled mocks.
type harness struct {
	fwd      *Forwarder
	cooldown *cooldown.Tracker
	registry *registry.Registry
}

func newHarness(t *testing.T, providers []config.ProviderConfig, cooldownSeconds int) *harness {
	t.Helper()

	reg := registry.SeedFromConfig(&config.FleetConfig{Providers: providers},
		registry.PoolDefaults{CooldownSeconds: cooldownSeconds, MaxRetries: 3}, 100)
	cd := cooldown.NewTracker()
	sched := balancer.NewScheduler(reg, cd)
	sink := telemetry.New(testLogger(), 100, nil)

	return &harness{
		fwd:      New(reg, sched, cd, sink, &http.Client{}, testLogger()),
		cooldown: cd,
		registry: reg,
	}
}

func providerFor(t *testing.T, srv *httptest.Server, format string, pool domain.PoolKind, modelID string) config.ProviderConfig {
	t.Helper()
	return config.ProviderConfig{
		Name:    "p-" + modelID,
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Format:  format,
		Endpoints: []config.EndpointConfig{
			{ModelID: modelID, Pool: string(pool), Weight: 1, Enabled: true},
		},
	}
}

// TestForward_Buffered_NonStreamingClient_DoesNotForceUpstreamStream
// guards against re-introducing the regression where every non-streaming
// client request silently became an upstream SSE call: the upstream must
// see exactly the stream flag the client asked for.
func TestForward_Buffered_NonStreamingClient_DoesNotForceUpstreamStream(t *testing.T) {
	var gotStream json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotStream = body["stream"]

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp-1","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi","tool_calls":[{"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{}"}}]},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2}}`))
	}))
	defer srv.Close()

	h := newHarness(t, []config.ProviderConfig{providerFor(t, srv, "openai", domain.PoolNormal, "gpt-4o")}, 30)

	rec := httptest.NewRecorder()
	err := h.fwd.Forward(context.Background(), ports.ForwardRequest{
		Pool:           domain.PoolNormal,
		RequestedModel: "gateway-normal",
		Body:           []byte(`{"model":"gateway-normal","stream":false,"messages":[]}`),
		Stream:         false,
	}, rec)
	if err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}

	if string(gotStream) != "false" {
		t.Fatalf("expected upstream to see stream:false unchanged, got %q", string(gotStream))
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if resp["model"] != "gateway-normal" {
		t.Fatalf("expected model rewritten to virtual name, got %v", resp["model"])
	}

	choices, _ := resp["choices"].([]any)
	if len(choices) != 1 {
		t.Fatalf("expected one choice preserved, got %+v", resp["choices"])
	}
	choice := choices[0].(map[string]any)
	message := choice["message"].(map[string]any)
	if _, ok := message["tool_calls"]; !ok {
		t.Fatal("expected tool_calls to survive the response rewrite, it did not")
	}
}

// TestForward_Streaming_Client_ForcesUpstreamStream confirms the flag is
// still forced on when the client itself asked for a streaming response.
func TestForward_Streaming_Client_ForcesUpstreamStream(t *testing.T) {
	var gotStream json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotStream = body["stream"]

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"id\":\"x\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	h := newHarness(t, []config.ProviderConfig{providerFor(t, srv, "openai", domain.PoolNormal, "gpt-4o")}, 30)

	rec := httptest.NewRecorder()
	err := h.fwd.Forward(context.Background(), ports.ForwardRequest{
		Pool:           domain.PoolNormal,
		RequestedModel: "gateway-normal",
		Body:           []byte(`{"model":"gateway-normal","stream":true,"messages":[]}`),
		Stream:         true,
	}, rec)
	if err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}

	if string(gotStream) != "true" {
		t.Fatalf("expected upstream to see stream:true forced on for a streaming client, got %q", string(gotStream))
	}
}

// TestForward_TerminalAuthFailure_ParksImmediatelyWithoutRetrying covers
// the terminal, non-retryable path: a 401 must park the endpoint and
// surface an error without burning the endpoint's retry budget.
func TestForward_TerminalAuthFailure_ParksImmediatelyWithoutRetrying(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	h := newHarness(t, []config.ProviderConfig{providerFor(t, srv, "openai", domain.PoolTool, "gpt-4o-mini")}, 0)

	rec := httptest.NewRecorder()
	err := h.fwd.Forward(context.Background(), ports.ForwardRequest{
		Pool:           domain.PoolTool,
		RequestedModel: "gateway-tool",
		Body:           []byte(`{"model":"gateway-tool","stream":false}`),
		Stream:         false,
	}, rec)

	if err == nil {
		t.Fatal("expected an error for a terminal 401 with no other endpoint available")
	}
	fe, ok := err.(*domain.ForwardError)
	if !ok || fe.Kind != domain.KindUpstreamTerminal {
		t.Fatalf("expected KindUpstreamTerminal, got %#v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt against a terminal-error endpoint, got %d", attempts)
	}

	endpoints, _ := h.registry.ListPoolEndpoints(context.Background(), domain.PoolTool)
	if len(endpoints) != 1 {
		t.Fatalf("expected one configured endpoint, got %d", len(endpoints))
	}
	if !h.cooldown.IsParked(endpoints[0].ID) {
		t.Fatal("expected the endpoint to be parked after a terminal auth failure")
	}
}

// TestForward_RetriesThenFailsOverToHealthyEndpoint exercises the full
// endpoint-retry-budget-then-failover path: the first endpoint exhausts its
// retries against a retryable 503 and gets parked, and the request
// ultimately succeeds against the second endpoint.
func TestForward_RetriesThenFailsOverToHealthyEndpoint(t *testing.T) {
	failingAttempts := 0
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failingAttempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer failing.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ok","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer healthy.Close()

	h := newHarness(t, []config.ProviderConfig{
		providerFor(t, failing, "openai", domain.PoolNormal, "endpoint-a"),
		providerFor(t, healthy, "openai", domain.PoolNormal, "endpoint-b"),
	}, 30)

	rec := httptest.NewRecorder()
	err := h.fwd.Forward(context.Background(), ports.ForwardRequest{
		Pool:           domain.PoolNormal,
		RequestedModel: "gateway-normal",
		Body:           []byte(`{"model":"gateway-normal","stream":false}`),
		Stream:         false,
	}, rec)
	if err != nil {
		t.Fatalf("expected failover to the healthy endpoint to succeed, got error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from the healthy endpoint, got %d", rec.Code)
	}

	// EndpointRetries==3 means 4 attempts (1 initial + 3 retries) against
	// the failing endpoint before the forwarder fails over.
	if failingAttempts != 4 {
		t.Fatalf("expected the failing endpoint's retry budget to be fully spent (4 attempts), got %d", failingAttempts)
	}

	endpoints, _ := h.registry.ListPoolEndpoints(context.Background(), domain.PoolNormal)
	var failingID string
	for _, e := range endpoints {
		if e.ModelID == "endpoint-a" {
			failingID = e.ID
		}
	}
	if failingID == "" {
		t.Fatal("could not find failing endpoint in registry")
	}
	if !h.cooldown.IsParked(failingID) {
		t.Fatal("expected the exhausted endpoint to be parked after failover")
	}
}

// TestForward_NoEndpointAvailable covers the case where the pool has no
// endpoints configured at all.
func TestForward_NoEndpointAvailable(t *testing.T) {
	h := newHarness(t, nil, 30)

	rec := httptest.NewRecorder()
	err := h.fwd.Forward(context.Background(), ports.ForwardRequest{
		Pool:           domain.PoolAdvanced,
		RequestedModel: "gateway-advanced",
		Body:           []byte(`{"model":"gateway-advanced"}`),
		Stream:         false,
	}, rec)
	if err == nil {
		t.Fatal("expected an error when the pool has no endpoints configured")
	}
	fe, ok := err.(*domain.ForwardError)
	if !ok || fe.Kind != domain.KindNoEndpointAvailable {
		t.Fatalf("expected KindNoEndpointAvailable, got %#v", err)
	}
}
