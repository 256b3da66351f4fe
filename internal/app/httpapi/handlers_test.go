package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

// recordingForwarder is a minimal ports.Forwarder double for pinning the
// boundary translation (request decode, pool routing, error-to-status
// mapping) without dragging a real pool/registry/upstream into every
// handler test.
type recordingForwarder struct {
	req   ports.ForwardRequest
	err   error
	write func(w http.ResponseWriter)
}

func (f *recordingForwarder) Forward(ctx context.Context, req ports.ForwardRequest, w http.ResponseWriter) error {
	f.req = req
	if f.write != nil {
		f.write(w)
	}
	return f.err
}

func newHandlers(fwd ports.Forwarder) *Handlers {
	return &Handlers{
		Forwarder: fwd,
		Pools: config.PoolsConfig{
			VirtualModelTool:     "gateway-tool",
			VirtualModelNormal:   "gateway-normal",
			VirtualModelAdvanced: "gateway-advanced",
		},
		Log: testLogger(),
	}
}

func TestChatCompletions_MissingModel_Returns400(t *testing.T) {
	h := newHandlers(&recordingForwarder{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"messages":[]}`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing model field, got %d", rec.Code)
	}
}

func TestChatCompletions_InvalidJSON_Returns400(t *testing.T) {
	h := newHandlers(&recordingForwarder{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}
}

func TestChatCompletions_RoutesToCorrectPool(t *testing.T) {
	fwd := &recordingForwarder{}
	h := newHandlers(fwd)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"claude-3-opus-20240229","stream":true}`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	if fwd.req.Pool != domain.PoolAdvanced {
		t.Fatalf("expected opus model to route to the advanced pool, got %v", fwd.req.Pool)
	}
	if fwd.req.RequestedModel != "claude-3-opus-20240229" {
		t.Fatalf("expected requested model preserved, got %q", fwd.req.RequestedModel)
	}
	if !fwd.req.Stream {
		t.Fatal("expected the stream flag to be forwarded through")
	}
}

func TestChatCompletions_ForwardError_MapsToBadGateway(t *testing.T) {
	fwd := &recordingForwarder{err: domain.NewUpstreamTerminal(http.StatusUnauthorized, `{"error":"bad key"}`)}
	h := newHandlers(fwd)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gateway-normal"}`))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected a forwarder failure to surface as 502, got %d", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected a JSON error envelope, got: %v", err)
	}
	if body.Error.Type != "upstream_error" {
		t.Fatalf("expected error type upstream_error, got %q", body.Error.Type)
	}
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := newHandlers(&recordingForwarder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestModels_OpenAIShape(t *testing.T) {
	h := newHandlers(&recordingForwarder{})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.Models(rec, req)

	var list openAIModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("expected OpenAI-shaped model list, got: %v", err)
	}
	if len(list.Data) != 3 {
		t.Fatalf("expected three virtual models listed, got %d", len(list.Data))
	}
}
