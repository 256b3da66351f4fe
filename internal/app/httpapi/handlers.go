package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/constants"
	"github.com/axleway/llmgate/internal/core/ports"
	"github.com/axleway/llmgate/internal/logger"
	"github.com/axleway/llmgate/internal/util"
)

// Handlers wires the downstream HTTP surface to the forwarder and the
// read-only telemetry/cooldown views behind the supplemented status route.
type Handlers struct {
	Forwarder   ports.Forwarder
	Sink        ports.TelemetrySink
	Cooldown    ports.CooldownTracker
	Pools       config.PoolsConfig
	MaxBodySize int64
	Log         logger.StyledLogger
	StartedAt   time.Time
}

func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r)
}

func (h *Handlers) Messages(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r)
}

func (h *Handlers) forward(w http.ResponseWriter, r *http.Request) {
	if h.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodySize)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body", "invalid_request_error")
		return
	}

	env, err := parseEnvelope(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "request body must be valid JSON", "invalid_request_error")
		return
	}
	if env.Model == "" {
		writeJSONError(w, http.StatusBadRequest, "missing required field: model", "invalid_request_error")
		return
	}

	requestID := r.Header.Get(constants.HeaderRequestID)
	if requestID == "" {
		requestID = util.GenerateRequestID()
	}

	pool := ResolvePool(env.Model, h.Pools)

	h.Log.InfoWithEndpoint("Forwarding request", env.Model, "pool", string(pool), "request_id", requestID)

	ferr := h.Forwarder.Forward(r.Context(), ports.ForwardRequest{
		Pool:           pool,
		RequestedModel: env.Model,
		Body:           body,
		Stream:         env.Stream,
		RequestID:      requestID,
	}, w)
	if ferr != nil {
		writeForwardError(w, ferr)
	}
}

// Models lists the three virtual model identifiers. The Anthropic-shaped
// list is returned when the caller sends the Anthropic version header;
// otherwise the OpenAI shape is used.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	names := []string{h.Pools.VirtualModelTool, h.Pools.VirtualModelNormal, h.Pools.VirtualModelAdvanced}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)

	if r.Header.Get(constants.HeaderAnthropicVers) != "" {
		_ = writeJSON(w, buildAnthropicModelList(names))
		return
	}
	_ = writeJSON(w, buildOpenAIModelList(names, h.StartedAt))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, map[string]string{"status": "ok"})
}
