// Package forwarder orchestrates one logical client request end to end:
// endpoint selection through the pool manager, cross-endpoint failover with
// per-endpoint exponential backoff, streaming or buffered pass-through of
// the upstream response, and telemetry emission for every terminal attempt.
package forwarder

import (
	"context"
	"net/http"
	"time"

	"github.com/axleway/llmgate/internal/core/constants"
	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/internal/core/ports"
	"github.com/axleway/llmgate/internal/logger"
	"github.com/axleway/llmgate/internal/util"
)

// Forwarder is the ports.Forwarder implementation.
type Forwarder struct {
	registry ports.PoolRegistry
	pools    ports.PoolManager
	cooldown ports.CooldownTracker
	sink     ports.TelemetrySink
	client   *http.Client
	log      logger.StyledLogger
}

func New(registry ports.PoolRegistry, pools ports.PoolManager, cooldown ports.CooldownTracker, sink ports.TelemetrySink, client *http.Client, log logger.StyledLogger) *Forwarder {
	if client == nil {
		client = &http.Client{}
	}
	return &Forwarder{registry: registry, pools: pools, cooldown: cooldown, sink: sink, client: client, log: log}
}

// Forward implements ports.Forwarder.
func (f *Forwarder) Forward(ctx context.Context, req ports.ForwardRequest, w http.ResponseWriter) error {
	if req.Stream {
		return f.forwardStreaming(ctx, req, w)
	}
	return f.forwardBuffered(ctx, req, w)
}

// forwardBuffered never writes to w on failure; it returns the
// classification and lets the HTTP adapter decide the response.
func (f *Forwarder) forwardBuffered(ctx context.Context, req ports.ForwardRequest, w http.ResponseWriter) error {
	var lastErr *domain.ForwardError

	for attempt := 0; attempt < constants.MaxEndpointAttempts; attempt++ {
		endpoint, err := f.pools.Select(ctx, req.Pool)
		if err != nil {
			return f.asForwardError(err)
		}
		pool, _ := f.registry.GetPool(ctx, req.Pool)

		ferr := f.attemptWithRetries(ctx, endpoint, pool, req, func(resp *http.Response, latency time.Duration) *domain.ForwardError {
			body, inputTokens, outputTokens, err := readBufferedResponse(resp.Body, req.RequestedModel)
			if err != nil {
				return domain.NewUnexpected(err)
			}
			f.recordSuccess(ctx, req, endpoint, latency, inputTokens, outputTokens)

			w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
			w.Header().Set(constants.HeaderGatewayPool, string(req.Pool))
			w.Header().Set(constants.HeaderGatewayEndpoint, endpoint.ID)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return nil
		})
		if ferr == nil {
			return nil
		}
		lastErr = ferr
		if !ferr.Kind.Retryable() {
			f.recordFailure(ctx, req, endpoint, ferr)
			return ferr
		}
		// retries on this endpoint are exhausted (attemptWithRetries only
		// returns a retryable error once its own budget is spent); fail
		// over to the next endpoint.
		f.recordFailure(ctx, req, endpoint, ferr)
	}

	if lastErr != nil {
		return lastErr
	}
	return domain.NewNoEndpointAvailable()
}

// forwardStreaming commits to a 200 text/event-stream response on the first
// heartbeat or data frame. After that point, failover across endpoints
// continues invisibly behind heartbeats; only once every endpoint is
// exhausted does the client see a failure, reported in-band since the HTTP
// status can no longer change.
func (f *Forwarder) forwardStreaming(ctx context.Context, req ports.ForwardRequest, w http.ResponseWriter) error {
	flusher, _ := w.(http.Flusher)
	committed := false
	var lastErr *domain.ForwardError

	commit := func() {
		if committed {
			return
		}
		w.Header().Set(constants.HeaderContentType, constants.ContentTypeEventStream)
		w.Header().Set(constants.HeaderCacheControl, "no-cache")
		w.Header().Set(constants.HeaderConnection, "keep-alive")
		w.WriteHeader(http.StatusOK)
		if flusher != nil {
			flusher.Flush()
		}
		committed = true
	}

	for attempt := 0; attempt < constants.MaxEndpointAttempts; attempt++ {
		endpoint, err := f.pools.Select(ctx, req.Pool)
		if err != nil {
			if committed {
				writeMidFlightError(w, flusher, err)
				return nil
			}
			return f.asForwardError(err)
		}
		pool, _ := f.registry.GetPool(ctx, req.Pool)

		heartbeat := func() error {
			commit()
			writeRaw(w, flusher, constants.SSEHeartbeatFrame)
			return nil
		}

		streamed := false
		ferr := f.attemptWithRetriesHeartbeating(ctx, endpoint, pool, req, heartbeat, func(resp *http.Response, latency time.Duration) *domain.ForwardError {
			commit()
			streamed = true
			if err := pipeStreaming(ctx, w, resp.Body, req.RequestedModel, constants.HeartbeatInterval); err != nil {
				return domain.NewStreamMidFlight(err)
			}
			f.recordSuccess(ctx, req, endpoint, latency, 0, 0)
			return nil
		})
		if ferr == nil {
			return nil
		}
		lastErr = ferr
		f.recordFailure(ctx, req, endpoint, ferr)

		if streamed {
			// pipeStreaming already wrote the in-band error itself when
			// data had been forwarded; nothing more to do.
			return nil
		}
		if !ferr.Kind.Retryable() && committed {
			writeMidFlightError(w, flusher, ferr)
			return nil
		}
		if !ferr.Kind.Retryable() && !committed {
			return ferr
		}
	}

	if committed {
		if lastErr == nil {
			lastErr = domain.NewNoEndpointAvailable()
		}
		writeMidFlightError(w, flusher, lastErr)
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return domain.NewNoEndpointAvailable()
}

// attemptWithRetries runs the inner per-endpoint retry loop (§4.3's
// ENDPOINT_RETRIES budget with exponential backoff) for the non-streaming
// path, where no heartbeats are written during the wait.
func (f *Forwarder) attemptWithRetries(ctx context.Context, endpoint *domain.Endpoint, pool *domain.Pool, req ports.ForwardRequest, onSuccess func(*http.Response, time.Duration) *domain.ForwardError) *domain.ForwardError {
	return f.attemptWithRetriesHeartbeating(ctx, endpoint, pool, req, nil, onSuccess)
}

func (f *Forwarder) attemptWithRetriesHeartbeating(ctx context.Context, endpoint *domain.Endpoint, pool *domain.Pool, req ports.ForwardRequest, heartbeat func() error, onSuccess func(*http.Response, time.Duration) *domain.ForwardError) *domain.ForwardError {
	var lastErr *domain.ForwardError

	for retry := 0; retry <= constants.EndpointRetries; retry++ {
		if retry > 0 {
			select {
			case <-time.After(util.CalculateRetryBackoff(retry)):
			case <-ctx.Done():
				return domain.NewTransportTransient(ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, pool.Timeout())
		upstreamReq, err := buildUpstreamRequest(attemptCtx, endpoint, req.Body, req.Stream)
		if err != nil {
			cancel()
			return domain.NewUnexpected(err)
		}

		start := time.Now()
		resp, ferr := doRequest(attemptCtx, f.client, upstreamReq, constants.HeartbeatInterval, constants.FirstChunkTimeout, heartbeat)
		if ferr != nil {
			cancel()
			lastErr = ferr
			if ferr.Kind.Retryable() {
				continue
			}
			return ferr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result := onSuccess(resp, time.Since(start))
			cancel()
			return result
		}

		body := readErrorBody(resp.Body, 200)
		cancel()
		ferr = classifyStatus(resp.StatusCode, body)
		lastErr = ferr
		if ferr.Kind.Retryable() {
			continue
		}
		return ferr
	}

	return lastErr
}

func (f *Forwarder) recordSuccess(ctx context.Context, req ports.ForwardRequest, endpoint *domain.Endpoint, latency time.Duration, inputTokens, outputTokens int32) {
	f.pools.MarkSuccess(ctx, endpoint.ID, latency)
	f.sink.RecordAttempt(ctx, domain.TelemetryRecord{
		EndpointID:     endpoint.ID,
		Pool:           req.Pool,
		RequestedModel: req.RequestedModel,
		ActualModel:    endpoint.ModelID,
		ProviderName:   endpoint.Provider.Name,
		Success:        true,
		StatusCode:     http.StatusOK,
		LatencyMs:      latency.Milliseconds(),
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		CreatedAt:      time.Now(),
	})
}

// recordFailure marks the failure against the pool manager and parks the
// endpoint for the pool's cooldown unless the pool disables parking
// (cooldown_seconds == 0). Terminal 401/403 failures park regardless, for
// constants.DefaultAuthParkSeconds when the pool's cooldown is 0, since
// retrying a rejected credential can never succeed against the same
// endpoint; other terminal 4xx failures follow the pool setting.
func (f *Forwarder) recordFailure(ctx context.Context, req ports.ForwardRequest, endpoint *domain.Endpoint, ferr *domain.ForwardError) {
	f.pools.MarkFailure(ctx, endpoint.ID, ferr.Error())
	f.sink.RecordAttempt(ctx, domain.TelemetryRecord{
		EndpointID:     endpoint.ID,
		Pool:           req.Pool,
		RequestedModel: req.RequestedModel,
		ActualModel:    endpoint.ModelID,
		ProviderName:   endpoint.Provider.Name,
		Success:        false,
		StatusCode:     ferr.StatusCode,
		ErrorMessage:   ferr.Error(),
		CreatedAt:      time.Now(),
	})

	pool, _ := f.registry.GetPool(ctx, req.Pool)
	shouldPark := ferr.Kind == domain.KindUpstreamTerminal && isAuthStatus(ferr.StatusCode)
	if pool != nil && pool.CooldownSeconds > 0 {
		shouldPark = true
	}
	if shouldPark {
		cooldown := constants.DefaultAuthParkSeconds
		if pool != nil && pool.Cooldown() > 0 {
			cooldown = pool.Cooldown()
		}
		f.cooldown.Park(endpoint.ID, cooldown, ferr.Error())
	}
}

func (f *Forwarder) asForwardError(err error) *domain.ForwardError {
	if fe, ok := err.(*domain.ForwardError); ok {
		return fe
	}
	return domain.NewUnexpected(err)
}

var _ ports.Forwarder = (*Forwarder)(nil)
