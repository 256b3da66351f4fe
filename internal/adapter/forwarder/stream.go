package forwarder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/axleway/llmgate/internal/core/constants"
	"github.com/axleway/llmgate/internal/core/domain"
	"github.com/axleway/llmgate/pkg/pool"
)

// scanBufferPool reuses the 64KiB scan buffers bufio.Scanner needs for SSE
// lines, since every streamed request allocates one.
var scanBufferPool = pool.NewLitePool(func() []byte {
	return make([]byte, 64*1024)
})

// doRequest issues req and waits for upstream response headers, heartbeating
// onHeartbeat (if non-nil) every heartbeatInterval while it waits, up to
// firstChunkTimeout. Headers, not body bytes, are what "first byte" means
// here: the non-streaming caller has no downstream connection to heartbeat
// on, so it passes a nil onHeartbeat and relies on the request context's
// deadline instead.
func doRequest(ctx context.Context, client *http.Client, req *http.Request, heartbeatInterval, firstChunkTimeout time.Duration, onHeartbeat func() error) (*http.Response, *domain.ForwardError) {
	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := client.Do(req)
		done <- result{resp, err}
	}()

	if onHeartbeat == nil {
		select {
		case r := <-done:
			if r.err != nil {
				return nil, classifyTransportError(r.err)
			}
			return r.resp, nil
		case <-ctx.Done():
			return nil, classifyTransportError(ctx.Err())
		}
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	deadline := time.After(firstChunkTimeout)

	for {
		select {
		case r := <-done:
			if r.err != nil {
				return nil, classifyTransportError(r.err)
			}
			return r.resp, nil
		case <-ticker.C:
			if err := onHeartbeat(); err != nil {
				return nil, domain.NewTransportTransient(err)
			}
		case <-deadline:
			return nil, domain.NewTransportTransient(fmt.Errorf("upstream first-chunk timeout after %s", firstChunkTimeout))
		case <-ctx.Done():
			return nil, classifyTransportError(ctx.Err())
		}
	}
}

// pipeStreaming relays an already-2xx upstream SSE response to w as SSE,
// rewriting each data frame's model field to virtualModel, inserting
// heartbeats into any gap between upstream chunks longer than
// heartbeatInterval. It returns nil once the upstream stream ends cleanly.
// On an upstream read error or cancellation of ctx it returns that error,
// after reporting the failure in-band to the client if at least one data
// frame had already been forwarded.
func pipeStreaming(ctx context.Context, w http.ResponseWriter, upstream io.ReadCloser, virtualModel string, heartbeatInterval time.Duration) error {
	defer upstream.Close()

	flusher, _ := w.(http.Flusher)
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeEventStream)
	w.Header().Set(constants.HeaderCacheControl, "no-cache")
	w.Header().Set(constants.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		buf := scanBufferPool.Get()
		defer scanBufferPool.Put(buf)

		scanner := bufio.NewScanner(upstream)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	forwarded := false
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if err != nil && forwarded {
					writeMidFlightError(w, flusher, err)
				}
				return err
			}
			ticker.Reset(heartbeatInterval)
			writeSSELine(w, flusher, rewriteSSELine(line, virtualModel))
			if strings.HasPrefix(line, constants.SSEDataPrefix) {
				forwarded = true
			}
		case <-ticker.C:
			writeRaw(w, flusher, constants.SSEHeartbeatFrame)
		case <-ctx.Done():
			if forwarded {
				writeMidFlightError(w, flusher, ctx.Err())
			}
			return ctx.Err()
		}
	}
}

// rewriteSSELine rewrites one line of an SSE stream. Only "data: " lines
// carrying a JSON payload (not the [DONE] sentinel) are touched.
func rewriteSSELine(line, virtualModel string) string {
	if !strings.HasPrefix(line, constants.SSEDataPrefix) {
		return line
	}
	payload := strings.TrimPrefix(line, constants.SSEDataPrefix)
	if payload == constants.SSEDonePayload {
		return line
	}
	if !json.Valid([]byte(payload)) {
		return line
	}
	rewritten := rewriteChunkModel([]byte(payload), virtualModel)
	return constants.SSEDataPrefix + string(rewritten)
}

func writeSSELine(w http.ResponseWriter, f http.Flusher, line string) {
	writeRaw(w, f, line+"\n\n")
}

func writeRaw(w http.ResponseWriter, f http.Flusher, s string) {
	_, _ = io.WriteString(w, s)
	if f != nil {
		f.Flush()
	}
}

// writeMidFlightError emits the in-band SSE error envelope the streaming
// contract requires once at least one data frame has already reached the
// client: failover is no longer possible, so the failure must be reported
// inside the stream instead of as an HTTP error.
func writeMidFlightError(w http.ResponseWriter, f http.Flusher, cause error) {
	envelope := map[string]any{
		"error": map[string]string{
			"message": cause.Error(),
			"type":    "upstream_error",
		},
	}
	b, _ := json.Marshal(envelope)
	writeSSELine(w, f, constants.SSEDataPrefix+string(b))
}
