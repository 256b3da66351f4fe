package forwarder

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/axleway/llmgate/internal/core/domain"
)

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"no route to host",
	"connection timed out",
	"i/o timeout",
	"dial tcp",
	"eof",
}

// classifyTransportError turns a failed http.Client.Do into the closed
// ForwardError taxonomy. Anything recognisably a connect/read/write/timeout
// failure is TransportTransient (retryable); anything else is Unexpected.
func classifyTransportError(err error) *domain.ForwardError {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewTransportTransient(err)
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED:
			return domain.NewTransportTransient(err)
		}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.NewTransportTransient(err)
	}

	lower := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(lower, pattern) {
			return domain.NewTransportTransient(err)
		}
	}

	return domain.NewUnexpected(err)
}

// classifyStatus turns a non-2xx upstream status into the closed taxonomy.
// body is the (already bounded) response body fragment for terminal errors.
func classifyStatus(status int, body string) *domain.ForwardError {
	if domain.IsRetryableStatus(status) {
		return domain.NewUpstreamRetryable(status, body)
	}
	return domain.NewUpstreamTerminal(status, body)
}

// readErrorBody reads up to maxBytes of r for inclusion in a terminal or
// retryable error, draining and closing r regardless of how much was read
// so the underlying connection can be reused or released promptly.
func readErrorBody(r io.ReadCloser, maxBytes int64) string {
	defer r.Close()
	limited := io.LimitReader(r, maxBytes)
	b, _ := io.ReadAll(limited)
	_, _ = io.Copy(io.Discard, r) // drain the remainder so the connection can be reused
	return strings.TrimSpace(string(b))
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
