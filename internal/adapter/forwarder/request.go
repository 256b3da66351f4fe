package forwarder

import (
	"bytes"
	"context"
	"net/http"

	"github.com/axleway/llmgate/internal/core/constants"
	"github.com/axleway/llmgate/internal/core/domain"
)

// buildUpstreamRequest assembles the POST to send to endpoint for this
// attempt: the client's body with its "model" field rewritten to the
// endpoint's concrete model id, routed to the provider-format-specific
// path, carrying that provider's credential. Streaming is only forced on
// upstream when the client itself asked for a streaming response; a
// non-streaming client gets a plain, unmodified request/response cycle.
func buildUpstreamRequest(ctx context.Context, endpoint *domain.Endpoint, clientBody []byte, stream bool) (*http.Request, error) {
	body := rewriteRequestModel(clientBody, endpoint.ModelID)
	if stream {
		body = setStreamTrue(body)
	}

	path := constants.PathChatCompletions
	if endpoint.Provider.Format == domain.FormatAnthropic {
		path = constants.PathMessages
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.Provider.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	if stream {
		req.Header.Set(constants.HeaderAccept, constants.ContentTypeEventStream)
	} else {
		req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	}

	switch endpoint.Provider.Format {
	case domain.FormatAnthropic:
		req.Header.Set(constants.HeaderAnthropicAPIKey, endpoint.Provider.APIKey)
		req.Header.Set(constants.HeaderAnthropicVers, constants.AnthropicAPIVersion)
	default:
		req.Header.Set(constants.HeaderAuthorization, "Bearer "+endpoint.Provider.APIKey)
	}

	return req, nil
}
