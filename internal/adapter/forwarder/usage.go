package forwarder

import (
	"encoding/json"
	"io"
)

// usageEnvelope captures both wire formats' usage shapes in one struct;
// unused fields for a given format simply stay zero.
type usageEnvelope struct {
	Model string `json:"model"`
	Usage struct {
		// Anthropic Messages shape
		InputTokens  int32 `json:"input_tokens"`
		OutputTokens int32 `json:"output_tokens"`
		// OpenAI Chat Completions shape
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
	} `json:"usage"`
}

// extractUsage pulls token counts out of a completed response body,
// tolerating either wire format. A body that doesn't parse or carries no
// usage object yields a zero-valued result rather than an error, since
// usage extraction is best-effort telemetry, not part of the response
// contract.
func extractUsage(body []byte) (inputTokens, outputTokens int32) {
	var env usageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, 0
	}

	if env.Usage.InputTokens != 0 || env.Usage.OutputTokens != 0 {
		return env.Usage.InputTokens, env.Usage.OutputTokens
	}
	return env.Usage.PromptTokens, env.Usage.CompletionTokens
}

// readBufferedResponse reads a non-streaming upstream response to
// completion, rewrites its "model" field to virtualModel, and extracts
// usage for telemetry, passing every other field through verbatim (tool
// calls, multiple choices/content blocks, whatever else the upstream
// included).
func readBufferedResponse(body io.ReadCloser, virtualModel string) ([]byte, int32, int32, error) {
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, 0, 0, err
	}

	inputTokens, outputTokens := extractUsage(raw)
	return rewriteResponseModel(raw, virtualModel), inputTokens, outputTokens, nil
}
