package forwarder

import (
	"bytes"
	"encoding/json"
	"regexp"
)

// modelFieldPattern matches a top-level "model" key and its quoted string
// value so the replacement can touch only the value, preserving the rest of
// the document's formatting and key order byte-for-byte.
var modelFieldPattern = regexp.MustCompile(`("model"\s*:\s*)"((?:[^"\\]|\\.)*)"`)

// rewriteRequestModel overwrites the request body's "model" field with the
// endpoint's concrete model id. If the body has no top-level "model" field,
// it is returned unchanged.
func rewriteRequestModel(body []byte, concreteModel string) []byte {
	return rewriteModelField(body, concreteModel, false)
}

// rewriteResponseModel overwrites a non-streaming response body's "model"
// field (top-level, or nested under "message.model" for an Anthropic
// message envelope) with the requested virtual model name, hiding the
// concrete upstream identity from the client.
func rewriteResponseModel(body []byte, virtualModel string) []byte {
	out := rewriteModelField(body, virtualModel, false)
	return rewriteNestedMessageModel(out, virtualModel)
}

// rewriteChunkModel applies the same rewrite to one SSE data payload,
// additionally covering the nested "message.model" shape used by
// Anthropic's message_start streaming event.
func rewriteChunkModel(payload []byte, virtualModel string) []byte {
	out := rewriteModelField(payload, virtualModel, true)
	return rewriteNestedMessageModel(out, virtualModel)
}

// rewriteModelField performs a targeted regex substitution of the first
// top-level "model" field's value. When lenient is true (streaming chunks),
// it skips the json.Unmarshal structural check, since chunk payloads on the
// hot path shouldn't pay full-parse cost just to confirm what the regex
// already found.
func rewriteModelField(body []byte, newValue string, lenient bool) []byte {
	if !lenient {
		var parsed map[string]json.RawMessage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return body
		}
		if _, hasModel := parsed["model"]; !hasModel {
			return body
		}
	}

	escaped := jsonEscapeString(newValue)
	replaced := false
	return modelFieldPattern.ReplaceAllFunc(body, func(match []byte) []byte {
		if replaced {
			return match
		}
		submatches := modelFieldPattern.FindSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		replaced = true

		var buf bytes.Buffer
		buf.Write(submatches[1])
		buf.WriteByte('"')
		buf.WriteString(escaped)
		buf.WriteByte('"')
		return buf.Bytes()
	})
}

var nestedMessageModelPattern = regexp.MustCompile(`("message"\s*:\s*\{[^{}]*?"model"\s*:\s*)"((?:[^"\\]|\\.)*)"`)

// rewriteNestedMessageModel rewrites "model" nested one level under a
// top-level "message" object, the shape Anthropic's message_start event and
// non-streaming message envelopes use.
func rewriteNestedMessageModel(body []byte, newValue string) []byte {
	escaped := jsonEscapeString(newValue)
	return nestedMessageModelPattern.ReplaceAllFunc(body, func(match []byte) []byte {
		submatches := nestedMessageModelPattern.FindSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		var buf bytes.Buffer
		buf.Write(submatches[1])
		buf.WriteByte('"')
		buf.WriteString(escaped)
		buf.WriteByte('"')
		return buf.Bytes()
	})
}

func jsonEscapeString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}

// setStreamTrue overwrites (or inserts) a top-level "stream": true field in
// the outgoing request body. buildUpstreamRequest applies it only when the
// downstream client asked for streaming; a non-streaming request goes
// upstream without it and is answered from a plain JSON response.
func setStreamTrue(body []byte) []byte {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	parsed["stream"] = json.RawMessage("true")
	out, err := json.Marshal(parsed)
	if err != nil {
		return body
	}
	return out
}
