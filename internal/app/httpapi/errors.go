package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/axleway/llmgate/internal/core/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeForwardError translates a forwarder failure into the downstream
// response. Every class the forwarder can return here already represents
// exhaustion of its own retry/failover budget, so they all surface as 502
// with a human-readable detail; only the request-shape checks before the
// forwarder is ever called (missing model) produce a 400.
func writeForwardError(w http.ResponseWriter, err error) {
	var fe *domain.ForwardError
	detail := err.Error()
	if errors.As(err, &fe) {
		detail = fe.Error()
	}

	writeJSONError(w, http.StatusBadGateway, detail, "upstream_error")
}

func writeJSONError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: errType}})
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}
