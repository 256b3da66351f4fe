package httpapi

import "encoding/json"

// requestEnvelope reads just enough of an incoming chat-completions/messages
// body to route it: the virtual model name and the client's own streaming
// preference. Everything else passes through to the forwarder untouched.
type requestEnvelope struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

func parseEnvelope(body []byte) (requestEnvelope, error) {
	var env requestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return requestEnvelope{}, err
	}
	return env, nil
}
