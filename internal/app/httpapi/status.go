package httpapi

import (
	"net/http"
	"time"

	"github.com/axleway/llmgate/internal/core/constants"
)

// statusResponse is the supplemented operator view: per-endpoint stats, any
// endpoints currently parked, and the most recent request log entries.
type statusResponse struct {
	Uptime       string                 `json:"uptime"`
	EndpointStats map[string]interface{} `json:"endpoint_stats"`
	Parked       map[string]string       `json:"parked"`
	RecentLogs   []recentLogEntry        `json:"recent_logs"`
}

type recentLogEntry struct {
	Pool           string `json:"pool"`
	RequestedModel string `json:"requested_model"`
	ActualModel    string `json:"actual_model"`
	ProviderName   string `json:"provider_name"`
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code"`
	LatencyMs      int64  `json:"latency_ms"`
	CreatedAt      string `json:"created_at"`
}

// Status serves the supplemented GET /internal/status operator endpoint:
// the persistence-backed stats and request-log views the admin surface
// reads, exposed read-only here since this gateway doesn't implement the
// external admin CRUD surface itself.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	stats := h.Sink.EndpointStats()
	statsOut := make(map[string]interface{}, len(stats))
	for id, s := range stats {
		statsOut[id] = s
	}

	parked := make(map[string]string)
	if h.Cooldown != nil {
		for id, remaining := range h.Cooldown.Snapshot() {
			parked[id] = remaining.String()
		}
	}

	logs := h.Sink.RecentLogs(100)
	entries := make([]recentLogEntry, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, recentLogEntry{
			Pool:           string(l.Pool),
			RequestedModel: l.RequestedModel,
			ActualModel:    l.ActualModel,
			ProviderName:   l.ProviderName,
			Success:        l.Success,
			StatusCode:     l.StatusCode,
			LatencyMs:      l.LatencyMs,
			CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		})
	}

	resp := statusResponse{
		Uptime:        time.Since(h.StartedAt).String(),
		EndpointStats: statsOut,
		Parked:        parked,
		RecentLogs:    entries,
	}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, resp)
}
