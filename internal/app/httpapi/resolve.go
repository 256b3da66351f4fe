// Package httpapi exposes the downstream HTTP surface: the two forwarding
// routes, the model listing, and the read-only health/status endpoints.
package httpapi

import (
	"strings"

	"github.com/axleway/llmgate/internal/config"
	"github.com/axleway/llmgate/internal/core/domain"
)

// ResolvePool maps a requested virtual model name to a pool. The substring
// tests run in order (haiku, then opus, then default) so an ambiguous name
// containing both always lands in tool.
func ResolvePool(requestedModel string, pools config.PoolsConfig) domain.PoolKind {
	lower := strings.ToLower(requestedModel)

	if strings.Contains(lower, "haiku") || requestedModel == pools.VirtualModelTool {
		return domain.PoolTool
	}
	if strings.Contains(lower, "opus") || requestedModel == pools.VirtualModelAdvanced {
		return domain.PoolAdvanced
	}
	return domain.PoolNormal
}
