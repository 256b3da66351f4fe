package constants

const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"

	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderAuthorization   = "Authorization"
	HeaderAnthropicAPIKey = "x-api-key"
	HeaderAnthropicVers   = "anthropic-version"
	HeaderRequestID       = "X-Request-Id"
	HeaderGatewayPool     = "X-Gateway-Pool"
	HeaderGatewayEndpoint = "X-Gateway-Endpoint"
	HeaderGatewayAttempt  = "X-Gateway-Attempt"
	HeaderCacheControl    = "Cache-Control"
	HeaderConnection      = "Connection"

	AnthropicAPIVersion = "2023-06-01"

	PathChatCompletions = "/chat/completions"
	PathMessages        = "/messages"

	RouteChatCompletions = "/v1/chat/completions"
	RouteMessages        = "/v1/messages"
	RouteModels          = "/v1/models"
	RouteHealth          = "/health"
	RouteStatus          = "/internal/status"
)
