package domain

// APIFormat is the wire format a Provider's upstream speaks.
type APIFormat string

const (
	FormatOpenAI    APIFormat = "openai"
	FormatAnthropic APIFormat = "anthropic"
)

// Provider is an upstream account: a base URL, a credential, and the wire
// format it speaks. Removing a Provider removes its Endpoints.
type Provider struct {
	ID      string
	Name    string
	BaseURL string // no trailing slash
	APIKey  string
	Format  APIFormat
	Enabled bool

	TotalRequests   int64
	SuccessRequests int64
	ErrorRequests   int64
}
