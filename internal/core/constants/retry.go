package constants

import "time"

const (
	// MaxEndpointAttempts bounds how many distinct endpoints one logical
	// request will try before the forwarder gives up.
	MaxEndpointAttempts = 10

	// EndpointRetries bounds inner retries against the same endpoint
	// before the forwarder advances to the next one.
	EndpointRetries = 3

	// BackoffBase and BackoffMax parameterise BACKOFF = min(BackoffBase^retry, BackoffMax).
	BackoffBase = 1.5
	BackoffMax  = 30 * time.Second

	DefaultAttemptTimeout = 60 * time.Second
	DefaultForwarderHold  = 300 * time.Second

	DefaultAuthParkSeconds = 30 * time.Second
)
