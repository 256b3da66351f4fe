package util

import (
	"math"
	"time"

	"github.com/axleway/llmgate/internal/core/constants"
)

// CalculateRetryBackoff computes the wait before retrying the same endpoint.
// Formula: min(BackoffBase^retry, BackoffMax); retry is 1-indexed and the
// first attempt (retry <= 0) never waits.
func CalculateRetryBackoff(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	backoff := time.Duration(math.Pow(constants.BackoffBase, float64(retry)) * float64(time.Second))
	if backoff > constants.BackoffMax {
		return constants.BackoffMax
	}
	return backoff
}
