package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxRetries = 3

// retryWithBackoff retries op with exponential backoff and jitter, modeled
// on the opencode session loop's retry pattern, bounded by ctx and a fixed
// retry ceiling so a persistently failing provider does not stall the
// enrichment pipeline indefinitely.
func retryWithBackoff(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx))
}
