package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

const (
	retryAttempts = 3
	retryBase     = 100 * time.Millisecond
)

// withRetry runs fn with bounded backoff. Retry lives only at this use-case
// boundary; the decision logic below it stays retry-free.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return goerr.Wrap(ctx.Err(), "retry aborted", goerr.V("attempt", attempt))
			case <-time.After(wait):
			}
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
