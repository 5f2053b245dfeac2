package resilience

import (
	"context"
	"fmt"
	"time"
)

// Retry calls fn until it succeeds, returns an error shouldRetry rejects, or
// maxAttempts calls have been made. It waits strategy.NextDelay between calls
// and gives up early when ctx is done. The last error is returned.
func Retry(ctx context.Context, strategy BackoffStrategy, maxAttempts int, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !shouldRetry(err) || attempt == maxAttempts-1 {
			return err
		}

		timer := time.NewTimer(strategy.NextDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, err)
		case <-timer.C:
		}
	}
	return err
}
