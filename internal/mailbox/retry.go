package mailbox

import (
	"context"
	"log/slog"
	"time"
)

// withRetry runs fn up to maxAttempts times, logging each failure and
// sleeping delay between attempts. It never sleeps after the final
// attempt, successful or not. Exhaustion wraps the last error in a
// ConnectionError carrying the attempt count.
func withRetry[T any](
	ctx context.Context,
	log *slog.Logger,
	protocol string,
	maxAttempts int,
	delay time.Duration,
	fn func() (T, error),
) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Warn("connection attempt failed",
			"protocol", protocol,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, &ConnectionError{
				Protocol: protocol,
				Attempts: attempt,
				Err:      ctx.Err(),
			}
		case <-time.After(delay):
		}
	}

	return zero, &ConnectionError{
		Protocol: protocol,
		Attempts: maxAttempts,
		Err:      lastErr,
	}
}
