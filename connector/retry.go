package connector

import (
	"context"
	"fmt"
	"time"
)

// retryConnect runs connectFn with exponential backoff until it
// succeeds, the attempts run out, or the context is done.
func retryConnect(ctx context.Context, rc *RetryConfig, connectFn func(context.Context) (Connection, error)) (Connection, error) {
	attempts := rc.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	delay := rc.BaseDelay
	if delay == 0 {
		delay = time.Second
	}
	backoff := rc.Backoff
	if backoff < 1 {
		backoff = 2
	}

	var err error
	for i := 0; i < attempts; i++ {
		var conn Connection
		conn, err = connectFn(ctx)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * backoff)
			if rc.MaxDelay > 0 && delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
		}
	}
	return nil, fmt.Errorf("connector: connect failed after %d attempts: %w", attempts, err)
}
