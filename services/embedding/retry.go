package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/medrag/services/providers"
)

// RetryConfig bounds the exponential backoff applied to embedding calls
type RetryConfig struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig is three attempts waiting 4s then 8s, capped at 10s
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MinBackoff:  4 * time.Second,
		MaxBackoff:  10 * time.Second,
	}
}

// backoff returns the wait before retry number attempt (zero based)
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := c.MinBackoff
	for i := 0; i < attempt && delay < c.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > c.MaxBackoff {
		delay = c.MaxBackoff
	}
	return delay
}

// retryOperation runs operation until it succeeds, returns a non-retryable
// error, or attempts are exhausted. Waits honour ctx cancellation.
func retryOperation(ctx context.Context, cfg RetryConfig, logger *zap.Logger, name string, operation func(context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = operation(ctx)
		if err == nil {
			return nil
		}
		if !providers.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := cfg.backoff(attempt)
		logger.Warn("retrying embedding operation",
			zap.String("operation", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}
