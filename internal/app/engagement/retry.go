package engagement

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stridefit/stride/internal/domain"
)

// ─── Save Retries ───────────────────────────────────────────────────────────
// A computed state is safe to save again as-is, so transient backend
// failures are retried with exponential backoff. Conflicts and domain errors
// are returned immediately; they need a reload, not a retry.

// RetryConfig configures storage retries.
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // Cap on backoff delay
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}

// Backoff returns the delay before retry number attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// withRetry runs fn until it succeeds, fails with a non-storage error,
// exhausts MaxRetries, or ctx is done.
func withRetry(ctx context.Context, cfg RetryConfig, log *zap.Logger, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !domain.IsStorageError(err) || attempt >= cfg.MaxRetries {
			return err
		}

		delay := cfg.Backoff(attempt + 1)
		log.Warn("storage operation failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
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
}
