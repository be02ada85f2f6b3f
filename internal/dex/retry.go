package dex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 5 * time.Second
)

// retry calls fn until it succeeds, the retry budget is spent or ctx is done.
// Backoff doubles per attempt up to maxRetryBackoff.
func (r *PoolStateReader) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	budget := r.cfg.MaxRetries
	if budget < 0 {
		budget = 0
	}
	backoff := r.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt > budget {
			return fmt.Errorf("%d attempts: %w", attempt, err)
		}

		r.logger.Warn("rpc call failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}
