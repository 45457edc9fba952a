package retry

import (
	"context"
	"errors"
	"fmt"

	"credit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds optimistic-concurrency retries
const DefaultMaxAttempts = 5

var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy re-runs an operation while it fails with a retryable error, with no
// backoff between attempts. fn must re-read any state it depends on.
type Policy struct {
	MaxAttempts int
	Retryable   func(error) bool
}

func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Retryable: store.IsRetryable}
}

// Do calls fn until it succeeds, fails with a non-retryable error, the context
// ends, or MaxAttempts is reached. attempt starts at 1.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = store.IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		zap.L().Debug("Retrying after conflict",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(lastErr))
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
}
