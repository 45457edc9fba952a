package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"credit-ledger-go/internal/store"
)

func TestDo_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := Default().Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return fmt.Errorf("update failed - %w", store.ErrConcurrentModification)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Default().Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got: %v", err)
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Error("Non-retryable failures must not report exhaustion")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 4, Retryable: store.IsRetryable}
	err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return store.ErrConcurrentModification
	})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Expected exhaustion, got: %v", err)
	}
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Error("Expected the last error to stay wrapped")
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Default().Do(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return store.ErrConcurrentModification
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context canceled, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_ZeroValuePolicy(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return store.ErrConcurrentModification
	})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Expected exhaustion, got: %v", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("Expected %d calls, got %d", DefaultMaxAttempts, calls)
	}
}
