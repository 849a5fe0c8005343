package util

import (
	"errors"
	"testing"
	"time"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	ctx := hscontext.Background()
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	err := Retry(ctx, policy, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := hscontext.Background()
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	err := Retry(ctx, policy, func() error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryRespectsRetryablePredicate(t *testing.T) {
	ctx := hscontext.Background()
	fatalErr := errors.New("fatal")
	attempts := 0
	policy := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable:   func(err error) bool { return err != fatalErr },
	}

	err := Retry(ctx, policy, func() error {
		attempts++
		return fatalErr
	})
	if err != fatalErr {
		t.Fatalf("expected fatal error to stop retries, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (non-retryable error should stop immediately)", attempts)
	}
}
