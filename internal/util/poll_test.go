package util

import (
	"errors"
	"testing"
	"time"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
)

func TestPollUntilReturnsOnceTrue(t *testing.T) {
	ctx := hscontext.Background()
	calls := 0
	err := PollUntil(ctx, "ready", time.Second, time.Millisecond, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("PollUntil: %v", err)
	}
	if calls < 3 {
		t.Fatalf("predicate called %d times, want at least 3", calls)
	}
}

func TestPollUntilTimesOut(t *testing.T) {
	ctx := hscontext.Background()
	err := PollUntil(ctx, "never", 20*time.Millisecond, 5*time.Millisecond, func() (bool, error) {
		return false, nil
	})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var timeoutErr *hserrors.TimeoutException
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *hserrors.TimeoutException, got %T (%v)", err, err)
	}
	if timeoutErr.Label != "never" {
		t.Errorf("Label = %q, want %q", timeoutErr.Label, "never")
	}
}

func TestPollUntilPropagatesPredicateError(t *testing.T) {
	ctx := hscontext.Background()
	sentinel := &hserrors.TimeoutException{Label: "sentinel"}
	err := PollUntil(ctx, "x", time.Second, time.Millisecond, func() (bool, error) {
		return false, sentinel
	})
	if err != sentinel {
		t.Fatalf("expected predicate error to propagate unchanged, got %v", err)
	}
}

