package util

import (
	"time"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/hserrors"
)

// PollUntil polls predicate every interval until it returns true, the
// deadline given by timeout elapses, or ctx is cancelled. label identifies
// the wait in the resulting TimeoutException.
func PollUntil(ctx *hscontext.Context, label string, timeout, interval time.Duration, predicate func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := predicate()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &hserrors.TimeoutException{Label: label, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return &hserrors.TimeoutException{Label: label, Timeout: timeout}
			}
		}
	}
}
