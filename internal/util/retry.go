// Package util provides the small set of combinators shared by every
// component that talks to a remote host or cloud API: retry with backoff,
// bounded-deadline polling, a bounded worker pool for fan-out, and batching.
package util

import (
	"time"

	retrygo "github.com/avast/retry-go"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
)

// RetryPolicy is data, not control flow: max attempts and the exponential backoff's base/cap.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable classifies an error as worth retrying. Nil means "retry any error".
	Retryable func(error) bool
}

// DefaultHostRetryPolicy is the default for remote-executor calls: 5
// tries, 1s base, 30s cap.
func DefaultHostRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Retry runs op under policy, backing off exponentially between attempts and
// stopping early if policy.Retryable rejects an error.
func Retry(ctx *hscontext.Context, policy RetryPolicy, op func() error) error {
	opts := []retrygo.Option{
		retrygo.Attempts(policy.MaxAttempts),
		retrygo.Delay(policy.BaseDelay),
		retrygo.MaxDelay(policy.MaxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.Context(ctx.Context),
		retrygo.LastErrorOnly(true),
		retrygo.OnRetry(func(n uint, err error) {
			ctx.Log.Warn().Uint("attempt", n+1).Err(err).Msg("retrying after transient failure")
		}),
	}
	if policy.Retryable != nil {
		opts = append(opts, retrygo.RetryIf(policy.Retryable))
	}
	return retrygo.Do(op, opts...)
}
