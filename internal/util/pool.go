package util

import (
	"golang.org/x/sync/errgroup"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
)

// DefaultPoolSize bounds fan-out concurrency when the caller has no more
// specific limit configured.
const DefaultPoolSize = 50

// Pool bounds the concurrency of a fan-out operation (one task per
// cluster/agent/target) to at most `size` in-flight goroutines, and
// propagates the first error while letting already-started tasks finish
// (built on golang.org/x/sync/errgroup's own semantics; Pool generalizes
// ad hoc errgroup use at call sites into one reusable helper).
type Pool struct {
	size int
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{size: size}
}

// Each runs fn(i) for i in [0, n) with at most p.size concurrently, returning
// the first error encountered (if any). ctx cancellation stops launching new
// work; in-flight work is expected to observe cancellation cooperatively.
func (p *Pool) Each(ctx *hscontext.Context, n int, fn func(ctx *hscontext.Context, i int) error) error {
	eg, egCtx := hscontext.ErrGroup(ctx)
	return runBounded(eg, egCtx, p.size, n, fn)
}

func runBounded(eg *errgroup.Group, ctx *hscontext.Context, size, n int, fn func(ctx *hscontext.Context, i int) error) error {
	sem := make(chan struct{}, size)
	for i := 0; i < n; i++ {
		i := i
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return eg.Wait()
		}
		eg.Go(func() error {
			defer func() { <-sem }()
			return fn(ctx, i)
		})
	}
	return eg.Wait()
}
