package util

import (
	"sync/atomic"
	"testing"

	"github.com/hailstorm-project/hailstorm/internal/hscontext"
)

func TestPoolEachRunsAllTasks(t *testing.T) {
	p := NewPool(3)
	var count int32
	err := p.Each(hscontext.Background(), 10, func(ctx *hscontext.Context, i int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if count != 10 {
		t.Fatalf("count = %d, want 10", count)
	}
}

func TestPoolEachPropagatesFirstError(t *testing.T) {
	p := NewPool(2)
	sentinel := &sentinelErr{}
	err := p.Each(hscontext.Background(), 5, func(ctx *hscontext.Context, i int) error {
		if i == 2 {
			return sentinel
		}
		return nil
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestNewPoolDefaultsNonPositiveSize(t *testing.T) {
	p := NewPool(0)
	if p.size != DefaultPoolSize {
		t.Fatalf("size = %d, want %d", p.size, DefaultPoolSize)
	}
}

type sentinelErr struct{}

func (*sentinelErr) Error() string { return "sentinel" }
