// Package hscontext extends context.Context with a structured logger so that
// every command in the orchestration engine carries both cancellation and
// logging context through a single value, instead of threading a logger
// separately or relying on globals.
package hscontext

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Context bundles a standard context.Context with a contextual logger.
type Context struct {
	context.Context
	Log zerolog.Logger
}

// Background returns an empty Context with a disabled (no-op) logger,
// analogous to context.Background().
func Background() *Context {
	return &Context{
		Context: context.Background(),
		Log:     zerolog.Nop(),
	}
}

// New wraps an existing context.Context and logger into a Context.
func New(ctx context.Context, log zerolog.Logger) *Context {
	return &Context{Context: ctx, Log: log}
}

// WithCancel returns a copy of parent with a new Done channel.
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithTimeout returns a copy of parent whose Done channel closes after timeout.
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithField returns a copy of parent with the key-value pair added to the logger.
func WithField(parent *Context, key string, value interface{}) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.With().Interface(key, value).Logger()}
}

// WithFields returns a copy of parent with all key-value pairs added to the logger.
func WithFields(parent *Context, fields map[string]interface{}) *Context {
	ctxLogger := parent.Log.With()
	for k, v := range fields {
		ctxLogger = ctxLogger.Interface(k, v)
	}
	return &Context{Context: parent.Context, Log: ctxLogger.Logger()}
}

// ErrGroup returns a new errgroup.Group and an associated Context derived from ctx,
// analogous to errgroup.WithContext(ctx).
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goCtx := errgroup.WithContext(ctx.Context)
	return group, &Context{Context: goCtx, Log: ctx.Log}
}
