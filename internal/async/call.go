package async

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrAlreadyCompleted is reported when a backend signals a call more than once.
var ErrAlreadyCompleted = errors.New("async: call already completed")

// Submit issues a callback-style backend call.
type Submit[T any] func(ctx context.Context, l Listener[T])

// Call is a deferred, not yet subscribed operation. Invoking it starts the work.
type Call[T any] func(ctx context.Context, l Listener[T])

// Middleware decorates a Call, typically to observe its lifecycle.
type Middleware[T any] func(next Call[T]) Call[T]

// FromCallback adapts submit into a Call. Only the first terminal signal reaches the
// listener; duplicates are dropped and passed to onViolation when set. The backend
// receives a context that is never cancelled by the consumer.
func FromCallback[T any](submit Submit[T], onViolation func(error)) Call[T] {
	return func(ctx context.Context, l Listener[T]) {
		submit(context.WithoutCancel(ctx), &onceListener[T]{next: l, onViolation: onViolation})
	}
}

// Chain applies mws to call in order; the first middleware is the innermost.
func Chain[T any](call Call[T], mws ...Middleware[T]) Call[T] {
	for _, mw := range mws {
		call = mw(call)
	}
	return call
}

// Start subscribes to call and returns the future of its outcome. Cancelling ctx
// cancels the future, not the backend call.
func Start[T any](ctx context.Context, call Call[T]) *Future[T] {
	ctx, cancel := context.WithCancelCause(ctx)
	f := newFuture[T](func() { cancel(nil) })
	stop := context.AfterFunc(ctx, func() { f.OnFailure(context.Cause(ctx)) })
	f.Subscribe(func(T, error) { stop() })
	call(ctx, f)
	return f
}

type onceListener[T any] struct {
	done        atomic.Bool
	next        Listener[T]
	onViolation func(error)
}

func (o *onceListener[T]) OnResponse(v T) {
	if !o.done.CompareAndSwap(false, true) {
		o.violation()
		return
	}
	o.next.OnResponse(v)
}

func (o *onceListener[T]) OnFailure(err error) {
	if !o.done.CompareAndSwap(false, true) {
		o.violation()
		return
	}
	o.next.OnFailure(err)
}

func (o *onceListener[T]) violation() {
	if o.onViolation != nil {
		o.onViolation(ErrAlreadyCompleted)
	}
}
