// Package async turns callback-style backend calls into composable one-shot futures.
package async

import (
	"context"
	"sync"
)

// Listener receives exactly one terminal signal of a backend call.
type Listener[T any] interface {
	OnResponse(value T)
	OnFailure(err error)
}

// Future is a one-shot result cell. The first completion wins; later ones are ignored.
type Future[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	value  T
	err    error
	subs   []func(T, error)
	cancel func()
}

// NewFuture returns an incomplete future. It is also a Listener, so it can be handed
// straight to a callback-style call.
func NewFuture[T any]() *Future[T] { return newFuture[T](nil) }

func newFuture[T any](cancel func()) *Future[T] {
	return &Future[T]{done: make(chan struct{}), cancel: cancel}
}

// Completed returns a future already holding v.
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.OnResponse(v)
	return f
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.OnFailure(err)
	return f
}

// OnResponse completes the future with v.
func (f *Future[T]) OnResponse(v T) { f.complete(v, nil) }

// OnFailure completes the future with err.
func (f *Future[T]) OnFailure(err error) {
	var zero T
	f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.value, f.err = v, err
	subs := f.subs
	f.subs = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(v, err)
	}
	if f.cancel != nil {
		f.cancel()
	}
	return true
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result returns the outcome. It must only be called after Done is closed.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Await blocks until completion or until ctx ends. An ended ctx cancels the future;
// the backend call itself keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		f.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}

// Subscribe registers fn to run once with the outcome. If the future is already
// complete fn runs immediately on the caller's goroutine, otherwise on the completing one.
func (f *Future[T]) Subscribe(fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	default:
	}
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}

// Cancel completes the future with context.Canceled. It reports whether this call
// completed the future.
func (f *Future[T]) Cancel() bool {
	var zero T
	return f.complete(zero, context.Canceled)
}

// Map derives a future by applying fn to a successful value. Cancelling the derived
// future cancels f.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := newFuture[U](func() { f.Cancel() })
	f.Subscribe(func(v T, err error) {
		if err != nil {
			out.OnFailure(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.OnFailure(err)
			return
		}
		out.OnResponse(u)
	})
	return out
}
