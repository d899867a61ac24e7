package async

import (
	"context"
	"sync"
	"time"
)

// Observer records a duration in seconds. prometheus.Observer satisfies it.
type Observer interface {
	Observe(float64)
}

// Counter is a monotonic counter. prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// Gauge tracks a level. prometheus.Gauge satisfies it.
type Gauge interface {
	Inc()
	Dec()
}

// Timed observes the time from subscription to success.
func Timed[T any](o Observer) Middleware[T] {
	return func(next Call[T]) Call[T] {
		return func(ctx context.Context, l Listener[T]) {
			start := time.Now()
			next(ctx, &tap[T]{
				next:       l,
				onResponse: func() { o.Observe(time.Since(start).Seconds()) },
			})
		}
	}
}

// Counted increments success or failure once per terminal signal.
func Counted[T any](success, failure Counter) Middleware[T] {
	return func(next Call[T]) Call[T] {
		return func(ctx context.Context, l Listener[T]) {
			next(ctx, &tap[T]{
				next:       l,
				onResponse: success.Inc,
				onFailure:  func(error) { failure.Inc() },
			})
		}
	}
}

// InFlight raises g at subscription and lowers it exactly once on success, failure
// or cancellation of the subscription context.
func InFlight[T any](g Gauge) Middleware[T] {
	return func(next Call[T]) Call[T] {
		return func(ctx context.Context, l Listener[T]) {
			g.Inc()
			var once sync.Once
			release := func() { once.Do(g.Dec) }
			stop := context.AfterFunc(ctx, release)
			done := func() {
				stop()
				release()
			}
			next(ctx, &tap[T]{
				next:       l,
				onResponse: done,
				onFailure:  func(error) { done() },
			})
		}
	}
}

// OnFailure runs fn for a failed call, before the outcome propagates.
func OnFailure[T any](fn func(error)) Middleware[T] {
	return func(next Call[T]) Call[T] {
		return func(ctx context.Context, l Listener[T]) {
			next(ctx, &tap[T]{next: l, onFailure: fn})
		}
	}
}

type tap[T any] struct {
	next       Listener[T]
	onResponse func()
	onFailure  func(error)
}

func (t *tap[T]) OnResponse(v T) {
	if t.onResponse != nil {
		t.onResponse()
	}
	t.next.OnResponse(v)
}

func (t *tap[T]) OnFailure(err error) {
	if t.onFailure != nil {
		t.onFailure(err)
	}
	t.next.OnFailure(err)
}
