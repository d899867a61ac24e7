package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
)

// Dispatcher implements Client over a synchronous Store. Calls are queued and run by a
// fixed pool of I/O goroutines, which also deliver the listener callbacks. Submission
// never blocks: a call arriving at a full queue fails with ErrQueueFull.
type Dispatcher struct {
	store  Store
	multi  MultiSearcher
	tasks  chan func()
	logger *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers I/O goroutines over store with a queue of the given depth.
// A queue shallower than the pool is raised to the pool size.
func NewDispatcher(store Store, workers, queue int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queue < workers {
		queue = workers
	}
	d := &Dispatcher{
		store:  store,
		tasks:  make(chan func(), queue),
		logger: logger,
	}
	if ms, ok := store.(MultiSearcher); ok {
		d.multi = ms
	}
	d.wg.Add(workers)
	for range workers {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.tasks {
		task()
	}
}

// dispatch queues task without waiting. fail is called instead when the dispatcher is
// closed, ctx is already done or the queue is full. Callbacks run on the I/O goroutines
// and may submit again, so this must never block.
func (d *Dispatcher) dispatch(ctx context.Context, task func(), fail func(error)) {
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		fail(classify(ErrClosed))
		return
	}
	select {
	case d.tasks <- task:
		d.mu.RUnlock()
	default:
		d.mu.RUnlock()
		d.logger.Debug("dispatch queue full", zap.Int("depth", cap(d.tasks)))
		fail(classify(ErrQueueFull))
	}
}

func run[T any](d *Dispatcher, ctx context.Context, l async.Listener[T], fn func(context.Context) (T, error)) {
	d.dispatch(ctx, func() {
		v, err := fn(ctx)
		if err != nil {
			l.OnFailure(classify(err))
			return
		}
		l.OnResponse(v)
	}, l.OnFailure)
}

// classify marks connectivity failures as domain.ErrBackendUnavailable.
func classify(err error) error {
	var ne net.Error
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrQueueFull) || errors.As(err, &ne) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return err
}

// GetAsync reads one document.
func (d *Dispatcher) GetAsync(ctx context.Context, index, id string, l async.Listener[*GetResponse]) {
	run(d, ctx, l, func(ctx context.Context) (*GetResponse, error) {
		return d.store.Get(ctx, index, id)
	})
}

// IndexAsync upserts one document.
func (d *Dispatcher) IndexAsync(ctx context.Context, req *IndexRequest, l async.Listener[*IndexResponse]) {
	run(d, ctx, l, func(ctx context.Context) (*IndexResponse, error) {
		return d.store.Index(ctx, req)
	})
}

// BulkAsync upserts many documents.
func (d *Dispatcher) BulkAsync(ctx context.Context, req *BulkRequest, l async.Listener[*BulkResponse]) {
	run(d, ctx, l, func(ctx context.Context) (*BulkResponse, error) {
		return d.store.Bulk(ctx, req)
	})
}

// SearchAsync runs one query.
func (d *Dispatcher) SearchAsync(ctx context.Context, req *SearchRequest, l async.Listener[*SearchResponse]) {
	run(d, ctx, l, func(ctx context.Context) (*SearchResponse, error) {
		return d.store.Search(ctx, req)
	})
}

// MultiSearchAsync runs reqs in one round-trip. Fails with ErrMultiSearchUnsupported
// when the store cannot batch searches.
func (d *Dispatcher) MultiSearchAsync(ctx context.Context, reqs []*SearchRequest, l async.Listener[[]MultiSearchItem]) {
	if d.multi == nil {
		l.OnFailure(ErrMultiSearchUnsupported)
		return
	}
	run(d, ctx, l, func(ctx context.Context) ([]MultiSearchItem, error) {
		return d.multi.MultiSearch(ctx, reqs)
	})
}

// SupportsMultiSearch reports whether MultiSearchAsync is available.
func (d *Dispatcher) SupportsMultiSearch() bool { return d.multi != nil }

// Close stops accepting calls and waits for queued ones to finish. The store is not closed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Debug("dispatcher drained")
}
