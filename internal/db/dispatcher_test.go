package db

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
)

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	gets    atomic.Int32
	failAll error
	block   chan struct{}
}

func newFakeStore() *fakeStore { return &fakeStore{docs: map[string][]byte{}} }

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close()                     {}
func (s *fakeStore) WaitForReady(context.Context, time.Duration) error {
	return nil
}
func (s *fakeStore) EnsureIndex(context.Context, *IndexDefinition) error { return nil }
func (s *fakeStore) DropIndex(context.Context, string) error             { return nil }

func (s *fakeStore) Get(_ context.Context, index, id string) (*GetResponse, error) {
	s.gets.Add(1)
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.docs[id]
	return &GetResponse{Index: index, ID: id, Found: ok, Source: src}, nil
}

func (s *fakeStore) Index(_ context.Context, req *IndexRequest) (*IndexResponse, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[req.ID] = req.Source
	return &IndexResponse{Index: req.Index, ID: req.ID, Version: 1, Result: ResultCreated}, nil
}

func (s *fakeStore) Bulk(context.Context, *BulkRequest) (*BulkResponse, error) {
	return &BulkResponse{}, nil
}

func (s *fakeStore) Search(_ context.Context, req *SearchRequest) (*SearchResponse, error) {
	return &SearchResponse{Total: 1, Hits: []Hit{{ID: req.Query.Term}}}, nil
}

type multiStore struct{ *fakeStore }

func (s multiStore) MultiSearch(ctx context.Context, reqs []*SearchRequest) ([]MultiSearchItem, error) {
	out := make([]MultiSearchItem, len(reqs))
	for i, r := range reqs {
		resp, err := s.Search(ctx, r)
		out[i] = MultiSearchItem{Response: resp, Err: err}
	}
	return out, nil
}

func TestDispatcherRoundTrip(t *testing.T) {
	d := NewDispatcher(newFakeStore(), 2, 4, zap.NewNop())
	defer d.Close()
	ctx := context.Background()

	idx := async.NewFuture[*IndexResponse]()
	d.IndexAsync(ctx, &IndexRequest{Index: "personne", ID: "a", Source: []byte(`{}`)}, idx)
	if resp, err := idx.Await(ctx); err != nil || resp.Result != ResultCreated {
		t.Fatalf("IndexAsync = %+v, %v", resp, err)
	}

	get := async.NewFuture[*GetResponse]()
	d.GetAsync(ctx, "personne", "a", get)
	resp, err := get.Await(ctx)
	if err != nil || !resp.Found || string(resp.Source) != `{}` {
		t.Fatalf("GetAsync = %+v, %v", resp, err)
	}

	missing := async.NewFuture[*GetResponse]()
	d.GetAsync(ctx, "personne", "zzz", missing)
	if resp, err := missing.Await(ctx); err != nil || resp.Found {
		t.Fatalf("GetAsync(missing) = %+v, %v", resp, err)
	}
}

func TestDispatcherPropagatesFailure(t *testing.T) {
	store := newFakeStore()
	store.failAll = errors.New("cluster red")
	d := NewDispatcher(store, 1, 0, zap.NewNop())
	defer d.Close()

	f := async.NewFuture[*IndexResponse]()
	d.IndexAsync(context.Background(), &IndexRequest{ID: "a"}, f)
	if _, err := f.Await(context.Background()); !errors.Is(err, store.failAll) {
		t.Fatalf("err = %v, want %v", err, store.failAll)
	}
}

func TestDispatcherMultiSearch(t *testing.T) {
	plain := NewDispatcher(newFakeStore(), 1, 0, zap.NewNop())
	defer plain.Close()
	if plain.SupportsMultiSearch() {
		t.Fatal("plain store should not support multi-search")
	}
	f := async.NewFuture[[]MultiSearchItem]()
	plain.MultiSearchAsync(context.Background(), nil, f)
	if _, err := f.Await(context.Background()); !errors.Is(err, ErrMultiSearchUnsupported) {
		t.Fatalf("err = %v, want ErrMultiSearchUnsupported", err)
	}

	multi := NewDispatcher(multiStore{newFakeStore()}, 1, 0, zap.NewNop())
	defer multi.Close()
	if !multi.SupportsMultiSearch() {
		t.Fatal("multi store should support multi-search")
	}
	g := async.NewFuture[[]MultiSearchItem]()
	reqs := []*SearchRequest{{Index: "personne"}, {Index: "personne"}}
	reqs[0].Query.Term = "w"
	reqs[1].Query.Term = "f"
	multi.MultiSearchAsync(context.Background(), reqs, g)
	items, err := g.Await(context.Background())
	if err != nil || len(items) != 2 || items[1].Response.Hits[0].ID != "f" {
		t.Fatalf("MultiSearchAsync = %+v, %v", items, err)
	}
}

func TestDispatcherClosed(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	d := NewDispatcher(store, 1, 1, zap.NewNop())

	first := async.NewFuture[*GetResponse]()
	d.GetAsync(context.Background(), "personne", "a", first)

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	close(store.block)
	<-done

	if _, err := first.Await(context.Background()); err != nil {
		t.Fatalf("queued call failed: %v", err)
	}

	late := async.NewFuture[*GetResponse]()
	d.GetAsync(context.Background(), "personne", "b", late)
	_, err := late.Await(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Errorf("err = %v, want it classified as ErrBackendUnavailable", err)
	}
}

func TestDispatcherContextDoneBeforeQueueing(t *testing.T) {
	store := newFakeStore()
	d := NewDispatcher(store, 1, 1, zap.NewNop())
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := async.NewFuture[*GetResponse]()
	d.GetAsync(ctx, "personne", "a", f)
	if _, err := f.Await(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
	if n := store.gets.Load(); n != 0 {
		t.Errorf("store called %d times, want 0", n)
	}
}

func TestDispatcherQueueFullFailsFast(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	d := NewDispatcher(store, 1, 1, zap.NewNop())
	defer d.Close()
	defer close(store.block)

	busy := async.NewFuture[*GetResponse]()
	d.GetAsync(context.Background(), "personne", "a", busy)
	for store.gets.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	queued := async.NewFuture[*GetResponse]()
	d.GetAsync(context.Background(), "personne", "b", queued)

	// The worker is busy and the queue holds one call: the next one must not wait.
	full := async.NewFuture[*GetResponse]()
	returned := make(chan struct{})
	go func() {
		d.GetAsync(context.Background(), "personne", "c", full)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("GetAsync blocked on a full queue")
	}

	_, err := full.Await(context.Background())
	if !errors.Is(err, ErrQueueFull) || !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrQueueFull classified as ErrBackendUnavailable", err)
	}
}

func TestDispatcherResubmitFromCallback(t *testing.T) {
	d := NewDispatcher(newFakeStore(), 1, 1, zap.NewNop())
	defer d.Close()

	// Every callback runs on the single worker and submits again while the queue is
	// saturated by other callers; all chains must still terminate.
	const callers = 64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			first := async.NewFuture[*SearchResponse]()
			second := async.NewFuture[*SearchResponse]()
			first.Subscribe(func(_ *SearchResponse, err error) {
				if err != nil {
					second.OnFailure(err)
					return
				}
				d.SearchAsync(context.Background(), &SearchRequest{Index: "personne"}, second)
			})
			d.SearchAsync(context.Background(), &SearchRequest{Index: "personne"}, first)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := second.Await(ctx); err != nil && !errors.Is(err, domain.ErrBackendUnavailable) {
				t.Errorf("caller %d: err = %v", i, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("chained submissions did not terminate")
	}
}
