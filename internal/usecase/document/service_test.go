package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
	bstore "github.com/kailas-cloud/recherche/internal/db/bleve"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
	"github.com/kailas-cloud/recherche/internal/metrics"
)

// --- Mocks ---

type mockClient struct {
	mu        sync.Mutex
	getResp   *db.GetResponse
	indexErr  error
	bulkResp  *db.BulkResponse
	bulkErr   error
	lastBulk  *db.BulkRequest
	hold      chan struct{}
	indexReqs int
}

func (m *mockClient) GetAsync(_ context.Context, _, _ string, l async.Listener[*db.GetResponse]) {
	l.OnResponse(m.getResp)
}

func (m *mockClient) IndexAsync(_ context.Context, req *db.IndexRequest, l async.Listener[*db.IndexResponse]) {
	m.mu.Lock()
	m.indexReqs++
	m.mu.Unlock()
	go func() {
		if m.hold != nil {
			<-m.hold
		}
		if m.indexErr != nil {
			l.OnFailure(m.indexErr)
			return
		}
		l.OnResponse(&db.IndexResponse{Index: req.Index, ID: req.ID, Version: 1, Result: db.ResultCreated})
	}()
}

func (m *mockClient) BulkAsync(_ context.Context, req *db.BulkRequest, l async.Listener[*db.BulkResponse]) {
	m.lastBulk = req
	if m.bulkErr != nil {
		l.OnFailure(m.bulkErr)
		return
	}
	l.OnResponse(m.bulkResp)
}

func newService(c Client) (*Service, *metrics.Adapter) {
	m := metrics.NewAdapter(prometheus.NewRegistry())
	return New(c, "personne", m, zap.NewNop()), m
}

func testPerson(key string) person.Person {
	return person.Person{Username: key, FirstName: "Anna", LastName: "Schmidt"}
}

// --- Tests ---

func TestGet_NotFound(t *testing.T) {
	svc, _ := newService(&mockClient{getResp: &db.GetResponse{Found: false}})
	p, err := svc.Get(context.Background(), "nobody").Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}

func TestGet_Found(t *testing.T) {
	src, _ := testPerson("aschmidt").Encode()
	svc, _ := newService(&mockClient{getResp: &db.GetResponse{Found: true, Source: src}})
	p, err := svc.Get(context.Background(), "aschmidt").Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || *p != testPerson("aschmidt") {
		t.Errorf("Get = %+v", p)
	}
}

func TestGet_CorruptSource(t *testing.T) {
	svc, _ := newService(&mockClient{getResp: &db.GetResponse{Found: true, Source: []byte(`{`)}})
	if _, err := svc.Get(context.Background(), "x").Await(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIndex_SuccessRecordsMetrics(t *testing.T) {
	svc, m := newService(&mockClient{})
	out, err := svc.Index(context.Background(), testPerson("aschmidt")).Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "aschmidt" || out.Version != 1 || out.Result != domain.ResultCreated {
		t.Errorf("outcome = %+v", out)
	}
	if got := testutil.ToFloat64(m.IndexSuccess()); got != 1 {
		t.Errorf("index_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IndexInFlight); got != 0 {
		t.Errorf("index_in_flight = %v, want 0", got)
	}
	if n := testutil.CollectAndCount(m.IndexDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestIndex_FailurePropagates(t *testing.T) {
	boom := errors.New("mapping rejected")
	svc, m := newService(&mockClient{indexErr: boom})
	_, err := svc.Index(context.Background(), testPerson("x")).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if got := testutil.ToFloat64(m.IndexFailure()); got != 1 {
		t.Errorf("index_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IndexInFlight); got != 0 {
		t.Errorf("index_in_flight = %v, want 0", got)
	}
}

func TestIndex_InFlightTracksPendingCalls(t *testing.T) {
	c := &mockClient{hold: make(chan struct{})}
	svc, m := newService(c)

	var futures []*async.Future[domain.IndexOutcome]
	for i := 0; i < 3; i++ {
		futures = append(futures, svc.Index(context.Background(), testPerson("p"+string(rune('a'+i)))))
	}
	if got := testutil.ToFloat64(m.IndexInFlight); got != 3 {
		t.Fatalf("index_in_flight = %v, want 3", got)
	}

	// Cancelling one consumer releases its slot; the backend call still runs.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := futures[0].Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await = %v", err)
	}
	close(c.hold)
	for _, f := range futures[1:] {
		if _, err := f.Await(context.Background()); err != nil {
			t.Fatalf("Await: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for testutil.ToFloat64(m.IndexInFlight) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := testutil.ToFloat64(m.IndexInFlight); got != 0 {
		t.Errorf("index_in_flight = %v, want 0", got)
	}
}

func TestBulkIndex_PartialFailure(t *testing.T) {
	c := &mockClient{bulkResp: &db.BulkResponse{Items: []db.BulkItemResponse{
		{ID: "a", Version: 1, Result: db.ResultCreated},
		{ID: "b", Err: errors.New("rejected")},
	}}}
	svc, _ := newService(c)

	out, err := svc.BulkIndex(context.Background(), []person.Person{testPerson("a"), testPerson("b")}).
		Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Succeeded() != 1 || out.Failed() != 1 {
		t.Fatalf("succeeded=%d failed=%d", out.Succeeded(), out.Failed())
	}
	if out.Items[0].Status() != batch.StatusOK || out.Items[0].Version() != 1 {
		t.Errorf("item[0] = %+v", out.Items[0])
	}
	if out.Items[1].ID() != "b" || out.Items[1].Err() == nil {
		t.Errorf("item[1] = %+v", out.Items[1])
	}
	if len(c.lastBulk.Items) != 2 {
		t.Errorf("bulk request items = %d, want 2", len(c.lastBulk.Items))
	}
}

func TestBulkIndex_RoundTripFailure(t *testing.T) {
	boom := errors.New("connection reset")
	svc, _ := newService(&mockClient{bulkErr: boom})
	_, err := svc.BulkIndex(context.Background(), []person.Person{testPerson("a")}).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestBulkIndex_Empty(t *testing.T) {
	c := &mockClient{}
	svc, _ := newService(c)
	out, err := svc.BulkIndex(context.Background(), nil).Await(context.Background())
	if err != nil || len(out.Items) != 0 {
		t.Fatalf("BulkIndex(nil) = %+v, %v", out, err)
	}
	if c.lastBulk != nil {
		t.Error("backend called for empty bulk")
	}
}

func TestIndexThenGetIsIdempotent(t *testing.T) {
	store := bstore.NewStore(bstore.Config{})
	defer store.Close()
	if err := store.EnsureIndex(context.Background(), db.PersonIndex("personne", "", query.DefaultFields())); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	d := db.NewDispatcher(store, 2, 8, zap.NewNop())
	defer d.Close()
	svc, _ := newService(d)
	ctx := context.Background()

	p := testPerson("aschmidt4821337")
	p.Address = person.Address{Street: "Rue du Lac", Number: "12", PostalCode: "1201", Locality: "Genève"}
	p.Employer = person.Employer{Name: "Helvetia SA", IDE: "CHE-123.456.789"}

	first, err := svc.Index(ctx, p).Await(ctx)
	if err != nil {
		t.Fatalf("first Index: %v", err)
	}
	second, err := svc.Index(ctx, p).Await(ctx)
	if err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if first.Result != domain.ResultCreated || second.Result != domain.ResultUpdated {
		t.Errorf("results = %s, %s", first.Result, second.Result)
	}

	got, err := svc.Get(ctx, p.Key()).Await(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || *got != p {
		t.Errorf("Get = %+v, want %+v", got, p)
	}
}
