package recherche

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMemClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBleve(""), WithGenerator(2, 11)}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func samplePerson(username, last string) Person {
	return Person{
		Address: Address{
			Street: "Rue du Marché", Number: "12", PostalCode: "1204", Locality: "Genève",
		},
		FirstName: "Anna",
		LastName:  last,
		Email:     username + "@example.ch",
		Username:  username,
		Sex:       "female",
		NSS:       "756.1234.5678.90",
		Phone:     "+41 22 000 00 00",
		BirthDate: "1980-04-02",
		Employer:  Employer{Name: "Globaz", IDE: "CHE-123.456.789"},
	}
}

func TestNew_NoBackend(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no backend selected")
	}
}

func TestNew_BadDropRatio(t *testing.T) {
	_, err := New(context.Background(), WithBleve(""), WithMaxDropRatio(1.5))
	if err == nil {
		t.Fatal("expected error for drop ratio above 1")
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, err := createStore(cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}
	reg := prometheus.NewRegistry()
	logger := slog.Default()

	for _, o := range []Option{
		WithRedis("localhost:6379", "secret"),
		WithKeyPrefix("test:"),
		WithIndex("people"),
		WithDispatch(8, 64),
		WithGenerator(3, 42),
		WithMaxDropRatio(0.25),
		WithLogger(logger),
		WithPrometheus(reg),
	} {
		o.apply(cfg)
	}

	if cfg.driver != "redis" || len(cfg.addrs) != 1 || cfg.addrs[0] != "localhost:6379" {
		t.Errorf("redis = %q %v", cfg.driver, cfg.addrs)
	}
	if cfg.password != "secret" || cfg.keyPrefix != "test:" || cfg.index != "people" {
		t.Errorf("password/prefix/index = %q %q %q", cfg.password, cfg.keyPrefix, cfg.index)
	}
	if cfg.workers != 8 || cfg.queue != 64 {
		t.Errorf("dispatch = %d/%d, want 8/64", cfg.workers, cfg.queue)
	}
	if cfg.genWorkers != 3 || cfg.seed != 42 {
		t.Errorf("generator = %d/%d, want 3/42", cfg.genWorkers, cfg.seed)
	}
	if cfg.maxDropRatio != 0.25 {
		t.Errorf("maxDropRatio = %v, want 0.25", cfg.maxDropRatio)
	}
	if cfg.logger != logger || cfg.metricsReg != reg {
		t.Error("logger or registerer not set")
	}

	WithBleve("/tmp/idx").apply(cfg)
	if cfg.driver != "bleve" || cfg.dir != "/tmp/idx" {
		t.Errorf("bleve = %q %q", cfg.driver, cfg.dir)
	}
}

func TestIndexAndGet(t *testing.T) {
	c := newMemClient(t)
	ctx := context.Background()

	out, err := c.Index(ctx, samplePerson("aschmidt1234567", "Schmidt"))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if out.ID != "aschmidt1234567" || out.Version != 1 {
		t.Errorf("outcome = %+v", out)
	}

	p, err := c.Get(ctx, "aschmidt1234567")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.LastName != "Schmidt" || p.Employer.IDE != "CHE-123.456.789" {
		t.Errorf("got %+v", p)
	}

	_, err = c.Get(ctx, "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIndex_Invalid(t *testing.T) {
	c := newMemClient(t)
	p := samplePerson("x", "Schmidt")
	p.NSS = ""

	_, err := c.Index(context.Background(), p)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestBulkIndex(t *testing.T) {
	c := newMemClient(t)
	bad := samplePerson("bad", "Nobody")
	bad.Phone = ""

	res, err := c.BulkIndex(context.Background(), []Person{
		samplePerson("aschmidt1234567", "Schmidt"),
		bad,
		samplePerson("cdupont1234567", "Dupont"),
	})
	if err != nil {
		t.Fatalf("BulkIndex: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 2/1", res.Succeeded, res.Failed)
	}
	if res.Items[1].ID != "bad" || res.Items[1].Status != ItemError || !errors.Is(res.Items[1].Err, ErrInvalidArgument) {
		t.Errorf("item 1 = %+v", res.Items[1])
	}
	if res.Items[2].ID != "cdupont1234567" || res.Items[2].Status != ItemOK {
		t.Errorf("item 2 = %+v", res.Items[2])
	}

	empty, err := c.BulkIndex(context.Background(), nil)
	if err != nil || len(empty.Items) != 0 {
		t.Errorf("empty bulk = %+v, %v", empty, err)
	}
}

func TestBulkIndex_TooLarge(t *testing.T) {
	c := newMemClient(t)
	_, err := c.BulkIndex(context.Background(), make([]Person, maxBulkSize+1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSearch(t *testing.T) {
	c := newMemClient(t)
	ctx := context.Background()
	if _, err := c.BulkIndex(ctx, []Person{
		samplePerson("aschmidt1234567", "Schmidt"),
		samplePerson("bschmitt1234567", "Schmitt"),
		samplePerson("cdupont1234567", "Dupont"),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		mode Mode
		term string
		want int
	}{
		{Fuzzy, "Schmid", 2},
		{Wildcard, "Schmid", 1},
		{Composed, "Schmid", 2},
		{Composed, "Dupont", 1},
		{Composed, "Zzyzx", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.term, func(t *testing.T) {
			hits, err := c.Search(ctx, tt.mode, tt.term)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if hits == nil {
				t.Fatal("hits must not be nil")
			}
			if len(hits) != tt.want {
				t.Errorf("hits = %d, want %d (%+v)", len(hits), tt.want, hits)
			}
		})
	}
}

func TestSearch_Invalid(t *testing.T) {
	c := newMemClient(t)
	ctx := context.Background()

	if _, err := c.Search(ctx, Composed, "  "); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty term: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.Search(ctx, Mode("phonetic"), "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("unknown mode: err = %v, want ErrInvalidArgument", err)
	}
}

func TestGenerate(t *testing.T) {
	c := newMemClient(t)
	ps, err := c.Generate(context.Background(), 50)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(ps) != 50 {
		t.Fatalf("len = %d, want 50", len(ps))
	}
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", p.Username, err)
		}
		if seen[p.Username] {
			t.Errorf("duplicate username %s", p.Username)
		}
		seen[p.Username] = true
	}

	if _, err := c.Generate(context.Background(), -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestLoadTest(t *testing.T) {
	c := newMemClient(t)
	rep, err := c.LoadTest(context.Background(), LoadConfig{
		BatchSize: 20,
		Levels:    2,
		Step:      2,
		Window:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("LoadTest: %v", err)
	}
	if len(rep.Levels) != 2 {
		t.Fatalf("levels = %d, want 2", len(rep.Levels))
	}
	completed, failed := rep.Completions()
	if completed != 40 || failed != 0 {
		t.Errorf("completed/failed = %d/%d, want 40/0", completed, failed)
	}
}

func TestHealthAndPing(t *testing.T) {
	c := newMemClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if h := c.Health(ctx); h.Status != "ok" || h.Checks["database"] != "ok" {
		t.Errorf("health = %+v", h)
	}

	c.store.Close()
	if err := c.Ping(ctx); err == nil {
		t.Error("expected ping error on closed store")
	}
	if h := c.Health(ctx); h.Status != "error" {
		t.Errorf("status = %q, want error", h.Status)
	}
}

func TestObserverMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newMemClient(t, WithPrometheus(reg))
	ctx := context.Background()

	_, _ = c.Get(ctx, "nobody")
	_ = c.Ping(ctx)

	obs := c.obs.metrics.operations
	if got := testutil.ToFloat64(obs.WithLabelValues("get", statusNotFound)); got != 1 {
		t.Errorf("get not_found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.WithLabelValues("ping", statusOK)); got != 1 {
		t.Errorf("ping ok = %v, want 1", got)
	}

	// A second client on the same registry reuses the collectors.
	c2 := newMemClient(t, WithPrometheus(reg))
	if c2.obs.metrics.operations != c.obs.metrics.operations {
		t.Error("expected shared collector")
	}
}

func TestObserver_Nil(_ *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), errors.New("ignored"))
}
