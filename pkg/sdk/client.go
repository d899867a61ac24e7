package recherche

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
	dbBleve "github.com/kailas-cloud/recherche/internal/db/bleve"
	dbRedis "github.com/kailas-cloud/recherche/internal/db/redis"
	"github.com/kailas-cloud/recherche/internal/domain"
	dombatch "github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
	"github.com/kailas-cloud/recherche/internal/generator"
	"github.com/kailas-cloud/recherche/internal/metrics"
	documentuc "github.com/kailas-cloud/recherche/internal/usecase/document"
	healthuc "github.com/kailas-cloud/recherche/internal/usecase/health"
	"github.com/kailas-cloud/recherche/internal/usecase/load"
	searchuc "github.com/kailas-cloud/recherche/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultIndex            = "personne"
	defaultKeyPrefix        = "recherche:"
	defaultWorkers          = 16
	defaultQueue            = 1024
	defaultSearchSize       = 100
	maxBulkSize             = 1000
)

// Internal interfaces, swapped in tests.
type documentUseCase interface {
	Get(ctx context.Context, key string) *async.Future[*Person]
	Index(ctx context.Context, p Person) *async.Future[domain.IndexOutcome]
	BulkIndex(ctx context.Context, ps []Person) *async.Future[domain.BulkOutcome]
}

type searchUseCase interface {
	Search(ctx context.Context, m Mode, term string) *async.Future[[]Person]
}

type loadUseCase interface {
	Run(ctx context.Context, cfg load.Config) (load.Report, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the recherche SDK entry point.
type Client struct {
	store      db.Store
	dispatcher *db.Dispatcher
	documents  documentUseCase
	search     searchUseCase
	ramper     loadUseCase
	health     healthUseCase
	generator  *generator.Generator
	obs        *observer
}

// New creates a Client, waits for the backend and makes sure the index exists.
// The provided context bounds the startup checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		index:     defaultIndex,
		keyPrefix: defaultKeyPrefix,
		workers:   defaultWorkers,
		queue:     defaultQueue,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("recherche: backend required (use WithRedis or WithBleve)")
	}
	if cfg.maxDropRatio < 0 || cfg.maxDropRatio > 1 {
		return nil, fmt.Errorf("recherche: max drop ratio %v out of [0,1]", cfg.maxDropRatio)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("recherche: backend not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("recherche: create redis store: %w", err)
		}
		return s, nil
	case "bleve":
		return dbBleve.NewStore(dbBleve.Config{Dir: cfg.dir}), nil
	default:
		return nil, fmt.Errorf("recherche: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	engine := query.NewEngine(query.DefaultFields(), query.DefaultPolicy(), defaultSearchSize)
	if err := store.EnsureIndex(ctx, db.PersonIndex(cfg.index, "", engine.Fields())); err != nil {
		return nil, fmt.Errorf("recherche: ensure index %s: %w", cfg.index, err)
	}

	// Adapter instruments stay on a private registry: SDK callers only see sdk_* series.
	reg := prometheus.NewRegistry()
	adapter := metrics.NewAdapter(reg)
	logger := zap.NewNop()

	dispatcher := db.NewDispatcher(store, cfg.workers, cfg.queue, logger)

	var searchOpts []searchuc.Option
	if cfg.maxDropRatio > 0 {
		searchOpts = append(searchOpts, searchuc.WithMaxDropRatio(cfg.maxDropRatio))
	}
	var genOpts []generator.Option
	if cfg.seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(cfg.seed))
	}

	documents := documentuc.New(dispatcher, cfg.index, adapter, logger)
	gen := generator.New(cfg.genWorkers, genOpts...)

	return &Client{
		store:      store,
		dispatcher: dispatcher,
		documents:  documents,
		search:     searchuc.New(dispatcher, engine, cfg.index, adapter, logger, searchOpts...),
		ramper:     load.New(documents, gen, metrics.NewLoad(reg), logger),
		health:     healthuc.New(store, nil),
		generator:  gen,
		obs:        obs,
	}, nil
}

// Close drains pending backend calls and releases the backend.
func (c *Client) Close() {
	if c.dispatcher != nil {
		c.dispatcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Get returns the person stored under username, or ErrNotFound.
func (c *Client) Get(ctx context.Context, username string) (p Person, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err, slog.String("username", username)) }()

	found, err := c.documents.Get(ctx, username).Await(ctx)
	if err != nil {
		return Person{}, fmt.Errorf("get %s: %w", username, err)
	}
	if found == nil {
		return Person{}, fmt.Errorf("get %s: %w", username, ErrNotFound)
	}
	return *found, nil
}

// Index validates p and upserts it under its username.
func (c *Client) Index(ctx context.Context, p Person) (out IndexOutcome, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err, slog.String("username", p.Username)) }()

	if err = p.Validate(); err != nil {
		return IndexOutcome{}, err
	}
	out, err = c.documents.Index(ctx, p).Await(ctx)
	if err != nil {
		return IndexOutcome{}, fmt.Errorf("index %s: %w", p.Username, err)
	}
	return out, nil
}

// BulkIndex writes ps in one backend round-trip. Invalid or rejected documents are
// reported per item; the error is reserved for a failed round-trip.
func (c *Client) BulkIndex(ctx context.Context, ps []Person) (res BulkResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("bulk_index", start, err, slog.Int("items", len(ps))) }()

	if len(ps) == 0 {
		return BulkResult{}, nil
	}
	if len(ps) > maxBulkSize {
		return BulkResult{}, fmt.Errorf("%w: bulk size %d exceeds maximum %d",
			ErrInvalidArgument, len(ps), maxBulkSize)
	}

	results := make([]dombatch.Result, len(ps))
	valid := make([]Person, 0, len(ps))
	slots := make([]int, 0, len(ps))
	for i, p := range ps {
		if verr := p.Validate(); verr != nil {
			results[i] = dombatch.NewError(p.Key(), verr)
			continue
		}
		valid = append(valid, p)
		slots = append(slots, i)
	}

	out := domain.BulkOutcome{}
	if len(valid) > 0 {
		out, err = c.documents.BulkIndex(ctx, valid).Await(ctx)
		if err != nil {
			return BulkResult{}, fmt.Errorf("bulk index: %w", err)
		}
	}
	for j, r := range out.Items {
		results[slots[j]] = r
	}
	out.Items = results
	return bulkResult(out), nil
}

// Search runs term through the strategy m. The result is never nil.
func (c *Client) Search(ctx context.Context, m Mode, term string) (hits []Person, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("search", start, err, slog.String("mode", m.String()), slog.Int("hits", len(hits)))
	}()

	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: empty search term", ErrInvalidArgument)
	}
	hits, err = c.search.Search(ctx, m, term).Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m, err)
	}
	return hits, nil
}

// Generate returns n synthetic people with distinct usernames.
func (c *Client) Generate(ctx context.Context, n int) (ps []Person, err error) {
	start := time.Now()
	defer func() { c.obs.observe("generate", start, err, slog.Int("count", n)) }()

	if n < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrInvalidArgument, n)
	}
	return c.generator.Take(ctx, n)
}

// LoadTest indexes generated people at increasing concurrency and blocks until the
// ramp ends. Cancelling ctx drains in-flight writes and returns the partial report.
func (c *Client) LoadTest(ctx context.Context, cfg LoadConfig) (rep LoadReport, err error) {
	start := time.Now()
	defer func() {
		completed, failed := rep.Completions()
		c.obs.observe("load_test", start, err, slog.Int("completed", completed), slog.Int("failed", failed))
	}()

	return c.ramper.Run(ctx, cfg)
}
