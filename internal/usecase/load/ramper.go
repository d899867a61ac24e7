// Package load drives stepped-concurrency indexing runs and reports throughput per window.
package load

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/metrics"
)

// Defaults applied by Config.WithDefaults.
const (
	DefaultBatchSize = 5000
	DefaultLevels    = 10
	DefaultStep      = 10
	DefaultWindow    = time.Second
)

// Config describes one ramp: Levels levels of BatchSize documents each, level i
// capping in-flight submissions at max(1, i*Step).
type Config struct {
	BatchSize int
	Levels    int
	Step      int
	Window    time.Duration
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Levels == 0 {
		c.Levels = DefaultLevels
	}
	if c.Step == 0 {
		c.Step = DefaultStep
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Validate checks the ramp bounds.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidArgument)
	case c.Levels <= 0:
		return fmt.Errorf("%w: levels must be positive", domain.ErrInvalidArgument)
	case c.Step <= 0:
		return fmt.Errorf("%w: step must be positive", domain.ErrInvalidArgument)
	case c.Window <= 0:
		return fmt.Errorf("%w: window must be positive", domain.ErrInvalidArgument)
	}
	return nil
}

// Concurrencies returns the in-flight cap of each level: max(1, i*step).
func Concurrencies(levels, step int) []int {
	out := make([]int, levels)
	for i := range out {
		out[i] = max(1, i*step)
	}
	return out
}

// LevelReport summarizes one level.
type LevelReport struct {
	Level       int           `json:"level"`
	Concurrency int           `json:"concurrency"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	Samples     []Sample      `json:"samples"`
	Duration    time.Duration `json:"duration"`
}

// Report is the outcome of a ramp. On cancellation it holds the levels run so far.
type Report struct {
	Levels []LevelReport `json:"levels"`
}

// Completions returns completed and failed submissions over all levels.
func (r Report) Completions() (completed, failed int) {
	for _, l := range r.Levels {
		completed += l.Completed
		failed += l.Failed
	}
	return completed, failed
}

// Ramper runs load ramps. Only one ramp runs at a time.
type Ramper struct {
	indexer  Indexer
	source   Source
	metrics  *metrics.Load
	logger   *zap.Logger
	now      func() time.Time
	onSample func(Sample)
	running  atomic.Bool
}

// Option configures a Ramper.
type Option func(*Ramper)

// WithOnSample registers a hook called for every closed window, in order.
func WithOnSample(fn func(Sample)) Option {
	return func(r *Ramper) { r.onSample = fn }
}

// WithClock replaces time.Now for window accounting.
func WithClock(now func() time.Time) Option {
	return func(r *Ramper) { r.now = now }
}

// New creates a ramper indexing documents from source.
func New(indexer Indexer, source Source, m *metrics.Load, logger *zap.Logger, opts ...Option) *Ramper {
	r := &Ramper{indexer: indexer, source: source, metrics: m, logger: logger, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Running reports whether a ramp is in progress.
func (r *Ramper) Running() bool { return r.running.Load() }

// Start launches a ramp in the background. It fails with domain.ErrLoadTestRunning
// while another ramp is in progress.
func (r *Ramper) Start(ctx context.Context, cfg Config) (*async.Future[Report], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, domain.ErrLoadTestRunning
	}
	f := async.NewFuture[Report]()
	go func() {
		defer r.running.Store(false)
		rep, err := r.run(ctx, cfg)
		if err != nil {
			f.OnFailure(err)
			return
		}
		f.OnResponse(rep)
	}()
	return f, nil
}

// Run executes a ramp and blocks until it ends. When ctx is cancelled no further
// documents are submitted; in-flight ones drain, the current level is flushed and
// the partial report is returned with ctx.Err().
func (r *Ramper) Run(ctx context.Context, cfg Config) (Report, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, domain.ErrLoadTestRunning
	}
	defer r.running.Store(false)
	return r.run(ctx, cfg)
}

func (r *Ramper) run(ctx context.Context, cfg Config) (Report, error) {
	var rep Report
	r.logger.Info("Load ramp started",
		zap.Int("levels", cfg.Levels), zap.Int("batch_size", cfg.BatchSize),
		zap.Int("step", cfg.Step), zap.Duration("window", cfg.Window))
	// One stream feeds every level so identity keys stay unique across the run. It
	// outlives a cancelled ctx until the current level drains.
	genCtx, stopGen := context.WithCancel(context.WithoutCancel(ctx))
	defer stopGen()
	docs := r.source.Stream(genCtx)

	for i, conc := range Concurrencies(cfg.Levels, cfg.Step) {
		lr, err := r.level(ctx, cfg, i, conc, docs)
		rep.Levels = append(rep.Levels, lr)
		if err != nil {
			r.logger.Warn("Load ramp interrupted", zap.Int("level", i), zap.Error(err))
			return rep, err
		}
	}
	completed, failed := rep.Completions()
	r.logger.Info("Load ramp finished", zap.Int("completed", completed), zap.Int("failed", failed))
	return rep, nil
}

// level submits one batch pulled from docs with at most conc index calls in flight.
func (r *Ramper) level(ctx context.Context, cfg Config, n, conc int, docs <-chan person.Person) (LevelReport, error) {
	lr := LevelReport{Level: n, Concurrency: conc}
	r.metrics.Concurrency.Set(float64(conc))

	// Submission outlives a cancelled ctx until the level drains.
	submitCtx := context.WithoutCancel(ctx)

	sem := semaphore.NewWeighted(int64(conc))
	events := make(chan error, conc)
	start := r.now()
	win := newWindower(n, start, cfg.Window)

	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case err, ok := <-events:
				if !ok {
					return
				}
				if err != nil {
					lr.Failed++
					r.metrics.Completions.WithLabelValues("failure").Inc()
				} else {
					lr.Completed++
					r.metrics.Completions.WithLabelValues("success").Inc()
				}
				r.emit(&lr, win.observe(r.now()))
			case <-ticker.C:
				r.emit(&lr, win.advance(r.now()))
			}
		}
	}()

	var stopErr error
submit:
	for submitted := 0; submitted < cfg.BatchSize; submitted++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			stopErr = err
			break
		}
		var p person.Person
		select {
		case p = <-docs:
		case <-ctx.Done():
			sem.Release(1)
			stopErr = ctx.Err()
			break submit
		}
		r.indexer.Index(submitCtx, p).Subscribe(func(_ domain.IndexOutcome, err error) {
			events <- err
			sem.Release(1)
		})
	}

	// Wait for every in-flight submission.
	_ = sem.Acquire(context.Background(), int64(conc))
	close(events)
	<-aggDone

	end := r.now()
	r.emit(&lr, win.flush(end))
	lr.Duration = end.Sub(start)
	r.logger.Info("Load level finished",
		zap.Int("level", n), zap.Int("concurrency", conc),
		zap.Int("completed", lr.Completed), zap.Int("failed", lr.Failed),
		zap.Duration("duration", lr.Duration))
	if stopErr != nil {
		return lr, stopErr
	}
	return lr, nil
}

func (r *Ramper) emit(lr *LevelReport, samples []Sample) {
	for _, s := range samples {
		lr.Samples = append(lr.Samples, s)
		r.metrics.WindowCompletions.Set(float64(s.Count))
		r.logger.Info("Load window",
			zap.Int("level", s.Level), zap.Time("start", s.Start), zap.Time("end", s.End),
			zap.Int("count", s.Count))
		if r.onSample != nil {
			r.onSample(s)
		}
	}
}
