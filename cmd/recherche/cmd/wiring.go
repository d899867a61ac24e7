package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/config"
	"github.com/kailas-cloud/recherche/internal/db"
	dbBleve "github.com/kailas-cloud/recherche/internal/db/bleve"
	dbRedis "github.com/kailas-cloud/recherche/internal/db/redis"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
	"github.com/kailas-cloud/recherche/internal/generator"
	logpkg "github.com/kailas-cloud/recherche/internal/logger"
	"github.com/kailas-cloud/recherche/internal/metrics"
	"github.com/kailas-cloud/recherche/internal/version"
	documentuc "github.com/kailas-cloud/recherche/internal/usecase/document"
	"github.com/kailas-cloud/recherche/internal/usecase/load"
	searchuc "github.com/kailas-cloud/recherche/internal/usecase/search"
)

// app is the composition root shared by the commands.
type app struct {
	env        string
	cfg        config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	store      db.Store
	dispatcher *db.Dispatcher
	engine     *query.Engine
	documents  *documentuc.Service
	search     *searchuc.Service
	generator  *generator.Generator
	load       *metrics.Load
	ramper     *load.Ramper
}

func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	logger.Info("Starting recherche",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index", cfg.Database.Index),
	)

	store, err := newStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	policy := query.Policy{
		PrefixLength:   cfg.Search.PrefixLength,
		MaxExpansions:  cfg.Search.MaxExpansions,
		Transpositions: *cfg.Search.Transpositions,
	}
	engine := query.NewEngine(query.DefaultFields(), policy, cfg.Search.Size)

	// The store picks the key prefix of its own documents.
	def := db.PersonIndex(cfg.Database.Index, "", engine.Fields())
	if err := store.EnsureIndex(ctx, def); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure index %s: %w", def.Name, err)
	}
	logger.Info("Index ready", zap.Stringer("definition", def))

	// Metrics are registered explicitly on one registry (no init()).
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	adapter := metrics.NewAdapter(reg)

	dispatcher := db.NewDispatcher(store, cfg.Dispatch.Workers, cfg.Dispatch.Queue, logger)

	var searchOpts []searchuc.Option
	if cfg.Search.MaxDropRatio > 0 {
		searchOpts = append(searchOpts, searchuc.WithMaxDropRatio(cfg.Search.MaxDropRatio))
	}

	documents := documentuc.New(dispatcher, cfg.Database.Index, adapter, logger)
	search := searchuc.New(dispatcher, engine, cfg.Database.Index, adapter, logger, searchOpts...)

	var genOpts []generator.Option
	if cfg.Generator.Seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(cfg.Generator.Seed))
	}

	a := &app{
		env:        env,
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		store:      store,
		dispatcher: dispatcher,
		engine:     engine,
		documents:  documents,
		search:     search,
		generator:  generator.New(cfg.Generator.Workers, genOpts...),
		load:       metrics.NewLoad(reg),
	}
	a.ramper = a.newRamper()
	return a, nil
}

func (a *app) newRamper(opts ...load.Option) *load.Ramper {
	return load.New(a.documents, a.generator, a.load, a.logger, opts...)
}

// loadConfig returns the ramp configured in the load section.
func (a *app) loadConfig() load.Config {
	return load.Config{
		BatchSize: a.cfg.Load.BatchSize,
		Levels:    a.cfg.Load.Levels,
		Step:      a.cfg.Load.Step,
		Window:    a.cfg.Load.Window,
	}
}

// Close drains the dispatcher, then closes the store.
func (a *app) Close() {
	a.dispatcher.Close()
	a.store.Close()
	_ = a.logger.Sync()
}

func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	case config.DriverBleve:
		return dbBleve.NewStore(dbBleve.Config{Dir: cfg.Path}), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
