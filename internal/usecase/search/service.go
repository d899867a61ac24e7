package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/domain/search/mode"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
	"github.com/kailas-cloud/recherche/internal/metrics"
)

// Service runs person searches in fuzzy, wildcard or composed mode.
type Service struct {
	client       Client
	engine       *query.Engine
	index        string
	metrics      *metrics.Adapter
	logger       *zap.Logger
	maxDropRatio float64
}

// Option configures a Service.
type Option func(*Service)

// WithMaxDropRatio fails a search when more than ratio of its hits cannot be decoded.
// Zero (the default) drops bad hits and keeps going.
func WithMaxDropRatio(ratio float64) Option {
	return func(s *Service) { s.maxDropRatio = ratio }
}

// New creates a search service over index.
func New(
	client Client, engine *query.Engine, index string,
	m *metrics.Adapter, logger *zap.Logger, opts ...Option,
) *Service {
	s := &Service{client: client, engine: engine, index: index, metrics: m, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search finds persons matching term. An unsupported mode fails before any backend call.
// Composed mode lists wildcard hits first, then fuzzy hits, each person once.
func (s *Service) Search(ctx context.Context, m mode.Mode, term string) *async.Future[[]person.Person] {
	if !m.IsValid() {
		return async.Failed[[]person.Person](
			fmt.Errorf("%w: unknown search mode %q", domain.ErrInvalidArgument, string(m)))
	}
	specs, err := s.engine.Build(m, term)
	if err != nil {
		return async.Failed[[]person.Person](err)
	}
	reqs := make([]*db.SearchRequest, len(specs))
	for i, spec := range specs {
		reqs[i] = &db.SearchRequest{Index: s.index, Query: spec}
	}

	switch {
	case len(reqs) == 1:
		return async.Map(s.search(ctx, m, reqs[0]), func(resp *db.SearchResponse) ([]person.Person, error) {
			return s.collect(m, resp.Hits)
		})
	case s.client.SupportsMultiSearch():
		return s.composedMulti(ctx, m, reqs)
	default:
		return s.composedSequential(ctx, m, reqs)
	}
}

func (s *Service) search(ctx context.Context, m mode.Mode, req *db.SearchRequest) *async.Future[*db.SearchResponse] {
	call := async.Chain(
		async.FromCallback(func(ctx context.Context, l async.Listener[*db.SearchResponse]) {
			s.client.SearchAsync(ctx, req, l)
		}, s.violation(m)),
		instrument[*db.SearchResponse](s, m)...,
	)
	return async.Start(ctx, call)
}

// composedMulti sends both branches in one backend round-trip.
func (s *Service) composedMulti(ctx context.Context, m mode.Mode, reqs []*db.SearchRequest) *async.Future[[]person.Person] {
	call := async.Chain(
		async.FromCallback(func(ctx context.Context, l async.Listener[[]db.MultiSearchItem]) {
			s.client.MultiSearchAsync(ctx, reqs, l)
		}, s.violation(m)),
		instrument[[]db.MultiSearchItem](s, m)...,
	)
	return async.Map(async.Start(ctx, call), func(items []db.MultiSearchItem) ([]person.Person, error) {
		if len(items) != len(reqs) {
			return nil, fmt.Errorf("composed search: backend returned %d results for %d queries", len(items), len(reqs))
		}
		groups := make([][]db.Hit, len(items))
		for i, it := range items {
			if it.Err != nil {
				return nil, fmt.Errorf("composed search %s branch: %w", reqs[i].Query.Kind, it.Err)
			}
			groups[i] = it.Response.Hits
		}
		return s.collect(m, groups...)
	})
}

// composedSequential runs the wildcard branch, then the fuzzy branch. The fuzzy branch
// is skipped once the result has been cancelled.
func (s *Service) composedSequential(ctx context.Context, m mode.Mode, reqs []*db.SearchRequest) *async.Future[[]person.Person] {
	out := async.NewFuture[[]person.Person]()
	s.search(ctx, m, reqs[0]).Subscribe(func(first *db.SearchResponse, err error) {
		if err != nil {
			out.OnFailure(fmt.Errorf("composed search %s branch: %w", reqs[0].Query.Kind, err))
			return
		}
		select {
		case <-out.Done():
			return
		default:
		}
		s.search(ctx, m, reqs[1]).Subscribe(func(second *db.SearchResponse, err error) {
			if err != nil {
				out.OnFailure(fmt.Errorf("composed search %s branch: %w", reqs[1].Query.Kind, err))
				return
			}
			persons, err := s.collect(m, first.Hits, second.Hits)
			if err != nil {
				out.OnFailure(err)
				return
			}
			out.OnResponse(persons)
		})
	})
	return out
}

// collect decodes hit groups in order, drops undecodable hits and keeps the first
// occurrence of each identity key.
func (s *Service) collect(m mode.Mode, groups ...[]db.Hit) ([]person.Person, error) {
	total, dropped := 0, 0
	seen := make(map[string]struct{})
	var out []person.Person
	for _, hits := range groups {
		for _, h := range hits {
			total++
			p, err := person.Decode(h.Source)
			if err != nil {
				dropped++
				s.logger.Warn("Dropping undecodable search hit",
					zap.String("mode", m.String()), zap.String("id", h.ID), zap.Error(err))
				continue
			}
			if _, dup := seen[p.Key()]; dup {
				continue
			}
			seen[p.Key()] = struct{}{}
			out = append(out, p)
		}
	}
	if dropped > 0 {
		s.metrics.DroppedHits.WithLabelValues(m.String()).Add(float64(dropped))
		if s.maxDropRatio > 0 && float64(dropped)/float64(total) > s.maxDropRatio {
			return nil, fmt.Errorf("%w: %d of %d", domain.ErrTooManyBadHits, dropped, total)
		}
	}
	if out == nil {
		out = []person.Person{}
	}
	return out, nil
}

func instrument[T any](s *Service, m mode.Mode) []async.Middleware[T] {
	label := m.String()
	return []async.Middleware[T]{
		async.Counted[T](
			s.metrics.SearchTotal.WithLabelValues(label, "success"),
			s.metrics.SearchTotal.WithLabelValues(label, "failure"),
		),
		async.Timed[T](s.metrics.SearchDuration.WithLabelValues(label)),
		async.OnFailure[T](func(err error) {
			s.logger.Warn("Search failed", zap.String("mode", label), zap.Error(err))
		}),
	}
}

func (s *Service) violation(m mode.Mode) func(error) {
	return func(err error) {
		s.logger.Error("Backend signalled a search twice", zap.String("mode", m.String()), zap.Error(err))
	}
}
