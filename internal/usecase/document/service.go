package document

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/metrics"
)

// Service reads and writes person documents. Every operation returns immediately
// with a future; the work runs when the backend answers.
type Service struct {
	client  Client
	index   string
	metrics *metrics.Adapter
	logger  *zap.Logger
}

// New creates a document service over index.
func New(client Client, index string, m *metrics.Adapter, logger *zap.Logger) *Service {
	return &Service{client: client, index: index, metrics: m, logger: logger}
}

// Get fetches the person stored under key. The future holds nil when there is none.
func (s *Service) Get(ctx context.Context, key string) *async.Future[*person.Person] {
	call := async.FromCallback(func(ctx context.Context, l async.Listener[*db.GetResponse]) {
		s.client.GetAsync(ctx, s.index, key, l)
	}, s.violation("get"))

	return async.Map(async.Start(ctx, call), func(resp *db.GetResponse) (*person.Person, error) {
		if !resp.Found {
			return nil, nil
		}
		p, err := person.Decode(resp.Source)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		return &p, nil
	})
}

// Index upserts p under its identity key. The call is counted, tracked in flight and
// timed; failures are logged and propagated, never retried.
func (s *Service) Index(ctx context.Context, p person.Person) *async.Future[domain.IndexOutcome] {
	source, err := p.Encode()
	if err != nil {
		return async.Failed[domain.IndexOutcome](err)
	}
	req := &db.IndexRequest{Index: s.index, ID: p.Key(), Source: source}

	call := async.Chain(
		async.FromCallback(func(ctx context.Context, l async.Listener[*db.IndexResponse]) {
			s.client.IndexAsync(ctx, req, l)
		}, s.violation("index")),
		async.Counted[*db.IndexResponse](s.metrics.IndexSuccess(), s.metrics.IndexFailure()),
		async.InFlight[*db.IndexResponse](s.metrics.IndexInFlight),
		async.Timed[*db.IndexResponse](s.metrics.IndexDuration),
		async.OnFailure[*db.IndexResponse](func(err error) {
			s.logger.Warn("Unable to index document", zap.String("id", req.ID), zap.Error(err))
		}),
	)

	return async.Map(async.Start(ctx, call), func(resp *db.IndexResponse) (domain.IndexOutcome, error) {
		return domain.IndexOutcome{
			ID:      resp.ID,
			Index:   resp.Index,
			Version: resp.Version,
			Result:  domain.IndexResult(resp.Result),
		}, nil
	})
}

// BulkIndex writes ps in one backend round-trip. Documents that fail to encode or
// that the backend rejects become item errors; only a failed round-trip fails the future.
func (s *Service) BulkIndex(ctx context.Context, ps []person.Person) *async.Future[domain.BulkOutcome] {
	results := make([]batch.Result, len(ps))
	req := &db.BulkRequest{Index: s.index}
	slots := make([]int, 0, len(ps))
	for i, p := range ps {
		source, err := p.Encode()
		if err != nil {
			results[i] = batch.NewError(p.Key(), err)
			continue
		}
		req.Items = append(req.Items, db.BulkItem{ID: p.Key(), Source: source})
		slots = append(slots, i)
	}
	if len(req.Items) == 0 {
		return async.Completed(domain.BulkOutcome{Items: results})
	}

	call := async.Chain(
		async.FromCallback(func(ctx context.Context, l async.Listener[*db.BulkResponse]) {
			s.client.BulkAsync(ctx, req, l)
		}, s.violation("bulk")),
		async.OnFailure[*db.BulkResponse](func(err error) {
			s.logger.Error("Bulk index failed", zap.Int("items", len(req.Items)), zap.Error(err))
		}),
	)

	return async.Map(async.Start(ctx, call), func(resp *db.BulkResponse) (domain.BulkOutcome, error) {
		if len(resp.Items) != len(req.Items) {
			return domain.BulkOutcome{}, fmt.Errorf("bulk: backend returned %d items for %d documents",
				len(resp.Items), len(req.Items))
		}
		failed := 0
		for j, it := range resp.Items {
			i := slots[j]
			if it.Err != nil {
				results[i] = batch.NewError(req.Items[j].ID, it.Err)
				failed++
				continue
			}
			results[i] = batch.NewOK(req.Items[j].ID, it.Version)
		}
		if failed > 0 {
			s.logger.Warn("Bulk index rejected items", zap.Int("failed", failed), zap.Int("items", len(ps)))
		}
		return domain.BulkOutcome{Took: resp.Took, Items: results}, nil
	})
}

func (s *Service) violation(op string) func(error) {
	return func(err error) {
		s.logger.Error("Backend signalled a call twice", zap.String("op", op), zap.Error(err))
	}
}
