package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recherche/internal/db"
)

// Get reads the document and its version in one round-trip.
func (s *Store) Get(ctx context.Context, index, id string) (*db.GetResponse, error) {
	results := s.client.DoMulti(ctx,
		s.b().Arbitrary("JSON.GET").Keys(s.docKey(index, id)).Build(),
		s.b().Hget().Key(s.versionsKey(index)).Field(id).Build(),
	)

	resp := &db.GetResponse{Index: index, ID: id}
	raw, err := results[0].ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return resp, nil
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return resp, nil
	}
	resp.Found = true
	resp.Source = []byte(raw)

	if v, err := results[1].AsInt64(); err == nil {
		resp.Version = v
	} else if !rueidis.IsRedisNil(err) {
		return nil, &db.Error{Op: db.OpHGet, Err: err}
	}
	return resp, nil
}

// Index upserts the document and bumps its version in one round-trip.
func (s *Store) Index(ctx context.Context, req *db.IndexRequest) (*db.IndexResponse, error) {
	results := s.client.DoMulti(ctx, s.writeCmds(req.Index, req.ID, req.Source)...)
	version, err := writeResult(results[0], results[1])
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", req.ID, err)
	}
	return &db.IndexResponse{
		Index:   req.Index,
		ID:      req.ID,
		Version: version,
		Result:  resultFor(version),
	}, nil
}

// Bulk pipelines every item into a single DoMulti. Item failures are reported per item.
func (s *Store) Bulk(ctx context.Context, req *db.BulkRequest) (*db.BulkResponse, error) {
	if len(req.Items) == 0 {
		return &db.BulkResponse{}, nil
	}
	start := time.Now()

	cmds := make([]rueidis.Completed, 0, 2*len(req.Items))
	for _, it := range req.Items {
		cmds = append(cmds, s.writeCmds(req.Index, it.ID, it.Source)...)
	}
	results := s.client.DoMulti(ctx, cmds...)

	items := make([]db.BulkItemResponse, len(req.Items))
	for i, it := range req.Items {
		version, err := writeResult(results[2*i], results[2*i+1])
		if err != nil {
			items[i] = db.BulkItemResponse{ID: it.ID, Err: err}
			continue
		}
		items[i] = db.BulkItemResponse{ID: it.ID, Version: version, Result: resultFor(version)}
	}
	return &db.BulkResponse{Took: time.Since(start), Items: items}, nil
}

func (s *Store) writeCmds(index, id string, source []byte) []rueidis.Completed {
	return []rueidis.Completed{
		s.b().Arbitrary("JSON.SET").Keys(s.docKey(index, id)).Args("$", string(source)).Build(),
		s.b().Hincrby().Key(s.versionsKey(index)).Field(id).Increment(1).Build(),
	}
}

func writeResult(set, incr rueidis.RedisResult) (int64, error) {
	if err := set.Error(); err != nil {
		return 0, &db.Error{Op: db.OpJSONSet, Err: err}
	}
	version, err := incr.AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpHIncrBy, Err: err}
	}
	return version, nil
}

func resultFor(version int64) string {
	if version == 1 {
		return db.ResultCreated
	}
	return db.ResultUpdated
}
