package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recherche/internal/db"
)

// Search runs one query spec via FT.SEARCH and returns raw JSON hits.
func (s *Store) Search(ctx context.Context, req *db.SearchRequest) (*db.SearchResponse, error) {
	cmd, err := s.searchCmd(req)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	resp, err := parseSearchResult(raw, s.docPrefix(req.Index))
	if err != nil {
		return nil, err
	}
	resp.Took = time.Since(start)
	return resp, nil
}

// MultiSearch sends every FT.SEARCH in one DoMulti; each query fails or succeeds on its own.
func (s *Store) MultiSearch(ctx context.Context, reqs []*db.SearchRequest) ([]db.MultiSearchItem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	cmds := make([]rueidis.Completed, len(reqs))
	for i, req := range reqs {
		cmd, err := s.searchCmd(req)
		if err != nil {
			return nil, err
		}
		cmds[i] = cmd
	}

	start := time.Now()
	results := s.client.DoMulti(ctx, cmds...)
	took := time.Since(start)

	items := make([]db.MultiSearchItem, len(results))
	for i, res := range results {
		raw, err := res.ToArray()
		if err != nil {
			items[i] = db.MultiSearchItem{Err: &db.Error{Op: db.OpSearch, Err: err}}
			continue
		}
		resp, err := parseSearchResult(raw, s.docPrefix(reqs[i].Index))
		if err != nil {
			items[i] = db.MultiSearchItem{Err: err}
			continue
		}
		resp.Took = took
		items[i] = db.MultiSearchItem{Response: resp}
	}
	return items, nil
}

func (s *Store) searchCmd(req *db.SearchRequest) (rueidis.Completed, error) {
	if req.Index == "" {
		return rueidis.Completed{}, errors.New("index name is required")
	}
	q := buildQuery(req.Query)
	if q == "" {
		return rueidis.Completed{}, errors.New("query has no searchable terms")
	}
	size := req.Query.Size
	if size <= 0 {
		size = 10
	}
	return s.b().Arbitrary("FT.SEARCH").Args(
		req.Index, q,
		"WITHSCORES",
		"RETURN", "1", "$",
		"LIMIT", "0", strconv.Itoa(size),
		"DIALECT", "2",
	).Build(), nil
}

// parseSearchResult reads the WITHSCORES layout:
// [total, key1, score1, ["$", json1], key2, score2, ["$", json2], ...]
func parseSearchResult(raw []rueidis.RedisMessage, keyPrefix string) (*db.SearchResponse, error) {
	if len(raw) == 0 {
		return &db.SearchResponse{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	hits := make([]db.Hit, 0, (len(raw)-1)/3)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		hit := db.Hit{ID: strings.TrimPrefix(key, keyPrefix)}

		if scoreStr, err := raw[i+1].ToString(); err == nil {
			hit.Score, _ = strconv.ParseFloat(scoreStr, 64)
		}

		// A hit without a readable source is still returned; decoding decides its fate.
		if fields, err := raw[i+2].ToArray(); err == nil {
			for j := 0; j+1 < len(fields); j += 2 {
				name, _ := fields[j].ToString()
				if name != "$" {
					continue
				}
				if v, err := fields[j+1].ToString(); err == nil {
					hit.Source = []byte(v)
				}
			}
		}

		hits = append(hits, hit)
	}

	return &db.SearchResponse{Total: int(total), Hits: hits}, nil
}
