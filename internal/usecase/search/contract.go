package search

import (
	"context"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
)

// Client is the slice of the async backend contract used for searching.
type Client interface {
	SearchAsync(ctx context.Context, req *db.SearchRequest, l async.Listener[*db.SearchResponse])
	MultiSearchAsync(ctx context.Context, reqs []*db.SearchRequest, l async.Listener[[]db.MultiSearchItem])
	SupportsMultiSearch() bool
}
