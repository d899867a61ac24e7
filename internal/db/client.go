package db

import (
	"context"

	"github.com/kailas-cloud/recherche/internal/async"
)

// Client is the callback-style backend contract. Every call signals its listener
// exactly once, on an I/O goroutine.
type Client interface {
	GetAsync(ctx context.Context, index, id string, l async.Listener[*GetResponse])
	IndexAsync(ctx context.Context, req *IndexRequest, l async.Listener[*IndexResponse])
	BulkAsync(ctx context.Context, req *BulkRequest, l async.Listener[*BulkResponse])
	SearchAsync(ctx context.Context, req *SearchRequest, l async.Listener[*SearchResponse])
	MultiSearchAsync(ctx context.Context, reqs []*SearchRequest, l async.Listener[[]MultiSearchItem])
	SupportsMultiSearch() bool
}
