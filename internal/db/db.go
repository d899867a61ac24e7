package db

import (
	"context"
	"time"
)

// Store is the synchronous backend facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade; consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	DocumentStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentStore provides keyed document reads and upserts.
type DocumentStore interface {
	Get(ctx context.Context, index, id string) (*GetResponse, error)
	Index(ctx context.Context, req *IndexRequest) (*IndexResponse, error)
	Bulk(ctx context.Context, req *BulkRequest) (*BulkResponse, error)
}

// IndexManager provides search index lifecycle operations.
type IndexManager interface {
	EnsureIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
}

// Searcher runs a single query.
type Searcher interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
}

// MultiSearcher runs several queries in one backend round-trip.
// Stores that cannot batch searches do not implement it.
type MultiSearcher interface {
	MultiSearch(ctx context.Context, reqs []*SearchRequest) ([]MultiSearchItem, error)
}
