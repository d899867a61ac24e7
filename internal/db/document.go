package db

import (
	"time"

	"github.com/kailas-cloud/recherche/internal/domain/search/query"
)

// Write results reported by the backend.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
)

// IndexRequest upserts one JSON document under ID.
type IndexRequest struct {
	Index  string
	ID     string
	Source []byte
}

// IndexResponse acknowledges an upsert. Version starts at 1 and grows per write.
type IndexResponse struct {
	Index   string
	ID      string
	Version int64
	Result  string
}

// BulkItem is one document of a bulk request.
type BulkItem struct {
	ID     string
	Source []byte
}

// BulkRequest upserts many documents in one round-trip.
type BulkRequest struct {
	Index string
	Items []BulkItem
}

// BulkItemResponse is the per-item outcome. Err is set for rejected items.
type BulkItemResponse struct {
	ID      string
	Version int64
	Result  string
	Err     error
}

// BulkResponse holds item outcomes in request order.
type BulkResponse struct {
	Took  time.Duration
	Items []BulkItemResponse
}

// GetResponse is a keyed read. Found is false when no document exists under ID.
type GetResponse struct {
	Index   string
	ID      string
	Found   bool
	Version int64
	Source  []byte
}

// SearchRequest runs one query spec against an index.
type SearchRequest struct {
	Index string
	Query query.Spec
}

// Hit is a raw search hit. Source is left undecoded.
type Hit struct {
	ID     string
	Score  float64
	Source []byte
}

// SearchResponse lists hits in backend relevance order.
type SearchResponse struct {
	Took  time.Duration
	Total int
	Hits  []Hit
}

// MultiSearchItem is the outcome of one query of a multi-search.
type MultiSearchItem struct {
	Response *SearchResponse
	Err      error
}
