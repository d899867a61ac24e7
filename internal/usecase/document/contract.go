package document

import (
	"context"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/db"
)

// Client is the slice of the async backend contract used for keyed reads and writes.
type Client interface {
	GetAsync(ctx context.Context, index, id string, l async.Listener[*db.GetResponse])
	IndexAsync(ctx context.Context, req *db.IndexRequest, l async.Listener[*db.IndexResponse])
	BulkAsync(ctx context.Context, req *db.BulkRequest, l async.Listener[*db.BulkResponse])
}
