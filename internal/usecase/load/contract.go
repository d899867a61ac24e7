package load

import (
	"context"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/person"
)

// Indexer submits one document to the search backend.
type Indexer interface {
	Index(ctx context.Context, p person.Person) *async.Future[domain.IndexOutcome]
}

// Source yields an infinite stream of documents. Each call starts a new stream that
// closes once ctx is done. A run opens exactly one stream.
type Source interface {
	Stream(ctx context.Context) <-chan person.Person
}
