package bleve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/recherche/internal/db"
	"github.com/kailas-cloud/recherche/internal/domain/search/query"
)

// bleve rejects fuzziness above two edits.
const maxFuzziness = 2

// Search runs one query spec. Max expansions and transpositions have no bleve
// counterpart; bleve fuzzy matching always counts a transposition as two edits.
func (s *Store) Search(ctx context.Context, req *db.SearchRequest) (*db.SearchResponse, error) {
	ix, err := s.lookup(req.Index)
	if err != nil {
		return nil, err
	}
	q, err := buildQuery(req.Query)
	if err != nil {
		return nil, err
	}
	size := req.Query.Size
	if size <= 0 {
		size = 10
	}

	start := time.Now()
	sr := bleve.NewSearchRequestOptions(q, size, 0, false)
	sr.Fields = []string{sourceField}
	res, err := ix.idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	hits := make([]db.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := db.Hit{ID: h.ID, Score: h.Score}
		if src, ok := h.Fields[sourceField].(string); ok {
			hit.Source = []byte(src)
		}
		hits = append(hits, hit)
	}
	return &db.SearchResponse{Took: time.Since(start), Total: int(res.Total), Hits: hits}, nil
}

// buildQuery ORs one clause per field. Fuzzy clauses are analyzed match queries;
// wildcard clauses AND a *word* pattern per lowercased word.
func buildQuery(spec query.Spec) (bq.Query, error) {
	words := strings.Fields(spec.Term)
	if len(words) == 0 {
		return nil, errors.New("query has no searchable terms")
	}
	if len(spec.Fields) == 0 {
		return nil, errors.New("query has no fields")
	}

	clauses := make([]bq.Query, 0, len(spec.Fields))
	for _, f := range spec.Fields {
		weight := f.Weight
		if weight <= 0 {
			weight = 1
		}
		switch spec.Kind {
		case query.KindWildcard:
			parts := make([]bq.Query, 0, len(words))
			for _, w := range words {
				wq := bleve.NewWildcardQuery("*" + strings.ToLower(w) + "*")
				wq.SetField(f.Path)
				parts = append(parts, wq)
			}
			var clause bq.Query
			if len(parts) == 1 {
				parts[0].(*bq.WildcardQuery).SetBoost(weight)
				clause = parts[0]
			} else {
				cq := bleve.NewConjunctionQuery(parts...)
				cq.SetBoost(weight)
				clause = cq
			}
			clauses = append(clauses, clause)
		default:
			mq := bleve.NewMatchQuery(spec.Term)
			mq.SetField(f.Path)
			mq.SetFuzziness(min(spec.Fuzziness.Distance, maxFuzziness))
			mq.SetPrefix(spec.Fuzziness.PrefixLength)
			mq.SetBoost(weight)
			clauses = append(clauses, mq)
		}
	}
	return bleve.NewDisjunctionQuery(clauses...), nil
}
