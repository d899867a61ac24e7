package domain

import (
	"time"

	"github.com/kailas-cloud/recherche/internal/domain/batch"
)

// IndexResult tells whether an index call inserted or replaced the document.
type IndexResult string

// Index result values.
const (
	ResultCreated IndexResult = "created"
	ResultUpdated IndexResult = "updated"
)

// IndexOutcome is the backend acknowledgement of a single index call.
type IndexOutcome struct {
	ID      string      `json:"id"`
	Index   string      `json:"index"`
	Version int64       `json:"version"`
	Result  IndexResult `json:"result"`
}

// BulkOutcome aggregates per-item results of one bulk round-trip.
type BulkOutcome struct {
	Took  time.Duration
	Items []batch.Result
}

// Succeeded returns the number of items the backend accepted.
func (o BulkOutcome) Succeeded() int {
	n := 0
	for _, it := range o.Items {
		if it.Status() == batch.StatusOK {
			n++
		}
	}
	return n
}

// Failed returns the number of rejected items.
func (o BulkOutcome) Failed() int { return len(o.Items) - o.Succeeded() }
