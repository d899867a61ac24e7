package recherche

import (
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/domain/search/mode"
	"github.com/kailas-cloud/recherche/internal/usecase/load"
)

// Person is the indexed document. Username is its identity key.
type Person = person.Person

// Address is the postal address of a Person.
type Address = person.Address

// Employer is the employer of a Person.
type Employer = person.Employer

// Mode selects the search strategy.
type Mode = mode.Mode

// Search modes.
const (
	Fuzzy    = mode.Fuzzy
	Wildcard = mode.Wildcard
	Composed = mode.Composed
)

// IndexOutcome describes one accepted write.
type IndexOutcome = domain.IndexOutcome

// ItemStatus is the per-item status of a bulk write.
type ItemStatus = batch.ItemStatus

// Bulk item statuses.
const (
	ItemOK    = batch.StatusOK
	ItemError = batch.StatusError
)

// BulkItem is the outcome of one document of a bulk write.
type BulkItem struct {
	ID      string
	Status  ItemStatus
	Version int64
	Err     error
}

// BulkResult reports a bulk write item by item, in request order.
type BulkResult struct {
	Items     []BulkItem
	Succeeded int
	Failed    int
}

// LoadConfig describes a load ramp. Zero fields take the defaults.
type LoadConfig = load.Config

// LoadReport is the outcome of a load ramp, one entry per level.
type LoadReport = load.Report

// Sample is the number of writes completed in one window of a ramp level.
type Sample = load.Sample

func bulkResult(o domain.BulkOutcome) BulkResult {
	res := BulkResult{
		Items:     make([]BulkItem, len(o.Items)),
		Succeeded: o.Succeeded(),
		Failed:    o.Failed(),
	}
	for i, it := range o.Items {
		res.Items[i] = BulkItem{ID: it.ID(), Status: it.Status(), Version: it.Version(), Err: it.Err()}
	}
	return res
}
