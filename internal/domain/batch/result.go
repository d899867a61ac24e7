package batch

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

// Bulk item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of indexing one document in a bulk request.
type Result struct {
	id      string
	status  ItemStatus
	version int64
	err     error
}

// NewOK creates a successful bulk item result carrying the backend version.
func NewOK(id string, version int64) Result {
	return Result{id: id, status: StatusOK, version: version}
}

// NewError creates a failed bulk item result.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the document identity key.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Version returns the document version after a successful write, zero otherwise.
func (r Result) Version() int64 { return r.version }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
