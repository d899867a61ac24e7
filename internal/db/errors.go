package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrIndexNotFound          = errors.New("db: index not found")
	ErrClosed                 = errors.New("db: client closed")
	ErrQueueFull              = errors.New("db: dispatch queue full")
	ErrMultiSearchUnsupported = errors.New("db: multi-search not supported by backend")
)

// Op constants map to Redis command names (or their embedded equivalents) for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpSearch      = "FT.SEARCH"
	OpJSONGet     = "JSON.GET"
	OpJSONSet     = "JSON.SET"
	OpHGet        = "HGET"
	OpHIncrBy     = "HINCRBY"
	OpPing        = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
