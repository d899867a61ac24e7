package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals a malformed request value (unknown search mode, bad payload).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooManyBadHits signals that a search dropped more undecodable hits than allowed.
	ErrTooManyBadHits = errors.New("too many undecodable hits")
	// ErrLoadTestRunning signals that a load run is already in progress.
	ErrLoadTestRunning = errors.New("load test already running")
	// ErrBackendUnavailable signals that the search backend cannot be reached.
	ErrBackendUnavailable = errors.New("search backend unavailable")
)
