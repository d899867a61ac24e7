package recherche

import "github.com/kailas-cloud/recherche/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound           = domain.ErrNotFound
	ErrInvalidArgument    = domain.ErrInvalidArgument
	ErrTooManyBadHits     = domain.ErrTooManyBadHits
	ErrLoadTestRunning    = domain.ErrLoadTestRunning
	ErrBackendUnavailable = domain.ErrBackendUnavailable
)
