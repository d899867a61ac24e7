package chi

import (
	"github.com/kailas-cloud/recherche/internal/domain"
	dombatch "github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/usecase/load"
)

// ErrorCode is the machine-readable error category of an API error response.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeNotFound           ErrorCode = "not_found"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeLoadTestRunning    ErrorCode = "load_test_running"
	CodeBadGateway         ErrorCode = "bad_gateway"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SearchResponse is the body of GET /personnes/_search.
type SearchResponse struct {
	Mode  string          `json:"mode"`
	Query string          `json:"q"`
	Total int             `json:"total"`
	Items []person.Person `json:"items"`
}

// BulkRequest is the body of POST /personnes/_bulk.
type BulkRequest struct {
	Items []person.Person `json:"items"`
}

// BulkItem is the per-document outcome of a bulk request.
type BulkItem struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Version int64     `json:"version,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError is an item-level error.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// BulkResponse is the body of POST /personnes/_bulk.
type BulkResponse struct {
	TookMs    int64      `json:"took_ms"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// LoadTestResponse acknowledges a started load ramp.
type LoadTestResponse struct {
	Status        string `json:"status"`
	BatchSize     int    `json:"batch_size"`
	Levels        int    `json:"levels"`
	Step          int    `json:"step"`
	WindowMs      int64  `json:"window_ms"`
	Concurrencies []int  `json:"concurrencies"`
}

func bulkToResponse(out domain.BulkOutcome) BulkResponse {
	resp := BulkResponse{
		TookMs:    out.Took.Milliseconds(),
		Succeeded: out.Succeeded(),
		Failed:    out.Failed(),
		Items:     make([]BulkItem, len(out.Items)),
	}
	for i, it := range out.Items {
		resp.Items[i] = bulkItemToResponse(it)
	}
	return resp
}

func bulkItemToResponse(r dombatch.Result) BulkItem {
	item := BulkItem{ID: r.ID(), Status: string(r.Status()), Version: r.Version()}
	if r.Err() != nil {
		item.Error = &APIError{Code: itemErrorCode(r.Err()), Message: safeDomainMessage(r.Err())}
	}
	return item
}

func loadTestToResponse(cfg load.Config) LoadTestResponse {
	return LoadTestResponse{
		Status:        "started",
		BatchSize:     cfg.BatchSize,
		Levels:        cfg.Levels,
		Step:          cfg.Step,
		WindowMs:      cfg.Window.Milliseconds(),
		Concurrencies: load.Concurrencies(cfg.Levels, cfg.Step),
	}
}
