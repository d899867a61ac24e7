package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/domain"
	dombatch "github.com/kailas-cloud/recherche/internal/domain/batch"
	"github.com/kailas-cloud/recherche/internal/domain/person"
	"github.com/kailas-cloud/recherche/internal/domain/search/mode"
	"github.com/kailas-cloud/recherche/internal/logger"
	documentuc "github.com/kailas-cloud/recherche/internal/usecase/document"
	healthuc "github.com/kailas-cloud/recherche/internal/usecase/health"
	"github.com/kailas-cloud/recherche/internal/usecase/load"
	searchuc "github.com/kailas-cloud/recherche/internal/usecase/search"
)

const maxBulkSize = 1000

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the person search API.
type Server struct {
	documents     *documentuc.Service
	search        *searchuc.Service
	ramper        *load.Ramper
	health        *healthuc.Service
	loadDefaults  load.Config
	runCtx        context.Context
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLoadDefaults sets the ramp used when a load test request leaves fields out.
func WithLoadDefaults(cfg load.Config) Option {
	return func(s *Server) { s.loadDefaults = cfg }
}

// WithRunContext sets the context of background load runs. Cancelling it stops them.
func WithRunContext(ctx context.Context) Option {
	return func(s *Server) { s.runCtx = ctx }
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *documentuc.Service,
	search *searchuc.Service,
	ramper *load.Ramper,
	health *healthuc.Service,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		documents: documents,
		search:    search,
		ramper:    ramper,
		health:    health,
		runCtx:    context.Background(),
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrLoadTestRunning, http.StatusConflict, CodeLoadTestRunning),
		sentinelHandler(domain.ErrTooManyBadHits, http.StatusBadGateway, CodeBadGateway),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeServiceUnavailable),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Route("/personnes", func(r chi.Router) {
		r.Post("/", s.IndexPerson)
		r.Post("/_bulk", s.BulkIndex)
		r.Get("/_search", s.Search)
		r.Post("/_loadtest", s.StartLoadTest)
		r.Get("/{username}", s.GetPerson)
	})
}

// GetPerson handles GET /personnes/{username}.
func (s *Server) GetPerson(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	p, err := s.documents.Get(r.Context(), username).Await(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("person %q not found", username))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// IndexPerson handles POST /personnes.
func (s *Server) IndexPerson(w http.ResponseWriter, r *http.Request) {
	var p person.Person
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	out, err := s.documents.Index(r.Context(), p).Await(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// BulkIndex handles POST /personnes/_bulk. Invalid items are reported per item.
func (s *Server) BulkIndex(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "items must not be empty")
		return
	}
	if len(req.Items) > maxBulkSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("bulk size %d exceeds maximum %d", len(req.Items), maxBulkSize))
		return
	}

	results := make([]dombatch.Result, len(req.Items))
	valid := make([]person.Person, 0, len(req.Items))
	slots := make([]int, 0, len(req.Items))
	for i, p := range req.Items {
		if err := p.Validate(); err != nil {
			results[i] = dombatch.NewError(p.Key(), err)
			continue
		}
		valid = append(valid, p)
		slots = append(slots, i)
	}

	out := domain.BulkOutcome{}
	if len(valid) > 0 {
		var err error
		out, err = s.documents.BulkIndex(r.Context(), valid).Await(r.Context())
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	for j, res := range out.Items {
		results[slots[j]] = res
	}
	out.Items = results
	writeJSON(w, http.StatusOK, bulkToResponse(out))
}

// Search handles GET /personnes/_search?mode=&q=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := q.Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "q is required")
		return
	}
	name := q.Get("mode")
	if name == "" {
		name = string(mode.Composed)
	}
	m, err := mode.Parse(name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items, err := s.search.Search(r.Context(), m, term).Await(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Mode: m.String(), Query: term, Total: len(items), Items: items})
}

// StartLoadTest handles POST /personnes/_loadtest?count=&levels=&step=.
// The ramp runs in the background; only one runs at a time.
func (s *Server) StartLoadTest(w http.ResponseWriter, r *http.Request) {
	cfg := s.loadDefaults
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"count", &cfg.BatchSize},
		{"levels", &cfg.Levels},
		{"step", &cfg.Step},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, p.name+" must be a positive integer")
			return
		}
		*p.dst = v
	}
	cfg = cfg.WithDefaults()

	f, err := s.ramper.Start(s.runCtx, cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	f.Subscribe(func(rep load.Report, err error) {
		completed, failed := rep.Completions()
		if err != nil {
			s.logger.Warn("Load test stopped", zap.Int("completed", completed), zap.Error(err))
			return
		}
		s.logger.Info("Load test finished", zap.Int("completed", completed), zap.Int("failed", failed))
	})
	writeJSON(w, http.StatusAccepted, loadTestToResponse(cfg))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-safe message: the full text for argument errors,
// the sentinel text for other domain errors.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidArgument) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrLoadTestRunning,
		domain.ErrTooManyBadHits,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func itemErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return CodeValidationFailed
	case errors.Is(err, domain.ErrBackendUnavailable):
		return CodeServiceUnavailable
	default:
		return CodeInternalError
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
