// Package server exposes the routing pipeline over HTTP.
//
// Routes:
//
//	POST /v1/route   route a job, respond with the resolution
//	POST /v1/plan    render the global-routing plan (?format=svg|dot)
//	POST /v1/check   validate a job without routing
//	GET  /healthz    liveness and build information
//	GET  /metrics    Prometheus metrics, when configured
//
// Request bodies are JSON: {"job": "<TOML job>", "options": {...}}. The
// options object uses the JSON form of pipeline.Options and overrides the
// [router] table of the job.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/metalroute/pkg/buildinfo"
	"github.com/matzehuels/metalroute/pkg/errors"
	"github.com/matzehuels/metalroute/pkg/observability"
	"github.com/matzehuels/metalroute/pkg/pipeline"
	"github.com/matzehuels/metalroute/pkg/resolution"
)

// Defaults for [Config].
const (
	DefaultAddr         = ":8080"
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxBodyBytes = 32 << 20
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Config configures the server.
type Config struct {
	Addr         string
	Timeout      time.Duration
	MaxBodyBytes int64

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler

	Logger *log.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg    Config
	runner *pipeline.Runner
	log    *log.Logger
	mux    chi.Router
}

// New returns a server that routes jobs with runner.
func New(runner *pipeline.Runner, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{cfg: cfg, runner: runner, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Timeout))
		r.Post("/route", s.handleRoute)
		r.Post("/plan", s.handlePlan)
		r.Post("/check", s.handleCheck)
	})
	s.mux = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr)
		errc <- hs.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

type ctxKey struct{}

// requestID attaches a request id, reusing the caller's when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequestID returns the id assigned to the request of ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// observe reports every request to the HTTP hooks under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, path, code, time.Since(start))
		s.log.Debug("request", "id", RequestID(r.Context()), "method", r.Method, "path", path, "code", code, "elapsed", time.Since(start))
	})
}

// jobRequest is the body of every /v1 endpoint.
type jobRequest struct {
	Job     string          `json:"job"`
	Options json.RawMessage `json:"options,omitempty"`
}

type routeResponse struct {
	RequestID  string                 `json:"request_id"`
	JobHash    string                 `json:"job_hash"`
	CacheHit   bool                   `json:"cache_hit"`
	Resolution *resolution.Resolution `json:"resolution"`
}

type checkResponse struct {
	Valid    bool     `json:"valid"`
	Requests int      `json:"requests"`
	Problems []string `json:"problems,omitempty"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	res, err := s.runner.Execute(r.Context(), []byte(body.Job), body.override, nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{
		RequestID:  RequestID(r.Context()),
		JobHash:    res.JobHash,
		CacheHit:   res.CacheInfo.RouteHit,
		Resolution: res.Resolution,
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatSVG
	}
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	job, hash, err := s.runner.Load([]byte(body.Job))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts, err := s.runner.JobOptions(job, body.override)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, _, err := s.runner.RenderPlanWithCacheInfo(r.Context(), job, hash, opts, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct := "image/svg+xml"
	if format == pipeline.FormatDOT {
		ct = "text/vnd.graphviz"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decode(w, r)
	if !ok {
		return
	}
	job, _, err := s.runner.Load([]byte(body.Job))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := checkResponse{Requests: len(job.Requests)}
	for _, e := range job.Check() {
		resp.Problems = append(resp.Problems, errors.UserMessage(e))
	}
	if _, err := s.runner.JobOptions(job, body.override); err != nil {
		resp.Problems = append(resp.Problems, errors.UserMessage(err))
	}
	resp.Valid = len(resp.Problems) == 0
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*jobRequest, bool) {
	var body jobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.fail(w, r, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode request body"))
		return nil, false
	}
	if body.Job == "" {
		s.fail(w, r, errors.New(errors.ErrCodeInvalidInput, "job is required"))
		return nil, false
	}
	return &body, true
}

// override applies the options object of the body on top of the job's.
func (b *jobRequest) override(o *pipeline.Options) error {
	if len(b.Options) == 0 {
		return nil
	}
	if err := json.Unmarshal(b.Options, o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode options")
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := statusOf(code)
	if status >= 500 {
		s.log.Error("request failed", "id", RequestID(r.Context()), "code", code, "err", err)
	} else {
		s.log.Warn("request rejected", "id", RequestID(r.Context()), "code", code, "err", errors.UserMessage(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func statusOf(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidLayer, errors.ErrCodeInvalidGeometry,
		errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTimeout, errors.ErrCodeSearchAborted:
		return http.StatusServiceUnavailable
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
