// Package server exposes the research workflow over HTTP: a JSON API,
// a minimal HTML page, a health check, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/researchflow/pkg/research"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Researcher answers a query. *research.Workflow satisfies it.
type Researcher interface {
	Run(ctx context.Context, query string) research.Result
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRequestTimeout bounds each research run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithDefaultQuery prefills the HTML form.
func WithDefaultQuery(q string) Option {
	return func(s *Server) {
		s.defaultQuery = q
	}
}

// Server routes HTTP requests to a Researcher.
type Server struct {
	researcher   Researcher
	router       *mux.Router
	registry     *prometheus.Registry
	metrics      *httpMetrics
	logger       *slog.Logger
	timeout      time.Duration
	defaultQuery string
}

// New creates a Server. Each Server has its own Prometheus registry.
func New(r Researcher, opts ...Option) *Server {
	s := &Server{
		researcher:   r,
		router:       mux.NewRouter(),
		registry:     prometheus.NewRegistry(),
		logger:       slog.Default(),
		timeout:      5 * time.Minute,
		defaultQuery: "What is the latest news on COVID-19 vaccines?",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = newHTTPMetrics(s.registry)
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.router.Use(s.instrument)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleForm).Methods(http.MethodPost)
	s.router.HandleFunc("/api/research", s.handleResearch).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ResearchRequest is the body of POST /api/research.
type ResearchRequest struct {
	Query string `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req ResearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	writeJSON(w, http.StatusOK, s.run(r.Context(), query))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// run executes one research query under the request timeout.
func (s *Server) run(ctx context.Context, query string) research.Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := s.researcher.Run(ctx, query)
	s.metrics.runs.WithLabelValues(strconv.FormatBool(result.Success)).Inc()
	s.logger.Info("research request",
		slog.String("run_id", result.RunID()),
		slog.Bool("success", result.Success),
		slog.Int("num_sources", result.NumSources),
	)
	return result
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
