// Package server exposes the social graph over HTTP.
//
// Endpoints:
//
//	GET    /api/graph                  - full people + edges dump
//	GET    /api/people                 - list people, optional filters
//	POST   /api/people                 - upsert a person (inference-driven edges)
//	GET    /api/people/{id}            - fetch one person
//	DELETE /api/people/{id}            - remove a person and their edges
//	GET    /api/path                   - shortest path between two people
//	POST   /api/connections            - manual edge adjustment
//	DELETE /api/connections            - manual edge removal
//	GET    /healthz                    - liveness probe
//	GET    /metrics                    - Prometheus metrics (optional)
//
// The manual connection endpoints can be disabled in config; they then
// answer 410 Gone so clients migrate to the person upsert flow.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickadesina/soc-cli/pkg/auth"
	"github.com/nickadesina/soc-cli/pkg/cache"
	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
)

// Config holds HTTP server settings.
type Config struct {
	// Address to bind, host:port.
	Address string
	// ReadTimeout for requests.
	ReadTimeout time.Duration
	// WriteTimeout for responses.
	WriteTimeout time.Duration
	// ConnectionWritesEnabled exposes POST/DELETE /api/connections.
	ConnectionWritesEnabled bool
	// MetricsEnabled exposes /metrics.
	MetricsEnabled bool
	// AutoConnect runs inference on person upserts.
	AutoConnect bool
	// AutoTopK caps inferred edges per upsert.
	AutoTopK int
}

// DefaultConfig returns default server settings.
func DefaultConfig() *Config {
	return &Config{
		Address:                 ":8080",
		ReadTimeout:             15 * time.Second,
		WriteTimeout:            15 * time.Second,
		ConnectionWritesEnabled: true,
		MetricsEnabled:          true,
		AutoConnect:             true,
		AutoTopK:                inference.TopKAll,
	}
}

// Persister saves the graph after successful writes. Optional.
type Persister interface {
	SaveGraph(g *graph.Graph) error
}

// Server serves the HTTP API over one in-memory graph.
type Server struct {
	config    *Config
	graph     *graph.Graph
	verifier  *auth.Verifier
	persister Persister
	logger    *log.Logger
	now       func() time.Time
	pathCache *cache.PathCache

	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex

	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	peopleGauge     prometheus.GaugeFunc
}

// New creates a server. verifier and persister may be nil.
func New(g *graph.Graph, config *Config, verifier *auth.Verifier, persister Persister, logger *log.Logger) (*Server, error) {
	if g == nil {
		return nil, fmt.Errorf("graph required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		config:    config,
		graph:     g,
		verifier:  verifier,
		persister: persister,
		logger:    logger,
		now:       time.Now,
		pathCache: cache.NewPathCache(1024, 5*time.Minute),
	}
	s.initMetrics()
	return s, nil
}

// Start begins listening. Non-blocking.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server", "err", err)
		}
	}()
	s.logger.Info("listening", "addr", listener.Addr().String())
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Handler builds the full middleware-wrapped router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.config.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /api/graph", s.handleGraphDump)
	mux.HandleFunc("GET /api/people", s.handleListPeople)
	mux.HandleFunc("POST /api/people", s.handleUpsertPerson)
	mux.HandleFunc("GET /api/people/{id}", s.handleGetPerson)
	mux.HandleFunc("DELETE /api/people/{id}", s.handleDeletePerson)
	mux.HandleFunc("GET /api/path", s.handleShortestPath)
	mux.HandleFunc("POST /api/connections", s.handleAddConnection)
	mux.HandleFunc("DELETE /api/connections", s.handleRemoveConnection)

	var handler http.Handler = mux
	if s.verifier != nil {
		handler = s.verifier.Middleware(handler)
	}
	handler = s.corsMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}
