// Package api serves the local HTTP interface: usage queries, reset, reports
// and the browser bridge endpoints.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/tabtime/internal/bridge"
	"github.com/goodtune/tabtime/internal/coach"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	TopSites       int
	UI             http.Handler // served for every other GET path when set
	Coach          Advisor      // nil disables /api/analyze
}

// UsageLedger reads and resets the usage record. *usage.Ledger implements it.
type UsageLedger interface {
	Usage(ctx context.Context) (storage.Usage, error)
	Reset(ctx context.Context) error
}

// TrackerControl reports the tracker state and resets usage through it.
// *usage.Tracker implements it.
type TrackerControl interface {
	Status() usage.Status
	ResetUsage(ctx context.Context, store usage.Resetter) error
}

// Advisor produces coaching advice from recorded usage. *coach.Coach
// implements it.
type Advisor interface {
	Analyze(ctx context.Context) (*coach.Analysis, error)
}

// EventSink applies browser messages. *bridge.Dispatcher implements it.
type EventSink interface {
	Dispatch(ctx context.Context, msgs []bridge.Message) int
}

// Server represents the API HTTP server.
type Server struct {
	config   Config
	ledger   UsageLedger
	tracker  TrackerControl
	events   EventSink
	ws       http.Handler
	server   *http.Server
	router   *mux.Router
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new API server. ws may be nil to disable the WebSocket
// bridge endpoint.
func NewServer(cfg Config, ledger UsageLedger, tracker TrackerControl, events EventSink, ws http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		ledger:  ledger,
		tracker: tracker,
		events:  events,
		ws:      ws,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/usage", s.handleGetUsage).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/usage", s.handleResetUsage).Methods("DELETE")
	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET", "OPTIONS")
	s.router.HandleFunc("/api/events", s.handleEvents).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/analyze", s.handleAnalyze).Methods("POST", "OPTIONS")

	if s.ws != nil {
		s.router.Handle("/api/ws", s.ws).Methods("GET")
	}

	// Must be registered last
	if s.config.UI != nil {
		s.router.PathPrefix("/").Handler(s.config.UI).Methods("GET")
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-existing listener (for systemd socket activation)
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("api listen: %w", err)
		}
		s.listener = ln
	}

	s.logger.Info().
		Str("addr", s.listener.Addr().String()).
		Msg("Starting API server")

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}
