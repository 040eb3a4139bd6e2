package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	SecondsTracked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_seconds_tracked_total",
			Help: "Total active seconds flushed to the usage store, by report category",
		},
		[]string{"category"},
	)

	FlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_flushes_total",
			Help: "Flushes of the running session, by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_store_errors_total",
			Help: "Usage store operations that failed",
		},
		[]string{"op"},
	)

	TrackingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabtime_tracking_active",
			Help: "1 while time is accruing for a domain",
		},
	)

	// Bridge metrics
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_bridge_events_total",
			Help: "Browser bridge messages received, by type",
		},
		[]string{"type"},
	)

	BridgeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabtime_bridge_connections",
			Help: "Number of open bridge WebSocket connections",
		},
	)

	// Monitor metrics
	ActivitySignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_activity_signals_total",
			Help: "Activity commands emitted by the idle monitor",
		},
		[]string{"signal"},
	)

	// Reset metrics
	ResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_resets_total",
			Help: "Usage resets, by origin",
		},
		[]string{"origin"},
	)

	// Coaching metrics
	CoachRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_coach_requests_total",
			Help: "Analysis requests sent to the coaching backend, by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SecondsTracked,
		FlushesTotal,
		StoreErrors,
		TrackingActive,
		EventsTotal,
		BridgeConnections,
		ActivitySignals,
		ResetsTotal,
		CoachRequests,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
