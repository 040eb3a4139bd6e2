package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/goodtune/tabtime/internal/api"
	"github.com/goodtune/tabtime/internal/bridge"
	"github.com/goodtune/tabtime/internal/browser"
	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/coach"
	"github.com/goodtune/tabtime/internal/config"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/monitor"
	"github.com/goodtune/tabtime/internal/report"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/goodtune/tabtime/internal/storage/bolt"
	"github.com/goodtune/tabtime/internal/storage/memory"
	"github.com/goodtune/tabtime/internal/storage/redis"
	"github.com/goodtune/tabtime/internal/systemd"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/goodtune/tabtime/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tabtime server",
	Long:  `Start the tabtime server: the browser bridge, the HTTP API and the metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting tabtime")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	ledger := usage.NewLedger(store.Usage(), logger)

	registry, err := browser.NewRegistry(cfg.Browser.TabCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize tab registry: %w", err)
	}

	// Initialize Usage Tracker
	tracker := usage.NewTracker(
		ledger,
		registry,
		usage.Config{
			FlushInterval:  config.ParseDuration(cfg.Tracking.FlushInterval, usage.DefaultFlushInterval),
			FlushThreshold: config.ParseDuration(cfg.Tracking.FlushThreshold, usage.DefaultFlushThreshold),
			Clock:          clock.RealClock{},
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trackerDone := make(chan error, 1)
	go func() {
		trackerDone <- tracker.Run(ctx)
	}()

	logger.Info().Msg("Usage Tracker initialized")

	// Initialize Activity Monitor
	activityMonitor := monitor.New(
		tracker,
		monitor.Config{
			IdleThreshold: config.ParseDuration(cfg.Monitor.IdleThreshold, monitor.DefaultIdleThreshold),
			PollInterval:  config.ParseDuration(cfg.Monitor.PollInterval, monitor.DefaultPollInterval),
			Clock:         clock.RealClock{},
		},
		logger,
	)
	activityMonitor.Start()

	// Initialize Reset Scheduler
	var resetScheduler *usage.ResetScheduler
	if cfg.Tracking.DailyResetTime != "" {
		resetter := usage.ResetFunc(func(ctx context.Context) error {
			return tracker.ResetUsage(ctx, ledger)
		})
		resetScheduler, err = usage.NewResetScheduler(resetter, cfg.Tracking.DailyResetTime, clock.RealClock{}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Reset Scheduler: %w", err)
		}
		resetScheduler.Start()
		logger.Info().Str("reset_time", cfg.Tracking.DailyResetTime).Msg("Reset Scheduler initialized")
	}

	// Initialize Coach
	var analyzer coach.Analyzer
	if cfg.Coach.Endpoint != "" {
		analyzer = coach.NewHTTPAnalyzer(cfg.Coach.Endpoint, config.ParseDuration(cfg.Coach.Timeout, coach.DefaultTimeout))
		logger.Info().Str("endpoint", cfg.Coach.Endpoint).Msg("Coach initialized")
	}

	// Initialize bridge and API server
	dispatcher := bridge.NewDispatcher(tracker, activityMonitor, registry, logger)
	wsHandler := newWebSocketHandler(cfg.Server, dispatcher, logger)

	apiConfig := api.Config{
		ListenAddr:     net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.Port)),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TopSites:       report.DefaultTopSites,
		UI:             web.Handler(),
		Coach:          coach.New(analyzer, ledger, logger),
	}
	apiServer := api.NewServer(apiConfig, ledger, tracker, dispatcher, wsHandler, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.HTTP != nil {
		apiServer.SetListener(sdListeners.HTTP)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.MetricsPort))
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().
		Str("api", apiConfig.ListenAddr).
		Int("metrics_port", cfg.Server.MetricsPort).
		Msg("tabtime startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or forced flush)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, flushing the running session")
			tracker.Send(usage.ForceSave())
			continue
		}
		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}
	signal.Stop(sigChan)

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop event sources before the tracker so the final flush sees no new events
	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}
	wsHandler.Close()
	activityMonitor.Stop()

	if resetScheduler != nil {
		resetScheduler.Stop()
	}

	cancel()
	if err := <-trackerDone; err != nil {
		logger.Error().Err(err).Msg("Usage Tracker stopped with error")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("tabtime stopped")

	return nil
}

// newWebSocketHandler builds the bridge endpoint, admitting the same origins
// as the HTTP API.
func newWebSocketHandler(cfg config.ServerConfig, dispatcher *bridge.Dispatcher, logger zerolog.Logger) *bridge.WebSocketHandler {
	return bridge.NewWebSocketHandler(dispatcher, func(origin string) bool {
		return api.OriginAllowed(cfg.AllowedOrigins, origin)
	}, logger)
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
