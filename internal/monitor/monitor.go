// Package monitor judges whether the user is present from raw interaction
// signals and reports it to the usage tracker.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/rs/zerolog"
)

const (
	// DefaultIdleThreshold is the input silence after which the user counts
	// as idle
	DefaultIdleThreshold = 2 * time.Minute

	// DefaultPollInterval is how often idleness is re-checked
	DefaultPollInterval = 5 * time.Second
)

// Interaction kinds that count as user activity.
const (
	PointerMove = "pointermove"
	MouseMove   = "mousemove"
	KeyDown     = "keydown"
	Scroll      = "scroll"
	Click       = "click"
	TouchStart  = "touchstart"
)

var interactionKinds = map[string]struct{}{
	PointerMove: {},
	MouseMove:   {},
	KeyDown:     {},
	Scroll:      {},
	Click:       {},
	TouchStart:  {},
}

// IsInteraction reports whether kind counts as user activity.
func IsInteraction(kind string) bool {
	_, ok := interactionKinds[kind]
	return ok
}

// Handler applies commands to the tracker. *usage.Tracker implements it.
// Commands are applied before the calling event returns, so they stay ordered
// with the browser events around them.
type Handler interface {
	Handle(ctx context.Context, cmd usage.Command)
}

// Config holds monitor configuration
type Config struct {
	IdleThreshold time.Duration
	PollInterval  time.Duration
	Clock         clock.Clock
}

// Monitor tracks the time of the last user interaction and emits activity
// commands. Every command it sends is idempotent on the receiving side, so
// repeated signals are harmless.
type Monitor struct {
	handler       Handler
	clock         clock.Clock
	idleThreshold time.Duration
	pollInterval  time.Duration
	logger        zerolog.Logger

	mu           sync.Mutex
	lastActivity time.Time
	started      bool

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a monitor that considers the user active as of now.
func New(handler Handler, config Config, logger zerolog.Logger) *Monitor {
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = DefaultIdleThreshold
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	return &Monitor{
		handler:       handler,
		clock:         config.Clock,
		idleThreshold: config.IdleThreshold,
		pollInterval:  config.PollInterval,
		logger:        logger.With().Str("component", "activity-monitor").Logger(),
		lastActivity:  config.Clock.Now(),
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// RecordInteraction notes a user interaction of the given kind and reports the
// user as active. Unknown kinds are ignored.
func (m *Monitor) RecordInteraction(ctx context.Context, kind string) bool {
	if !IsInteraction(kind) {
		m.logger.Debug().Str("kind", kind).Msg("Ignoring unknown interaction")
		return false
	}

	m.mu.Lock()
	m.lastActivity = m.clock.Now()
	m.mu.Unlock()

	m.send(ctx, usage.Activity(true), "active")
	return true
}

// Poll reports the user as inactive once input has been silent for longer
// than the idle threshold. It returns true when an inactive signal was sent.
func (m *Monitor) Poll(ctx context.Context) bool {
	m.mu.Lock()
	silent := m.clock.Now().Sub(m.lastActivity)
	m.mu.Unlock()

	if silent <= m.idleThreshold {
		return false
	}

	m.send(ctx, usage.Activity(false), "inactive")
	return true
}

// Teardown asks for a final flush when the observed page goes away.
func (m *Monitor) Teardown(ctx context.Context) {
	m.send(ctx, usage.ForceSave(), "force_save")
}

// LastActivity returns the time of the last recorded interaction.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Start begins polling
func (m *Monitor) Start() {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go m.run()
	m.logger.Info().
		Dur("idle_threshold", m.idleThreshold).
		Dur("poll_interval", m.pollInterval).
		Msg("Activity monitor started")
}

// Stop stops polling and waits for the loop to exit. It is safe to call more
// than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)

		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.doneChan
		}
		m.logger.Info().Msg("Activity monitor stopped")
	})
}

func (m *Monitor) run() {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Poll(context.Background())
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) send(ctx context.Context, cmd usage.Command, signal string) {
	m.handler.Handle(ctx, cmd)
	metrics.ActivitySignals.WithLabelValues(signal).Inc()
}
