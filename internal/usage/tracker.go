package usage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/goodtune/tabtime/internal/browser"
	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/domain"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/report"
	"github.com/rs/zerolog"
)

const (
	// DefaultFlushInterval is how often the running session is checked
	DefaultFlushInterval = 15 * time.Second

	// DefaultFlushThreshold is the elapsed time after which a periodic check
	// persists the running session
	DefaultFlushThreshold = 15 * time.Second

	// shutdownFlushTimeout bounds the final flush when Run returns
	shutdownFlushTimeout = 5 * time.Second

	commandBuffer = 64
)

// Recorder persists flushed seconds. *Ledger implements it.
type Recorder interface {
	AddSeconds(ctx context.Context, domain string, seconds int64) error
}

// Config holds tracker configuration
type Config struct {
	FlushInterval  time.Duration
	FlushThreshold time.Duration
	Clock          clock.Clock
}

// Tracker is the active-tab time accounting state machine. It decides, at
// every browser event, whether time accrues and for which domain, and flushes
// elapsed time to the Recorder.
//
// State transitions happen under mu and never wait on the store; the pending
// amount is committed after mu is released.
type Tracker struct {
	recorder       Recorder
	tabs           browser.TabSource
	clock          clock.Clock
	flushInterval  time.Duration
	flushThreshold time.Duration
	commands       chan Command
	logger         zerolog.Logger

	mu      sync.Mutex
	session Session
	active  bool
}

// pending is elapsed time cut from the session that still has to be recorded.
type pending struct {
	domain  string
	seconds int64
	trigger string
}

// NewTracker creates a new tracker with nothing tracked and the user present.
func NewTracker(recorder Recorder, tabs browser.TabSource, config Config, logger zerolog.Logger) *Tracker {
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.FlushThreshold <= 0 {
		config.FlushThreshold = DefaultFlushThreshold
	}
	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	return &Tracker{
		recorder:       recorder,
		tabs:           tabs,
		clock:          config.Clock,
		flushInterval:  config.FlushInterval,
		flushThreshold: config.FlushThreshold,
		commands:       make(chan Command, commandBuffer),
		logger:         logger.With().Str("component", "usage-tracker").Logger(),
		session:        Session{TabID: browser.NoTab},
		active:         true,
	}
}

// TrackActiveTab is called whenever the foreground tab or its URL may have
// changed. Repeated calls for the same tab and domain never restart a running
// clock.
func (t *Tracker) TrackActiveTab(ctx context.Context, tabID int, url string) {
	d := domain.Extract(url)

	t.mu.Lock()
	if t.session.TabID == tabID && t.session.Domain == d {
		if t.active && d != "" && !t.session.Running() {
			t.session.StartedAt = t.clock.Now()
			t.logger.Debug().Int("tab_id", tabID).Str("domain", d).Msg("Resumed tracking")
		}
		t.observeLocked()
		t.mu.Unlock()
		return
	}

	p := t.cutLocked(false, "switch")
	t.replaceLocked(tabID, d)
	t.mu.Unlock()

	t.commit(ctx, p)
}

// TabRemoved flushes and clears the session when the tracked tab closes.
func (t *Tracker) TabRemoved(ctx context.Context, tabID int) {
	t.mu.Lock()
	if tabID == browser.NoTab || t.session.TabID != tabID {
		t.mu.Unlock()
		return
	}

	p := t.cutLocked(false, "tab_removed")
	t.clearLocked()
	t.mu.Unlock()

	t.commit(ctx, p)
}

// WindowFocusChanged pauses tracking when every browser window loses focus and
// resumes it when one regains focus.
func (t *Tracker) WindowFocusChanged(ctx context.Context, hasFocus bool) {
	t.setActive(ctx, hasFocus, "focus_lost")
}

// ActivitySignal applies an idle/active report from the activity monitor.
func (t *Tracker) ActivitySignal(ctx context.Context, active bool) {
	t.setActive(ctx, active, "idle")
}

func (t *Tracker) setActive(ctx context.Context, active bool, trigger string) {
	t.mu.Lock()
	if t.active == active {
		t.mu.Unlock()
		return
	}

	t.active = active
	var p pending
	if active {
		// Nothing accrued while inactive: the clock was cut when we paused.
		if t.session.Domain != "" {
			t.session.StartedAt = t.clock.Now()
		}
	} else {
		p = t.cutLocked(false, trigger)
	}
	t.observeLocked()

	t.logger.Debug().
		Bool("active", active).
		Str("domain", t.session.Domain).
		Str("trigger", trigger).
		Msg("Activity state changed")
	t.mu.Unlock()

	t.commit(ctx, p)
}

// Tick persists the running session once it has accrued at least the flush
// threshold, then keeps the clock running. This bounds what an ungraceful
// exit can lose to one threshold.
func (t *Tracker) Tick(ctx context.Context) {
	t.mu.Lock()
	if !t.active || t.session.Domain == "" || !t.session.Running() {
		t.mu.Unlock()
		return
	}
	if elapsedSeconds(t.session.StartedAt, t.clock.Now()) < roundSeconds(t.flushThreshold) {
		t.mu.Unlock()
		return
	}

	p := t.cutLocked(true, "interval")
	t.mu.Unlock()

	t.commit(ctx, p)
}

// ForceFlush persists the running session immediately and keeps the clock
// running.
func (t *Tracker) ForceFlush(ctx context.Context) {
	t.mu.Lock()
	p := t.cutLocked(true, "force_save")
	t.mu.Unlock()

	t.commit(ctx, p)
}

// Initialize rebuilds the session from the browser's current foreground tab,
// replacing whatever is tracked.
func (t *Tracker) Initialize(ctx context.Context) {
	tab, err := t.tabs.ActiveTab(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to query active tab, clearing session")
		tab = nil
	}

	t.mu.Lock()
	p := t.cutLocked(false, "initialize")
	if tab == nil {
		t.clearLocked()
	} else {
		t.replaceLocked(tab.ID, domain.Extract(tab.URL))
	}
	t.mu.Unlock()

	t.commit(ctx, p)
}

// ResetUsage clears the usage record through store. A running clock restarts
// at the reset, so time accrued before it is never recorded after it.
func (t *Tracker) ResetUsage(ctx context.Context, store Resetter) error {
	t.mu.Lock()
	if t.session.Running() {
		t.session.StartedAt = t.clock.Now()
	}
	t.mu.Unlock()

	return store.Reset(ctx)
}

// Handle applies a command synchronously.
func (t *Tracker) Handle(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CommandActivity:
		t.ActivitySignal(ctx, cmd.Active)
	case CommandForceSave:
		t.ForceFlush(ctx)
	default:
		t.logger.Debug().Int("kind", int(cmd.Kind)).Msg("Ignoring unknown command")
	}
}

// Send queues a command for Run without blocking. It reports false when the
// queue is full and the command was dropped.
func (t *Tracker) Send(cmd Command) bool {
	select {
	case t.commands <- cmd:
		return true
	default:
		t.logger.Warn().Stringer("command", cmd.Kind).Msg("Command queue full, dropping command")
		return false
	}
}

// Run consumes queued commands and drives the periodic flush until ctx is
// cancelled, then flushes the running session one last time.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	t.logger.Info().
		Dur("flush_interval", t.flushInterval).
		Dur("flush_threshold", t.flushThreshold).
		Msg("Usage tracker started")

	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return nil
		case cmd := <-t.commands:
			t.Handle(ctx, cmd)
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

func (t *Tracker) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	t.mu.Lock()
	p := t.cutLocked(false, "shutdown")
	t.observeLocked()
	t.mu.Unlock()

	t.commit(ctx, p)
	t.logger.Info().Msg("Usage tracker stopped")
}

// Status returns a snapshot of the tracker state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		TabID:   t.session.TabID,
		Domain:  t.session.Domain,
		Active:  t.active,
		Running: t.session.Running(),
	}
	if status.Running {
		started := t.session.StartedAt
		status.StartedAt = &started
		if elapsed := elapsedSeconds(started, t.clock.Now()); elapsed > 0 {
			status.ElapsedSeconds = elapsed
		}
	}
	return status
}

// cutLocked takes the elapsed time out of the running session and either
// restarts the clock (resume) or stops it. Must be called with mu held.
func (t *Tracker) cutLocked(resume bool, trigger string) pending {
	if t.session.Domain == "" || !t.session.Running() {
		return pending{}
	}

	now := t.clock.Now()
	p := pending{
		domain:  t.session.Domain,
		seconds: elapsedSeconds(t.session.StartedAt, now),
		trigger: trigger,
	}

	if resume && t.active {
		t.session.StartedAt = now
	} else {
		t.session.StartedAt = time.Time{}
	}
	t.observeLocked()

	return p
}

// replaceLocked starts a fresh session. Must be called with mu held.
func (t *Tracker) replaceLocked(tabID int, d string) {
	t.session = Session{TabID: tabID, Domain: d}
	if d != "" && t.active {
		t.session.StartedAt = t.clock.Now()
	}
	t.observeLocked()

	t.logger.Debug().
		Int("tab_id", tabID).
		Str("domain", d).
		Bool("running", t.session.Running()).
		Msg("Tracking tab")
}

// clearLocked forgets the session. Must be called with mu held.
func (t *Tracker) clearLocked() {
	t.session = Session{TabID: browser.NoTab}
	t.observeLocked()
}

func (t *Tracker) observeLocked() {
	if t.session.Running() {
		metrics.TrackingActive.Set(1)
	} else {
		metrics.TrackingActive.Set(0)
	}
}

// commit records a pending flush. Store failures are logged and the time is
// dropped, never retried.
func (t *Tracker) commit(ctx context.Context, p pending) {
	if p.domain == "" {
		return
	}
	if p.seconds <= 0 {
		metrics.FlushesTotal.WithLabelValues(p.trigger, "empty").Inc()
		return
	}

	if err := t.recorder.AddSeconds(ctx, p.domain, p.seconds); err != nil {
		metrics.FlushesTotal.WithLabelValues(p.trigger, "error").Inc()
		t.logger.Error().
			Err(err).
			Str("domain", p.domain).
			Int64("seconds", p.seconds).
			Str("trigger", p.trigger).
			Msg("Failed to persist active time")
		return
	}

	metrics.FlushesTotal.WithLabelValues(p.trigger, "ok").Inc()
	metrics.SecondsTracked.WithLabelValues(report.Categorize(p.domain)).Add(float64(p.seconds))

	t.logger.Debug().
		Str("domain", p.domain).
		Int64("seconds", p.seconds).
		Str("trigger", p.trigger).
		Msg("Persisted active time")
}

// elapsedSeconds rounds the interval to the nearest whole second, halves away
// from zero. A clock that went backwards yields a negative value.
func elapsedSeconds(start, now time.Time) int64 {
	return roundSeconds(now.Sub(start))
}

func roundSeconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
