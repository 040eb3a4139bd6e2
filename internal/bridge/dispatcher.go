package bridge

import (
	"context"

	"github.com/goodtune/tabtime/internal/browser"
	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/rs/zerolog"
)

// Tracker is the subset of *usage.Tracker driven by browser events.
type Tracker interface {
	TrackActiveTab(ctx context.Context, tabID int, url string)
	TabRemoved(ctx context.Context, tabID int)
	WindowFocusChanged(ctx context.Context, hasFocus bool)
	Initialize(ctx context.Context)
	Handle(ctx context.Context, cmd usage.Command)
}

// Monitor is the subset of *monitor.Monitor driven by page events.
type Monitor interface {
	RecordInteraction(ctx context.Context, kind string) bool
	Teardown(ctx context.Context)
}

// Dispatcher applies browser messages. Unknown or incomplete messages are
// ignored. Every message reaches the tracker before Dispatch moves on to the
// next one.
type Dispatcher struct {
	tracker  Tracker
	monitor  Monitor
	registry *browser.Registry
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(tracker Tracker, monitor Monitor, registry *browser.Registry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		tracker:  tracker,
		monitor:  monitor,
		registry: registry,
		logger:   logger.With().Str("component", "bridge").Logger(),
	}
}

// Dispatch applies a batch of messages in order and returns how many were
// handled.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []Message) int {
	handled := 0
	for _, msg := range msgs {
		if d.handle(ctx, msg) {
			handled++
		}
	}
	return handled
}

// Disconnect is called when an extension connection goes away. Whatever page
// it was reporting for is treated as unloaded.
func (d *Dispatcher) Disconnect(ctx context.Context) {
	d.monitor.Teardown(ctx)
}

func (d *Dispatcher) handle(ctx context.Context, msg Message) bool {
	ok := d.apply(ctx, msg)
	if ok {
		metrics.EventsTotal.WithLabelValues(msg.Type).Inc()
	} else {
		metrics.EventsTotal.WithLabelValues("ignored").Inc()
		d.logger.Debug().Str("type", msg.Type).Msg("Ignoring message")
	}
	return ok
}

func (d *Dispatcher) apply(ctx context.Context, msg Message) bool {
	switch msg.Type {
	case TypeActivity:
		if msg.Active == nil {
			return false
		}
		d.tracker.Handle(ctx, usage.Activity(*msg.Active))

	case TypeForceSave:
		d.tracker.Handle(ctx, usage.ForceSave())

	case TypeInteraction:
		return d.monitor.RecordInteraction(ctx, msg.Kind)

	case TypePageUnload:
		d.monitor.Teardown(ctx)

	case TypeTabActivated:
		if msg.TabID == nil {
			return false
		}
		return d.tabActivated(ctx, *msg.TabID, windowOrNone(msg.WindowID), msg.URL)

	case TypeTabUpdated:
		if msg.Tab == nil {
			return false
		}
		d.tabUpdated(ctx, *msg.Tab, msg.ChangedURL, msg.Status)

	case TypeTabRemoved:
		if msg.TabID == nil {
			return false
		}
		d.registry.Remove(*msg.TabID)
		d.tracker.TabRemoved(ctx, *msg.TabID)

	case TypeFocusChanged:
		if msg.WindowID == nil {
			return false
		}
		d.registry.SetFocusedWindow(*msg.WindowID)
		d.tracker.WindowFocusChanged(ctx, *msg.WindowID != browser.NoWindow)

	case TypeSnapshot:
		d.snapshot(ctx, msg.Tab, windowOrNone(msg.WindowID))

	default:
		return false
	}

	return true
}

// tabActivated tracks a newly foregrounded tab. Without a URL in the message
// the registry must know the tab; otherwise the event is dropped.
func (d *Dispatcher) tabActivated(ctx context.Context, tabID, windowID int, url string) bool {
	if url != "" {
		d.registry.Upsert(browser.Tab{ID: tabID, WindowID: windowID, URL: url, Active: true})
		d.tracker.TrackActiveTab(ctx, tabID, url)
		return true
	}

	tab, ok := d.registry.Activate(tabID, windowID)
	if !ok {
		d.logger.Debug().Int("tab_id", tabID).Msg("Activated tab is unknown")
		return false
	}
	d.tracker.TrackActiveTab(ctx, tab.ID, tab.URL)
	return true
}

// tabUpdated tracks the active tab once it finished loading or navigated.
func (d *Dispatcher) tabUpdated(ctx context.Context, tab browser.Tab, changedURL, status string) {
	if changedURL != "" {
		tab.URL = changedURL
	}
	d.registry.Upsert(tab)

	if !tab.Active {
		return
	}
	if status == StatusComplete || changedURL != "" {
		d.tracker.TrackActiveTab(ctx, tab.ID, tab.URL)
	}
}

// snapshot rebuilds tracking from the browser's current state on cold start.
func (d *Dispatcher) snapshot(ctx context.Context, tab *browser.Tab, windowID int) {
	d.registry.SetFocusedWindow(windowID)
	if tab != nil {
		t := *tab
		t.Active = true
		d.registry.Upsert(t)
	} else {
		d.registry.ClearActive()
	}
	d.tracker.Initialize(ctx)
}

func windowOrNone(id *int) int {
	if id == nil {
		return browser.NoWindow
	}
	return *id
}
