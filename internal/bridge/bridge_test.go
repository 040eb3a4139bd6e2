package bridge

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tabtime/internal/browser"
	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/monitor"
	"github.com/goodtune/tabtime/internal/storage/memory"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type fakeTracker struct {
	mu    sync.Mutex
	calls []string
	cmds  []usage.Command
}

func (f *fakeTracker) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTracker) TrackActiveTab(ctx context.Context, tabID int, url string) {
	f.record(fmt.Sprintf("track %d %s", tabID, url))
}

func (f *fakeTracker) TabRemoved(ctx context.Context, tabID int) {
	f.record(fmt.Sprintf("removed %d", tabID))
}

func (f *fakeTracker) WindowFocusChanged(ctx context.Context, hasFocus bool) {
	f.record(fmt.Sprintf("focus %t", hasFocus))
}

func (f *fakeTracker) Initialize(ctx context.Context) {
	f.record("initialize")
}

func (f *fakeTracker) Handle(ctx context.Context, cmd usage.Command) {
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
}

func (f *fakeTracker) snapshot() ([]string, []usage.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]usage.Command(nil), f.cmds...)
}

type fakeMonitor struct {
	mu           sync.Mutex
	interactions []string
	teardowns    int
}

func (f *fakeMonitor) RecordInteraction(ctx context.Context, kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == "" {
		return false
	}
	f.interactions = append(f.interactions, kind)
	return true
}

func (f *fakeMonitor) Teardown(ctx context.Context) {
	f.mu.Lock()
	f.teardowns++
	f.mu.Unlock()
}

func (f *fakeMonitor) teardownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teardowns
}

func setupDispatcher(t *testing.T) (*Dispatcher, *fakeTracker, *fakeMonitor, *browser.Registry) {
	t.Helper()

	registry, err := browser.NewRegistry(16)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	tracker := &fakeTracker{}
	monitor := &fakeMonitor{}
	return NewDispatcher(tracker, monitor, registry, zerolog.Nop()), tracker, monitor, registry
}

func dispatchJSON(t *testing.T, d *Dispatcher, payload string) int {
	t.Helper()
	msgs, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode(%s) failed: %v", payload, err)
	}
	return d.Dispatch(context.Background(), msgs)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"single", `{"type":"force_save"}`, 1, false},
		{"batch", ` [{"type":"force_save"},{"type":"page_unload"}]`, 2, false},
		{"empty batch", `[]`, 0, false},
		{"empty", `  `, 0, true},
		{"garbage", `not json`, 0, true},
		{"bad batch", `[{"type":1}]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := Decode([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(msgs) != tt.want {
				t.Errorf("Expected %d messages, got %d", tt.want, len(msgs))
			}
		})
	}
}

func TestDispatcher_SignalMessages(t *testing.T) {
	d, tracker, monitor, _ := setupDispatcher(t)

	handled := dispatchJSON(t, d, `[
		{"type":"activity","active":false},
		{"type":"activity","active":true},
		{"type":"activity"},
		{"type":"force_save"},
		{"type":"interaction","kind":"keydown"},
		{"type":"interaction"},
		{"type":"page_unload"},
		{"type":"telemetry"}
	]`)

	if handled != 5 {
		t.Errorf("Expected 5 handled messages, got %d", handled)
	}

	_, cmds := tracker.snapshot()
	want := []usage.Command{usage.Activity(false), usage.Activity(true), usage.ForceSave()}
	if len(cmds) != len(want) {
		t.Fatalf("Expected commands %v, got %v", want, cmds)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("Command %d: expected %v, got %v", i, want[i], cmds[i])
		}
	}

	if len(monitor.interactions) != 1 || monitor.interactions[0] != "keydown" {
		t.Errorf("Expected one keydown interaction, got %v", monitor.interactions)
	}
	if monitor.teardownCount() != 1 {
		t.Errorf("Expected one teardown, got %d", monitor.teardownCount())
	}
}

func TestDispatcher_TabActivated(t *testing.T) {
	d, tracker, _, registry := setupDispatcher(t)

	// Unknown tab without a URL is dropped
	if dispatchJSON(t, d, `{"type":"tab_activated","tab_id":3,"window_id":1}`) != 0 {
		t.Error("Expected unknown tab activation to be ignored")
	}

	dispatchJSON(t, d, `{"type":"tab_activated","tab_id":3,"window_id":1,"url":"https://github.com/x"}`)
	dispatchJSON(t, d, `{"type":"tab_updated","tab":{"id":4,"window_id":1,"url":"https://youtube.com/y","active":false},"status":"complete"}`)
	dispatchJSON(t, d, `{"type":"tab_activated","tab_id":4,"window_id":1}`)

	calls, _ := tracker.snapshot()
	want := []string{"track 3 https://github.com/x", "track 4 https://youtube.com/y"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}

	tab, err := registry.ActiveTab(context.Background())
	if err != nil || tab == nil || tab.ID != 4 {
		t.Errorf("Expected tab 4 active in registry, got %v (%v)", tab, err)
	}
}

func TestDispatcher_TabUpdated(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "inactive tab",
			payload: `{"type":"tab_updated","tab":{"id":1,"url":"https://github.com","active":false},"status":"complete"}`,
		},
		{
			name:    "loading without url change",
			payload: `{"type":"tab_updated","tab":{"id":1,"url":"https://github.com","active":true},"status":"loading"}`,
		},
		{
			name:    "load complete",
			payload: `{"type":"tab_updated","tab":{"id":1,"url":"https://github.com","active":true},"status":"complete"}`,
			want:    "track 1 https://github.com",
		},
		{
			name:    "navigation prefers changed url",
			payload: `{"type":"tab_updated","tab":{"id":1,"url":"https://github.com","active":true},"changed_url":"https://gitlab.com/a","status":"loading"}`,
			want:    "track 1 https://gitlab.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tracker, _, _ := setupDispatcher(t)
			dispatchJSON(t, d, tt.payload)

			calls, _ := tracker.snapshot()
			if tt.want == "" {
				if len(calls) != 0 {
					t.Errorf("Expected no tracker calls, got %v", calls)
				}
				return
			}
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("Expected %q, got %v", tt.want, calls)
			}
		})
	}
}

func TestDispatcher_RemovalFocusAndSnapshot(t *testing.T) {
	d, tracker, _, registry := setupDispatcher(t)

	dispatchJSON(t, d, `[
		{"type":"tab_removed","tab_id":7},
		{"type":"tab_removed"},
		{"type":"focus_changed","window_id":-1},
		{"type":"focus_changed","window_id":2},
		{"type":"snapshot","window_id":2,"tab":{"id":9,"window_id":2,"url":"https://reddit.com"}}
	]`)

	calls, _ := tracker.snapshot()
	want := []string{"removed 7", "focus false", "focus true", "initialize"}
	if strings.Join(calls, "|") != strings.Join(want, "|") {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}

	if registry.FocusedWindow() != 2 {
		t.Errorf("Expected focused window 2, got %d", registry.FocusedWindow())
	}
	tab, _ := registry.ActiveTab(context.Background())
	if tab == nil || tab.ID != 9 {
		t.Errorf("Expected snapshot tab active, got %v", tab)
	}

	dispatchJSON(t, d, `{"type":"snapshot"}`)
	if tab, _ := registry.ActiveTab(context.Background()); tab != nil {
		t.Errorf("Expected empty snapshot to clear the active tab, got %v", tab)
	}
}

func TestWebSocketHandler(t *testing.T) {
	d, tracker, monitor, _ := setupDispatcher(t)
	handler := NewWebSocketHandler(d, func(origin string) bool {
		return origin == "chrome-extension://allowed"
	}, zerolog.Nop())

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	// Disallowed origin is rejected
	header := map[string][]string{"Origin": {"chrome-extension://other"}}
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatal("Expected upgrade from a foreign origin to fail")
	}

	header = map[string][]string{"Origin": {"chrome-extension://allowed"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tab_activated","tab_id":1,"url":"https://github.com"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for monitor.teardownCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected disconnect to trigger a teardown")
		}
		time.Sleep(10 * time.Millisecond)
	}

	calls, _ := tracker.snapshot()
	if len(calls) != 1 || calls[0] != "track 1 https://github.com" {
		t.Errorf("Expected one track call, got %v", calls)
	}
	if handler.Connections() != 0 {
		t.Errorf("Expected no open connections, got %d", handler.Connections())
	}
}

func TestDispatcher_AppliesBatchInOrder(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	clk := clock.NewTestClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	registry, err := browser.NewRegistry(16)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	ledger := usage.NewLedger(memory.New().Usage(), logger)
	tracker := usage.NewTracker(ledger, registry, usage.Config{Clock: clk}, logger)
	mon := monitor.New(tracker, monitor.Config{Clock: clk}, logger)
	d := NewDispatcher(tracker, mon, registry, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = tracker.Run(runCtx) }()

	dispatchJSON(t, d, `{"type":"tab_activated","tab_id":1,"window_id":1,"url":"https://github.com/x"}`)
	clk.Advance(5 * time.Second)

	// The click arrives before focus is lost and must not revive tracking
	dispatchJSON(t, d, `[{"type":"interaction","kind":"click"},{"type":"focus_changed","window_id":-1}]`)

	status := tracker.Status()
	if status.Active || status.Running {
		t.Fatalf("Expected tracking paused after focus loss, got %+v", status)
	}

	clk.Advance(60 * time.Second)
	tracker.ForceFlush(ctx)

	u, err := ledger.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u["github.com"] != 5 {
		t.Errorf("Expected 5 seconds for github.com, got %v", u)
	}

	// Regaining focus after an activity signal resumes the same domain
	dispatchJSON(t, d, `[{"type":"activity","active":true},{"type":"focus_changed","window_id":1}]`)
	clk.Advance(3 * time.Second)
	dispatchJSON(t, d, `{"type":"force_save"}`)

	u, err = ledger.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u["github.com"] != 8 {
		t.Errorf("Expected 8 seconds for github.com after resuming, got %v", u)
	}
}
