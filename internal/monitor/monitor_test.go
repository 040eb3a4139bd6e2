package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/tabtime/internal/clock"
	"github.com/goodtune/tabtime/internal/usage"
	"github.com/rs/zerolog"
)

type recordingHandler struct {
	mu   sync.Mutex
	cmds []usage.Command
}

func (s *recordingHandler) Handle(ctx context.Context, cmd usage.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
}

func (s *recordingHandler) commands() []usage.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]usage.Command(nil), s.cmds...)
}

func setupMonitor(t *testing.T) (*Monitor, *recordingHandler, *clock.TestClock) {
	t.Helper()

	clk := clock.NewTestClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	handler := &recordingHandler{}
	m := New(handler, Config{Clock: clk}, zerolog.Nop())
	return m, handler, clk
}

func TestMonitor_RecordInteraction(t *testing.T) {
	tests := []struct {
		kind string
		want bool
	}{
		{PointerMove, true},
		{MouseMove, true},
		{KeyDown, true},
		{Scroll, true},
		{Click, true},
		{TouchStart, true},
		{"resize", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			m, handler, clk := setupMonitor(t)
			clk.Advance(30 * time.Second)

			if got := m.RecordInteraction(context.Background(), tt.kind); got != tt.want {
				t.Fatalf("RecordInteraction(%q) = %v, want %v", tt.kind, got, tt.want)
			}

			cmds := handler.commands()
			if !tt.want {
				if len(cmds) != 0 {
					t.Errorf("Expected no command for %q, got %v", tt.kind, cmds)
				}
				return
			}
			if len(cmds) != 1 || cmds[0] != usage.Activity(true) {
				t.Errorf("Expected one active command, got %v", cmds)
			}
			if !m.LastActivity().Equal(clk.Now()) {
				t.Errorf("Expected last activity %v, got %v", clk.Now(), m.LastActivity())
			}
		})
	}
}

func TestMonitor_PollRespectsThreshold(t *testing.T) {
	m, handler, clk := setupMonitor(t)

	clk.Advance(DefaultIdleThreshold)
	if m.Poll(context.Background()) {
		t.Fatal("Expected no inactive signal at exactly the threshold")
	}

	clk.Advance(time.Second)
	if !m.Poll(context.Background()) {
		t.Fatal("Expected inactive signal past the threshold")
	}

	cmds := handler.commands()
	if len(cmds) != 1 || cmds[0] != usage.Activity(false) {
		t.Errorf("Expected one inactive command, got %v", cmds)
	}

	// Still idle: repeated inactive signals are harmless and keep coming
	clk.Advance(DefaultPollInterval)
	if !m.Poll(context.Background()) {
		t.Error("Expected inactive signal on the next poll while idle")
	}
}

func TestMonitor_InteractionResetsIdleTimer(t *testing.T) {
	m, _, clk := setupMonitor(t)

	clk.Advance(100 * time.Second)
	m.RecordInteraction(context.Background(), KeyDown)
	clk.Advance(100 * time.Second)

	if m.Poll(context.Background()) {
		t.Error("Expected user to count as active after a recent interaction")
	}
}

func TestMonitor_Teardown(t *testing.T) {
	m, handler, _ := setupMonitor(t)

	m.Teardown(context.Background())

	cmds := handler.commands()
	if len(cmds) != 1 || cmds[0] != usage.ForceSave() {
		t.Errorf("Expected one force save command, got %v", cmds)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	handler := &recordingHandler{}
	m := New(handler, Config{PollInterval: 10 * time.Millisecond}, zerolog.Nop())

	m.Start()
	m.Stop()
	m.Stop()

	idle := New(handler, Config{}, zerolog.Nop())
	idle.Stop()
}
