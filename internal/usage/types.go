package usage

import (
	"time"
)

// CommandKind identifies a command sent to the Tracker by the activity monitor
// or the browser bridge.
type CommandKind int

const (
	// CommandActivity reports whether the user is present.
	CommandActivity CommandKind = iota + 1

	// CommandForceSave asks for an immediate flush that keeps the clock running.
	CommandForceSave
)

func (k CommandKind) String() string {
	switch k {
	case CommandActivity:
		return "activity"
	case CommandForceSave:
		return "force_save"
	default:
		return "unknown"
	}
}

// Command is a message to the Tracker. Handling the same command twice has
// the same effect as handling it once.
type Command struct {
	Kind   CommandKind
	Active bool // only meaningful for CommandActivity
}

// Activity builds an activity command.
func Activity(active bool) Command {
	return Command{Kind: CommandActivity, Active: active}
}

// ForceSave builds a force-save command.
func ForceSave() Command {
	return Command{Kind: CommandForceSave}
}

// Session is the tab currently being timed. A zero StartedAt means the clock
// is paused; an empty Domain means the tab is not trackable.
type Session struct {
	TabID     int
	Domain    string
	StartedAt time.Time
}

// Running reports whether time is accruing.
func (s Session) Running() bool {
	return !s.StartedAt.IsZero()
}

// Status is a point-in-time view of the Tracker.
type Status struct {
	TabID          int        `json:"tab_id"`
	Domain         string     `json:"domain,omitempty"`
	Active         bool       `json:"active"`
	Running        bool       `json:"running"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds int64      `json:"elapsed_seconds"`
}
