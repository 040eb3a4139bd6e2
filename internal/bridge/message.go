// Package bridge receives browser events forwarded by the extension and routes
// them to the tab registry, the activity monitor and the usage tracker.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goodtune/tabtime/internal/browser"
)

// Message types accepted from the extension.
const (
	TypeActivity     = "activity"
	TypeForceSave    = "force_save"
	TypeInteraction  = "interaction"
	TypePageUnload   = "page_unload"
	TypeTabActivated = "tab_activated"
	TypeTabUpdated   = "tab_updated"
	TypeTabRemoved   = "tab_removed"
	TypeFocusChanged = "focus_changed"
	TypeSnapshot     = "snapshot"
)

// StatusComplete is the tab status reported once a page finished loading.
const StatusComplete = "complete"

// Message is one browser event. Only the fields relevant to Type are set.
type Message struct {
	Type string `json:"type"`

	// activity
	Active *bool `json:"active,omitempty"`

	// interaction
	Kind string `json:"kind,omitempty"`

	// tab_activated, tab_removed
	TabID *int `json:"tab_id,omitempty"`

	// tab_activated, focus_changed, snapshot
	WindowID *int `json:"window_id,omitempty"`

	// tab_activated
	URL string `json:"url,omitempty"`

	// tab_updated, snapshot
	Tab        *browser.Tab `json:"tab,omitempty"`
	ChangedURL string       `json:"changed_url,omitempty"`
	Status     string       `json:"status,omitempty"`
}

// Decode parses a payload holding either a single message object or an array
// of them.
func Decode(data []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var msgs []Message
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, fmt.Errorf("invalid message batch: %w", err)
		}
		return msgs, nil
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return []Message{msg}, nil
}
