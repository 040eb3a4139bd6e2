// Package browser models the tab and window state reported by the browser
// extension bridge.
package browser

import "context"

const (
	// NoTab marks the absence of a tab, matching the browser's TAB_ID_NONE.
	NoTab = -1

	// NoWindow is reported by focus events when every browser window lost
	// focus, matching WINDOW_ID_NONE.
	NoWindow = -1
)

// Tab is the subset of browser tab state the tracker needs.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Active   bool   `json:"active"`
}

// TabSource answers which tab is currently in the foreground.
type TabSource interface {
	// ActiveTab returns the foreground tab of the focused window, or nil when
	// there is none.
	ActiveTab(ctx context.Context) (*Tab, error)
}
