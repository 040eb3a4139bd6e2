package browser

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry mirrors the browser's tabs from bridge events. Tabs whose removal
// was never reported age out of a bounded LRU cache.
type Registry struct {
	mu            sync.Mutex
	tabs          *lru.Cache[int, Tab]
	activeTab     int
	focusedWindow int
}

// NewRegistry creates a registry remembering at most size tabs.
func NewRegistry(size int) (*Registry, error) {
	cache, err := lru.New[int, Tab](size)
	if err != nil {
		return nil, fmt.Errorf("create tab cache: %w", err)
	}
	return &Registry{
		tabs:          cache,
		activeTab:     NoTab,
		focusedWindow: NoWindow,
	}, nil
}

// Upsert records the latest state of a tab. An active tab becomes the
// foreground tab.
func (r *Registry) Upsert(tab Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tabs.Add(tab.ID, tab)
	if tab.Active {
		r.activeTab = tab.ID
	}
}

// Activate marks tabID as the foreground tab and returns its last known state.
func (r *Registry) Activate(tabID, windowID int) (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activeTab = tabID
	tab, ok := r.tabs.Get(tabID)
	if !ok {
		return Tab{}, false
	}
	tab.Active = true
	if windowID != NoWindow {
		tab.WindowID = windowID
	}
	r.tabs.Add(tabID, tab)
	return tab, true
}

// Get returns the last known state of a tab.
func (r *Registry) Get(tabID int) (Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tabs.Get(tabID)
}

// Remove forgets a closed tab.
func (r *Registry) Remove(tabID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tabs.Remove(tabID)
	if r.activeTab == tabID {
		r.activeTab = NoTab
	}
}

// ClearActive forgets which tab is in the foreground.
func (r *Registry) ClearActive() {
	r.mu.Lock()
	r.activeTab = NoTab
	r.mu.Unlock()
}

// SetFocusedWindow records the focused window, NoWindow when none has focus.
func (r *Registry) SetFocusedWindow(windowID int) {
	r.mu.Lock()
	r.focusedWindow = windowID
	r.mu.Unlock()
}

// FocusedWindow returns the focused window id or NoWindow.
func (r *Registry) FocusedWindow() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focusedWindow
}

// Len returns the number of remembered tabs.
func (r *Registry) Len() int {
	return r.tabs.Len()
}

// ActiveTab implements TabSource.
func (r *Registry) ActiveTab(ctx context.Context) (*Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeTab == NoTab {
		return nil, nil
	}
	tab, ok := r.tabs.Get(r.activeTab)
	if !ok {
		return nil, nil
	}
	return &tab, nil
}

var _ TabSource = (*Registry)(nil)
