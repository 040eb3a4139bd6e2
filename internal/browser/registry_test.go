package browser

import (
	"context"
	"testing"
)

func newTestRegistry(t *testing.T, size int) *Registry {
	t.Helper()
	r, err := NewRegistry(size)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistryActiveTab(t *testing.T) {
	r := newTestRegistry(t, 8)
	ctx := context.Background()

	tab, err := r.ActiveTab(ctx)
	if err != nil || tab != nil {
		t.Fatalf("expected no active tab, got %v, %v", tab, err)
	}

	r.Upsert(Tab{ID: 1, WindowID: 1, URL: "https://github.com/x"})
	r.Upsert(Tab{ID: 2, WindowID: 1, URL: "https://youtube.com/y", Active: true})

	tab, err = r.ActiveTab(ctx)
	if err != nil {
		t.Fatalf("ActiveTab: %v", err)
	}
	if tab == nil || tab.ID != 2 {
		t.Fatalf("expected tab 2 active, got %+v", tab)
	}

	got, ok := r.Activate(1, 1)
	if !ok || got.URL != "https://github.com/x" || !got.Active {
		t.Fatalf("unexpected activated tab %+v (ok=%v)", got, ok)
	}
	tab, _ = r.ActiveTab(ctx)
	if tab == nil || tab.ID != 1 {
		t.Fatalf("expected tab 1 active, got %+v", tab)
	}

	r.Remove(1)
	tab, _ = r.ActiveTab(ctx)
	if tab != nil {
		t.Fatalf("expected no active tab after removal, got %+v", tab)
	}
}

func TestRegistryActivateUnknownTab(t *testing.T) {
	r := newTestRegistry(t, 8)

	if _, ok := r.Activate(42, 1); ok {
		t.Fatal("expected unknown tab")
	}
	tab, _ := r.ActiveTab(context.Background())
	if tab != nil {
		t.Fatalf("expected no resolvable active tab, got %+v", tab)
	}
}

func TestRegistryEvictsOldTabs(t *testing.T) {
	r := newTestRegistry(t, 2)

	r.Upsert(Tab{ID: 1, URL: "https://a.com"})
	r.Upsert(Tab{ID: 2, URL: "https://b.com"})
	r.Upsert(Tab{ID: 3, URL: "https://c.com"})

	if r.Len() != 2 {
		t.Fatalf("expected 2 tabs, got %d", r.Len())
	}
	if _, ok := r.Get(1); ok {
		t.Error("expected tab 1 to be evicted")
	}
}

func TestRegistryFocusedWindow(t *testing.T) {
	r := newTestRegistry(t, 2)
	if r.FocusedWindow() != NoWindow {
		t.Fatalf("expected NoWindow, got %d", r.FocusedWindow())
	}
	r.SetFocusedWindow(7)
	if r.FocusedWindow() != 7 {
		t.Fatalf("expected window 7, got %d", r.FocusedWindow())
	}
}
