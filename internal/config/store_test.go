package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	mgr, err := dbmanager.Open(context.Background(), dbmanager.Config{
		URL:      "sqlite://" + dbPath,
		LogLevel: "error",
	})
	if err != nil {
		t.Fatalf("failed to open manager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	store, err := NewStore(context.Background(), mgr)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetSetting("maintenance.schedule", "0 4 * * *"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	val, err := store.GetSetting("maintenance.schedule")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "0 4 * * *" {
		t.Fatalf("expected stored value back, got %q", val)
	}

	// Setting the same key again replaces the value.
	if err := store.SetSetting("maintenance.schedule", "0 2 * * *"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	val, err = store.GetSetting("maintenance.schedule")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "0 2 * * *" {
		t.Fatalf("expected replaced value, got %q", val)
	}

	val, err = store.GetSetting("missing.key")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty value for missing key, got %q", val)
	}
}

func TestLoaderTypedAccess(t *testing.T) {
	store := newTestStore(t)
	loader := NewLoader(store)

	if err := store.SetSetting("limit", "25"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	if err := store.SetSetting("maintenance.vacuum", "true"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	if err := store.SetSetting("timeout", "90s"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}

	if got := loader.Int("limit", 10); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := loader.Int("missing", 10); got != 10 {
		t.Fatalf("expected default 10, got %d", got)
	}
	if !loader.Bool("maintenance.vacuum", false) {
		t.Fatal("expected true")
	}
	if loader.Bool("missing", false) {
		t.Fatal("expected default false")
	}
	if got := loader.Duration("timeout", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	if got := loader.String("missing", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
