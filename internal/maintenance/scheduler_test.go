package maintenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tablekit/tablekit/internal/dbmanager"
)

func newTestManager(t *testing.T) *dbmanager.Manager {
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
	return mgr
}

func TestStartWithoutSchedule(t *testing.T) {
	s := New(newTestManager(t))
	if err := s.Start("", true); err != nil {
		t.Fatalf("empty schedule should be a no-op, got %v", err)
	}
	if s.running {
		t.Fatal("scheduler should not be running without a schedule")
	}
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(newTestManager(t))
	if err := s.Start("not a cron expression", false); err == nil {
		t.Fatal("expected an error for a malformed schedule")
	}
	if s.running {
		t.Fatal("scheduler should not be running after a failed start")
	}
}

func TestStartStop(t *testing.T) {
	s := New(newTestManager(t))
	if err := s.Start("0 4 * * *", false); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}
	if !s.running {
		t.Fatal("scheduler should be running")
	}
	if err := s.Start("0 4 * * *", false); err != nil {
		t.Fatalf("second start should be a no-op, got %v", err)
	}
	s.Stop()
	if s.running {
		t.Fatal("scheduler should be stopped")
	}
	s.Stop() // idempotent
}

func TestRunExecutesMaintenance(t *testing.T) {
	s := New(newTestManager(t))
	s.vacuum = true
	s.run() // optimize + vacuum against the live database
}
