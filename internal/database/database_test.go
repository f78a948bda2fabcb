package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *HistoryDB {
	t.Helper()
	db, err := NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

// TestDatabaseCreation verifies database file creation and initialization
func TestDatabaseCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := NewHistoryDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file not created at %s", dbPath)
	}
}

// TestWALModeEnabled verifies that WAL mode is properly configured
func TestWALModeEnabled(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}
}

// TestSchemaCreation verifies all tables are created
func TestSchemaCreation(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"runs", "actions", "schema_version"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}

	var version int
	if err := db.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("Failed to query schema version: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected schema version 1, got %d", version)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	run := Run{
		ID:        "run-1",
		StartedAt: time.Now(),
		Disks:     []string{"da0", "da1"},
		Platform:  "freebsd",
		DryRun:    true,
	}
	if err := db.StartRun(run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunRunning {
		t.Errorf("Expected RUNNING, got %s", got.Status)
	}
	if got.FinishedAt != nil {
		t.Error("FinishedAt should be nil for a running run")
	}
	if len(got.Disks) != 2 || got.Disks[1] != "da1" {
		t.Errorf("Unexpected disks: %v", got.Disks)
	}
	if !got.DryRun {
		t.Error("Expected dry run flag to round-trip")
	}

	if err := db.FinishRun("run-1", errors.New("gmirror destroy failed")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, err = db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunFailed {
		t.Errorf("Expected FAILED, got %s", got.Status)
	}
	if got.ErrorMessage != "gmirror destroy failed" {
		t.Errorf("Unexpected error message %q", got.ErrorMessage)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := newTestDB(t)
	if err := db.FinishRun("missing", nil); err == nil {
		t.Error("Expected error finishing unknown run")
	}
	if _, err := db.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordAndQueryActions(t *testing.T) {
	db := newTestDB(t)

	if err := db.StartRun(Run{ID: "r1", StartedAt: time.Now(), Disks: []string{"da0"}, Platform: "freebsd"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	actions := []struct {
		action, target, status, errMsg string
	}{
		{"SWAPOFF", "mirror/swap0.eli", "OK", ""},
		{"REMOVE_ENCRYPTION", "mirror/swap0.eli", "OK", ""},
		{"DESTROY_MIRROR", "swap0", "ERROR", "device busy"},
	}
	for _, a := range actions {
		if err := db.RecordAction("r1", a.action, a.target, a.status, 15*time.Millisecond, a.errMsg); err != nil {
			t.Fatalf("RecordAction failed: %v", err)
		}
	}

	byRun, err := db.GetActionsByRun("r1")
	if err != nil {
		t.Fatalf("GetActionsByRun failed: %v", err)
	}
	if len(byRun) != 3 {
		t.Fatalf("Expected 3 actions, got %d", len(byRun))
	}
	if byRun[0].Action != "SWAPOFF" || byRun[2].Action != "DESTROY_MIRROR" {
		t.Errorf("Actions out of order: %+v", byRun)
	}
	if byRun[2].ErrorMessage != "device busy" {
		t.Errorf("Expected error message, got %q", byRun[2].ErrorMessage)
	}
	if byRun[0].DurationMs != 15 {
		t.Errorf("Expected 15ms duration, got %d", byRun[0].DurationMs)
	}

	recent, err := db.GetRecentActions(2)
	if err != nil {
		t.Fatalf("GetRecentActions failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("Expected 2 recent actions, got %d", len(recent))
	}

	destroys, err := db.GetActionsByAction("DESTROY_MIRROR")
	if err != nil {
		t.Fatalf("GetActionsByAction failed: %v", err)
	}
	if len(destroys) != 1 || destroys[0].Target != "swap0" {
		t.Errorf("Unexpected destroy actions: %+v", destroys)
	}

	eli, err := db.GetActionsByTarget("%.eli")
	if err != nil {
		t.Fatalf("GetActionsByTarget failed: %v", err)
	}
	if len(eli) != 2 {
		t.Errorf("Expected 2 actions on .eli targets, got %d", len(eli))
	}
}

func TestActionStats(t *testing.T) {
	db := newTestDB(t)

	if err := db.StartRun(Run{ID: "ok", StartedAt: time.Now(), Disks: []string{"sda"}, Platform: "linux"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := db.FinishRun("ok", nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	if err := db.StartRun(Run{ID: "bad", StartedAt: time.Now(), Disks: []string{"sdb"}, Platform: "linux"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := db.FinishRun("bad", errors.New("boom")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	_ = db.RecordAction("ok", "SWAPOFF", "/dev/sda2", "OK", time.Millisecond, "")
	_ = db.RecordAction("bad", "SWAPOFF", "/dev/sdb2", "ERROR", time.Millisecond, "boom")

	stats, err := db.GetActionStats(30)
	if err != nil {
		t.Fatalf("GetActionStats failed: %v", err)
	}
	if stats.TotalRuns != 2 || stats.FailedRuns != 1 {
		t.Errorf("Expected 2 runs with 1 failure, got %d/%d", stats.TotalRuns, stats.FailedRuns)
	}
	if stats.ByAction["SWAPOFF"] != 2 {
		t.Errorf("Expected 2 SWAPOFF actions, got %d", stats.ByAction["SWAPOFF"])
	}
	if stats.ByStatus["ERROR"] != 1 {
		t.Errorf("Expected 1 ERROR action, got %d", stats.ByStatus["ERROR"])
	}

	runs, err := db.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("GetRecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}
