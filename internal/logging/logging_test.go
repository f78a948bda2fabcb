package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLeveledFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLeveled(log.New(&buf, "", 0))

	l.Info("Disabling swap", "device", "/dev/sda2")
	l.Error("Failed", "error", "boom")

	out := buf.String()
	if !strings.Contains(out, "[INFO] Disabling swap device /dev/sda2") {
		t.Errorf("Unexpected info line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] Failed error boom") {
		t.Errorf("Unexpected error line: %q", out)
	}
}

func TestNewWithOptionsCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger := NewWithOptions(Options{Dir: dir, RotationDays: 7})
	logger.Println("hello")

	data, err := os.ReadFile(filepath.Join(dir, logFile))
	if err != nil {
		t.Fatalf("Log file not created: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("Expected log line in file, got %q", string(data))
	}
}

func TestRotateOldLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFile)
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}
	old := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("Failed to age log: %v", err)
	}

	rotateLogsIfNeeded(path, 5)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be rotated away", path)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		// rotated file is itself older than the window and gets cleaned up
		t.Errorf("Expected aged rotated log to be removed, found %d entries", len(entries))
	}
}
