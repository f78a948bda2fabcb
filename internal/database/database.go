package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// HistoryDB manages the SQLite database of teardown runs and actions
type HistoryDB struct {
	db *sql.DB
}

// Run represents one invocation of the removal orchestrator
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Disks        []string
	Platform     string
	DryRun       bool
	Status       string // RUNNING, SUCCESS, FAILED
	ErrorMessage string
}

// ActionRecord represents a single teardown action
type ActionRecord struct {
	ID           int64
	RunID        string
	Timestamp    time.Time
	Action       string // SWAPOFF, REMOVE_ENCRYPTION, DESTROY_MIRROR
	Target       string
	Status       string // OK, ERROR, DRY_RUN
	DurationMs   int64
	ErrorMessage string
}

// Run status values
const (
	RunRunning = "RUNNING"
	RunSuccess = "SUCCESS"
	RunFailed  = "FAILED"
)

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// A real statement instead of Ping() forces file creation
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}

	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		disks TEXT NOT NULL,
		platform TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_actions_run_id ON actions(run_id);
	CREATE INDEX IF NOT EXISTS idx_actions_timestamp ON actions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action);
	CREATE INDEX IF NOT EXISTS idx_actions_target ON actions(target);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// StartRun inserts a run in RUNNING state
func (d *HistoryDB) StartRun(run Run) error {
	_, err := d.db.Exec(
		`INSERT INTO runs (id, started_at, disks, platform, dry_run, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt,
		strings.Join(run.Disks, ","),
		run.Platform,
		run.DryRun,
		RunRunning,
	)
	return err
}

// FinishRun marks a run as finished; a non-nil runErr marks it FAILED
func (d *HistoryDB) FinishRun(id string, runErr error) error {
	status := RunSuccess
	errMsg := ""
	if runErr != nil {
		status = RunFailed
		errMsg = runErr.Error()
	}
	res, err := d.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`,
		time.Now(), status, errMsg, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RecordAction inserts a teardown action for a run
func (d *HistoryDB) RecordAction(runID, action, target, status string, duration time.Duration, errMsg string) error {
	_, err := d.db.Exec(
		`INSERT INTO actions (run_id, timestamp, action, target, status, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		time.Now(),
		action,
		target,
		status,
		duration.Milliseconds(),
		errMsg,
	)
	return err
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}
