package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRunNotFound is returned by GetRun for unknown ids
var ErrRunNotFound = errors.New("run not found")

const actionColumns = `id, run_id, timestamp, action, target, status, duration_ms, error_message`

// GetRecentActions returns the N most recent teardown actions
func (d *HistoryDB) GetRecentActions(limit int) ([]ActionRecord, error) {
	query := `
	SELECT ` + actionColumns + `
	FROM actions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryActions(query, limit)
}

// GetActionsByRun returns the actions of one run in execution order
func (d *HistoryDB) GetActionsByRun(runID string) ([]ActionRecord, error) {
	query := `
	SELECT ` + actionColumns + `
	FROM actions
	WHERE run_id = ?
	ORDER BY id ASC
	`

	return d.queryActions(query, runID)
}

// GetActionsByAction returns actions filtered by action type
func (d *HistoryDB) GetActionsByAction(action string) ([]ActionRecord, error) {
	query := `
	SELECT ` + actionColumns + `
	FROM actions
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryActions(query, action)
}

// GetActionsByTarget returns actions whose target matches a LIKE pattern
func (d *HistoryDB) GetActionsByTarget(pattern string) ([]ActionRecord, error) {
	query := `
	SELECT ` + actionColumns + `
	FROM actions
	WHERE target LIKE ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryActions(query, pattern)
}

// GetRecentRuns returns the N most recent runs
func (d *HistoryDB) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := d.db.Query(`
	SELECT id, started_at, finished_at, disks, platform, dry_run, status, error_message
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run by id
func (d *HistoryDB) GetRun(id string) (Run, error) {
	row := d.db.QueryRow(`
	SELECT id, started_at, finished_at, disks, platform, dry_run, status, error_message
	FROM runs
	WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ActionStats summarizes teardown history over a period
type ActionStats struct {
	StartDate    time.Time
	EndDate      time.Time
	TotalRuns    int
	FailedRuns   int
	TotalActions int
	ByAction     map[string]int
	ByStatus     map[string]int
}

// GetActionStats returns statistics for the last N days
func (d *HistoryDB) GetActionStats(days int) (*ActionStats, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	stats := &ActionStats{
		StartDate: start,
		EndDate:   end,
		ByAction:  make(map[string]int),
		ByStatus:  make(map[string]int),
	}

	err := d.db.QueryRow(`
	SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
	FROM runs
	WHERE started_at BETWEEN ? AND ?
	`, RunFailed, start, end).Scan(&stats.TotalRuns, &stats.FailedRuns)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.Query(`
	SELECT action, status, COUNT(*)
	FROM actions
	WHERE timestamp BETWEEN ? AND ?
	GROUP BY action, status
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var action, status string
		var count int
		if err := rows.Scan(&action, &status, &count); err != nil {
			return nil, err
		}
		stats.ByAction[action] += count
		stats.ByStatus[status] += count
		stats.TotalActions += count
	}

	return stats, rows.Err()
}

func (d *HistoryDB) queryActions(query string, args ...interface{}) ([]ActionRecord, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var errMsg sql.NullString
		if err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Timestamp,
			&r.Action,
			&r.Target,
			&r.Status,
			&r.DurationMs,
			&errMsg,
		); err != nil {
			return nil, err
		}
		r.ErrorMessage = errMsg.String
		records = append(records, r)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var disks string
	var finished sql.NullTime
	var errMsg sql.NullString
	if err := s.Scan(&r.ID, &r.StartedAt, &finished, &disks, &r.Platform, &r.DryRun, &r.Status, &errMsg); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if disks != "" {
		r.Disks = strings.Split(disks, ",")
	}
	r.ErrorMessage = errMsg.String
	return r, nil
}
