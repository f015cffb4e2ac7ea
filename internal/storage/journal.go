// Package storage provides a SQLite-backed rolling journal of emitted
// reports and pump alerts. The journal is bounded: old rows are pruned so it
// never grows past the configured row count.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"futsentry/internal/models"
)

// Journal wraps a SQLite database holding the rolling report/alert history.
type Journal struct {
	db      *sql.DB
	maxRows int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/futsentry/journal.db.
func New(dbPath string, maxRows int) (*Journal, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "futsentry", "journal.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	j := &Journal{db: db, maxRows: maxRows}
	if err := j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id         TEXT PRIMARY KEY,
			symbol     TEXT NOT NULL,
			interval   TEXT NOT NULL,
			long_pct   REAL NOT NULL,
			short_pct  REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			pct_change  REAL NOT NULL,
			horizon_min INTEGER NOT NULL,
			detected_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_detected_at ON alerts(detected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordReport appends a sent report to the journal and prunes old rows.
func (j *Journal) RecordReport(r models.ProbabilityReport) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO reports (id, symbol, interval, long_pct, short_pct, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), r.Symbol, string(r.Interval), r.LongPct, r.ShortPct, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return j.prune("reports", "created_at")
}

// RecordAlert appends an emitted pump alert to the journal and prunes old rows.
func (j *Journal) RecordAlert(a models.PumpAlert) error {
	detectedAt := a.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO alerts (id, symbol, pct_change, horizon_min, detected_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), a.Symbol, a.PctChange, a.HorizonMinutes, detectedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return j.prune("alerts", "detected_at")
}

// prune drops the oldest rows beyond the journal bound.
func (j *Journal) prune(table, tsColumn string) error {
	stmt := fmt.Sprintf(
		`DELETE FROM %s WHERE id NOT IN (SELECT id FROM %s ORDER BY %s DESC, id DESC LIMIT ?)`,
		table, table, tsColumn,
	)
	if _, err := j.db.Exec(stmt, j.maxRows); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (j *Journal) RecentAlerts(limit int) ([]models.PumpAlert, error) {
	rows, err := j.db.Query(
		`SELECT symbol, pct_change, horizon_min, detected_at FROM alerts ORDER BY detected_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.PumpAlert
	for rows.Next() {
		var a models.PumpAlert
		var ts int64
		if err := rows.Scan(&a.Symbol, &a.PctChange, &a.HorizonMinutes, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.DetectedAt = time.Unix(ts, 0)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RecentReports returns up to limit reports, newest first.
func (j *Journal) RecentReports(limit int) ([]models.ProbabilityReport, error) {
	rows, err := j.db.Query(
		`SELECT symbol, interval, long_pct, short_pct, created_at FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ProbabilityReport
	for rows.Next() {
		var r models.ProbabilityReport
		var interval string
		var ts int64
		if err := rows.Scan(&r.Symbol, &interval, &r.LongPct, &r.ShortPct, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Interval = models.Interval(interval)
		r.CreatedAt = time.Unix(ts, 0)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
