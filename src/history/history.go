// Package history keeps a local record of pipeline runs in SQLite.
// History is strictly observational: open failures disable it without
// affecting the pipeline.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

// Run is one recorded pipeline execution. Texts themselves are not stored,
// only sizes; selections can contain anything the user had focused.
type Run struct {
	ID              int64
	Timestamp       time.Time
	Provider        string
	SourceLang      string
	TargetLang      string
	SourceBytes     int
	TranslatedBytes int
	LatencyMs       int64
	Outcome         string
	ErrorKind       string
}

// Stats is the aggregate view shown from the tray menu.
type Stats struct {
	TotalRuns    int
	SuccessCount int
	AvgLatencyMs float64
}

// Open opens (creating if needed) the history database under configDir and
// initializes the schema.
func Open(configDir string) (*DB, error) {
	dbPath := filepath.Join(configDir, "select-translate.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL keeps writes from blocking the occasional stats read.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,

		provider TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,

		source_bytes INTEGER NOT NULL,
		translated_bytes INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,

		outcome TEXT NOT NULL,
		error_kind TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun inserts a run record and fills in its ID.
func (db *DB) SaveRun(r *Run) error {
	query := `
		INSERT INTO runs (
			provider, source_lang, target_lang,
			source_bytes, translated_bytes, latency_ms,
			outcome, error_kind
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		r.Provider, r.SourceLang, r.TargetLang,
		r.SourceBytes, r.TranslatedBytes, r.LatencyMs,
		r.Outcome, nullable(r.ErrorKind),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	r.ID = id
	return nil
}

// RecentRuns retrieves runs newest-first with pagination.
func (db *DB) RecentRuns(limit, offset int) ([]Run, error) {
	query := `
		SELECT
			id, timestamp, provider, source_lang, target_lang,
			source_bytes, translated_bytes, latency_ms,
			outcome, error_kind
		FROM runs
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var errorKind sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Provider, &r.SourceLang, &r.TargetLang,
			&r.SourceBytes, &r.TranslatedBytes, &r.LatencyMs,
			&r.Outcome, &errorKind,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if errorKind.Valid {
			r.ErrorKind = errorKind.String
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stats aggregates over all recorded runs. Mean latency counts successful
// runs only; failures finish at arbitrary points of the pipeline.
func (db *DB) Stats() (Stats, error) {
	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END),
			COALESCE(AVG(CASE WHEN outcome = 'success' THEN latency_ms END), 0)
		FROM runs
	`

	var s Stats
	var success sql.NullInt64
	if err := db.conn.QueryRow(query).Scan(&s.TotalRuns, &success, &s.AvgLatencyMs); err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	if success.Valid {
		s.SuccessCount = int(success.Int64)
	}
	return s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
