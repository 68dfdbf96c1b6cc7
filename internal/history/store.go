// Package history persists backup run outcomes in a local sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/slaweally/SSB-Manager/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	class       TEXT    NOT NULL,
	destination TEXT    NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	failed_step TEXT    NOT NULL DEFAULT '',
	message     TEXT    NOT NULL DEFAULT '',
	dbs_dumped  INTEGER NOT NULL DEFAULT 0,
	dbs_failed  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Store records and queries backup runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one run outcome.
func (s *Store) Record(ctx context.Context, rec models.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (class, destination, started_at, duration_ms, success, failed_step, message, dbs_dumped, dbs_failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Class,
		rec.Destination,
		rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(),
		rec.Success,
		rec.FailedStep,
		rec.Message,
		rec.DBsDumped,
		rec.DBsFailed,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT class, destination, started_at, duration_ms, success, failed_step, message, dbs_dumped, dbs_failed
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var durationMS int64
		if err := rows.Scan(
			&rec.Class,
			&rec.Destination,
			&rec.StartedAt,
			&durationMS,
			&rec.Success,
			&rec.FailedStep,
			&rec.Message,
			&rec.DBsDumped,
			&rec.DBsFailed,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	return records, nil
}
