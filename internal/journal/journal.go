// Package journal records transport operations in a SQLite provenance log.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Kind values for journal entries.
const (
	KindExec  = "exec"
	KindPut   = "put"
	KindGet   = "get"
	KindCopy  = "copy"
	KindMkdir = "mkdir"
	KindRmdir = "rmdir"
	KindRm    = "rm"
	KindChmod = "chmod"
)

// Entry is one recorded operation.
type Entry struct {
	ID        int64         `json:"id"`
	Machine   string        `json:"machine"`
	Kind      string        `json:"kind"`
	Detail    string        `json:"detail"` // command line or path pair
	ExitCode  int           `json:"exit_code"`
	Bytes     int64         `json:"bytes,omitempty"`
	Error     string        `json:"error,omitempty"`
	Warning   string        `json:"warning,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Journal is an append-only operation log backed by SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at the given path,
// creating parent directories as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS operations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			machine TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL,
			exit_code INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			warning TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_operations_machine ON operations(machine);
		CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Record appends an entry. The caller's operation must not fail because
// journaling did; callers are expected to log and continue on error.
func (j *Journal) Record(e Entry) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT INTO operations (machine, kind, detail, exit_code, bytes, error, warning, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Machine, e.Kind, e.Detail, e.ExitCode, e.Bytes, e.Error, e.Warning,
		e.StartedAt.UnixMilli(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT id, machine, kind, detail, exit_code, bytes, error, warning, started_at, duration_ms
		FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByMachine returns the most recent entries for one machine, newest first.
func (j *Journal) ByMachine(name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT id, machine, kind, detail, exit_code, bytes, error, warning, started_at, duration_ms
		FROM operations WHERE machine = ? ORDER BY started_at DESC, id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal for %s: %w", name, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Prune deletes entries started before the cutoff and returns how many
// were removed.
func (j *Journal) Prune(olderThan time.Time) (int64, error) {
	res, err := j.db.Exec(`DELETE FROM operations WHERE started_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned entries: %w", err)
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedMs, durationMs int64
		if err := rows.Scan(&e.ID, &e.Machine, &e.Kind, &e.Detail, &e.ExitCode,
			&e.Bytes, &e.Error, &e.Warning, &startedMs, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.StartedAt = time.UnixMilli(startedMs)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal entries: %w", err)
	}
	return entries, nil
}
