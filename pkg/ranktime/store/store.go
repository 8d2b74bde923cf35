// Package store archives finished run logs in SQLite, so timings from
// successive runs can be compared after the fact. The JSON log file is
// regenerated each run; the archive is the durable history.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/ranktime/pkg/ranktime/report"
)

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("store is closed")

// ErrNotFound is returned when a run id is not in the archive.
var ErrNotFound = errors.New("run not found")

// RunInfo describes one archived run.
type RunInfo struct {
	RunID       string
	Name        string
	Application string
	SavedAt     time.Time
	Ranks       int
}

// Store is a SQLite-backed run archive. It is suitable for
// single-process production use; only the coordinator writes to it.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates or opens an archive. The path should be a file path
// (e.g. "./runs.db") or ":memory:" for testing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			application TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			ranks INTEGER NOT NULL,
			document BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_application
		ON runs(application)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &Store{db: db}, nil
}

// Save archives one finished run's log document, replacing any earlier
// document with the same run id.
func (s *Store) Save(doc report.LogDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if doc.RunID == "" {
		return fmt.Errorf("log document has no run id")
	}

	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode run log: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, name, application, saved_at, ranks, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			name = excluded.name,
			application = excluded.application,
			saved_at = excluded.saved_at,
			ranks = excluded.ranks,
			document = excluded.document
	`, doc.RunID, doc.Name, doc.Application,
		time.Now().UTC().Format(time.RFC3339Nano), len(doc.Ranks), blob)

	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// Load returns the archived document for a run id.
func (s *Store) Load(runID string) (report.LogDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return report.LogDocument{}, ErrStoreClosed
	}

	var blob []byte
	err := s.db.QueryRow(`
		SELECT document FROM runs WHERE run_id = ?
	`, runID).Scan(&blob)

	if err == sql.ErrNoRows {
		return report.LogDocument{}, ErrNotFound
	}
	if err != nil {
		return report.LogDocument{}, fmt.Errorf("load run: %w", err)
	}

	var doc report.LogDocument
	if err := json.Unmarshal(blob, &doc); err != nil {
		return report.LogDocument{}, fmt.Errorf("decode run log: %w", err)
	}
	return doc, nil
}

// List returns the archived runs, newest first.
func (s *Store) List() ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, name, application, saved_at, ranks
		FROM runs
		ORDER BY saved_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var info RunInfo
		var savedAt string
		if err := rows.Scan(&info.RunID, &info.Name, &info.Application, &savedAt, &info.Ranks); err != nil {
			return nil, fmt.Errorf("scan run info: %w", err)
		}
		info.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return infos, nil
}

// Delete removes one archived run.
func (s *Store) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close closes the archive.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
