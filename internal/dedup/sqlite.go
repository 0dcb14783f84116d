package dedup

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps records in a SQLite table keyed by ticket id.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	index  index
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and loads all records.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ErrDedup.MsgErr("unable to create dedup database directory", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, ErrDedup.MsgErr("unable to open dedup database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ErrDedup.MsgErr("unable to connect to dedup database", err)
	}

	s := &SQLiteStore{db: db, index: newIndex()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, ErrDedup.MsgErr("unable to initialize dedup schema", err)
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS processed (
			seq    INTEGER PRIMARY KEY AUTOINCREMENT,
			id     TEXT NOT NULL UNIQUE,
			date   TEXT NOT NULL,
			run_id TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT id, date, run_id FROM processed ORDER BY seq`)
	if err != nil {
		return ErrDedup.MsgErr("unable to read dedup database", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec Record
		var date string
		if err := rows.Scan(&rec.ID, &date, &rec.RunID); err != nil {
			return ErrCorrupt.Err(err)
		}
		if rec.Date, err = time.Parse(time.RFC3339Nano, date); err != nil {
			return ErrCorrupt.Err(err)
		}
		s.index.add(rec)
	}
	if err := rows.Err(); err != nil {
		return ErrDedup.MsgErr("unable to read dedup database", err)
	}
	return nil
}

// Contains reports whether id has been recorded.
func (s *SQLiteStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.contains(id)
}

// Append inserts rec in its own transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.index.contains(rec.ID) {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed (id, date, run_id) VALUES (?, ?, ?)`,
		rec.ID, rec.Date.UTC().Format(time.RFC3339Nano), rec.RunID)
	if err != nil {
		return ErrDedup.MsgErr("unable to insert record", err)
	}
	s.index.add(rec)
	return nil
}

// Records returns all records in insertion order.
func (s *SQLiteStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.snapshot()
}

// Len returns the number of records.
func (s *SQLiteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index.records)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
