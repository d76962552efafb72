package export

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"etwtap/internal/event"
)

// SQLite stores events in an events table. Rows are buffered and inserted
// in one transaction per batch.
type SQLite struct {
	db        *sql.DB
	insert    *sql.Stmt
	pending   []*event.Event
	batchSize int
}

func NewSQLite(path string, batchSize int) (*SQLite, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	// Match the other sinks: an existing file is replaced.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	stmt, err := db.Prepare(`
		INSERT INTO events (ts, provider_id, provider_name, event_id, version,
			opcode, level, task, keywords, process_id, thread_id, activity_id,
			properties, raw_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	return &SQLite{db: db, insert: stmt, batchSize: batchSize}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            TEXT NOT NULL,
			provider_id   TEXT NOT NULL,
			provider_name TEXT,
			event_id      INTEGER NOT NULL,
			version       INTEGER NOT NULL,
			opcode        INTEGER NOT NULL,
			level         INTEGER NOT NULL,
			task          INTEGER NOT NULL,
			keywords      INTEGER NOT NULL,
			process_id    INTEGER NOT NULL,
			thread_id     INTEGER NOT NULL,
			activity_id   TEXT,
			properties    TEXT NOT NULL,
			raw_data      BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_events_provider ON events(provider_id, event_id);
		CREATE INDEX IF NOT EXISTS idx_events_pid ON events(process_id);
	`)
	return err
}

func (s *SQLite) Write(ev *event.Event) error {
	s.pending = append(s.pending, ev)
	if len(s.pending) >= s.batchSize {
		return s.Flush()
	}
	return nil
}

// Flush inserts the buffered events in one transaction.
func (s *SQLite) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	stmt := tx.Stmt(s.insert)
	for _, ev := range s.pending {
		props, err := json.Marshal(ev.Properties)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding properties: %w", err)
		}
		var activity any
		if ev.ActivityID != nil {
			activity = ev.ActivityID.String()
		}
		_, err = stmt.Exec(
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			ev.ProviderID.String(),
			ev.ProviderName,
			ev.EventID,
			ev.Version,
			ev.Opcode,
			ev.Level,
			ev.Task,
			// SQLite integers are signed; the bit pattern is kept.
			int64(ev.Keywords),
			ev.ProcessID,
			ev.ThreadID,
			activity,
			string(props),
			ev.RawData,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *SQLite) Close() error {
	err := s.Flush()
	return errors.Join(err, s.insert.Close(), s.db.Close())
}

// Count returns the number of stored rows, buffered ones excluded.
func (s *SQLite) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
