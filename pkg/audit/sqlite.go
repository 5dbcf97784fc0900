package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists trail entries to SQLite. It is a write-behind sink:
// the in-memory Trail stays the source of truth for chain verification and
// the sink provides durable storage and offline queries.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink wraps an open database handle and ensures the schema.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteSink opens (or creates) a database file and ensures the schema.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	return NewSQLiteSink(db)
}

func (s *SQLiteSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS trail_entries (
		entry_id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		entry_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		action TEXT NOT NULL,
		payload JSON,
		payload_hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Store inserts one entry. Entries are immutable, so there is no upsert.
func (s *SQLiteSink) Store(ctx context.Context, e *Entry) error {
	query := `INSERT INTO trail_entries (
		entry_id, sequence, timestamp, entry_type, subject, action, payload, payload_hash, previous_hash, entry_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		e.EntryID, e.Sequence, e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.EntryType), e.Subject, e.Action,
		string(e.Payload), e.PayloadHash, e.PreviousHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// Get retrieves one entry by id.
func (s *SQLiteSink) Get(ctx context.Context, entryID string) (*Entry, error) {
	query := `
		SELECT entry_id, sequence, timestamp, entry_type, subject, action, payload, payload_hash, previous_hash, entry_hash
		FROM trail_entries
		WHERE entry_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, entryID)
	return scanEntry(row)
}

// BySubject returns entries for one subject in sequence order.
func (s *SQLiteSink) BySubject(ctx context.Context, subject string, limit int) ([]*Entry, error) {
	query := `
		SELECT entry_id, sequence, timestamp, entry_type, subject, action, payload, payload_hash, previous_hash, entry_hash
		FROM trail_entries
		WHERE subject = ?
		ORDER BY sequence ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, subject, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e         Entry
		timestamp string
		entryType string
		payload   sql.NullString
	)
	err := row.Scan(&e.EntryID, &e.Sequence, &timestamp, &entryType, &e.Subject, &e.Action,
		&payload, &e.PayloadHash, &e.PreviousHash, &e.EntryHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	e.EntryType = EntryType(entryType)
	e.Timestamp = parseTime(timestamp)
	if payload.Valid {
		e.Payload = []byte(payload.String)
	}
	return &e, nil
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
