package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresSink persists trail entries to PostgreSQL for multi-node
// deployments where the trail must outlive any single fabric process.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink wraps an open database handle.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Migrate ensures the trail schema exists.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS trail_entries (
		entry_id TEXT PRIMARY KEY,
		sequence BIGINT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		entry_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		action TEXT NOT NULL,
		payload JSONB,
		payload_hash TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Store inserts one entry.
func (s *PostgresSink) Store(ctx context.Context, e *Entry) error {
	query := `INSERT INTO trail_entries (
		entry_id, sequence, timestamp, entry_type, subject, action, payload, payload_hash, previous_hash, entry_hash
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		e.EntryID, e.Sequence, e.Timestamp.UTC(),
		string(e.EntryType), e.Subject, e.Action,
		string(e.Payload), e.PayloadHash, e.PreviousHash, e.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// Head returns the entry hash with the highest sequence, or "genesis" for an
// empty table, so a restarted process can confirm chain continuity.
func (s *PostgresSink) Head(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT entry_hash FROM trail_entries ORDER BY sequence DESC LIMIT 1")

	var head string
	err := row.Scan(&head)
	if err == sql.ErrNoRows {
		return "genesis", nil
	}
	if err != nil {
		return "", fmt.Errorf("audit: query head: %w", err)
	}
	return head, nil
}

// CountByType returns the number of persisted entries of one type.
func (s *PostgresSink) CountByType(ctx context.Context, entryType EntryType) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trail_entries WHERE entry_type = $1", string(entryType))

	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count entries: %w", err)
	}
	return n, nil
}
