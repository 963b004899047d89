package analytics

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSink appends events to a conversation_events table for long-term
// review. Schema is created lazily via EnsureSchema.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a SQL-backed sink. Returns nil when db is nil so
// callers can fall through to another sink.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	if db == nil {
		return nil
	}
	return &PostgresSink{db: db}
}

var _ Sink = (*PostgresSink)(nil)

// EnsureSchema creates the event table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS conversation_events (
		id BIGSERIAL PRIMARY KEY,
		identity TEXT NOT NULL,
		display_name TEXT NOT NULL,
		message TEXT NOT NULL,
		stage TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("analytics: failed to ensure schema: %w", err)
	}
	return nil
}

// Record inserts one event row.
func (s *PostgresSink) Record(ctx context.Context, evt Event) error {
	const stmt = `INSERT INTO conversation_events (identity, display_name, message, stage, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, stmt, evt.Identity, evt.DisplayName, evt.Text, evt.Stage, evt.Timestamp); err != nil {
		return fmt.Errorf("analytics: failed to insert event: %w", err)
	}
	return nil
}
