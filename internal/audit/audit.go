package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the audit trail. Entries are written by the worker
// from queue events, never inline with the primary operation.
type Entry struct {
	ID       string
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Detail   string
	At       time.Time
}

// Writer persists audit entries in Postgres.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a writer.
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// Insert appends one entry.
func (w *Writer) Insert(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor_id, action, entity, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.ActorID, e.Action, e.Entity, e.EntityID, e.Detail, e.At)
	return err
}
