package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Migrate creates the schema if it does not exist yet. Idempotent, safe to
// run on every start.
func (d *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		phone         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS classes (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		teacher_id TEXT REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS students (
		id         TEXT PRIMARY KEY,
		code       TEXT UNIQUE NOT NULL,
		name       TEXT NOT NULL,
		birth_date DATE,
		class_id   TEXT REFERENCES classes(id),
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS student_guardians (
		student_id           TEXT NOT NULL REFERENCES students(id),
		guardian_id          TEXT NOT NULL REFERENCES users(id),
		relationship         TEXT NOT NULL DEFAULT '',
		is_primary           BOOLEAN NOT NULL DEFAULT FALSE,
		is_authorized_pickup BOOLEAN NOT NULL DEFAULT FALSE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (student_id, guardian_id)
	);

	CREATE TABLE IF NOT EXISTS pickup_requests (
		id               TEXT PRIMARY KEY,
		student_id       TEXT NOT NULL REFERENCES students(id),
		requester_id     TEXT NOT NULL REFERENCES users(id),
		request_type     TEXT NOT NULL,
		status           TEXT NOT NULL,
		scheduled_at     TIMESTAMPTZ NOT NULL,
		actual_pickup_at TIMESTAMPTZ,
		request_lat      DOUBLE PRECISION,
		request_lng      DOUBLE PRECISION,
		pickup_lat       DOUBLE PRECISION,
		pickup_lng       DOUBLE PRECISION,
		guest_name       TEXT,
		guest_phone      TEXT,
		guest_id_number  TEXT,
		guest_photo_url  TEXT,
		rejection_reason TEXT,
		pickup_person_id TEXT,
		qr_token         TEXT,
		qr_expires_at    TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_pickup_requests_student   ON pickup_requests(student_id);
	CREATE INDEX IF NOT EXISTS idx_pickup_requests_requester ON pickup_requests(requester_id);
	CREATE INDEX IF NOT EXISTS idx_pickup_requests_status    ON pickup_requests(status);

	CREATE TABLE IF NOT EXISTS guest_approvals (
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL REFERENCES pickup_requests(id),
		guardian_id TEXT NOT NULL REFERENCES users(id),
		status      TEXT NOT NULL DEFAULT 'pending',
		decided_at  TIMESTAMPTZ,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_guest_approvals_request  ON guest_approvals(request_id);
	CREATE INDEX IF NOT EXISTS idx_guest_approvals_guardian ON guest_approvals(guardian_id);

	CREATE TABLE IF NOT EXISTS audit_log (
		id         TEXT PRIMARY KEY,
		actor_id   TEXT NOT NULL,
		action     TEXT NOT NULL,
		entity     TEXT NOT NULL,
		entity_id  TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
