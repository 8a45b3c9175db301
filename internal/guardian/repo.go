package guardian

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the storage contract for the registry. The Postgres
// implementation lives here; tests use an in-memory fake.
type Repository interface {
	InsertLink(ctx context.Context, link Link) error
	DeleteLink(ctx context.Context, studentID, guardianID string) error
	GetLink(ctx context.Context, studentID, guardianID string) (Link, error)
	SetAuthorizedPickup(ctx context.Context, studentID, guardianID string, authorized bool) error
	ListByStudent(ctx context.Context, studentID string) ([]Link, error)
	CountAuthorized(ctx context.Context, studentID string) (int, error)
}

// PostgresRepository persists guardian links in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// InsertLink adds a student-guardian link. Duplicate pairs return
// ErrDuplicateLink.
func (r *PostgresRepository) InsertLink(ctx context.Context, link Link) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO student_guardians (student_id, guardian_id, relationship, is_primary, is_authorized_pickup)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, guardian_id) DO NOTHING
	`, link.StudentID, link.GuardianID, link.Relationship, link.IsPrimary, link.IsAuthorizedPickup)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateLink
	}
	return nil
}

// DeleteLink removes a link; missing pairs return ErrLinkNotFound.
func (r *PostgresRepository) DeleteLink(ctx context.Context, studentID, guardianID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM student_guardians WHERE student_id = $1 AND guardian_id = $2
	`, studentID, guardianID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// GetLink fetches a single link.
func (r *PostgresRepository) GetLink(ctx context.Context, studentID, guardianID string) (Link, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT student_id, guardian_id, relationship, is_primary, is_authorized_pickup, created_at
		FROM student_guardians WHERE student_id = $1 AND guardian_id = $2
	`, studentID, guardianID)
	var l Link
	if err := row.Scan(&l.StudentID, &l.GuardianID, &l.Relationship, &l.IsPrimary, &l.IsAuthorizedPickup, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Link{}, ErrLinkNotFound
		}
		return Link{}, err
	}
	return l, nil
}

// SetAuthorizedPickup flips the pickup authorization flag.
func (r *PostgresRepository) SetAuthorizedPickup(ctx context.Context, studentID, guardianID string, authorized bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE student_guardians SET is_authorized_pickup = $3
		WHERE student_id = $1 AND guardian_id = $2
	`, studentID, guardianID, authorized)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// ListByStudent returns all links for a student.
func (r *PostgresRepository) ListByStudent(ctx context.Context, studentID string) ([]Link, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, guardian_id, relationship, is_primary, is_authorized_pickup, created_at
		FROM student_guardians WHERE student_id = $1
		ORDER BY created_at
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.StudentID, &l.GuardianID, &l.Relationship, &l.IsPrimary, &l.IsAuthorizedPickup, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// CountAuthorized counts guardians currently authorized for pickup.
func (r *PostgresRepository) CountAuthorized(ctx context.Context, studentID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM student_guardians
		WHERE student_id = $1 AND is_authorized_pickup = TRUE
	`, studentID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
