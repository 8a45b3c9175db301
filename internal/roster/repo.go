package roster

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means no matching roster row exists.
	ErrNotFound = errors.New("roster record not found")
	// ErrDuplicateCode means a student with this code already exists.
	ErrDuplicateCode = errors.New("student code already exists")
)

// Student is a school roster entry. Pickup requests and guardian links
// reference students, they never own them.
type Student struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	ClassID   *string    `json:"class_id,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// Class is a homeroom group of students.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TeacherID *string   `json:"teacher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account known to the service: parent, teacher, guard or admin.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateStudent inserts a student; duplicate codes return ErrDuplicateCode.
func (r *Repository) CreateStudent(ctx context.Context, st Student) (Student, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, code, name, birth_date, class_id, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (code) DO NOTHING
	`, st.ID, st.Code, st.Name, st.BirthDate, st.ClassID)
	if err != nil {
		return Student{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Student{}, err
	}
	if n == 0 {
		return Student{}, ErrDuplicateCode
	}
	return r.GetStudent(ctx, st.ID)
}

// GetStudent returns a single student by id.
func (r *Repository) GetStudent(ctx context.Context, id string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, birth_date, class_id, active, created_at
		FROM students WHERE id = $1
	`, id)
	var st Student
	if err := row.Scan(&st.ID, &st.Code, &st.Name, &st.BirthDate, &st.ClassID, &st.Active, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	return st, nil
}

// ListStudents returns active students, optionally filtered by class.
func (r *Repository) ListStudents(ctx context.Context, classID string, limit, offset int) ([]Student, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, code, name, birth_date, class_id, active, created_at FROM students WHERE active = TRUE`
	args := []any{}
	if classID != "" {
		query += ` AND class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY code LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.BirthDate, &st.ClassID, &st.Active, &st.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

// DeactivateStudent soft-deletes a student from the roster.
func (r *Repository) DeactivateStudent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateClass inserts a class.
func (r *Repository) CreateClass(ctx context.Context, cl Class) (Class, error) {
	if cl.ID == "" {
		cl.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (id, name, teacher_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, cl.ID, cl.Name, cl.TeacherID)
	if err := row.Scan(&cl.CreatedAt); err != nil {
		return Class{}, err
	}
	return cl, nil
}

// ListClasses returns all classes.
func (r *Repository) ListClasses(ctx context.Context) ([]Class, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, teacher_id, created_at FROM classes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Class
	for rows.Next() {
		var cl Class
		if err := rows.Scan(&cl.ID, &cl.Name, &cl.TeacherID, &cl.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, cl)
	}
	return res, rows.Err()
}

// GetUserByPhone looks up an account for login.
func (r *Repository) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, phone, role, password_hash, active, created_at
		FROM users WHERE phone = $1 AND active = TRUE
	`, phone)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUser returns an account by id.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, phone, role, password_hash, active, created_at
		FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
