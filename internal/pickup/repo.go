package pickup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the storage contract for the lifecycle engine. Status
// changes are guarded by the expected current status so that of two
// concurrent writers exactly one wins; the loser sees ErrInvalidTransition.
type Repository interface {
	CreateRequest(ctx context.Context, req Request, approvals []GuestApproval) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, f Filter) ([]Request, error)
	FindApprovedForStudentOn(ctx context.Context, studentID string, day time.Time) ([]Request, error)

	MarkApproved(ctx context.Context, id, token string, expiresAt time.Time) (Request, error)
	MarkRejected(ctx context.Context, id, reason string) (Request, error)
	MarkCancelled(ctx context.Context, id string) (Request, error)
	MarkCompleted(ctx context.Context, id string, at time.Time, personID string, lat, lng float64) (Request, error)

	GetGuestApproval(ctx context.Context, id string) (GuestApproval, error)
	ListGuestApprovals(ctx context.Context, requestID string) ([]GuestApproval, error)
	ListPendingApprovalsForGuardian(ctx context.Context, guardianID string) ([]GuestApproval, error)
	DecideGuestApproval(ctx context.Context, id string, status ApprovalStatus, at time.Time) (GuestApproval, error)
}

const requestColumns = `id, student_id, requester_id, request_type, status, scheduled_at, actual_pickup_at,
	request_lat, request_lng, pickup_lat, pickup_lng,
	guest_name, guest_phone, guest_id_number, guest_photo_url,
	rejection_reason, pickup_person_id, qr_token, qr_expires_at, created_at, updated_at`

// PostgresRepository persists pickup requests in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateRequest inserts the request and its guest approvals in one
// transaction so a failure leaves no orphaned approval rows.
func (r *PostgresRepository) CreateRequest(ctx context.Context, req Request, approvals []GuestApproval) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = StatusPending
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Request{}, err
	}
	defer tx.Rollback()

	var guestName, guestPhone, guestIDNumber, guestPhotoURL *string
	if req.Guest != nil {
		guestName, guestPhone = &req.Guest.Name, &req.Guest.Phone
		guestIDNumber = &req.Guest.IDNumber
		if req.Guest.PhotoURL != "" {
			guestPhotoURL = &req.Guest.PhotoURL
		}
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO pickup_requests (id, student_id, requester_id, request_type, status, scheduled_at,
			request_lat, request_lng, guest_name, guest_phone, guest_id_number, guest_photo_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`, req.ID, req.StudentID, req.RequesterID, req.Type, req.Status, req.ScheduledAt,
		req.RequestLat, req.RequestLng, guestName, guestPhone, guestIDNumber, guestPhotoURL)
	if err := row.Scan(&req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}

	for i := range approvals {
		if approvals[i].ID == "" {
			approvals[i].ID = uuid.NewString()
		}
		approvals[i].RequestID = req.ID
		if approvals[i].Status == "" {
			approvals[i].Status = ApprovalPending
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO guest_approvals (id, request_id, guardian_id, status)
			VALUES ($1,$2,$3,$4)
		`, approvals[i].ID, approvals[i].RequestID, approvals[i].GuardianID, approvals[i].Status); err != nil {
			return Request{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// GetRequest returns a single request by id.
func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM pickup_requests WHERE id = $1`, id)
	return scanRequest(row)
}

// ListRequests returns requests with basic filters, newest first.
func (r *PostgresRepository) ListRequests(ctx context.Context, f Filter) ([]Request, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	query := `SELECT ` + requestColumns + ` FROM pickup_requests`
	args := []any{}
	clauses := []string{}
	if f.RequesterID != "" {
		clauses = append(clauses, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, f.RequesterID)
	}
	if f.StudentID != "" {
		clauses = append(clauses, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, f.Status)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// FindApprovedForStudentOn returns approved requests for a student scheduled
// on the given day, for manual gate lookup.
func (r *PostgresRepository) FindApprovedForStudentOn(ctx context.Context, studentID string, day time.Time) ([]Request, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM pickup_requests
		WHERE student_id = $1 AND status = $2 AND scheduled_at >= $3 AND scheduled_at < $4
		ORDER BY scheduled_at
	`, studentID, StatusApproved, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// MarkApproved moves pending -> approved and records the issued token.
func (r *PostgresRepository) MarkApproved(ctx context.Context, id, token string, expiresAt time.Time) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, qr_token = $3, qr_expires_at = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
		RETURNING `+requestColumns+`
	`, id, StatusApproved, token, expiresAt, StatusPending)
	return r.guarded(ctx, id, row)
}

// MarkRejected moves pending -> rejected with a reason.
func (r *PostgresRepository) MarkRejected(ctx context.Context, id, reason string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, rejection_reason = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING `+requestColumns+`
	`, id, StatusRejected, reason, StatusPending)
	return r.guarded(ctx, id, row)
}

// MarkCancelled moves pending or approved -> cancelled.
func (r *PostgresRepository) MarkCancelled(ctx context.Context, id string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
		RETURNING `+requestColumns+`
	`, id, StatusCancelled, StatusPending, StatusApproved)
	return r.guarded(ctx, id, row)
}

// MarkCompleted moves approved -> completed, recording who took the student
// and where. Of two concurrent completions exactly one sees the row.
func (r *PostgresRepository) MarkCompleted(ctx context.Context, id string, at time.Time, personID string, lat, lng float64) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE pickup_requests
		SET status = $2, actual_pickup_at = $3, pickup_person_id = $4,
			pickup_lat = $5, pickup_lng = $6, updated_at = NOW()
		WHERE id = $1 AND status = $7
		RETURNING `+requestColumns+`
	`, id, StatusCompleted, at, personID, lat, lng, StatusApproved)
	return r.guarded(ctx, id, row)
}

// guarded resolves a no-row guarded update into ErrNotFound vs
// ErrInvalidTransition.
func (r *PostgresRepository) guarded(ctx context.Context, id string, row *sql.Row) (Request, error) {
	req, err := scanRequest(row)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}
	if _, getErr := r.GetRequest(ctx, id); getErr != nil {
		return Request{}, getErr
	}
	return Request{}, ErrInvalidTransition
}

// GetGuestApproval returns a single approval row.
func (r *PostgresRepository) GetGuestApproval(ctx context.Context, id string) (GuestApproval, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, request_id, guardian_id, status, decided_at, created_at
		FROM guest_approvals WHERE id = $1
	`, id)
	return scanApproval(row)
}

// ListGuestApprovals returns all approvals for a request.
func (r *PostgresRepository) ListGuestApprovals(ctx context.Context, requestID string) ([]GuestApproval, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, guardian_id, status, decided_at, created_at
		FROM guest_approvals WHERE request_id = $1
		ORDER BY created_at
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []GuestApproval
	for rows.Next() {
		ga, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ga)
	}
	return res, rows.Err()
}

// ListPendingApprovalsForGuardian returns approvals awaiting this guardian.
func (r *PostgresRepository) ListPendingApprovalsForGuardian(ctx context.Context, guardianID string) ([]GuestApproval, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, guardian_id, status, decided_at, created_at
		FROM guest_approvals WHERE guardian_id = $1 AND status = $2
		ORDER BY created_at
	`, guardianID, ApprovalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []GuestApproval
	for rows.Next() {
		ga, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ga)
	}
	return res, rows.Err()
}

// DecideGuestApproval moves a pending approval to a decision. Already
// decided rows return ErrInvalidTransition.
func (r *PostgresRepository) DecideGuestApproval(ctx context.Context, id string, status ApprovalStatus, at time.Time) (GuestApproval, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE guest_approvals
		SET status = $2, decided_at = $3
		WHERE id = $1 AND status = $4
		RETURNING id, request_id, guardian_id, status, decided_at, created_at
	`, id, status, at, ApprovalPending)
	ga, err := scanApproval(row)
	if err == nil {
		return ga, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return GuestApproval{}, err
	}
	if _, getErr := r.GetGuestApproval(ctx, id); getErr != nil {
		return GuestApproval{}, getErr
	}
	return GuestApproval{}, ErrInvalidTransition
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (Request, error) {
	var req Request
	var guestName, guestPhone, guestIDNumber, guestPhotoURL sql.NullString
	err := row.Scan(
		&req.ID, &req.StudentID, &req.RequesterID, &req.Type, &req.Status,
		&req.ScheduledAt, &req.ActualPickupAt,
		&req.RequestLat, &req.RequestLng, &req.PickupLat, &req.PickupLng,
		&guestName, &guestPhone, &guestIDNumber, &guestPhotoURL,
		&req.RejectionReason, &req.PickupPersonID, &req.QRToken, &req.QRExpiresAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	if guestName.Valid {
		req.Guest = &GuestInfo{
			Name:     guestName.String,
			Phone:    guestPhone.String,
			IDNumber: guestIDNumber.String,
			PhotoURL: guestPhotoURL.String,
		}
	}
	return req, nil
}

func scanApproval(row scanner) (GuestApproval, error) {
	var ga GuestApproval
	err := row.Scan(&ga.ID, &ga.RequestID, &ga.GuardianID, &ga.Status, &ga.DecidedAt, &ga.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GuestApproval{}, ErrNotFound
		}
		return GuestApproval{}, err
	}
	return ga, nil
}
