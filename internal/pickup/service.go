package pickup

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"pickup/internal/geo"
	"pickup/internal/qrtoken"
	"pickup/internal/queue"
)

// GuardianDirectory is the slice of the guardian registry the engine needs.
type GuardianDirectory interface {
	IsAuthorized(ctx context.Context, studentID, personID string) (bool, error)
	IsGuardian(ctx context.Context, studentID, personID string) (bool, error)
	AuthorizedGuardianIDs(ctx context.Context, studentID string) ([]string, error)
}

// TokenIssuer mints and verifies pickup tokens.
type TokenIssuer interface {
	Issue(requestID string, expiresAt time.Time) (string, error)
	Verify(token string) (qrtoken.Payload, error)
}

// Quorum policies for guest approvals.
const (
	QuorumAny = "any"
	QuorumAll = "all"
)

// Policy carries the deployment's lifecycle knobs.
type Policy struct {
	// Quorum is QuorumAny or QuorumAll.
	Quorum string
	// Grace extends token validity past the scheduled pickup time.
	Grace time.Duration

	SchoolLat       float64
	SchoolLng       float64
	RadiusM         float64
	GeofenceEnforce bool
}

// Service is the pickup request lifecycle engine.
type Service struct {
	repo      Repository
	guardians GuardianDirectory
	tokens    TokenIssuer
	events    queue.Queue
	policy    Policy
	now       func() time.Time
}

// NewService wires the engine to its collaborators. events may be nil in
// tests; transitions are then simply not announced.
func NewService(repo Repository, guardians GuardianDirectory, tokens TokenIssuer, events queue.Queue, policy Policy) *Service {
	if policy.Quorum != QuorumAll {
		policy.Quorum = QuorumAny
	}
	if policy.Grace <= 0 {
		policy.Grace = 4 * time.Hour
	}
	return &Service{
		repo:      repo,
		guardians: guardians,
		tokens:    tokens,
		events:    events,
		policy:    policy,
		now:       time.Now,
	}
}

// CreateInput is the payload for Create.
type CreateInput struct {
	StudentID   string
	RequesterID string
	Type        RequestType
	ScheduledAt time.Time
	Lat         *float64
	Lng         *float64
	Guest       *GuestInfo
}

// Create validates the requester and opens a pending request. Guest requests
// additionally get one pending approval row per authorized guardian, all
// inserted atomically with the request.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	if in.StudentID == "" {
		return Request{}, invalidf("student_id", "required")
	}
	if in.RequesterID == "" {
		return Request{}, invalidf("requester_id", "required")
	}
	if !in.Type.Valid() {
		return Request{}, invalidf("request_type", "must be one of standard, early, guest")
	}
	if in.ScheduledAt.IsZero() {
		return Request{}, invalidf("scheduled_at", "required")
	}

	var approvals []GuestApproval
	if in.Type == TypeGuest {
		if in.Guest == nil || strings.TrimSpace(in.Guest.Name) == "" ||
			strings.TrimSpace(in.Guest.Phone) == "" || strings.TrimSpace(in.Guest.IDNumber) == "" {
			return Request{}, invalidf("guest", "name, phone and id_number are required for guest pickups")
		}
		ok, err := s.guardians.IsGuardian(ctx, in.StudentID, in.RequesterID)
		if err != nil {
			return Request{}, err
		}
		if !ok {
			return Request{}, ErrUnauthorizedRequester
		}
		ids, err := s.guardians.AuthorizedGuardianIDs(ctx, in.StudentID)
		if err != nil {
			return Request{}, err
		}
		if len(ids) == 0 {
			// No guardian holds the pickup flag; the delegating guardian
			// signs off on their own request so the quorum stays satisfiable.
			ids = []string{in.RequesterID}
		}
		for _, id := range ids {
			approvals = append(approvals, GuestApproval{GuardianID: id, Status: ApprovalPending})
		}
	} else {
		if in.Guest != nil {
			return Request{}, invalidf("guest", "only allowed for guest pickups")
		}
		ok, err := s.guardians.IsAuthorized(ctx, in.StudentID, in.RequesterID)
		if err != nil {
			return Request{}, err
		}
		if !ok {
			return Request{}, ErrUnauthorizedRequester
		}
	}

	req := Request{
		StudentID:   in.StudentID,
		RequesterID: in.RequesterID,
		Type:        in.Type,
		Status:      StatusPending,
		ScheduledAt: in.ScheduledAt,
		RequestLat:  in.Lat,
		RequestLng:  in.Lng,
		Guest:       in.Guest,
	}
	created, err := s.repo.CreateRequest(ctx, req, approvals)
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, TransitionEvent{
		RequestID:   created.ID,
		StudentID:   created.StudentID,
		RequesterID: created.RequesterID,
		ActorID:     in.RequesterID,
		To:          StatusPending,
		At:          s.now().UTC(),
	})
	return created, nil
}

// ApproveGuest records one guardian's decision on a guest pickup. Only the
// guardian named on the approval row may decide it. A rejection immediately
// rejects the parent request; an approval only unlocks staff review once the
// quorum policy is met.
func (s *Service) ApproveGuest(ctx context.Context, approvalID, guardianID string, approve bool) (GuestApproval, error) {
	ga, err := s.repo.GetGuestApproval(ctx, approvalID)
	if err != nil {
		return GuestApproval{}, err
	}
	if ga.GuardianID != guardianID {
		return GuestApproval{}, ErrForbidden
	}

	decision := ApprovalApproved
	if !approve {
		decision = ApprovalRejected
	}
	decided, err := s.repo.DecideGuestApproval(ctx, approvalID, decision, s.now().UTC())
	if err != nil {
		return GuestApproval{}, err
	}

	if decision == ApprovalRejected {
		parent, err := s.repo.MarkRejected(ctx, ga.RequestID, "guest pickup denied by guardian")
		if err != nil {
			// Another decision may have already closed the request; the
			// approval row itself is decided either way.
			if !errors.Is(err, ErrInvalidTransition) {
				return GuestApproval{}, err
			}
		} else {
			s.emit(ctx, TransitionEvent{
				RequestID:   parent.ID,
				StudentID:   parent.StudentID,
				RequesterID: parent.RequesterID,
				ActorID:     guardianID,
				From:        StatusPending,
				To:          StatusRejected,
				Reason:      "guest pickup denied by guardian",
				At:          s.now().UTC(),
			})
		}
	}
	return decided, nil
}

// Approve moves a pending request to approved and mints its QR token. Guest
// requests must have met the guardian quorum first.
func (s *Service) Approve(ctx context.Context, requestID, staffID string) (Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusPending {
		return Request{}, ErrInvalidTransition
	}
	if req.Type == TypeGuest {
		approvals, err := s.repo.ListGuestApprovals(ctx, requestID)
		if err != nil {
			return Request{}, err
		}
		if !s.quorumMet(approvals) {
			return Request{}, ErrQuorumNotMet
		}
	}

	expiresAt := req.ScheduledAt.Add(s.policy.Grace)
	token, err := s.tokens.Issue(requestID, expiresAt)
	if err != nil {
		return Request{}, err
	}

	// The guarded update decides the race: a concurrent approve or reject
	// leaves exactly one winner, the loser gets ErrInvalidTransition and the
	// token it minted is never persisted.
	approved, err := s.repo.MarkApproved(ctx, requestID, token, expiresAt)
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, TransitionEvent{
		RequestID:   approved.ID,
		StudentID:   approved.StudentID,
		RequesterID: approved.RequesterID,
		ActorID:     staffID,
		From:        StatusPending,
		To:          StatusApproved,
		At:          s.now().UTC(),
	})
	return approved, nil
}

// Reject moves a pending request to rejected. A non-empty reason is
// mandatory.
func (s *Service) Reject(ctx context.Context, requestID, staffID, reason string) (Request, error) {
	if strings.TrimSpace(reason) == "" {
		return Request{}, invalidf("reason", "required")
	}
	rejected, err := s.repo.MarkRejected(ctx, requestID, reason)
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, TransitionEvent{
		RequestID:   rejected.ID,
		StudentID:   rejected.StudentID,
		RequesterID: rejected.RequesterID,
		ActorID:     staffID,
		From:        StatusPending,
		To:          StatusRejected,
		Reason:      reason,
		At:          s.now().UTC(),
	})
	return rejected, nil
}

// Cancel aborts a pending or approved request. Only the original requester
// or staff may cancel. The reason is optional and only lands in the audit
// trail, never on the request row.
func (s *Service) Cancel(ctx context.Context, requestID, actorID string, isStaff bool, reason string) (Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !isStaff && req.RequesterID != actorID {
		return Request{}, ErrForbidden
	}
	cancelled, err := s.repo.MarkCancelled(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, TransitionEvent{
		RequestID:   cancelled.ID,
		StudentID:   cancelled.StudentID,
		RequesterID: cancelled.RequesterID,
		ActorID:     actorID,
		From:        req.Status,
		To:          StatusCancelled,
		Reason:      reason,
		At:          s.now().UTC(),
	})
	return cancelled, nil
}

// VerificationResult is what the gate sees after a scan or manual lookup.
// It never mutates the request; the guard confirms with Complete.
type VerificationResult struct {
	Request  Request         `json:"request"`
	Geofence geo.RadiusCheck `json:"geofence"`
	// OutOfRange flags a failed geofence check. Unless enforcement is
	// configured this is a warning the guard may override.
	OutOfRange bool `json:"out_of_range"`
}

// VerifyToken resolves a scanned QR token to its pickup request, checking
// signature, expiry, single-use and the geofence.
func (s *Service) VerifyToken(ctx context.Context, token string, lat, lng float64) (VerificationResult, error) {
	payload, verr := s.tokens.Verify(token)
	if verr != nil && !errors.Is(verr, qrtoken.ErrExpiredToken) {
		verificationsTotal.WithLabelValues("malformed").Inc()
		return VerificationResult{}, verr
	}

	req, err := s.repo.GetRequest(ctx, payload.RequestID)
	if err != nil {
		verificationsTotal.WithLabelValues("not_found").Inc()
		return VerificationResult{}, err
	}
	// A stale scan of a finished pickup reads better at the gate than a
	// bare expiry message, so the reuse check comes first.
	if req.Status == StatusCompleted {
		verificationsTotal.WithLabelValues("already_used").Inc()
		return VerificationResult{}, ErrTokenAlreadyUsed
	}
	if verr != nil {
		verificationsTotal.WithLabelValues("expired").Inc()
		return VerificationResult{}, verr
	}
	if req.QRToken == nil || *req.QRToken != token {
		verificationsTotal.WithLabelValues("malformed").Inc()
		return VerificationResult{}, qrtoken.ErrMalformedToken
	}
	if req.Status != StatusApproved {
		verificationsTotal.WithLabelValues("wrong_status").Inc()
		return VerificationResult{}, ErrInvalidTransition
	}
	return s.withGeofence(req, lat, lng)
}

// VerifyStudent is the manual fallback when a QR scan is impossible: find
// the unique approved request for the student scheduled today.
func (s *Service) VerifyStudent(ctx context.Context, studentID string, lat, lng float64) (VerificationResult, error) {
	matches, err := s.repo.FindApprovedForStudentOn(ctx, studentID, s.now())
	if err != nil {
		return VerificationResult{}, err
	}
	switch len(matches) {
	case 0:
		verificationsTotal.WithLabelValues("not_found").Inc()
		return VerificationResult{}, ErrNotFound
	case 1:
		return s.withGeofence(matches[0], lat, lng)
	default:
		verificationsTotal.WithLabelValues("ambiguous").Inc()
		return VerificationResult{}, ErrAmbiguousRequest
	}
}

func (s *Service) withGeofence(req Request, lat, lng float64) (VerificationResult, error) {
	check, err := geo.IsWithinRadius(lat, lng, s.policy.SchoolLat, s.policy.SchoolLng, s.policy.RadiusM)
	if err != nil {
		return VerificationResult{}, invalidf("location", "%v", err)
	}
	if check.Within {
		verificationsTotal.WithLabelValues("ok").Inc()
	} else {
		verificationsTotal.WithLabelValues("out_of_range").Inc()
	}
	return VerificationResult{Request: req, Geofence: check, OutOfRange: !check.Within}, nil
}

// Complete finishes an approved pickup, recording when, where and by whom
// the student left. The token is consumed by this transition: later scans
// fail with ErrTokenAlreadyUsed.
func (s *Service) Complete(ctx context.Context, requestID, guardID string, at time.Time, pickupPersonID string, lat, lng float64) (Request, error) {
	// Resolve the request before enforcing the fence so an unknown id is a
	// not-found, not a rejected location.
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	check, err := geo.IsWithinRadius(lat, lng, s.policy.SchoolLat, s.policy.SchoolLng, s.policy.RadiusM)
	if err != nil {
		return Request{}, invalidf("location", "%v", err)
	}
	if s.policy.GeofenceEnforce && !check.Within {
		return Request{}, ErrOutOfRange
	}
	if at.IsZero() {
		at = s.now().UTC()
	}
	if pickupPersonID == "" {
		pickupPersonID = req.RequesterID
	}
	completed, err := s.repo.MarkCompleted(ctx, requestID, at, pickupPersonID, lat, lng)
	if err != nil {
		return Request{}, err
	}
	s.emit(ctx, TransitionEvent{
		RequestID:   completed.ID,
		StudentID:   completed.StudentID,
		RequesterID: completed.RequesterID,
		ActorID:     guardID,
		From:        StatusApproved,
		To:          StatusCompleted,
		At:          s.now().UTC(),
	})
	return completed, nil
}

// Get returns a request, enforcing that parents only see their own.
func (s *Service) Get(ctx context.Context, requestID, callerID string, isStaff bool) (Request, error) {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	if !isStaff && req.RequesterID != callerID {
		return Request{}, ErrForbidden
	}
	return req, nil
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]Request, error) {
	return s.repo.ListRequests(ctx, f)
}

// PendingApprovalsFor returns guest approvals awaiting a guardian.
func (s *Service) PendingApprovalsFor(ctx context.Context, guardianID string) ([]GuestApproval, error) {
	return s.repo.ListPendingApprovalsForGuardian(ctx, guardianID)
}

// TokenFor returns the issued QR token of an approved request for rendering.
func (s *Service) TokenFor(ctx context.Context, requestID, callerID string, isStaff bool) (string, error) {
	req, err := s.Get(ctx, requestID, callerID, isStaff)
	if err != nil {
		return "", err
	}
	if req.Status != StatusApproved || req.QRToken == nil {
		return "", ErrInvalidTransition
	}
	return *req.QRToken, nil
}

func (s *Service) quorumMet(approvals []GuestApproval) bool {
	if len(approvals) == 0 {
		return false
	}
	approvedCount := 0
	for _, ga := range approvals {
		if ga.Status == ApprovalApproved {
			approvedCount++
		}
	}
	if s.policy.Quorum == QuorumAll {
		return approvedCount == len(approvals)
	}
	return approvedCount > 0
}

func (s *Service) emit(ctx context.Context, evt TransitionEvent) {
	transitionsTotal.WithLabelValues(string(evt.From), string(evt.To)).Inc()
	if s.events == nil {
		return
	}
	msg, err := evt.Message()
	if err != nil {
		log.Printf("encode transition event failed: %v", err)
		return
	}
	if err := s.events.Publish(ctx, msg); err != nil {
		log.Printf("publish transition event failed: %v", err)
	}
}
