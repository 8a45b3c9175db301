package pickup

import (
	"encoding/json"
	"time"

	"pickup/internal/queue"
)

// RequestType classifies why the student leaves.
type RequestType string

const (
	TypeStandard RequestType = "standard"
	TypeEarly    RequestType = "early"
	TypeGuest    RequestType = "guest"
)

// Valid returns true when the type is a supported value.
func (t RequestType) Valid() bool {
	switch t {
	case TypeStandard, TypeEarly, TypeGuest:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of a pickup request. All transitions go
// through CanTransitionTo; repositories additionally guard updates with the
// expected current status so concurrent writers cannot double-process.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo encodes the transition table:
// pending -> approved | rejected | cancelled
// approved -> completed | cancelled
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected || next == StatusCancelled
	case StatusApproved:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// ApprovalStatus is the state of a single guardian sign-off on a guest
// pickup.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	default:
		return false
	}
}

// GuestInfo identifies the non-guardian person collecting the student.
// All fields except PhotoURL are mandatory for guest requests.
type GuestInfo struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	IDNumber string `json:"id_number"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Request is a pickup request moving through the lifecycle.
type Request struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	RequesterID string      `json:"requester_id"`
	Type        RequestType `json:"request_type"`
	Status      Status      `json:"status"`

	ScheduledAt    time.Time  `json:"scheduled_at"`
	ActualPickupAt *time.Time `json:"actual_pickup_at,omitempty"`

	RequestLat *float64 `json:"request_lat,omitempty"`
	RequestLng *float64 `json:"request_lng,omitempty"`
	PickupLat  *float64 `json:"pickup_lat,omitempty"`
	PickupLng  *float64 `json:"pickup_lng,omitempty"`

	Guest *GuestInfo `json:"guest,omitempty"`

	RejectionReason *string `json:"rejection_reason,omitempty"`
	PickupPersonID  *string `json:"pickup_person_id,omitempty"`

	QRToken     *string    `json:"-"`
	QRExpiresAt *time.Time `json:"qr_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuestApproval is one guardian's sign-off on a guest pickup request.
type GuestApproval struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id"`
	GuardianID string         `json:"guardian_id"`
	Status     ApprovalStatus `json:"status"`
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows request listings.
type Filter struct {
	RequesterID string
	StudentID   string
	Status      Status
	Limit       int
	Offset      int
}

// TransitionEvent is published after every committed status change; the
// worker turns it into an audit row and a parent notification.
type TransitionEvent struct {
	RequestID   string    `json:"request_id"`
	StudentID   string    `json:"student_id"`
	RequesterID string    `json:"requester_id"`
	ActorID     string    `json:"actor_id"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// MessageType tags transition events on the queue.
const MessageType = "pickup.transition"

// Message encodes the event for the queue.
func (e TransitionEvent) Message() (queue.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: body}, nil
}

// DecodeTransition parses a queue message produced by Message.
func DecodeTransition(msg queue.Message) (TransitionEvent, error) {
	var e TransitionEvent
	err := json.Unmarshal(msg.Body, &e)
	return e, err
}
