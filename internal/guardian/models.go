package guardian

import (
	"encoding/json"
	"errors"
	"time"

	"pickup/internal/queue"
)

var (
	// ErrDuplicateLink means the (student, guardian) pair already exists.
	ErrDuplicateLink = errors.New("guardian link already exists")
	// ErrLinkNotFound means no such (student, guardian) pair exists.
	ErrLinkNotFound = errors.New("guardian link not found")
	// ErrAuthorizedLimit means the per-student authorized-pickup cap is hit.
	ErrAuthorizedLimit = errors.New("authorized pickup guardian limit reached")
)

// Link connects a student to a guardian account.
type Link struct {
	StudentID          string    `json:"student_id"`
	GuardianID         string    `json:"guardian_id"`
	Relationship       string    `json:"relationship"`
	IsPrimary          bool      `json:"is_primary"`
	IsAuthorizedPickup bool      `json:"is_authorized_pickup"`
	CreatedAt          time.Time `json:"created_at"`
}

// Change describes a registry mutation, published for the audit trail.
type Change struct {
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	StudentID  string    `json:"student_id"`
	GuardianID string    `json:"guardian_id"`
	At         time.Time `json:"at"`
}

// MessageType tags registry changes on the queue.
const MessageType = "guardian.change"

// Message encodes the change for the queue.
func (c Change) Message() (queue.Message, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: body}, nil
}

// DecodeChange parses a queue message produced by Change.Message.
func DecodeChange(msg queue.Message) (Change, error) {
	var c Change
	err := json.Unmarshal(msg.Body, &c)
	return c, err
}
