package pickup

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorizedRequester means the requester is not an authorized
	// guardian of the student.
	ErrUnauthorizedRequester = errors.New("requester is not an authorized guardian")
	// ErrForbidden means the caller may not act on this resource.
	ErrForbidden = errors.New("not allowed to act on this resource")
	// ErrInvalidTransition means the request is not in a status the
	// operation accepts.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound means no matching request or approval exists.
	ErrNotFound = errors.New("pickup request not found")
	// ErrAmbiguousRequest means manual lookup matched more than one approved
	// request for the student today.
	ErrAmbiguousRequest = errors.New("more than one approved request matches")
	// ErrQuorumNotMet means guardian sign-offs on a guest pickup are still
	// outstanding.
	ErrQuorumNotMet = errors.New("guest approval quorum not met")
	// ErrTokenAlreadyUsed means the request behind the token was already
	// completed.
	ErrTokenAlreadyUsed = errors.New("pickup token already used")
	// ErrOutOfRange means the claimed location fails the geofence and
	// enforcement is on.
	ErrOutOfRange = errors.New("claimed location outside school radius")
)

// ValidationError reports bad input shape or range.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
