package pickup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled}

	allowed := map[Status][]Status{
		StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
		StatusApproved: {StatusCompleted, StatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestRequestTypeValid(t *testing.T) {
	assert.True(t, TypeStandard.Valid())
	assert.True(t, TypeEarly.Valid())
	assert.True(t, TypeGuest.Valid())
	assert.False(t, RequestType("pickup").Valid())
	assert.False(t, RequestType("").Valid())
}

func TestTransitionEventRoundTrip(t *testing.T) {
	evt := TransitionEvent{
		RequestID: "r1", StudentID: "s1", RequesterID: "p1", ActorID: "t1",
		From: StatusPending, To: StatusApproved,
	}
	msg, err := evt.Message()
	assert.NoError(t, err)
	assert.Equal(t, MessageType, msg.Type)

	decoded, err := DecodeTransition(msg)
	assert.NoError(t, err)
	assert.Equal(t, evt, decoded)
}
