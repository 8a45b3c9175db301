package guardian

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup/internal/queue"
)

type memLinks struct {
	links map[string]Link // keyed studentID+"/"+guardianID
}

func newMemLinks() *memLinks { return &memLinks{links: map[string]Link{}} }

func key(studentID, guardianID string) string { return studentID + "/" + guardianID }

func (m *memLinks) InsertLink(_ context.Context, link Link) error {
	k := key(link.StudentID, link.GuardianID)
	if _, ok := m.links[k]; ok {
		return ErrDuplicateLink
	}
	link.CreatedAt = time.Now().UTC()
	m.links[k] = link
	return nil
}

func (m *memLinks) DeleteLink(_ context.Context, studentID, guardianID string) error {
	k := key(studentID, guardianID)
	if _, ok := m.links[k]; !ok {
		return ErrLinkNotFound
	}
	delete(m.links, k)
	return nil
}

func (m *memLinks) GetLink(_ context.Context, studentID, guardianID string) (Link, error) {
	link, ok := m.links[key(studentID, guardianID)]
	if !ok {
		return Link{}, ErrLinkNotFound
	}
	return link, nil
}

func (m *memLinks) SetAuthorizedPickup(_ context.Context, studentID, guardianID string, authorized bool) error {
	k := key(studentID, guardianID)
	link, ok := m.links[k]
	if !ok {
		return ErrLinkNotFound
	}
	link.IsAuthorizedPickup = authorized
	m.links[k] = link
	return nil
}

func (m *memLinks) ListByStudent(_ context.Context, studentID string) ([]Link, error) {
	var res []Link
	for _, l := range m.links {
		if l.StudentID == studentID {
			res = append(res, l)
		}
	}
	return res, nil
}

func (m *memLinks) CountAuthorized(_ context.Context, studentID string) (int, error) {
	n := 0
	for _, l := range m.links {
		if l.StudentID == studentID && l.IsAuthorizedPickup {
			n++
		}
	}
	return n, nil
}

func TestAddAndRevoke(t *testing.T) {
	repo := newMemLinks()
	svc := NewService(repo, queue.NewInMemory(16), 0)
	ctx := context.Background()

	link := Link{StudentID: "s1", GuardianID: "g1", Relationship: "mother", IsPrimary: true, IsAuthorizedPickup: true}
	require.NoError(t, svc.Add(ctx, "admin", link))

	err := svc.Add(ctx, "admin", link)
	assert.ErrorIs(t, err, ErrDuplicateLink)

	ok, err := svc.IsAuthorized(ctx, "s1", "g1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.Revoke(ctx, "admin", "s1", "g1"))
	err = svc.Revoke(ctx, "admin", "s1", "g1")
	assert.ErrorIs(t, err, ErrLinkNotFound)

	ok, err = svc.IsAuthorized(ctx, "s1", "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardianWithoutPickupFlag(t *testing.T) {
	repo := newMemLinks()
	svc := NewService(repo, nil, 0)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "admin", Link{StudentID: "s1", GuardianID: "aunt", Relationship: "aunt"}))

	ok, err := svc.IsGuardian(ctx, "s1", "aunt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsAuthorized(ctx, "s1", "aunt")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := svc.AuthorizedGuardianIDs(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAuthorizedPickupLimit(t *testing.T) {
	repo := newMemLinks()
	svc := NewService(repo, nil, 2)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "admin", Link{StudentID: "s1", GuardianID: "g1", IsAuthorizedPickup: true}))
	require.NoError(t, svc.Add(ctx, "admin", Link{StudentID: "s1", GuardianID: "g2", IsAuthorizedPickup: true}))

	err := svc.Add(ctx, "admin", Link{StudentID: "s1", GuardianID: "g3", IsAuthorizedPickup: true})
	assert.ErrorIs(t, err, ErrAuthorizedLimit)

	// Without the flag the link itself is fine.
	require.NoError(t, svc.Add(ctx, "admin", Link{StudentID: "s1", GuardianID: "g3"}))

	// Granting the flag later hits the same cap.
	err = svc.SetAuthorizedPickup(ctx, "admin", "s1", "g3", true)
	assert.ErrorIs(t, err, ErrAuthorizedLimit)

	// Withdrawing one frees a slot.
	require.NoError(t, svc.SetAuthorizedPickup(ctx, "admin", "s1", "g1", false))
	require.NoError(t, svc.SetAuthorizedPickup(ctx, "admin", "s1", "g3", true))

	ids, err := svc.AuthorizedGuardianIDs(ctx, "s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g2", "g3"}, ids)
}

func TestSetAuthorizedPickupUnknownLink(t *testing.T) {
	svc := NewService(newMemLinks(), nil, 0)
	err := svc.SetAuthorizedPickup(context.Background(), "admin", "s1", "ghost", true)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestChangeMessageRoundTrip(t *testing.T) {
	change := Change{ActorID: "admin", Action: "guardian.add", StudentID: "s1", GuardianID: "g1", At: time.Now().UTC().Truncate(time.Second)}
	msg, err := change.Message()
	require.NoError(t, err)
	assert.Equal(t, MessageType, msg.Type)

	decoded, err := DecodeChange(msg)
	require.NoError(t, err)
	assert.Equal(t, change, decoded)
}
