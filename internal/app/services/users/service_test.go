package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	"github.com/travelties/service_layer/internal/auth"
	"github.com/travelties/service_layer/internal/cache"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

type recordingCleaner struct{ users []string }

func (r *recordingCleaner) ForgetUser(_ context.Context, id string) error {
	r.users = append(r.users, id)
	return nil
}

func newService(t *testing.T) *Service {
	t.Helper()
	return New(memory.New(), cache.NewMemory(), time.Minute, nil)
}

func register(t *testing.T, s *Service, uid, username string) user.User {
	t.Helper()
	u, created, err := s.Register(context.Background(), auth.Identity{UID: uid, Email: uid + "@example.com"}, RegisterInput{Username: username})
	require.NoError(t, err)
	require.True(t, created)
	return u
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	u := register(t, s, "u1", "Alice.B")
	assert.Equal(t, "alice.b", u.Username)
	assert.Equal(t, "alice.b", u.DisplayName)
	assert.Equal(t, "u1@example.com", u.Email)

	again, created, err := s.Register(ctx, auth.Identity{UID: "u1"}, RegisterInput{Username: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "alice.b", again.Username)

	_, _, err = s.Register(ctx, auth.Identity{UID: "u2"}, RegisterInput{Username: "ALICE.B"})
	assert.ErrorIs(t, err, svcerrors.ErrConflict)
}

func TestRegisterRejectsBadUsernames(t *testing.T) {
	s := newService(t)
	for _, name := range []string{"", "ab", "has space", "emoji😀", "this_username_is_far_too_long_for_us"} {
		_, _, err := s.Register(context.Background(), auth.Identity{UID: "u1"}, RegisterInput{Username: name})
		assert.ErrorIs(t, err, svcerrors.ErrValidation, name)
	}
}

func TestUpdateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	register(t, s, "u1", "alice")

	_, err := s.Get(ctx, "u1")
	require.NoError(t, err)

	name := "Alice A."
	_, err = s.Update(ctx, "u1", UpdateInput{DisplayName: &name})
	require.NoError(t, err)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", got.DisplayName)

	empty := " "
	_, err = s.Update(ctx, "u1", UpdateInput{DisplayName: &empty})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)
}

func TestSearchExcludesCaller(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	register(t, s, "u1", "sam")
	register(t, s, "u2", "samantha")
	register(t, s, "u3", "bob")

	found, err := s.Search(ctx, "u1", "sa")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "u2", found[0].ID)
	assert.Empty(t, found[0].Email)
}

func TestFriendRequestFlow(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	register(t, s, "u1", "alice")
	register(t, s, "u2", "bob")

	_, err := s.SendRequest(ctx, "u1", "u1")
	assert.ErrorIs(t, err, svcerrors.ErrValidation)

	req, err := s.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, user.RequestPending, req.Status)

	_, err = s.SendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, svcerrors.ErrConflict)

	incoming, err := s.ListRequests(ctx, "u2", DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	_, err = s.Respond(ctx, "u1", req.ID, true)
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)

	accepted, err := s.Respond(ctx, "u2", req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, user.RequestAccepted, accepted.Status)

	friends, err := s.Friends(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "u2", friends[0].ID)

	_, err = s.Respond(ctx, "u2", req.ID, false)
	assert.ErrorIs(t, err, svcerrors.ErrConflict)

	_, err = s.SendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, svcerrors.ErrConflict)

	require.NoError(t, s.RemoveFriend(ctx, "u2", "u1"))
	ok, err := s.AreFriends(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.RemoveFriend(ctx, "u2", "u1"), svcerrors.ErrNotFound)
}

func TestOppositeRequestAutoAccepts(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	register(t, s, "u1", "alice")
	register(t, s, "u2", "bob")

	_, err := s.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	req, err := s.SendRequest(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, user.RequestAccepted, req.Status)
	assert.Equal(t, "u1", req.From)

	ok, err := s.AreFriends(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteRunsTripCleanup(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	cleaner := &recordingCleaner{}
	s.SetTripCleaner(cleaner)
	register(t, s, "u1", "alice")

	require.NoError(t, s.Delete(ctx, "u1"))
	assert.Equal(t, []string{"u1"}, cleaner.users)

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}
