package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/poll"
	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage"
)

func seedTrip(t *testing.T, s *Store, days int) trip.Trip {
	t.Helper()
	tr, err := s.CreateTrip(context.Background(), trip.Trip{
		Name:    "Lisbon",
		OwnerID: "alice",
		Members: []trip.Member{{UserID: "alice", JoinedAt: time.Now()}},
		NumDays: days,
	})
	require.NoError(t, err)
	return tr
}

func TestStore_UsernameUniqueCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateUser(ctx, user.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, user.User{ID: "u2", Username: "ALICE"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.CreateUser(ctx, user.User{ID: "u1", Username: "other"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestStore_FriendRequestAcceptCreatesFriendship(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.CreateUser(ctx, user.User{ID: "a", Username: "a"})
	_, _ = s.CreateUser(ctx, user.User{ID: "b", Username: "b"})

	req, err := s.CreateFriendRequest(ctx, user.FriendRequest{From: "a", To: "b"})
	require.NoError(t, err)
	assert.Equal(t, user.RequestPending, req.Status)

	incoming, err := s.ListFriendRequests(ctx, "b", true)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	_, err = s.RespondFriendRequest(ctx, req.ID, user.RequestAccepted, time.Now())
	require.NoError(t, err)

	a, _ := s.GetUser(ctx, "a")
	b, _ := s.GetUser(ctx, "b")
	assert.True(t, a.IsFriend("b"))
	assert.True(t, b.IsFriend("a"))

	// resolved requests cannot be answered again
	_, err = s.RespondFriendRequest(ctx, req.ID, user.RequestDeclined, time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.RemoveFriendship(ctx, "a", "b"))
	a, _ = s.GetUser(ctx, "a")
	assert.False(t, a.IsFriend("b"))
}

func TestStore_DeleteUserRemovesFriendLinks(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.CreateUser(ctx, user.User{ID: "a", Username: "a"})
	_, _ = s.CreateUser(ctx, user.User{ID: "b", Username: "b"})
	req, _ := s.CreateFriendRequest(ctx, user.FriendRequest{From: "a", To: "b"})
	_, err := s.RespondFriendRequest(ctx, req.ID, user.RequestAccepted, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, "a"))

	b, err := s.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b.Friends)
	_, err = s.GetFriendRequest(ctx, req.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListTripsForUserOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	later := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	sooner := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	members := []trip.Member{{UserID: "alice"}}

	undated, _ := s.CreateTrip(ctx, trip.Trip{Name: "undated", Members: members, NumDays: 1})
	l, _ := s.CreateTrip(ctx, trip.Trip{Name: "later", Members: members, StartDate: &later, NumDays: 1})
	e, _ := s.CreateTrip(ctx, trip.Trip{Name: "sooner", Members: members, StartDate: &sooner, NumDays: 1})
	_, _ = s.CreateTrip(ctx, trip.Trip{Name: "other", Members: []trip.Member{{UserID: "bob"}}, NumDays: 1})

	got, err := s.ListTripsForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{e.ID, l.ID, undated.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestStore_MutateTripErrorLeavesTripUnchanged(t *testing.T) {
	s := New()
	ctx := context.Background()
	tr := seedTrip(t, s, 2)

	boom := errors.New("boom")
	_, err := s.MutateTrip(ctx, tr.ID, func(t *trip.Trip) error {
		t.Name = "changed"
		t.OrderInTab["0"] = append(t.OrderInTab["0"], "x")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetTrip(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", got.Name)
	assert.Empty(t, got.OrderInTab["0"])
}

func TestStore_CreateCardAtomicWithLayout(t *testing.T) {
	s := New()
	ctx := context.Background()
	tr := seedTrip(t, s, 2)

	c, updated, err := s.CreateCard(ctx, card.Card{TripID: tr.ID, Type: card.TypeNote, Title: "museum"}, func(t *trip.Trip) error {
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, tr.ID, updated.ID)

	// a failing layout function must not leave an orphan card behind
	_, _, err = s.CreateCard(ctx, card.Card{TripID: tr.ID, Type: card.TypeNote}, func(t *trip.Trip) error {
		return errors.New("bad tab")
	})
	require.Error(t, err)

	cards, err := s.ListCards(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	_, _, err = s.CreateCard(ctx, card.Card{TripID: "missing"}, func(t *trip.Trip) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeleteCardRequiresTripMatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	tr := seedTrip(t, s, 1)
	other := seedTrip(t, s, 1)

	c, _, err := s.CreateCard(ctx, card.Card{TripID: tr.ID, Type: card.TypeNote}, func(t *trip.Trip) error {
		t.OrderInTab.Insert("0", "placeholder", -1)
		return nil
	})
	require.NoError(t, err)

	_, err = s.DeleteCard(ctx, other.ID, c.ID, func(t *trip.Trip) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetCard(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.DeleteCard(ctx, tr.ID, c.ID, func(t *trip.Trip) error { return nil })
	require.NoError(t, err)
	_, err = s.GetCard(ctx, tr.ID, c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_DeleteTripCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	tr := seedTrip(t, s, 1)

	_, _, err := s.CreateCard(ctx, card.Card{TripID: tr.ID}, func(t *trip.Trip) error { return nil })
	require.NoError(t, err)
	p, err := s.CreatePoll(ctx, poll.Poll{TripID: tr.ID, Question: "where?"})
	require.NoError(t, err)
	ph, err := s.CreatePhoto(ctx, gallery.Photo{TripID: tr.ID, Status: gallery.StatusReady})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTrip(ctx, tr.ID))

	cards, _ := s.ListCards(ctx, tr.ID)
	assert.Empty(t, cards)
	_, err = s.GetPoll(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetPhoto(ctx, ph.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTrip(ctx, tr.ID), storage.ErrNotFound)
}

func TestStore_AlbumDeleteClearsPhotoMembership(t *testing.T) {
	s := New()
	ctx := context.Background()
	tr := seedTrip(t, s, 1)

	album, err := s.CreateAlbum(ctx, gallery.Album{TripID: tr.ID, Name: "beach"})
	require.NoError(t, err)
	ph, err := s.CreatePhoto(ctx, gallery.Photo{TripID: tr.ID, Status: gallery.StatusReady, AlbumIDs: []string{album.ID}})
	require.NoError(t, err)
	album.CoverPhotoID = ph.ID
	_, err = s.UpdateAlbum(ctx, album)
	require.NoError(t, err)

	inAlbum, err := s.ListPhotos(ctx, tr.ID, storage.PhotoFilter{AlbumID: album.ID})
	require.NoError(t, err)
	assert.Len(t, inAlbum, 1)

	require.NoError(t, s.DeletePhoto(ctx, ph.ID))
	got, err := s.GetAlbum(ctx, album.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CoverPhotoID)

	ph2, _ := s.CreatePhoto(ctx, gallery.Photo{TripID: tr.ID, AlbumIDs: []string{album.ID}})
	require.NoError(t, s.DeleteAlbum(ctx, album.ID))
	got2, err := s.GetPhoto(ctx, ph2.ID)
	require.NoError(t, err)
	assert.Empty(t, got2.AlbumIDs)
}

func TestStore_ListExpiredOpenPolls(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired, _ := s.CreatePoll(ctx, poll.Poll{TripID: "t", ClosesAt: &past})
	_, _ = s.CreatePoll(ctx, poll.Poll{TripID: "t", ClosesAt: &future})
	_, _ = s.CreatePoll(ctx, poll.Poll{TripID: "t", ClosesAt: &past, Closed: true})
	_, _ = s.CreatePoll(ctx, poll.Poll{TripID: "t"})

	got, err := s.ListExpiredOpenPolls(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestStore_MutatePollIsolatesVotes(t *testing.T) {
	s := New()
	ctx := context.Background()
	p, _ := s.CreatePoll(ctx, poll.Poll{TripID: "t", Votes: map[string][]string{}})

	_, err := s.MutatePoll(ctx, p.ID, func(p *poll.Poll) error {
		p.Votes["alice"] = []string{"o1"}
		return errors.New("closed")
	})
	require.Error(t, err)

	got, _ := s.GetPoll(ctx, p.ID)
	assert.Empty(t, got.Votes)
}

func TestStore_ListPostsCursor(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.CreatePost(ctx, post.Post{TripID: "t", Text: "p", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	first, err := s.ListPosts(ctx, "t", storage.PostCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	next, err := s.ListPosts(ctx, "t", storage.PostCursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}, 10)
	require.NoError(t, err)
	assert.Len(t, next, 3)
	for _, p := range next {
		assert.True(t, p.CreatedAt.Before(first[1].CreatedAt))
	}
}

func TestStore_ListPostsCursorBreaksTimestampTies(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, err := s.CreatePost(ctx, post.Post{ID: id, TripID: "t", Text: "p", CreatedAt: at})
		require.NoError(t, err)
	}

	first, err := s.ListPosts(ctx, "t", storage.PostCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "p4", first[0].ID)
	assert.Equal(t, "p3", first[1].ID)

	next, err := s.ListPosts(ctx, "t", storage.PostCursor{CreatedAt: at, ID: "p3"}, 10)
	require.NoError(t, err)
	require.Len(t, next, 2)
	assert.Equal(t, "p2", next[0].ID)
	assert.Equal(t, "p1", next[1].ID)
}
