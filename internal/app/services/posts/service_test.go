package posts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

func setup(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	tr, err := store.CreateTrip(context.Background(), trip.Trip{
		Name: "Cape Town", OwnerID: "u1", NumDays: 4,
		Members: []trip.Member{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	})
	require.NoError(t, err)
	return New(store, store, access.NewChecker(store, nil, time.Minute, nil), nil, nil), store, tr.ID
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, store, tripID := setup(t)
	other, err := store.CreatePhoto(ctx, gallery.Photo{TripID: "elsewhere", Status: gallery.StatusReady})
	require.NoError(t, err)
	mine, err := store.CreatePhoto(ctx, gallery.Photo{TripID: tripID, Status: gallery.StatusReady})
	require.NoError(t, err)

	_, err = svc.Create(ctx, "u1", tripID, Input{Text: "  "})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)
	_, err = svc.Create(ctx, "u1", tripID, Input{PhotoIDs: []string{other.ID}})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)

	long := make([]byte, maxText+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Create(ctx, "u1", tripID, Input{Text: string(long)})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)

	p, err := svc.Create(ctx, "u1", tripID, Input{PhotoIDs: []string{mine.ID, mine.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, p.PhotoIDs)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		_, err := svc.Create(ctx, "u2", tripID, Input{Text: "post"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, "u1", tripID, storage.PostCursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, base.Add(4*time.Minute), page.Posts[0].CreatedAt)
	require.NotNil(t, page.NextBefore)

	page, err = svc.List(ctx, "u1", tripID, page.Next(), 2)
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, base.Add(2*time.Minute), page.Posts[0].CreatedAt)

	page, err = svc.List(ctx, "u1", tripID, page.Next(), 2)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.Nil(t, page.NextBefore)
}

func TestListPaginationWithSharedTimestamps(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return at }
	created := map[string]bool{}
	for i := 0; i < 5; i++ {
		p, err := svc.Create(ctx, "u2", tripID, Input{Text: "same second"})
		require.NoError(t, err)
		created[p.ID] = true
	}

	seen := map[string]bool{}
	cursor := storage.PostCursor{}
	for pages := 0; pages < 5; pages++ {
		page, err := svc.List(ctx, "u1", tripID, cursor, 2)
		require.NoError(t, err)
		for _, p := range page.Posts {
			assert.False(t, seen[p.ID], "post %s listed twice", p.ID)
			seen[p.ID] = true
		}
		if page.NextBefore == nil {
			break
		}
		assert.Equal(t, page.Posts[len(page.Posts)-1].ID, page.NextBeforeID)
		cursor = page.Next()
	}
	assert.Equal(t, created, seen)
}

func TestLikesAndComments(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	p, err := svc.Create(ctx, "u2", tripID, Input{Text: "Table Mountain!"})
	require.NoError(t, err)

	p, err = svc.SetLike(ctx, "u3", tripID, p.ID, true)
	require.NoError(t, err)
	p, err = svc.SetLike(ctx, "u3", tripID, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, p.Likes)
	p, err = svc.SetLike(ctx, "u3", tripID, p.ID, false)
	require.NoError(t, err)
	assert.Empty(t, p.Likes)

	p, err = svc.AddComment(ctx, "u3", tripID, p.ID, "wow")
	require.NoError(t, err)
	require.Len(t, p.Comments, 1)
	commentID := p.Comments[0].ID

	_, err = svc.DeleteComment(ctx, "u1", tripID, p.ID, commentID)
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
	p, err = svc.DeleteComment(ctx, "u2", tripID, p.ID, commentID)
	require.NoError(t, err)
	assert.Empty(t, p.Comments)

	_, err = svc.DeleteComment(ctx, "u2", tripID, p.ID, commentID)
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}

func TestEditAndDeletePermissions(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	p, err := svc.Create(ctx, "u2", tripID, Input{Text: "first"})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, "u3", tripID, p.ID, Input{Text: "hijack"})
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
	edited, err := svc.Edit(ctx, "u2", tripID, p.ID, Input{Text: "second"})
	require.NoError(t, err)
	assert.Equal(t, "second", edited.Text)

	assert.ErrorIs(t, svc.Delete(ctx, "u3", tripID, p.ID), svcerrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u1", tripID, p.ID))
	_, err = svc.Get(ctx, "u2", tripID, p.ID)
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}
