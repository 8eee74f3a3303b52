package gallery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

type fakeObjects struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeObjects) PresignPut(_ context.Context, key, contentType string, expiry time.Duration) (string, http.Header, error) {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return fmt.Sprintf("https://objects.test/%s?exp=%d", key, int(expiry.Seconds())), header, nil
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?exp=%d", key, int(expiry.Seconds())), nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func setup(t *testing.T) (*Service, *fakeObjects, string) {
	t.Helper()
	store := memory.New()
	tr, err := store.CreateTrip(context.Background(), trip.Trip{
		Name: "Lofoten", OwnerID: "u1", NumDays: 3,
		Members: []trip.Member{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	})
	require.NoError(t, err)
	objects := &fakeObjects{}
	svc := New(store, access.NewChecker(store, nil, time.Minute, nil), objects, Options{}, nil)
	return svc, objects, tr.ID
}

func upload(t *testing.T, svc *Service, userID, tripID string) gallery.Photo {
	t.Helper()
	ctx := context.Background()
	up, err := svc.CreateUpload(ctx, userID, tripID, UploadInput{ContentType: "image/jpeg"})
	require.NoError(t, err)
	p, err := svc.Complete(ctx, userID, tripID, up.Photo.ID)
	require.NoError(t, err)
	return p
}

func TestCreateUpload(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)

	up, err := svc.CreateUpload(ctx, "u2", tripID, UploadInput{ContentType: "IMAGE/PNG", Caption: " sunset "})
	require.NoError(t, err)
	assert.Equal(t, gallery.StatusPending, up.Photo.Status)
	assert.Equal(t, "sunset", up.Photo.Caption)
	assert.Equal(t, ObjectKey(tripID, up.Photo.ID, "png"), up.Photo.ObjectKey)
	assert.True(t, strings.HasSuffix(up.UploadURL, "exp=900"))
	assert.Equal(t, map[string]string{"Content-Type": "image/png"}, up.UploadHeaders)
	assert.Equal(t, 15*time.Minute, up.ExpiresAt.Sub(up.Photo.CreatedAt))

	_, err = svc.CreateUpload(ctx, "u2", tripID, UploadInput{ContentType: "image/gif"})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)
	_, err = svc.CreateUpload(ctx, "u9", tripID, UploadInput{ContentType: "image/png"})
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)

	listed, err := svc.List(ctx, "u1", tripID, "")
	require.NoError(t, err)
	assert.Empty(t, listed, "pending uploads are not listed")
}

func TestUploadWithoutObjectStore(t *testing.T) {
	store := memory.New()
	tr, err := store.CreateTrip(context.Background(), trip.Trip{Name: "x", OwnerID: "u1", NumDays: 1, Members: []trip.Member{{UserID: "u1"}}})
	require.NoError(t, err)
	svc := New(store, access.NewChecker(store, nil, time.Minute, nil), nil, Options{}, nil)

	_, err = svc.CreateUpload(context.Background(), "u1", tr.ID, UploadInput{ContentType: "image/jpeg"})
	se := svcerrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, svcerrors.CodeUnavailable, se.Code)
}

func TestCompleteAndList(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)

	up, err := svc.CreateUpload(ctx, "u2", tripID, UploadInput{ContentType: "image/webp"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, "u1", tripID, up.Photo.ID)
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)

	p, err := svc.Complete(ctx, "u2", tripID, up.Photo.ID)
	require.NoError(t, err)
	assert.Equal(t, gallery.StatusReady, p.Status)
	assert.Contains(t, p.URL, "exp=3600")

	listed, err := svc.List(ctx, "u3", tripID, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotEmpty(t, listed[0].URL)
}

func TestDeletePermissions(t *testing.T) {
	ctx := context.Background()
	svc, objects, tripID := setup(t)
	p := upload(t, svc, "u2", tripID)
	q := upload(t, svc, "u2", tripID)

	assert.ErrorIs(t, svc.Delete(ctx, "u3", tripID, p.ID), svcerrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u2", tripID, p.ID))
	require.NoError(t, svc.Delete(ctx, "u1", tripID, q.ID), "trip owner may delete")
	assert.Equal(t, []string{p.ObjectKey, q.ObjectKey}, objects.deleted)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", tripID, p.ID), svcerrors.ErrNotFound)
}

func TestAlbums(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	p := upload(t, svc, "u1", tripID)
	q := upload(t, svc, "u2", tripID)

	a, err := svc.CreateAlbum(ctx, "u2", tripID, "Day one")
	require.NoError(t, err)

	a, err = svc.AddPhotos(ctx, "u3", tripID, a.ID, []string{p.ID, q.ID})
	require.NoError(t, err)
	assert.Equal(t, p.ID, a.CoverPhotoID)

	inAlbum, err := svc.List(ctx, "u1", tripID, a.ID)
	require.NoError(t, err)
	assert.Len(t, inAlbum, 2)

	cover := q.ID
	a, err = svc.UpdateAlbum(ctx, "u1", tripID, a.ID, AlbumUpdate{CoverPhotoID: &cover})
	require.NoError(t, err)
	assert.Equal(t, q.ID, a.CoverPhotoID)

	a, err = svc.RemovePhoto(ctx, "u1", tripID, a.ID, q.ID)
	require.NoError(t, err)
	assert.Empty(t, a.CoverPhotoID)

	_, err = svc.UpdateAlbum(ctx, "u1", tripID, a.ID, AlbumUpdate{CoverPhotoID: &cover})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)

	assert.ErrorIs(t, svc.DeleteAlbum(ctx, "u3", tripID, a.ID), svcerrors.ErrForbidden)
	require.NoError(t, svc.DeleteAlbum(ctx, "u2", tripID, a.ID))

	remaining, err := svc.List(ctx, "u1", tripID, "")
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "photos survive album deletion")
	for _, photo := range remaining {
		assert.Empty(t, photo.AlbumIDs)
	}
}

func TestPurgeStale(t *testing.T) {
	ctx := context.Background()
	svc, objects, tripID := setup(t)
	ready := upload(t, svc, "u1", tripID)
	up, err := svc.CreateUpload(ctx, "u1", tripID, UploadInput{ContentType: "image/heic"})
	require.NoError(t, err)

	purged, err := svc.PurgeStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	svc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	purged, err = svc.PurgeStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, []string{up.Photo.ObjectKey}, objects.deleted)

	_, err = svc.Get(ctx, "u1", tripID, ready.ID)
	assert.NoError(t, err)
}
