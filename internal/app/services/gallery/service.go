// Package gallery manages trip photos stored in object storage and the
// albums that group them.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	DefaultUploadExpiry   = 15 * time.Minute
	DefaultDownloadExpiry = time.Hour
	maxCaption            = 500
	maxAlbumName          = 100
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/heic": "heic",
	"image/webp": "webp",
}

// ObjectStore presigns and deletes photo objects.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, http.Header, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Options tunes URL lifetimes.
type Options struct {
	UploadExpiry   time.Duration
	DownloadExpiry time.Duration
}

// Service implements gallery operations.
type Service struct {
	store   storage.GalleryStore
	access  *access.Checker
	objects ObjectStore
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

// New creates the service. A nil objects store disables uploads.
func New(store storage.GalleryStore, checker *access.Checker, objects ObjectStore, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("gallery")
	}
	if opts.UploadExpiry <= 0 {
		opts.UploadExpiry = DefaultUploadExpiry
	}
	if opts.DownloadExpiry <= 0 {
		opts.DownloadExpiry = DefaultDownloadExpiry
	}
	return &Service{
		store:   store,
		access:  checker,
		objects: objects,
		opts:    opts,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ObjectKey returns the storage key of a photo.
func ObjectKey(tripID, photoID, ext string) string {
	return fmt.Sprintf("trips/%s/photos/%s.%s", tripID, photoID, ext)
}

// UploadInput is the body of POST /trips/{id}/photos/uploads.
type UploadInput struct {
	ContentType string `json:"contentType"`
	Caption     string `json:"caption"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Upload is a pending photo with the URL its bytes must be PUT to and the
// headers that PUT has to send.
type Upload struct {
	Photo         gallery.Photo     `json:"photo"`
	UploadURL     string            `json:"uploadUrl"`
	UploadHeaders map[string]string `json:"uploadHeaders"`
	ExpiresAt     time.Time         `json:"expiresAt"`
}

// CreateUpload registers a pending photo and presigns its upload.
func (s *Service) CreateUpload(ctx context.Context, userID, tripID string, in UploadInput) (Upload, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return Upload{}, err
	}
	if s.objects == nil {
		return Upload{}, svcerrors.NotConfigured("photo storage")
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	ext, ok := extensions[contentType]
	if !ok {
		return Upload{}, svcerrors.Validation("contentType must be image/jpeg, image/png, image/heic or image/webp")
	}
	if len(in.Caption) > maxCaption {
		return Upload{}, svcerrors.Validation("caption must be at most %d characters", maxCaption)
	}
	if in.Width < 0 || in.Height < 0 {
		return Upload{}, svcerrors.Validation("width and height cannot be negative")
	}

	id := uuid.NewString()
	key := ObjectKey(tripID, id, ext)
	url, header, err := s.objects.PresignPut(ctx, key, contentType, s.opts.UploadExpiry)
	if err != nil {
		return Upload{}, svcerrors.Internal("presign upload", err)
	}
	now := s.now()
	p, err := s.store.CreatePhoto(ctx, gallery.Photo{
		ID:          id,
		TripID:      tripID,
		UploaderID:  userID,
		ObjectKey:   key,
		ContentType: contentType,
		Caption:     strings.TrimSpace(in.Caption),
		Width:       in.Width,
		Height:      in.Height,
		Status:      gallery.StatusPending,
		AlbumIDs:    []string{},
		CreatedAt:   now,
	})
	if err != nil {
		return Upload{}, access.StoreError(err, "photo", id)
	}
	metrics.RecordUploadPresigned()
	s.log.WithField("trip_id", tripID).WithField("photo_id", id).Info("photo upload presigned")
	headers := make(map[string]string, len(header))
	for k := range header {
		headers[k] = header.Get(k)
	}
	return Upload{Photo: p, UploadURL: url, UploadHeaders: headers, ExpiresAt: now.Add(s.opts.UploadExpiry)}, nil
}

func (s *Service) photo(ctx context.Context, tripID, photoID string) (gallery.Photo, error) {
	p, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return gallery.Photo{}, access.StoreError(err, "photo", photoID)
	}
	if p.TripID != tripID {
		return gallery.Photo{}, svcerrors.NotFound("photo", photoID)
	}
	return p, nil
}

func (s *Service) withURL(ctx context.Context, p gallery.Photo) gallery.Photo {
	if s.objects == nil || p.Status != gallery.StatusReady {
		return p
	}
	url, err := s.objects.PresignGet(ctx, p.ObjectKey, s.opts.DownloadExpiry)
	if err != nil {
		s.log.WithError(err).WithField("photo_id", p.ID).Warn("presign download")
		return p
	}
	p.URL = url
	return p
}

// Complete marks an upload as finished. Only the uploader can complete it.
func (s *Service) Complete(ctx context.Context, userID, tripID, photoID string) (gallery.Photo, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Photo{}, err
	}
	p, err := s.photo(ctx, tripID, photoID)
	if err != nil {
		return gallery.Photo{}, err
	}
	if p.UploaderID != userID {
		return gallery.Photo{}, svcerrors.Forbidden("only the uploader can complete an upload")
	}
	if p.Status == gallery.StatusReady {
		return s.withURL(ctx, p), nil
	}
	p.Status = gallery.StatusReady
	updated, err := s.store.UpdatePhoto(ctx, p)
	if err != nil {
		return gallery.Photo{}, access.StoreError(err, "photo", photoID)
	}
	return s.withURL(ctx, updated), nil
}

// List returns ready photos with download URLs, optionally for one album.
func (s *Service) List(ctx context.Context, userID, tripID, albumID string) ([]gallery.Photo, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	photos, err := s.store.ListPhotos(ctx, tripID, storage.PhotoFilter{Status: gallery.StatusReady, AlbumID: albumID})
	if err != nil {
		return nil, access.StoreError(err, "photo", "")
	}
	out := make([]gallery.Photo, 0, len(photos))
	for _, p := range photos {
		out = append(out, s.withURL(ctx, p))
	}
	return out, nil
}

// Get returns one photo with its download URL.
func (s *Service) Get(ctx context.Context, userID, tripID, photoID string) (gallery.Photo, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Photo{}, err
	}
	p, err := s.photo(ctx, tripID, photoID)
	if err != nil {
		return gallery.Photo{}, err
	}
	return s.withURL(ctx, p), nil
}

// UpdateCaption changes the caption. Only the uploader can edit.
func (s *Service) UpdateCaption(ctx context.Context, userID, tripID, photoID, caption string) (gallery.Photo, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Photo{}, err
	}
	if len(caption) > maxCaption {
		return gallery.Photo{}, svcerrors.Validation("caption must be at most %d characters", maxCaption)
	}
	p, err := s.photo(ctx, tripID, photoID)
	if err != nil {
		return gallery.Photo{}, err
	}
	if p.UploaderID != userID {
		return gallery.Photo{}, svcerrors.Forbidden("only the uploader can edit a caption")
	}
	p.Caption = strings.TrimSpace(caption)
	updated, err := s.store.UpdatePhoto(ctx, p)
	if err != nil {
		return gallery.Photo{}, access.StoreError(err, "photo", photoID)
	}
	return s.withURL(ctx, updated), nil
}

// Delete removes the photo object and record. The uploader or the trip owner
// may delete.
func (s *Service) Delete(ctx context.Context, userID, tripID, photoID string) error {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return err
	}
	p, err := s.photo(ctx, tripID, photoID)
	if err != nil {
		return err
	}
	if p.UploaderID != userID && !grant.IsOwner(userID) {
		return svcerrors.Forbidden("only the uploader or trip owner can delete a photo")
	}
	return s.remove(ctx, p)
}

func (s *Service) remove(ctx context.Context, p gallery.Photo) error {
	if s.objects != nil {
		if err := s.objects.Delete(ctx, p.ObjectKey); err != nil {
			s.log.WithError(err).WithField("object_key", p.ObjectKey).Warn("delete photo object")
		}
	}
	if err := s.store.DeletePhoto(ctx, p.ID); err != nil {
		return access.StoreError(err, "photo", p.ID)
	}
	return nil
}

// PurgeStale deletes uploads that stayed pending for longer than ttl and
// returns how many were removed.
func (s *Service) PurgeStale(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := s.store.ListPendingPhotosBefore(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, access.StoreError(err, "photo", "")
	}
	purged := 0
	for _, p := range stale {
		if err := s.remove(ctx, p); err != nil {
			if errors.Is(err, svcerrors.ErrNotFound) {
				continue
			}
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		s.log.WithField("purged", purged).Info("stale uploads purged")
	}
	return purged, nil
}
