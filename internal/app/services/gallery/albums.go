package gallery

import (
	"context"
	"strings"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/services/access"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

// AlbumUpdate carries optional album changes. An empty CoverPhotoID clears
// the cover.
type AlbumUpdate struct {
	Name         *string `json:"name"`
	CoverPhotoID *string `json:"coverPhotoId"`
}

func validateAlbumName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", svcerrors.Validation("album name is required")
	}
	if len(name) > maxAlbumName {
		return "", svcerrors.Validation("album name must be at most %d characters", maxAlbumName)
	}
	return name, nil
}

// CreateAlbum adds an empty album.
func (s *Service) CreateAlbum(ctx context.Context, userID, tripID, name string) (gallery.Album, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Album{}, err
	}
	name, err := validateAlbumName(name)
	if err != nil {
		return gallery.Album{}, err
	}
	a, err := s.store.CreateAlbum(ctx, gallery.Album{TripID: tripID, Name: name, CreatedBy: userID})
	if err != nil {
		return gallery.Album{}, access.StoreError(err, "album", "")
	}
	return a, nil
}

// ListAlbums returns the trip's albums.
func (s *Service) ListAlbums(ctx context.Context, userID, tripID string) ([]gallery.Album, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	out, err := s.store.ListAlbums(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "album", "")
	}
	if out == nil {
		out = []gallery.Album{}
	}
	return out, nil
}

func (s *Service) album(ctx context.Context, tripID, albumID string) (gallery.Album, error) {
	a, err := s.store.GetAlbum(ctx, albumID)
	if err != nil {
		return gallery.Album{}, access.StoreError(err, "album", albumID)
	}
	if a.TripID != tripID {
		return gallery.Album{}, svcerrors.NotFound("album", albumID)
	}
	return a, nil
}

// UpdateAlbum renames an album or changes its cover. The cover must be a
// photo of the album.
func (s *Service) UpdateAlbum(ctx context.Context, userID, tripID, albumID string, in AlbumUpdate) (gallery.Album, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Album{}, err
	}
	a, err := s.album(ctx, tripID, albumID)
	if err != nil {
		return gallery.Album{}, err
	}
	if in.Name != nil {
		name, err := validateAlbumName(*in.Name)
		if err != nil {
			return gallery.Album{}, err
		}
		a.Name = name
	}
	if in.CoverPhotoID != nil {
		if *in.CoverPhotoID != "" {
			p, err := s.photo(ctx, tripID, *in.CoverPhotoID)
			if err != nil {
				return gallery.Album{}, err
			}
			if !p.InAlbum(albumID) {
				return gallery.Album{}, svcerrors.Validation("cover photo must belong to the album")
			}
		}
		a.CoverPhotoID = *in.CoverPhotoID
	}
	updated, err := s.store.UpdateAlbum(ctx, a)
	if err != nil {
		return gallery.Album{}, access.StoreError(err, "album", albumID)
	}
	return updated, nil
}

// DeleteAlbum removes the album. Its photos are kept. The album creator or
// the trip owner may delete.
func (s *Service) DeleteAlbum(ctx context.Context, userID, tripID, albumID string) error {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return err
	}
	a, err := s.album(ctx, tripID, albumID)
	if err != nil {
		return err
	}
	if a.CreatedBy != userID && !grant.IsOwner(userID) {
		return svcerrors.Forbidden("only the album creator or trip owner can delete an album")
	}
	if err := s.store.DeleteAlbum(ctx, albumID); err != nil {
		return access.StoreError(err, "album", albumID)
	}
	return nil
}

// AddPhotos puts photos into an album. The first photo added to an album
// without a cover becomes its cover.
func (s *Service) AddPhotos(ctx context.Context, userID, tripID, albumID string, photoIDs []string) (gallery.Album, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Album{}, err
	}
	if len(photoIDs) == 0 {
		return gallery.Album{}, svcerrors.Validation("photoIds is required")
	}
	a, err := s.album(ctx, tripID, albumID)
	if err != nil {
		return gallery.Album{}, err
	}
	photos := make([]gallery.Photo, 0, len(photoIDs))
	for _, id := range photoIDs {
		p, err := s.photo(ctx, tripID, id)
		if err != nil {
			return gallery.Album{}, err
		}
		if p.Status != gallery.StatusReady {
			return gallery.Album{}, svcerrors.Validation("photo %s has not finished uploading", id)
		}
		photos = append(photos, p)
	}
	for _, p := range photos {
		if p.InAlbum(albumID) {
			continue
		}
		p.AlbumIDs = append(p.AlbumIDs, albumID)
		if _, err := s.store.UpdatePhoto(ctx, p); err != nil {
			return gallery.Album{}, access.StoreError(err, "photo", p.ID)
		}
	}
	if a.CoverPhotoID == "" {
		a.CoverPhotoID = photos[0].ID
		if a, err = s.store.UpdateAlbum(ctx, a); err != nil {
			return gallery.Album{}, access.StoreError(err, "album", albumID)
		}
	}
	return a, nil
}

// RemovePhoto takes a photo out of an album, clearing the cover if needed.
func (s *Service) RemovePhoto(ctx context.Context, userID, tripID, albumID, photoID string) (gallery.Album, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return gallery.Album{}, err
	}
	a, err := s.album(ctx, tripID, albumID)
	if err != nil {
		return gallery.Album{}, err
	}
	p, err := s.photo(ctx, tripID, photoID)
	if err != nil {
		return gallery.Album{}, err
	}
	if !p.InAlbum(albumID) {
		return gallery.Album{}, svcerrors.NotFound("album photo", photoID)
	}
	kept := make([]string, 0, len(p.AlbumIDs))
	for _, id := range p.AlbumIDs {
		if id != albumID {
			kept = append(kept, id)
		}
	}
	p.AlbumIDs = kept
	if _, err := s.store.UpdatePhoto(ctx, p); err != nil {
		return gallery.Album{}, access.StoreError(err, "photo", photoID)
	}
	if a.CoverPhotoID == photoID {
		a.CoverPhotoID = ""
		if a, err = s.store.UpdateAlbum(ctx, a); err != nil {
			return gallery.Album{}, access.StoreError(err, "album", albumID)
		}
	}
	return a, nil
}
