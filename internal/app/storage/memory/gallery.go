package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/storage"
)

func clonePhoto(p gallery.Photo) gallery.Photo {
	p.AlbumIDs = cloneStrings(p.AlbumIDs)
	return p
}

func (s *Store) CreatePhoto(_ context.Context, p gallery.Photo) (gallery.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.photos[p.ID] = clonePhoto(p)
	return clonePhoto(p), nil
}

func (s *Store) GetPhoto(_ context.Context, id string) (gallery.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return gallery.Photo{}, storage.ErrNotFound
	}
	return clonePhoto(p), nil
}

func (s *Store) ListPhotos(_ context.Context, tripID string, filter storage.PhotoFilter) ([]gallery.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []gallery.Photo
	for _, p := range s.photos {
		if p.TripID != tripID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.AlbumID != "" && !p.InAlbum(filter.AlbumID) {
			continue
		}
		out = append(out, clonePhoto(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdatePhoto(_ context.Context, p gallery.Photo) (gallery.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.photos[p.ID]
	if !ok {
		return gallery.Photo{}, storage.ErrNotFound
	}
	p.TripID = existing.TripID
	p.UploaderID = existing.UploaderID
	p.ObjectKey = existing.ObjectKey
	p.CreatedAt = existing.CreatedAt
	p.URL = ""
	s.photos[p.ID] = clonePhoto(p)
	return clonePhoto(p), nil
}

func (s *Store) DeletePhoto(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.photos[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.photos, id)
	for aid, a := range s.albums {
		if a.CoverPhotoID == id {
			a.CoverPhotoID = ""
			s.albums[aid] = a
		}
	}
	return nil
}

func (s *Store) ListPendingPhotosBefore(_ context.Context, before time.Time) ([]gallery.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []gallery.Photo
	for _, p := range s.photos {
		if p.Status == gallery.StatusPending && p.CreatedAt.Before(before) {
			out = append(out, clonePhoto(p))
		}
	}
	return out, nil
}

func (s *Store) CreateAlbum(_ context.Context, a gallery.Album) (gallery.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = time.Now().UTC()
	s.albums[a.ID] = a
	return a, nil
}

func (s *Store) GetAlbum(_ context.Context, id string) (gallery.Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.albums[id]
	if !ok {
		return gallery.Album{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAlbums(_ context.Context, tripID string) ([]gallery.Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []gallery.Album
	for _, a := range s.albums {
		if a.TripID == tripID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAlbum(_ context.Context, a gallery.Album) (gallery.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.albums[a.ID]
	if !ok {
		return gallery.Album{}, storage.ErrNotFound
	}
	a.TripID = existing.TripID
	a.CreatedBy = existing.CreatedBy
	a.CreatedAt = existing.CreatedAt
	s.albums[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAlbum(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.albums[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.albums, id)
	for pid, p := range s.photos {
		if p.InAlbum(id) {
			p.AlbumIDs = removeString(p.AlbumIDs, id)
			s.photos[pid] = p
		}
	}
	return nil
}
