package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/storage"
)

type photoRow struct {
	ID          string         `db:"id"`
	TripID      string         `db:"trip_id"`
	UploaderID  string         `db:"uploader_id"`
	ObjectKey   string         `db:"object_key"`
	ContentType string         `db:"content_type"`
	Caption     string         `db:"caption"`
	Width       int            `db:"width"`
	Height      int            `db:"height"`
	Status      string         `db:"status"`
	AlbumIDs    pq.StringArray `db:"album_ids"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r photoRow) toDomain() gallery.Photo {
	return gallery.Photo{
		ID:          r.ID,
		TripID:      r.TripID,
		UploaderID:  r.UploaderID,
		ObjectKey:   r.ObjectKey,
		ContentType: r.ContentType,
		Caption:     r.Caption,
		Width:       r.Width,
		Height:      r.Height,
		Status:      gallery.PhotoStatus(r.Status),
		AlbumIDs:    stringsOrEmpty(r.AlbumIDs),
		CreatedAt:   r.CreatedAt,
	}
}

func photosFromRows(rows []photoRow) []gallery.Photo {
	out := make([]gallery.Photo, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

const photoSelect = `
	SELECT id, trip_id, uploader_id, object_key, content_type, caption, width, height, status, album_ids, created_at
	FROM photos`

func (s *Store) CreatePhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	p.AlbumIDs = stringsOrEmpty(p.AlbumIDs)
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (id, trip_id, uploader_id, object_key, content_type, caption, width, height, status, album_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.TripID, p.UploaderID, p.ObjectKey, p.ContentType, p.Caption, p.Width, p.Height,
		string(p.Status), pq.Array(p.AlbumIDs), p.CreatedAt)
	if err != nil {
		return gallery.Photo{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPhoto(ctx context.Context, id string) (gallery.Photo, error) {
	var row photoRow
	if err := s.db.GetContext(ctx, &row, photoSelect+` WHERE id = $1`, id); err != nil {
		return gallery.Photo{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPhotos(ctx context.Context, tripID string, filter storage.PhotoFilter) ([]gallery.Photo, error) {
	var rows []photoRow
	err := s.db.SelectContext(ctx, &rows, photoSelect+`
		WHERE trip_id = $1
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR $3 = ANY(album_ids))
		ORDER BY created_at DESC`, tripID, string(filter.Status), filter.AlbumID)
	if err != nil {
		return nil, mapError(err)
	}
	return photosFromRows(rows), nil
}

// UpdatePhoto writes caption, dimensions, status and album membership.
func (s *Store) UpdatePhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE photos
		SET caption = $2, width = $3, height = $4, status = $5, album_ids = $6
		WHERE id = $1
	`, p.ID, p.Caption, p.Width, p.Height, string(p.Status), pq.Array(stringsOrEmpty(p.AlbumIDs)))
	if err != nil {
		return gallery.Photo{}, mapError(err)
	}
	if err := expectRows(res); err != nil {
		return gallery.Photo{}, err
	}
	return s.GetPhoto(ctx, p.ID)
}

func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		if err := expectRows(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE albums SET cover_photo_id = '' WHERE cover_photo_id = $1`, id)
		return mapError(err)
	})
}

func (s *Store) ListPendingPhotosBefore(ctx context.Context, before time.Time) ([]gallery.Photo, error) {
	var rows []photoRow
	err := s.db.SelectContext(ctx, &rows, photoSelect+`
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`, string(gallery.StatusPending), before)
	if err != nil {
		return nil, mapError(err)
	}
	return photosFromRows(rows), nil
}

type albumRow struct {
	ID           string    `db:"id"`
	TripID       string    `db:"trip_id"`
	Name         string    `db:"name"`
	CoverPhotoID string    `db:"cover_photo_id"`
	CreatedBy    string    `db:"created_by"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r albumRow) toDomain() gallery.Album {
	return gallery.Album(r)
}

const albumSelect = `SELECT id, trip_id, name, cover_photo_id, created_by, created_at FROM albums`

func (s *Store) CreateAlbum(ctx context.Context, a gallery.Album) (gallery.Album, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (id, trip_id, name, cover_photo_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.TripID, a.Name, a.CoverPhotoID, a.CreatedBy, a.CreatedAt)
	if err != nil {
		return gallery.Album{}, mapError(err)
	}
	return a, nil
}

func (s *Store) GetAlbum(ctx context.Context, id string) (gallery.Album, error) {
	var row albumRow
	if err := s.db.GetContext(ctx, &row, albumSelect+` WHERE id = $1`, id); err != nil {
		return gallery.Album{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAlbums(ctx context.Context, tripID string) ([]gallery.Album, error) {
	var rows []albumRow
	if err := s.db.SelectContext(ctx, &rows, albumSelect+` WHERE trip_id = $1 ORDER BY created_at`, tripID); err != nil {
		return nil, mapError(err)
	}
	out := make([]gallery.Album, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateAlbum(ctx context.Context, a gallery.Album) (gallery.Album, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE albums SET name = $2, cover_photo_id = $3 WHERE id = $1
	`, a.ID, a.Name, a.CoverPhotoID)
	if err != nil {
		return gallery.Album{}, mapError(err)
	}
	if err := expectRows(res); err != nil {
		return gallery.Album{}, err
	}
	return s.GetAlbum(ctx, a.ID)
}

func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
		if err != nil {
			return mapError(err)
		}
		if err := expectRows(res); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE photos SET album_ids = array_remove(album_ids, $1) WHERE $1 = ANY(album_ids)
		`, id)
		return mapError(err)
	})
}
