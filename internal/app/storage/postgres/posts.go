package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/storage"
)

type postRow struct {
	ID        string         `db:"id"`
	TripID    string         `db:"trip_id"`
	AuthorID  string         `db:"author_id"`
	Text      string         `db:"text"`
	PhotoIDs  pq.StringArray `db:"photo_ids"`
	Likes     pq.StringArray `db:"likes"`
	Comments  []byte         `db:"comments"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r postRow) toDomain() (post.Post, error) {
	p := post.Post{
		ID:        r.ID,
		TripID:    r.TripID,
		AuthorID:  r.AuthorID,
		Text:      r.Text,
		PhotoIDs:  stringsOrEmpty(r.PhotoIDs),
		Likes:     stringsOrEmpty(r.Likes),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Comments, &p.Comments); err != nil {
		return post.Post{}, err
	}
	if p.Comments == nil {
		p.Comments = []post.Comment{}
	}
	return p, nil
}

const postSelect = `SELECT id, trip_id, author_id, text, photo_ids, likes, comments, created_at, updated_at FROM posts`

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	p.PhotoIDs = stringsOrEmpty(p.PhotoIDs)
	p.Likes = stringsOrEmpty(p.Likes)
	if p.Comments == nil {
		p.Comments = []post.Comment{}
	}

	commentsJSON, err := marshalJSON(p.Comments)
	if err != nil {
		return post.Post{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (id, trip_id, author_id, text, photo_ids, likes, comments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.TripID, p.AuthorID, p.Text, pq.Array(p.PhotoIDs), pq.Array(p.Likes), commentsJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return post.Post{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	var row postRow
	if err := s.db.GetContext(ctx, &row, postSelect+` WHERE id = $1`, id); err != nil {
		return post.Post{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListPosts(ctx context.Context, tripID string, before storage.PostCursor, limit int) ([]post.Post, error) {
	var cursor, max interface{}
	if !before.IsZero() {
		cursor = before.CreatedAt
	}
	if limit > 0 {
		max = limit
	}
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows, postSelect+`
		WHERE trip_id = $1 AND ($2::timestamptz IS NULL OR (created_at, id) < ($2::timestamptz, $3::text))
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, tripID, cursor, before.ID, max)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]post.Post, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) MutatePost(ctx context.Context, id string, fn func(p *post.Post) error) (post.Post, error) {
	var out post.Post
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row postRow
		if err := tx.GetContext(ctx, &row, postSelect+` WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err)
		}
		p, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = row.ID
		p.TripID = row.TripID
		p.AuthorID = row.AuthorID
		p.CreatedAt = row.CreatedAt

		commentsJSON, err := marshalJSON(p.Comments)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE posts SET text = $2, photo_ids = $3, likes = $4, comments = $5, updated_at = $6 WHERE id = $1
		`, p.ID, p.Text, pq.Array(stringsOrEmpty(p.PhotoIDs)), pq.Array(stringsOrEmpty(p.Likes)), commentsJSON, p.UpdatedAt); err != nil {
			return mapError(err)
		}
		out = p
		return nil
	})
	if err != nil {
		return post.Post{}, err
	}
	return out, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}
