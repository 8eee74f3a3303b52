package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/storage"
)

func clonePost(p post.Post) post.Post {
	p.PhotoIDs = cloneStrings(p.PhotoIDs)
	p.Likes = cloneStrings(p.Likes)
	p.Comments = append([]post.Comment{}, p.Comments...)
	return p
}

func (s *Store) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	s.posts[p.ID] = clonePost(p)
	return clonePost(p), nil
}

func (s *Store) GetPost(_ context.Context, id string) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, storage.ErrNotFound
	}
	return clonePost(p), nil
}

func (s *Store) ListPosts(_ context.Context, tripID string, before storage.PostCursor, limit int) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []post.Post
	for _, p := range s.posts {
		if p.TripID != tripID {
			continue
		}
		if !before.After(p) {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MutatePost(_ context.Context, id string, fn func(p *post.Post) error) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[id]
	if !ok {
		return post.Post{}, storage.ErrNotFound
	}
	working := clonePost(existing)
	if err := fn(&working); err != nil {
		return post.Post{}, err
	}
	working.ID = existing.ID
	working.TripID = existing.TripID
	working.AuthorID = existing.AuthorID
	working.CreatedAt = existing.CreatedAt
	s.posts[id] = clonePost(working)
	return working, nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}
