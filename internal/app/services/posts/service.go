// Package posts implements the trip social feed.
package posts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
	maxText         = 2000
	maxComment      = 1000
	maxPhotos       = 20
)

// Service implements feed operations.
type Service struct {
	store  storage.PostStore
	photos storage.GalleryStore
	access *access.Checker
	events realtime.Publisher
	log    *logger.Logger
	now    func() time.Time
}

// New creates the service.
func New(store storage.PostStore, photos storage.GalleryStore, checker *access.Checker, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("posts")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{store: store, photos: photos, access: checker, events: events, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Input is the body of post create and edit requests.
type Input struct {
	Text     string   `json:"text"`
	PhotoIDs []string `json:"photoIds"`
}

// Page is one slice of the feed. NextBefore is the cursor for the next page
// and is nil on the last page.
type Page struct {
	Posts        []post.Post `json:"posts"`
	NextBefore   *time.Time  `json:"nextBefore,omitempty"`
	NextBeforeID string      `json:"nextBeforeId,omitempty"`
}

// Next returns the cursor for the following page, or a zero cursor on the
// last page.
func (p Page) Next() storage.PostCursor {
	if p.NextBefore == nil {
		return storage.PostCursor{}
	}
	return storage.PostCursor{CreatedAt: *p.NextBefore, ID: p.NextBeforeID}
}

func (s *Service) validate(ctx context.Context, tripID string, in Input) (string, []string, error) {
	text := strings.TrimSpace(in.Text)
	if len(text) > maxText {
		return "", nil, svcerrors.Validation("text must be at most %d characters", maxText)
	}
	if len(in.PhotoIDs) > maxPhotos {
		return "", nil, svcerrors.Validation("a post holds at most %d photos", maxPhotos)
	}
	ids := make([]string, 0, len(in.PhotoIDs))
	seen := make(map[string]bool, len(in.PhotoIDs))
	for _, id := range in.PhotoIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := s.photos.GetPhoto(ctx, id)
		if err != nil || p.TripID != tripID {
			return "", nil, svcerrors.Validation("photo %s does not belong to this trip", id)
		}
		ids = append(ids, id)
	}
	if text == "" && len(ids) == 0 {
		return "", nil, svcerrors.Validation("a post needs text or at least one photo")
	}
	return text, ids, nil
}

// Create publishes a post.
func (s *Service) Create(ctx context.Context, userID, tripID string, in Input) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	text, photoIDs, err := s.validate(ctx, tripID, in)
	if err != nil {
		return post.Post{}, err
	}
	now := s.now()
	p, err := s.store.CreatePost(ctx, post.Post{
		TripID:    tripID,
		AuthorID:  userID,
		Text:      text,
		PhotoIDs:  photoIDs,
		Likes:     []string{},
		Comments:  []post.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return post.Post{}, access.StoreError(err, "post", "")
	}
	s.events.Publish(realtime.Event{Type: realtime.EventPostCreated, TripID: tripID, ActorID: userID, Data: p})
	return p, nil
}

// List returns posts newest first, after the before cursor when it is set.
// Posts sharing a timestamp are ordered by ID so no page boundary skips one.
func (s *Service) List(ctx context.Context, userID, tripID string, before storage.PostCursor, limit int) (Page, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	posts, err := s.store.ListPosts(ctx, tripID, before, limit+1)
	if err != nil {
		return Page{}, access.StoreError(err, "post", "")
	}
	page := Page{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		last := page.Posts[limit-1]
		cursor := last.CreatedAt
		page.NextBefore = &cursor
		page.NextBeforeID = last.ID
	}
	if page.Posts == nil {
		page.Posts = []post.Post{}
	}
	return page, nil
}

func (s *Service) load(ctx context.Context, tripID, postID string) (post.Post, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return post.Post{}, access.StoreError(err, "post", postID)
	}
	if p.TripID != tripID {
		return post.Post{}, svcerrors.NotFound("post", postID)
	}
	return p, nil
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, userID, tripID, postID string) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	return s.load(ctx, tripID, postID)
}

func (s *Service) mutate(ctx context.Context, tripID, postID string, fn func(p *post.Post) error) (post.Post, error) {
	p, err := s.store.MutatePost(ctx, postID, func(p *post.Post) error {
		if p.TripID != tripID {
			return svcerrors.NotFound("post", postID)
		}
		return fn(p)
	})
	if err != nil {
		return post.Post{}, access.StoreError(err, "post", postID)
	}
	return p, nil
}

// Edit replaces text and photos. Only the author may edit.
func (s *Service) Edit(ctx context.Context, userID, tripID, postID string, in Input) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	text, photoIDs, err := s.validate(ctx, tripID, in)
	if err != nil {
		return post.Post{}, err
	}
	return s.mutate(ctx, tripID, postID, func(p *post.Post) error {
		if p.AuthorID != userID {
			return svcerrors.Forbidden("only the author can edit a post")
		}
		p.Text = text
		p.PhotoIDs = photoIDs
		return nil
	})
}

// Delete removes a post. The author or the trip owner may delete.
func (s *Service) Delete(ctx context.Context, userID, tripID, postID string) error {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return err
	}
	p, err := s.load(ctx, tripID, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID && !grant.IsOwner(userID) {
		return svcerrors.Forbidden("only the author or trip owner can delete a post")
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return access.StoreError(err, "post", postID)
	}
	return nil
}

// SetLike likes or unlikes a post. Repeating either is a no-op.
func (s *Service) SetLike(ctx context.Context, userID, tripID, postID string, liked bool) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	return s.mutate(ctx, tripID, postID, func(p *post.Post) error {
		has := p.LikedBy(userID)
		switch {
		case liked && !has:
			p.Likes = append(p.Likes, userID)
		case !liked && has:
			kept := make([]string, 0, len(p.Likes))
			for _, id := range p.Likes {
				if id != userID {
					kept = append(kept, id)
				}
			}
			p.Likes = kept
		}
		return nil
	})
}

// AddComment appends a comment.
func (s *Service) AddComment(ctx context.Context, userID, tripID, postID, text string) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxComment {
		return post.Post{}, svcerrors.Validation("comment must be 1-%d characters", maxComment)
	}
	now := s.now()
	return s.mutate(ctx, tripID, postID, func(p *post.Post) error {
		p.Comments = append(p.Comments, post.Comment{ID: uuid.NewString(), AuthorID: userID, Text: text, CreatedAt: now})
		return nil
	})
}

// DeleteComment removes a comment. The comment author or the post author
// may delete.
func (s *Service) DeleteComment(ctx context.Context, userID, tripID, postID, commentID string) (post.Post, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return post.Post{}, err
	}
	return s.mutate(ctx, tripID, postID, func(p *post.Post) error {
		for i, c := range p.Comments {
			if c.ID != commentID {
				continue
			}
			if c.AuthorID != userID && p.AuthorID != userID {
				return svcerrors.Forbidden("only the comment or post author can delete a comment")
			}
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			return nil
		}
		return svcerrors.NotFound("comment", commentID)
	})
}
