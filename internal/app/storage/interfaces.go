package storage

import (
	"context"
	"errors"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/checklist"
	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/poll"
	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record conflicts with existing data")
)

// TripFunc mutates a locked trip. Returning an error aborts the enclosing
// transaction and leaves the trip unchanged.
type TripFunc func(t *trip.Trip) error

// UserStore persists profiles, friendships and friend requests.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error)

	RemoveFriendship(ctx context.Context, a, b string) error

	CreateFriendRequest(ctx context.Context, req user.FriendRequest) (user.FriendRequest, error)
	GetFriendRequest(ctx context.Context, id string) (user.FriendRequest, error)
	FindPendingRequest(ctx context.Context, from, to string) (user.FriendRequest, error)
	ListFriendRequests(ctx context.Context, userID string, incoming bool) ([]user.FriendRequest, error)
	// RespondFriendRequest resolves a pending request. Accepting also creates
	// the mutual friendship in the same transaction.
	RespondFriendRequest(ctx context.Context, id string, status user.RequestStatus, at time.Time) (user.FriendRequest, error)
}

// TripStore persists trips. Writes that depend on current state go through
// MutateTrip so they observe and replace the trip atomically.
type TripStore interface {
	CreateTrip(ctx context.Context, t trip.Trip) (trip.Trip, error)
	GetTrip(ctx context.Context, id string) (trip.Trip, error)
	ListTripsForUser(ctx context.Context, userID string) ([]trip.Trip, error)
	MutateTrip(ctx context.Context, id string, fn TripFunc) (trip.Trip, error)
	// DeleteTrip removes the trip and every record that belongs to it.
	DeleteTrip(ctx context.Context, id string) error
}

// CardStore persists itinerary cards. Card creation and deletion always run
// together with a layout change of the owning trip.
type CardStore interface {
	CreateCard(ctx context.Context, c card.Card, layout TripFunc) (card.Card, trip.Trip, error)
	GetCard(ctx context.Context, tripID, id string) (card.Card, error)
	ListCards(ctx context.Context, tripID string) ([]card.Card, error)
	UpdateCard(ctx context.Context, c card.Card) (card.Card, error)
	DeleteCard(ctx context.Context, tripID, id string, layout TripFunc) (trip.Trip, error)
}

// ChecklistStore persists checklists with their items.
type ChecklistStore interface {
	CreateChecklist(ctx context.Context, c checklist.Checklist) (checklist.Checklist, error)
	GetChecklist(ctx context.Context, id string) (checklist.Checklist, error)
	ListChecklists(ctx context.Context, tripID string) ([]checklist.Checklist, error)
	MutateChecklist(ctx context.Context, id string, fn func(c *checklist.Checklist) error) (checklist.Checklist, error)
	DeleteChecklist(ctx context.Context, id string) error
}

// PhotoFilter narrows ListPhotos.
type PhotoFilter struct {
	Status  gallery.PhotoStatus
	AlbumID string
}

// GalleryStore persists photos and albums.
type GalleryStore interface {
	CreatePhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error)
	GetPhoto(ctx context.Context, id string) (gallery.Photo, error)
	ListPhotos(ctx context.Context, tripID string, filter PhotoFilter) ([]gallery.Photo, error)
	UpdatePhoto(ctx context.Context, p gallery.Photo) (gallery.Photo, error)
	// DeletePhoto removes the photo and clears it as an album cover.
	DeletePhoto(ctx context.Context, id string) error
	ListPendingPhotosBefore(ctx context.Context, before time.Time) ([]gallery.Photo, error)

	CreateAlbum(ctx context.Context, a gallery.Album) (gallery.Album, error)
	GetAlbum(ctx context.Context, id string) (gallery.Album, error)
	ListAlbums(ctx context.Context, tripID string) ([]gallery.Album, error)
	UpdateAlbum(ctx context.Context, a gallery.Album) (gallery.Album, error)
	// DeleteAlbum removes the album and its membership from every photo.
	DeleteAlbum(ctx context.Context, id string) error
}

// PollStore persists polls and votes.
type PollStore interface {
	CreatePoll(ctx context.Context, p poll.Poll) (poll.Poll, error)
	GetPoll(ctx context.Context, id string) (poll.Poll, error)
	ListPolls(ctx context.Context, tripID string) ([]poll.Poll, error)
	MutatePoll(ctx context.Context, id string, fn func(p *poll.Poll) error) (poll.Poll, error)
	DeletePoll(ctx context.Context, id string) error
	ListExpiredOpenPolls(ctx context.Context, now time.Time) ([]poll.Poll, error)
}

// PostCursor marks a position in a trip feed. Posts sort by CreatedAt then
// ID, both descending.
type PostCursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether the cursor points at the head of the feed.
func (c PostCursor) IsZero() bool { return c.CreatedAt.IsZero() }

// After reports whether p sorts after the cursor position, that is whether
// (p.CreatedAt, p.ID) < (c.CreatedAt, c.ID).
func (c PostCursor) After(p post.Post) bool {
	if c.IsZero() {
		return true
	}
	if !p.CreatedAt.Equal(c.CreatedAt) {
		return p.CreatedAt.Before(c.CreatedAt)
	}
	return p.ID < c.ID
}

// PostStore persists social posts with likes and comments.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, id string) (post.Post, error)
	// ListPosts returns posts newest first, strictly after before in feed
	// order when it is non-zero.
	ListPosts(ctx context.Context, tripID string, before PostCursor, limit int) ([]post.Post, error)
	MutatePost(ctx context.Context, id string, fn func(p *post.Post) error) (post.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// ExpenseStore persists expenses and settlements.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error)
	GetExpense(ctx context.Context, id string) (expense.Expense, error)
	ListExpenses(ctx context.Context, tripID string) ([]expense.Expense, error)
	UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	CreateSettlement(ctx context.Context, s expense.Settlement) (expense.Settlement, error)
	GetSettlement(ctx context.Context, id string) (expense.Settlement, error)
	GetSettlementByPaymentIntent(ctx context.Context, intentID string) (expense.Settlement, error)
	ListSettlements(ctx context.Context, tripID string) ([]expense.Settlement, error)
	UpdateSettlement(ctx context.Context, s expense.Settlement) (expense.Settlement, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}
