package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/checklist"
	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/poll"
	"github.com/travelties/service_layer/internal/app/domain/post"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
// A single mutex guards every map, so multi-record writes are atomic.
type Store struct {
	mu             sync.RWMutex
	users          map[string]user.User
	friendRequests map[string]user.FriendRequest
	trips          map[string]trip.Trip
	cards          map[string]card.Card
	checklists     map[string]checklist.Checklist
	photos         map[string]gallery.Photo
	albums         map[string]gallery.Album
	polls          map[string]poll.Poll
	posts          map[string]post.Post
	expenses       map[string]expense.Expense
	settlements    map[string]expense.Settlement
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TripStore = (*Store)(nil)
var _ storage.CardStore = (*Store)(nil)
var _ storage.ChecklistStore = (*Store)(nil)
var _ storage.GalleryStore = (*Store)(nil)
var _ storage.PollStore = (*Store)(nil)
var _ storage.PostStore = (*Store)(nil)
var _ storage.ExpenseStore = (*Store)(nil)
var _ storage.Pinger = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:          make(map[string]user.User),
		friendRequests: make(map[string]user.FriendRequest),
		trips:          make(map[string]trip.Trip),
		cards:          make(map[string]card.Card),
		checklists:     make(map[string]checklist.Checklist),
		photos:         make(map[string]gallery.Photo),
		albums:         make(map[string]gallery.Album),
		polls:          make(map[string]poll.Poll),
		posts:          make(map[string]post.Post),
		expenses:       make(map[string]expense.Expense),
		settlements:    make(map[string]expense.Settlement),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func newID() string { return uuid.NewString() }

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
