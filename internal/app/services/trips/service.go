// Package trips manages trips, their schedule and membership.
package trips

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/gallery"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	dateLayout      = "2006-01-02"
	defaultCurrency = "USD"
	maxDescription  = 2000
)

// ObjectDeleter removes stored photo objects.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Service implements trip operations.
type Service struct {
	trips   storage.TripStore
	users   storage.UserStore
	photos  storage.GalleryStore
	access  *access.Checker
	objects ObjectDeleter
	events  realtime.Publisher
	log     *logger.Logger
	now     func() time.Time
}

// New creates the service. objects may be nil when photo storage is not
// configured.
func New(trips storage.TripStore, users storage.UserStore, photos storage.GalleryStore, checker *access.Checker, objects ObjectDeleter, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("trips")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{
		trips:   trips,
		users:   users,
		photos:  photos,
		access:  checker,
		objects: objects,
		events:  events,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput is the body of POST /trips. Dates use YYYY-MM-DD.
type CreateInput struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Destination string           `json:"destination"`
	ImageURL    string           `json:"imageUrl"`
	StartDate   string           `json:"startDate"`
	EndDate     string           `json:"endDate"`
	NumDays     int              `json:"numDays"`
	Currency    string           `json:"currency"`
	Budget      *decimal.Decimal `json:"budget"`
	Members     []string         `json:"members"`
}

// UpdateInput carries optional trip changes. An empty date string clears
// the date.
type UpdateInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Destination *string          `json:"destination"`
	ImageURL    *string          `json:"imageUrl"`
	StartDate   *string          `json:"startDate"`
	EndDate     *string          `json:"endDate"`
	NumDays     *int             `json:"numDays"`
	Currency    *string          `json:"currency"`
	Budget      *decimal.Decimal `json:"budget"`
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		if ts, tsErr := time.Parse(time.RFC3339, raw); tsErr == nil {
			d = ts
		} else {
			return nil, svcerrors.Validation("%s must be a date in YYYY-MM-DD format", field)
		}
	}
	d = trip.NormalizeDate(d)
	return &d, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", svcerrors.Validation("name is required")
	}
	if len([]rune(name)) > trip.MaxNameLen {
		return "", svcerrors.Validation("name must be at most %d characters", trip.MaxNameLen)
	}
	return name, nil
}

func normalizeCurrency(raw string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return defaultCurrency, nil
	}
	if len(c) != 3 {
		return "", svcerrors.Validation("currency must be a 3-letter ISO code")
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", svcerrors.Validation("currency must be a 3-letter ISO code")
		}
	}
	return c, nil
}

func validateBudget(b *decimal.Decimal) error {
	if b != nil && b.IsNegative() {
		return svcerrors.Validation("budget cannot be negative")
	}
	return nil
}

// schedule resolves start, end and day count. Either both dates are set or
// neither; numDays of zero means unspecified.
func schedule(start, end *time.Time, numDays int) (*time.Time, *time.Time, int, error) {
	if (start == nil) != (end == nil) {
		return nil, nil, 0, svcerrors.Validation("startDate and endDate must be provided together")
	}
	if start != nil {
		if end.Before(*start) {
			return nil, nil, 0, svcerrors.Validation("endDate must not be before startDate")
		}
		days := trip.DaysInclusive(*start, *end)
		if days > trip.MaxDays {
			return nil, nil, 0, svcerrors.Validation("trips can span at most %d days", trip.MaxDays)
		}
		if numDays != 0 && numDays != days {
			return nil, nil, 0, svcerrors.Validation("numDays does not match the date range")
		}
		return start, end, days, nil
	}
	if numDays == 0 {
		numDays = 1
	}
	if numDays < 1 || numDays > trip.MaxDays {
		return nil, nil, 0, svcerrors.Validation("numDays must be between 1 and %d", trip.MaxDays)
	}
	return nil, nil, numDays, nil
}

// Create creates a trip owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (trip.Trip, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return trip.Trip{}, err
	}
	if len(in.Description) > maxDescription {
		return trip.Trip{}, svcerrors.Validation("description must be at most %d characters", maxDescription)
	}
	start, err := parseDate("startDate", in.StartDate)
	if err != nil {
		return trip.Trip{}, err
	}
	end, err := parseDate("endDate", in.EndDate)
	if err != nil {
		return trip.Trip{}, err
	}
	start, end, days, err := schedule(start, end, in.NumDays)
	if err != nil {
		return trip.Trip{}, err
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return trip.Trip{}, err
	}
	if err := validateBudget(in.Budget); err != nil {
		return trip.Trip{}, err
	}

	now := s.now()
	members := []trip.Member{{UserID: userID, JoinedAt: now}}
	if len(in.Members) > 0 {
		invited, err := s.friendsOf(ctx, userID, in.Members)
		if err != nil {
			return trip.Trip{}, err
		}
		for _, id := range invited {
			members = append(members, trip.Member{UserID: id, JoinedAt: now})
		}
	}

	t, err := s.trips.CreateTrip(ctx, trip.Trip{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Destination: strings.TrimSpace(in.Destination),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		OwnerID:     userID,
		Members:     members,
		StartDate:   start,
		EndDate:     end,
		NumDays:     days,
		Currency:    currency,
		Budget:      in.Budget,
		OrderInTab:  trip.NewOrder(days),
	})
	if err != nil {
		return trip.Trip{}, access.StoreError(err, "trip", "")
	}
	metrics.RecordTripCreated()
	s.log.WithField("trip_id", t.ID).WithField("user_id", userID).Info("trip created")
	return t, nil
}

// friendsOf dedupes ids, drops userID and requires every other ID to be a
// friend of userID.
func (s *Service) friendsOf(ctx context.Context, userID string, ids []string) ([]string, error) {
	inviter, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, access.StoreError(err, "user", userID)
	}
	seen := map[string]bool{userID: true}
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if !inviter.IsFriend(id) {
			return nil, svcerrors.Validation("user %s is not your friend", id)
		}
		out = append(out, id)
	}
	return out, nil
}

// List returns the caller's trips.
func (s *Service) List(ctx context.Context, userID string) ([]trip.Trip, error) {
	out, err := s.trips.ListTripsForUser(ctx, userID)
	if err != nil {
		return nil, access.StoreError(err, "trip", "")
	}
	if out == nil {
		out = []trip.Trip{}
	}
	return out, nil
}

// Get returns a trip the caller belongs to.
func (s *Service) Get(ctx context.Context, userID, id string) (trip.Trip, error) {
	t, err := s.trips.GetTrip(ctx, id)
	if err != nil {
		return trip.Trip{}, access.StoreError(err, "trip", id)
	}
	if !t.IsMember(userID) {
		return trip.Trip{}, svcerrors.Forbidden("not a member of this trip")
	}
	return t, nil
}

// Update applies in. A schedule change rebuilds the day buckets in the same
// write.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (trip.Trip, error) {
	var moved int
	var reassigned bool
	updated, err := s.trips.MutateTrip(ctx, id, func(t *trip.Trip) error {
		if !t.IsMember(userID) {
			return svcerrors.Forbidden("not a member of this trip")
		}
		if in.Name != nil {
			name, err := validateName(*in.Name)
			if err != nil {
				return err
			}
			t.Name = name
		}
		if in.Description != nil {
			if len(*in.Description) > maxDescription {
				return svcerrors.Validation("description must be at most %d characters", maxDescription)
			}
			t.Description = strings.TrimSpace(*in.Description)
		}
		if in.Destination != nil {
			t.Destination = strings.TrimSpace(*in.Destination)
		}
		if in.ImageURL != nil {
			t.ImageURL = strings.TrimSpace(*in.ImageURL)
		}
		if in.Currency != nil {
			c, err := normalizeCurrency(*in.Currency)
			if err != nil {
				return err
			}
			t.Currency = c
		}
		if in.Budget != nil {
			if err := validateBudget(in.Budget); err != nil {
				return err
			}
			b := *in.Budget
			t.Budget = &b
		}

		before := t.Span()
		if err := applySchedule(t, in); err != nil {
			return err
		}
		if after := t.Span(); !before.Equal(after) {
			res := trip.ReassignTabs(t.OrderInTab, before, after)
			t.OrderInTab = res.Order
			moved = res.Moved
			reassigned = true
		}
		return nil
	})
	if err != nil {
		return trip.Trip{}, access.StoreError(err, "trip", id)
	}
	if reassigned {
		metrics.RecordTabReassignment(moved)
		s.log.WithField("trip_id", id).WithField("moved", moved).Info("trip schedule changed")
	}
	s.events.Publish(realtime.Event{Type: realtime.EventTripUpdated, TripID: id, ActorID: userID, Data: updated})
	return updated, nil
}

func applySchedule(t *trip.Trip, in UpdateInput) error {
	if in.StartDate == nil && in.EndDate == nil && in.NumDays == nil {
		return nil
	}
	start, end := t.StartDate, t.EndDate
	if in.StartDate != nil {
		d, err := parseDate("startDate", *in.StartDate)
		if err != nil {
			return err
		}
		start = d
	}
	if in.EndDate != nil {
		d, err := parseDate("endDate", *in.EndDate)
		if err != nil {
			return err
		}
		end = d
	}
	numDays := 0
	if in.NumDays != nil {
		numDays = *in.NumDays
		if numDays < 1 || numDays > trip.MaxDays {
			return svcerrors.Validation("numDays must be between 1 and %d", trip.MaxDays)
		}
		// A day count alone moves the end date of a dated trip.
		if in.StartDate == nil && in.EndDate == nil && start != nil {
			e := start.AddDate(0, 0, numDays-1)
			end = &e
		}
	} else if start == nil && end == nil {
		// Clearing the dates keeps the current day count.
		numDays = t.NumDays
	}
	start, end, days, err := schedule(start, end, numDays)
	if err != nil {
		return err
	}
	t.StartDate, t.EndDate, t.NumDays = start, end, days
	return nil
}

// Delete removes a trip and everything in it. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	t, err := s.trips.GetTrip(ctx, id)
	if err != nil {
		return access.StoreError(err, "trip", id)
	}
	if !t.IsMember(userID) {
		return svcerrors.Forbidden("not a member of this trip")
	}
	if t.OwnerID != userID {
		return svcerrors.Forbidden("only the owner can delete a trip")
	}
	return s.deleteTrip(ctx, id)
}

func (s *Service) deleteTrip(ctx context.Context, id string) error {
	var photos []gallery.Photo
	if s.photos != nil {
		var err error
		photos, err = s.photos.ListPhotos(ctx, id, storage.PhotoFilter{})
		if err != nil {
			s.log.WithError(err).WithField("trip_id", id).Warn("list photos before trip delete")
		}
	}
	if err := s.trips.DeleteTrip(ctx, id); err != nil {
		return access.StoreError(err, "trip", id)
	}
	s.access.Invalidate(ctx, id)
	if s.objects != nil {
		for _, p := range photos {
			if err := s.objects.Delete(ctx, p.ObjectKey); err != nil {
				s.log.WithError(err).WithField("object_key", p.ObjectKey).Warn("delete photo object")
			}
		}
	}
	s.log.WithField("trip_id", id).WithField("photos", len(photos)).Info("trip deleted")
	return nil
}
