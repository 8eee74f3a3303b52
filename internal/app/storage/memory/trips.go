package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/storage"
)

func cloneTrip(t trip.Trip) trip.Trip {
	t.Members = append([]trip.Member{}, t.Members...)
	t.OrderInTab = t.OrderInTab.Clone()
	if t.StartDate != nil {
		d := *t.StartDate
		t.StartDate = &d
	}
	if t.EndDate != nil {
		d := *t.EndDate
		t.EndDate = &d
	}
	if t.Budget != nil {
		b := *t.Budget
		t.Budget = &b
	}
	return t
}

func (s *Store) CreateTrip(_ context.Context, t trip.Trip) (trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	} else if _, exists := s.trips[t.ID]; exists {
		return trip.Trip{}, storage.ErrConflict
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.OrderInTab == nil {
		t.OrderInTab = trip.NewOrder(t.NumDays)
	}
	s.trips[t.ID] = cloneTrip(t)
	return cloneTrip(t), nil
}

func (s *Store) GetTrip(_ context.Context, id string) (trip.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trips[id]
	if !ok {
		return trip.Trip{}, storage.ErrNotFound
	}
	return cloneTrip(t), nil
}

func (s *Store) ListTripsForUser(_ context.Context, userID string) ([]trip.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []trip.Trip
	for _, t := range s.trips {
		if t.IsMember(userID) {
			out = append(out, cloneTrip(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return tripLess(out[i], out[j]) })
	return out, nil
}

// tripLess orders dated trips by start date before undated ones, then by
// creation time.
func tripLess(a, b trip.Trip) bool {
	switch {
	case a.StartDate != nil && b.StartDate != nil:
		if !a.StartDate.Equal(*b.StartDate) {
			return a.StartDate.Before(*b.StartDate)
		}
	case a.StartDate != nil:
		return true
	case b.StartDate != nil:
		return false
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (s *Store) MutateTrip(_ context.Context, id string, fn storage.TripFunc) (trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateTripLocked(id, fn)
}

func (s *Store) mutateTripLocked(id string, fn storage.TripFunc) (trip.Trip, error) {
	existing, ok := s.trips[id]
	if !ok {
		return trip.Trip{}, storage.ErrNotFound
	}
	working := cloneTrip(existing)
	if err := fn(&working); err != nil {
		return trip.Trip{}, err
	}
	working.ID = existing.ID
	working.CreatedAt = existing.CreatedAt
	working.UpdatedAt = time.Now().UTC()
	s.trips[id] = cloneTrip(working)
	return working, nil
}

func (s *Store) DeleteTrip(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.trips, id)
	for k, v := range s.cards {
		if v.TripID == id {
			delete(s.cards, k)
		}
	}
	for k, v := range s.checklists {
		if v.TripID == id {
			delete(s.checklists, k)
		}
	}
	for k, v := range s.photos {
		if v.TripID == id {
			delete(s.photos, k)
		}
	}
	for k, v := range s.albums {
		if v.TripID == id {
			delete(s.albums, k)
		}
	}
	for k, v := range s.polls {
		if v.TripID == id {
			delete(s.polls, k)
		}
	}
	for k, v := range s.posts {
		if v.TripID == id {
			delete(s.posts, k)
		}
	}
	for k, v := range s.expenses {
		if v.TripID == id {
			delete(s.expenses, k)
		}
	}
	for k, v := range s.settlements {
		if v.TripID == id {
			delete(s.settlements, k)
		}
	}
	return nil
}

// --- CardStore ----------------------------------------------------------------

func cloneCard(c card.Card) card.Card {
	if c.Location != nil {
		l := *c.Location
		c.Location = &l
	}
	if c.Transport != nil {
		tr := *c.Transport
		c.Transport = &tr
	}
	return c
}

func (s *Store) CreateCard(_ context.Context, c card.Card, layout storage.TripFunc) (card.Card, trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	t, err := s.mutateTripLocked(c.TripID, layout)
	if err != nil {
		return card.Card{}, trip.Trip{}, err
	}
	s.cards[c.ID] = cloneCard(c)
	return cloneCard(c), t, nil
}

func (s *Store) GetCard(_ context.Context, tripID, id string) (card.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[id]
	if !ok || c.TripID != tripID {
		return card.Card{}, storage.ErrNotFound
	}
	return cloneCard(c), nil
}

func (s *Store) ListCards(_ context.Context, tripID string) ([]card.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []card.Card
	for _, c := range s.cards {
		if c.TripID == tripID {
			out = append(out, cloneCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateCard(_ context.Context, c card.Card) (card.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cards[c.ID]
	if !ok || existing.TripID != c.TripID {
		return card.Card{}, storage.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.CreatedBy = existing.CreatedBy
	c.Type = existing.Type
	c.UpdatedAt = time.Now().UTC()
	s.cards[c.ID] = cloneCard(c)
	return cloneCard(c), nil
}

func (s *Store) DeleteCard(_ context.Context, tripID, id string, layout storage.TripFunc) (trip.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cards[id]
	if !ok || c.TripID != tripID {
		return trip.Trip{}, storage.ErrNotFound
	}
	t, err := s.mutateTripLocked(tripID, layout)
	if err != nil {
		return trip.Trip{}, err
	}
	delete(s.cards, id)
	return t, nil
}
