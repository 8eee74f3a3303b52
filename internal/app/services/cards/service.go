// Package cards manages itinerary cards and their placement in trip tabs.
// Every write that adds, removes or moves a card updates the trip layout in
// the same store transaction.
package cards

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	maxTitle       = 200
	maxDescription = 5000
)

// Service implements card operations.
type Service struct {
	cards  storage.CardStore
	trips  storage.TripStore
	access *access.Checker
	events realtime.Publisher
	log    *logger.Logger
}

// New creates the service.
func New(cards storage.CardStore, trips storage.TripStore, checker *access.Checker, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cards")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{cards: cards, trips: trips, access: checker, events: events, log: log}
}

// Fields are the editable card attributes.
type Fields struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	Cost        *decimal.Decimal `json:"cost"`
	Location    *card.Location   `json:"location"`
	Transport   *card.Transport  `json:"transport"`
}

// CreateInput is the body of POST /trips/{id}/cards. A nil Position appends.
type CreateInput struct {
	Fields
	Type     card.Type `json:"type"`
	Tab      string    `json:"tab"`
	Position *int      `json:"position"`
}

// UpdateInput carries optional card changes.
type UpdateInput struct {
	Type        *card.Type       `json:"type"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	Cost        *decimal.Decimal `json:"cost"`
	Location    *card.Location   `json:"location"`
	Transport   *card.Transport  `json:"transport"`
	Checked     *bool            `json:"checked"`
}

// Validate checks the type-specific requirements of c.
func Validate(c card.Card) error {
	if !c.Type.Valid() {
		return svcerrors.Validation("type must be one of note, destination, transportation, general")
	}
	if len(c.Title) > maxTitle {
		return svcerrors.Validation("title must be at most %d characters", maxTitle)
	}
	if len(c.Description) > maxDescription {
		return svcerrors.Validation("description must be at most %d characters", maxDescription)
	}
	if c.Type == card.TypeNote {
		if c.Title == "" && c.Description == "" {
			return svcerrors.Validation("a note needs a title or a description")
		}
	} else if c.Title == "" {
		return svcerrors.Validation("title is required")
	}
	if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		return svcerrors.Validation("endTime must not be before startTime")
	}
	if c.Cost != nil && c.Cost.IsNegative() {
		return svcerrors.Validation("cost cannot be negative")
	}
	switch c.Type {
	case card.TypeDestination:
		if c.Location == nil || strings.TrimSpace(c.Location.Name) == "" {
			return svcerrors.Validation("destination cards need a location name")
		}
	case card.TypeTransportation:
		tr := c.Transport
		if tr == nil || !tr.Mode.Valid() {
			return svcerrors.Validation("transportation cards need a mode of flight, train, bus, car, boat or other")
		}
		if strings.TrimSpace(tr.From) == "" || strings.TrimSpace(tr.To) == "" {
			return svcerrors.Validation("transportation cards need from and to")
		}
	}
	return nil
}

func requireMember(t *trip.Trip, userID string) error {
	if !t.IsMember(userID) {
		return svcerrors.Forbidden("not a member of this trip")
	}
	return nil
}

func requireTab(t *trip.Trip, tab string) error {
	if !t.OrderInTab.HasTab(tab) {
		return svcerrors.Validation("unknown tab %q", tab)
	}
	return nil
}

// Create inserts a card and places it in its tab atomically.
func (s *Service) Create(ctx context.Context, userID, tripID string, in CreateInput) (card.Card, error) {
	c := card.Card{
		ID:          uuid.NewString(),
		TripID:      tripID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		CreatedBy:   userID,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Cost:        in.Cost,
		Location:    in.Location,
		Transport:   in.Transport,
	}
	if c.Type != card.TypeDestination {
		c.Location = nil
	}
	if c.Type != card.TypeTransportation {
		c.Transport = nil
	}
	if err := Validate(c); err != nil {
		return card.Card{}, err
	}
	tab := in.Tab
	if tab == "" {
		tab = trip.UnassignedTab
	}
	pos := -1
	if in.Position != nil {
		pos = *in.Position
	}

	created, _, err := s.cards.CreateCard(ctx, c, func(t *trip.Trip) error {
		if err := requireMember(t, userID); err != nil {
			return err
		}
		if err := requireTab(t, tab); err != nil {
			return err
		}
		t.OrderInTab.Insert(tab, c.ID, pos)
		return nil
	})
	if err != nil {
		return card.Card{}, access.StoreError(err, "trip", tripID)
	}
	metrics.RecordCardWrite("create")
	s.log.WithField("trip_id", tripID).WithField("card_id", created.ID).WithField("tab", tab).Info("card created")
	s.events.Publish(realtime.Event{
		Type: realtime.EventCardCreated, TripID: tripID, ActorID: userID,
		Data: map[string]interface{}{"card": created, "tab": tab},
	})
	return created, nil
}

// List returns every card of the trip.
func (s *Service) List(ctx context.Context, userID, tripID string) ([]card.Card, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	out, err := s.cards.ListCards(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "card", "")
	}
	if out == nil {
		out = []card.Card{}
	}
	return out, nil
}

// Tabs returns the ordered layout with cards resolved.
func (s *Service) Tabs(ctx context.Context, userID, tripID string) (map[string][]card.Card, error) {
	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "trip", tripID)
	}
	if err := requireMember(&t, userID); err != nil {
		return nil, err
	}
	all, err := s.cards.ListCards(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "card", "")
	}
	byID := make(map[string]card.Card, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	out := make(map[string][]card.Card, len(t.OrderInTab))
	for tab, ids := range t.OrderInTab {
		list := make([]card.Card, 0, len(ids))
		for _, id := range ids {
			if c, ok := byID[id]; ok {
				list = append(list, c)
			}
		}
		out[tab] = list
	}
	return out, nil
}

// Get returns one card.
func (s *Service) Get(ctx context.Context, userID, tripID, cardID string) (card.Card, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return card.Card{}, err
	}
	c, err := s.cards.GetCard(ctx, tripID, cardID)
	if err != nil {
		return card.Card{}, access.StoreError(err, "card", cardID)
	}
	return c, nil
}

// Update applies in. The card type cannot change.
func (s *Service) Update(ctx context.Context, userID, tripID, cardID string, in UpdateInput) (card.Card, error) {
	c, err := s.Get(ctx, userID, tripID, cardID)
	if err != nil {
		return card.Card{}, err
	}
	if in.Type != nil && *in.Type != c.Type {
		return card.Card{}, svcerrors.Validation("card type cannot be changed")
	}
	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.StartTime != nil {
		c.StartTime = in.StartTime
	}
	if in.EndTime != nil {
		c.EndTime = in.EndTime
	}
	if in.Cost != nil {
		c.Cost = in.Cost
	}
	if in.Location != nil && c.Type == card.TypeDestination {
		c.Location = in.Location
	}
	if in.Transport != nil && c.Type == card.TypeTransportation {
		c.Transport = in.Transport
	}
	if in.Checked != nil {
		c.Checked = *in.Checked
	}
	if err := Validate(c); err != nil {
		return card.Card{}, err
	}
	updated, err := s.cards.UpdateCard(ctx, c)
	if err != nil {
		return card.Card{}, access.StoreError(err, "card", cardID)
	}
	metrics.RecordCardWrite("update")
	s.events.Publish(realtime.Event{Type: realtime.EventCardUpdated, TripID: tripID, ActorID: userID, Data: updated})
	return updated, nil
}

// Delete removes the card from its tab and deletes it atomically.
func (s *Service) Delete(ctx context.Context, userID, tripID, cardID string) error {
	_, err := s.cards.DeleteCard(ctx, tripID, cardID, func(t *trip.Trip) error {
		if err := requireMember(t, userID); err != nil {
			return err
		}
		t.OrderInTab.Remove(cardID)
		return nil
	})
	if err != nil {
		return access.StoreError(err, "card", cardID)
	}
	metrics.RecordCardWrite("delete")
	s.log.WithField("trip_id", tripID).WithField("card_id", cardID).Info("card deleted")
	s.events.Publish(realtime.Event{
		Type: realtime.EventCardDeleted, TripID: tripID, ActorID: userID,
		Data: map[string]string{"cardId": cardID},
	})
	return nil
}

// Move places the card at position in tab, removing it from its current tab.
func (s *Service) Move(ctx context.Context, userID, tripID, cardID, tab string, position *int) (trip.Order, error) {
	if tab == "" {
		return nil, svcerrors.Validation("tab is required")
	}
	pos := -1
	if position != nil {
		pos = *position
	}
	updated, err := s.trips.MutateTrip(ctx, tripID, func(t *trip.Trip) error {
		if err := requireMember(t, userID); err != nil {
			return err
		}
		if err := requireTab(t, tab); err != nil {
			return err
		}
		if !t.OrderInTab.Remove(cardID) {
			return svcerrors.NotFound("card", cardID)
		}
		t.OrderInTab.Insert(tab, cardID, pos)
		return nil
	})
	if err != nil {
		return nil, access.StoreError(err, "trip", tripID)
	}
	metrics.RecordCardWrite("move")
	s.events.Publish(realtime.Event{
		Type: realtime.EventCardMoved, TripID: tripID, ActorID: userID,
		Data: map[string]interface{}{"cardId": cardID, "tab": tab, "orderInTab": updated.OrderInTab},
	})
	return updated.OrderInTab, nil
}

// Reorder replaces the order of one tab. cardIDs must be a permutation of
// the tab's current cards.
func (s *Service) Reorder(ctx context.Context, userID, tripID, tab string, cardIDs []string) (trip.Order, error) {
	updated, err := s.trips.MutateTrip(ctx, tripID, func(t *trip.Trip) error {
		if err := requireMember(t, userID); err != nil {
			return err
		}
		if !t.OrderInTab.HasTab(tab) {
			return svcerrors.NotFound("tab", tab)
		}
		if !samePermutation(t.OrderInTab[tab], cardIDs) {
			return svcerrors.Conflict("card list does not match the tab's current cards")
		}
		t.OrderInTab[tab] = append([]string{}, cardIDs...)
		return nil
	})
	if err != nil {
		return nil, access.StoreError(err, "trip", tripID)
	}
	metrics.RecordCardWrite("reorder")
	s.events.Publish(realtime.Event{
		Type: realtime.EventTabReordered, TripID: tripID, ActorID: userID,
		Data: map[string]interface{}{"tab": tab, "cardIds": updated.OrderInTab[tab]},
	})
	return updated.OrderInTab, nil
}

func samePermutation(current, proposed []string) bool {
	if len(current) != len(proposed) {
		return false
	}
	counts := make(map[string]int, len(current))
	for _, id := range current {
		counts[id]++
	}
	for _, id := range proposed {
		if counts[id] == 0 {
			return false
		}
		counts[id]--
	}
	return true
}
