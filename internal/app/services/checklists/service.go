// Package checklists manages shared task lists and personal packing lists.
package checklists

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/travelties/service_layer/internal/app/domain/checklist"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	maxTitle    = 200
	maxItemText = 500
	maxItems    = 500
)

// Service implements checklist operations.
type Service struct {
	store  storage.ChecklistStore
	access *access.Checker
	log    *logger.Logger
}

// New creates the service.
func New(store storage.ChecklistStore, checker *access.Checker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("checklists")
	}
	return &Service{store: store, access: checker, log: log}
}

// CreateInput is the body of POST /trips/{id}/checklists.
type CreateInput struct {
	Kind  checklist.Kind `json:"kind"`
	Title string         `json:"title"`
	Items []ItemInput    `json:"items"`
}

// ItemInput describes a new item.
type ItemInput struct {
	Text       string     `json:"text"`
	AssigneeID string     `json:"assigneeId"`
	Quantity   int        `json:"quantity"`
	DueDate    *time.Time `json:"dueDate"`
}

// ItemUpdate carries optional item changes. An empty AssigneeID unassigns.
type ItemUpdate struct {
	Text       *string    `json:"text"`
	Done       *bool      `json:"done"`
	AssigneeID *string    `json:"assigneeId"`
	Quantity   *int       `json:"quantity"`
	DueDate    *time.Time `json:"dueDate"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", svcerrors.Validation("title is required")
	}
	if len(title) > maxTitle {
		return "", svcerrors.Validation("title must be at most %d characters", maxTitle)
	}
	return title, nil
}

func buildItem(kind checklist.Kind, grant access.Grant, in ItemInput) (checklist.Item, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return checklist.Item{}, svcerrors.Validation("item text is required")
	}
	if len(text) > maxItemText {
		return checklist.Item{}, svcerrors.Validation("item text must be at most %d characters", maxItemText)
	}
	if in.AssigneeID != "" && !grant.IsMember(in.AssigneeID) {
		return checklist.Item{}, svcerrors.Validation("assignee must be a trip member")
	}
	if in.Quantity < 0 {
		return checklist.Item{}, svcerrors.Validation("quantity cannot be negative")
	}
	item := checklist.Item{ID: uuid.NewString(), Text: text, AssigneeID: in.AssigneeID}
	switch kind {
	case checklist.KindPacking:
		item.Quantity = in.Quantity
		if item.Quantity == 0 {
			item.Quantity = 1
		}
	case checklist.KindTask:
		item.DueDate = in.DueDate
	}
	return item, nil
}

// Create adds a checklist. Packing lists belong to the caller.
func (s *Service) Create(ctx context.Context, userID, tripID string, in CreateInput) (checklist.Checklist, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return checklist.Checklist{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = checklist.KindTask
	}
	if kind != checklist.KindTask && kind != checklist.KindPacking {
		return checklist.Checklist{}, svcerrors.Validation("kind must be task or packing")
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return checklist.Checklist{}, err
	}
	if len(in.Items) > maxItems {
		return checklist.Checklist{}, svcerrors.Validation("a checklist holds at most %d items", maxItems)
	}
	items := make([]checklist.Item, 0, len(in.Items))
	for _, it := range in.Items {
		item, err := buildItem(kind, grant, it)
		if err != nil {
			return checklist.Checklist{}, err
		}
		items = append(items, item)
	}
	c, err := s.store.CreateChecklist(ctx, checklist.Checklist{
		TripID:  tripID,
		Kind:    kind,
		Title:   title,
		OwnerID: userID,
		Items:   items,
	})
	if err != nil {
		return checklist.Checklist{}, access.StoreError(err, "checklist", "")
	}
	s.log.WithField("trip_id", tripID).WithField("checklist_id", c.ID).WithField("kind", string(kind)).Info("checklist created")
	return c, nil
}

// List returns the checklists of the trip visible to the caller.
func (s *Service) List(ctx context.Context, userID, tripID string) ([]checklist.Checklist, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	all, err := s.store.ListChecklists(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "checklist", "")
	}
	out := make([]checklist.Checklist, 0, len(all))
	for _, c := range all {
		if c.VisibleTo(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Get returns a checklist. Another member's packing list reads as missing.
func (s *Service) Get(ctx context.Context, userID, tripID, id string) (checklist.Checklist, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return checklist.Checklist{}, err
	}
	c, err := s.store.GetChecklist(ctx, id)
	if err != nil {
		return checklist.Checklist{}, access.StoreError(err, "checklist", id)
	}
	if c.TripID != tripID || !c.VisibleTo(userID) {
		return checklist.Checklist{}, svcerrors.NotFound("checklist", id)
	}
	return c, nil
}

// mutate applies fn to a checklist the caller can see.
func (s *Service) mutate(ctx context.Context, userID, tripID, id string, fn func(c *checklist.Checklist, grant access.Grant) error) (checklist.Checklist, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return checklist.Checklist{}, err
	}
	out, err := s.store.MutateChecklist(ctx, id, func(c *checklist.Checklist) error {
		if c.TripID != tripID || !c.VisibleTo(userID) {
			return svcerrors.NotFound("checklist", id)
		}
		return fn(c, grant)
	})
	if err != nil {
		return checklist.Checklist{}, access.StoreError(err, "checklist", id)
	}
	return out, nil
}

// Rename changes the title.
func (s *Service) Rename(ctx context.Context, userID, tripID, id, title string) (checklist.Checklist, error) {
	title, err := validateTitle(title)
	if err != nil {
		return checklist.Checklist{}, err
	}
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, _ access.Grant) error {
		c.Title = title
		return nil
	})
}

// Delete removes a checklist. The list's creator or the trip owner may delete.
func (s *Service) Delete(ctx context.Context, userID, tripID, id string) error {
	c, err := s.Get(ctx, userID, tripID, id)
	if err != nil {
		return err
	}
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return err
	}
	if c.OwnerID != userID && !grant.IsOwner(userID) {
		return svcerrors.Forbidden("only the list creator or trip owner can delete a checklist")
	}
	if err := s.store.DeleteChecklist(ctx, id); err != nil {
		return access.StoreError(err, "checklist", id)
	}
	return nil
}

// AddItem appends an item.
func (s *Service) AddItem(ctx context.Context, userID, tripID, id string, in ItemInput) (checklist.Checklist, error) {
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, grant access.Grant) error {
		if len(c.Items) >= maxItems {
			return svcerrors.Validation("a checklist holds at most %d items", maxItems)
		}
		item, err := buildItem(c.Kind, grant, in)
		if err != nil {
			return err
		}
		c.Items = append(c.Items, item)
		return nil
	})
}

func findItem(c *checklist.Checklist, itemID string) (*checklist.Item, error) {
	i := c.ItemIndex(itemID)
	if i < 0 {
		return nil, svcerrors.NotFound("item", itemID)
	}
	return &c.Items[i], nil
}

// UpdateItem applies in to one item.
func (s *Service) UpdateItem(ctx context.Context, userID, tripID, id, itemID string, in ItemUpdate) (checklist.Checklist, error) {
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, grant access.Grant) error {
		item, err := findItem(c, itemID)
		if err != nil {
			return err
		}
		if in.Text != nil {
			text := strings.TrimSpace(*in.Text)
			if text == "" || len(text) > maxItemText {
				return svcerrors.Validation("item text must be 1-%d characters", maxItemText)
			}
			item.Text = text
		}
		if in.Done != nil {
			item.Done = *in.Done
		}
		if in.AssigneeID != nil {
			if *in.AssigneeID != "" && !grant.IsMember(*in.AssigneeID) {
				return svcerrors.Validation("assignee must be a trip member")
			}
			item.AssigneeID = *in.AssigneeID
		}
		if in.Quantity != nil {
			if *in.Quantity < 0 {
				return svcerrors.Validation("quantity cannot be negative")
			}
			item.Quantity = *in.Quantity
		}
		if in.DueDate != nil {
			item.DueDate = in.DueDate
		}
		return nil
	})
}

// ToggleItem flips the done flag of one item.
func (s *Service) ToggleItem(ctx context.Context, userID, tripID, id, itemID string) (checklist.Checklist, error) {
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, _ access.Grant) error {
		item, err := findItem(c, itemID)
		if err != nil {
			return err
		}
		item.Done = !item.Done
		return nil
	})
}

// DeleteItem removes one item.
func (s *Service) DeleteItem(ctx context.Context, userID, tripID, id, itemID string) (checklist.Checklist, error) {
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, _ access.Grant) error {
		i := c.ItemIndex(itemID)
		if i < 0 {
			return svcerrors.NotFound("item", itemID)
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	})
}

// ReorderItems sets the item order. itemIDs must list every item once.
func (s *Service) ReorderItems(ctx context.Context, userID, tripID, id string, itemIDs []string) (checklist.Checklist, error) {
	return s.mutate(ctx, userID, tripID, id, func(c *checklist.Checklist, _ access.Grant) error {
		if len(itemIDs) != len(c.Items) {
			return svcerrors.Conflict("item list does not match the checklist")
		}
		byID := make(map[string]checklist.Item, len(c.Items))
		for _, it := range c.Items {
			byID[it.ID] = it
		}
		out := make([]checklist.Item, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			it, ok := byID[itemID]
			if !ok {
				return svcerrors.Conflict("item list does not match the checklist")
			}
			delete(byID, itemID)
			out = append(out, it)
		}
		c.Items = out
		return nil
	})
}
