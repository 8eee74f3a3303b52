package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/checklist"
	"github.com/travelties/service_layer/internal/app/storage"
)

func cloneChecklist(c checklist.Checklist) checklist.Checklist {
	items := make([]checklist.Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

func (s *Store) CreateChecklist(_ context.Context, c checklist.Checklist) (checklist.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.checklists[c.ID] = cloneChecklist(c)
	return cloneChecklist(c), nil
}

func (s *Store) GetChecklist(_ context.Context, id string) (checklist.Checklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.checklists[id]
	if !ok {
		return checklist.Checklist{}, storage.ErrNotFound
	}
	return cloneChecklist(c), nil
}

func (s *Store) ListChecklists(_ context.Context, tripID string) ([]checklist.Checklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []checklist.Checklist
	for _, c := range s.checklists {
		if c.TripID == tripID {
			out = append(out, cloneChecklist(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MutateChecklist(_ context.Context, id string, fn func(c *checklist.Checklist) error) (checklist.Checklist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.checklists[id]
	if !ok {
		return checklist.Checklist{}, storage.ErrNotFound
	}
	working := cloneChecklist(existing)
	if err := fn(&working); err != nil {
		return checklist.Checklist{}, err
	}
	working.ID = existing.ID
	working.TripID = existing.TripID
	working.CreatedAt = existing.CreatedAt
	working.UpdatedAt = time.Now().UTC()
	s.checklists[id] = cloneChecklist(working)
	return working, nil
}

func (s *Store) DeleteChecklist(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.checklists[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.checklists, id)
	return nil
}
