package memory

import (
	"context"
	"sort"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/poll"
	"github.com/travelties/service_layer/internal/app/storage"
)

func clonePoll(p poll.Poll) poll.Poll {
	p.Options = append([]poll.Option{}, p.Options...)
	votes := make(map[string][]string, len(p.Votes))
	for k, v := range p.Votes {
		votes[k] = cloneStrings(v)
	}
	p.Votes = votes
	if p.ClosesAt != nil {
		c := *p.ClosesAt
		p.ClosesAt = &c
	}
	return p
}

func (s *Store) CreatePoll(_ context.Context, p poll.Poll) (poll.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.polls[p.ID] = clonePoll(p)
	return clonePoll(p), nil
}

func (s *Store) GetPoll(_ context.Context, id string) (poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, storage.ErrNotFound
	}
	return clonePoll(p), nil
}

func (s *Store) ListPolls(_ context.Context, tripID string) ([]poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []poll.Poll
	for _, p := range s.polls {
		if p.TripID == tripID {
			out = append(out, clonePoll(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MutatePoll(_ context.Context, id string, fn func(p *poll.Poll) error) (poll.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, storage.ErrNotFound
	}
	working := clonePoll(existing)
	if err := fn(&working); err != nil {
		return poll.Poll{}, err
	}
	working.ID = existing.ID
	working.TripID = existing.TripID
	working.CreatedAt = existing.CreatedAt
	working.UpdatedAt = time.Now().UTC()
	s.polls[id] = clonePoll(working)
	return working, nil
}

func (s *Store) DeletePoll(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.polls[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.polls, id)
	return nil
}

func (s *Store) ListExpiredOpenPolls(_ context.Context, now time.Time) ([]poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []poll.Poll
	for _, p := range s.polls {
		if !p.Closed && p.ClosesAt != nil && !now.Before(*p.ClosesAt) {
			out = append(out, clonePoll(p))
		}
	}
	return out, nil
}
