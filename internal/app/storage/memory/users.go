package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage"
)

func cloneUser(u user.User) user.User {
	u.Friends = cloneStrings(u.Friends)
	return u
}

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrConflict
	}
	if s.usernameTakenLocked(u.Username, u.ID) {
		return user.User{}, storage.ErrConflict
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Friends = cloneStrings(u.Friends)
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) usernameTakenLocked(username, exceptID string) bool {
	for id, existing := range s.users {
		if id != exceptID && strings.EqualFold(existing.Username, username) {
			return true
		}
	}
	return false
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	if s.usernameTakenLocked(u.Username, u.ID) {
		return user.User{}, storage.ErrConflict
	}
	u.CreatedAt = existing.CreatedAt
	u.Friends = existing.Friends
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	for uid, u := range s.users {
		if u.IsFriend(id) {
			u.Friends = removeString(u.Friends, id)
			s.users[uid] = u
		}
	}
	for rid, req := range s.friendRequests {
		if req.From == id || req.To == id {
			delete(s.friendRequests, rid)
		}
	}
	return nil
}

func (s *Store) SearchUsers(_ context.Context, query string, limit int) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []user.User
	for _, u := range s.users {
		if strings.HasPrefix(strings.ToLower(u.Username), q) || strings.HasPrefix(strings.ToLower(u.DisplayName), q) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RemoveFriendship(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ua, okA := s.users[a]
	ub, okB := s.users[b]
	if !okA || !okB || !ua.IsFriend(b) {
		return storage.ErrNotFound
	}
	ua.Friends = removeString(ua.Friends, b)
	ub.Friends = removeString(ub.Friends, a)
	s.users[a] = ua
	s.users[b] = ub
	return nil
}

func (s *Store) CreateFriendRequest(_ context.Context, req user.FriendRequest) (user.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = newID()
	}
	req.CreatedAt = time.Now().UTC()
	if req.Status == "" {
		req.Status = user.RequestPending
	}
	s.friendRequests[req.ID] = req
	return req, nil
}

func (s *Store) GetFriendRequest(_ context.Context, id string) (user.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.friendRequests[id]
	if !ok {
		return user.FriendRequest{}, storage.ErrNotFound
	}
	return req, nil
}

func (s *Store) FindPendingRequest(_ context.Context, from, to string) (user.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.friendRequests {
		if req.From == from && req.To == to && req.Status == user.RequestPending {
			return req, nil
		}
	}
	return user.FriendRequest{}, storage.ErrNotFound
}

func (s *Store) ListFriendRequests(_ context.Context, userID string, incoming bool) ([]user.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []user.FriendRequest
	for _, req := range s.friendRequests {
		if req.Status != user.RequestPending {
			continue
		}
		if (incoming && req.To == userID) || (!incoming && req.From == userID) {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RespondFriendRequest(_ context.Context, id string, status user.RequestStatus, at time.Time) (user.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.friendRequests[id]
	if !ok || req.Status != user.RequestPending {
		return user.FriendRequest{}, storage.ErrNotFound
	}
	if status == user.RequestAccepted {
		from, okFrom := s.users[req.From]
		to, okTo := s.users[req.To]
		if !okFrom || !okTo {
			return user.FriendRequest{}, storage.ErrNotFound
		}
		if !from.IsFriend(to.ID) {
			from.Friends = append(cloneStrings(from.Friends), to.ID)
			to.Friends = append(cloneStrings(to.Friends), from.ID)
			s.users[from.ID] = from
			s.users[to.ID] = to
		}
	}
	req.Status = status
	req.RespondedAt = &at
	s.friendRequests[id] = req
	return req, nil
}

func removeString(in []string, v string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
