package users

import (
	"context"
	"errors"

	"github.com/travelties/service_layer/internal/app/domain/user"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

// Request directions for ListRequests.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// SendRequest invites to to become a friend of from. When to already invited
// from, that request is accepted instead.
func (s *Service) SendRequest(ctx context.Context, from, to string) (user.FriendRequest, error) {
	if to == "" {
		return user.FriendRequest{}, svcerrors.Validation("to is required")
	}
	if from == to {
		return user.FriendRequest{}, svcerrors.Validation("cannot send a friend request to yourself")
	}
	sender, err := s.Get(ctx, from)
	if err != nil {
		return user.FriendRequest{}, err
	}
	if _, err := s.Get(ctx, to); err != nil {
		return user.FriendRequest{}, err
	}
	if sender.IsFriend(to) {
		return user.FriendRequest{}, svcerrors.Conflict("already friends")
	}

	if _, err := s.store.FindPendingRequest(ctx, from, to); err == nil {
		return user.FriendRequest{}, svcerrors.Conflict("friend request already pending")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.FriendRequest{}, svcerrors.Internal("find friend request", err)
	}

	if reverse, err := s.store.FindPendingRequest(ctx, to, from); err == nil {
		return s.respond(ctx, reverse, user.RequestAccepted)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.FriendRequest{}, svcerrors.Internal("find friend request", err)
	}

	req, err := s.store.CreateFriendRequest(ctx, user.FriendRequest{
		From:   from,
		To:     to,
		Status: user.RequestPending,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.FriendRequest{}, svcerrors.Conflict("friend request already pending")
		}
		return user.FriendRequest{}, svcerrors.Internal("create friend request", err)
	}
	s.log.WithField("from", from).WithField("to", to).Info("friend request sent")
	return req, nil
}

// ListRequests returns the caller's pending requests in one direction.
func (s *Service) ListRequests(ctx context.Context, userID, direction string) ([]user.FriendRequest, error) {
	var incoming bool
	switch direction {
	case "", DirectionIncoming:
		incoming = true
	case DirectionOutgoing:
	default:
		return nil, svcerrors.Validation("direction must be incoming or outgoing")
	}
	reqs, err := s.store.ListFriendRequests(ctx, userID, incoming)
	if err != nil {
		return nil, svcerrors.Internal("list friend requests", err)
	}
	if reqs == nil {
		reqs = []user.FriendRequest{}
	}
	return reqs, nil
}

// Respond accepts or declines a request addressed to userID.
func (s *Service) Respond(ctx context.Context, userID, requestID string, accept bool) (user.FriendRequest, error) {
	req, err := s.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.FriendRequest{}, svcerrors.NotFound("friend request", requestID)
		}
		return user.FriendRequest{}, svcerrors.Internal("load friend request", err)
	}
	if req.To != userID {
		return user.FriendRequest{}, svcerrors.Forbidden("only the recipient can respond to a friend request")
	}
	status := user.RequestDeclined
	if accept {
		status = user.RequestAccepted
	}
	return s.respond(ctx, req, status)
}

func (s *Service) respond(ctx context.Context, req user.FriendRequest, status user.RequestStatus) (user.FriendRequest, error) {
	if req.Status != user.RequestPending {
		return user.FriendRequest{}, svcerrors.Conflict("friend request is already " + string(req.Status))
	}
	out, err := s.store.RespondFriendRequest(ctx, req.ID, status, s.now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return user.FriendRequest{}, svcerrors.NotFound("friend request", req.ID)
		case errors.Is(err, storage.ErrConflict):
			return user.FriendRequest{}, svcerrors.Conflict("friend request is no longer pending")
		}
		return user.FriendRequest{}, svcerrors.Internal("respond to friend request", err)
	}
	s.invalidate(ctx, req.From, req.To)
	s.log.WithField("request_id", req.ID).WithField("status", string(status)).Info("friend request resolved")
	return out, nil
}

// Friends returns the public profiles of userID's friends.
func (s *Service) Friends(ctx context.Context, userID string) ([]user.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]user.User, 0, len(u.Friends))
	for _, id := range u.Friends {
		f, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, svcerrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, f.Public())
	}
	return out, nil
}

// AreFriends reports whether a and b are friends.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	u, err := s.Get(ctx, a)
	if err != nil {
		return false, err
	}
	return u.IsFriend(b), nil
}

// RemoveFriend ends the friendship between userID and friendID.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if err := s.store.RemoveFriendship(ctx, userID, friendID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("friend", friendID)
		}
		return svcerrors.Internal("remove friend", err)
	}
	s.invalidate(ctx, userID, friendID)
	return nil
}
