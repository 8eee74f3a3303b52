package trips

import (
	"context"
	"errors"

	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

// AddMembers adds friends of the caller to the trip.
func (s *Service) AddMembers(ctx context.Context, userID, id string, userIDs []string) (trip.Trip, error) {
	if len(userIDs) == 0 {
		return trip.Trip{}, svcerrors.Validation("userIds is required")
	}
	candidates, err := s.friendsOf(ctx, userID, userIDs)
	if err != nil {
		return trip.Trip{}, err
	}
	now := s.now()
	var added []string
	updated, err := s.trips.MutateTrip(ctx, id, func(t *trip.Trip) error {
		if !t.IsMember(userID) {
			return svcerrors.Forbidden("not a member of this trip")
		}
		added = added[:0]
		for _, uid := range candidates {
			if t.IsMember(uid) {
				continue
			}
			t.Members = append(t.Members, trip.Member{UserID: uid, JoinedAt: now})
			added = append(added, uid)
		}
		return nil
	})
	if err != nil {
		return trip.Trip{}, access.StoreError(err, "trip", id)
	}
	s.access.Invalidate(ctx, id)
	if len(added) > 0 {
		s.log.WithField("trip_id", id).WithField("added", added).Info("trip members added")
		s.events.Publish(realtime.Event{Type: realtime.EventTripUpdated, TripID: id, ActorID: userID, Data: updated})
	}
	return updated, nil
}

// successor returns the longest-standing member other than leaving.
func successor(t trip.Trip, leaving string) (string, bool) {
	var best *trip.Member
	for i := range t.Members {
		m := &t.Members[i]
		if m.UserID == leaving {
			continue
		}
		if best == nil || m.JoinedAt.Before(best.JoinedAt) {
			best = m
		}
	}
	if best == nil {
		return "", false
	}
	return best.UserID, true
}

func withoutMember(members []trip.Member, userID string) []trip.Member {
	out := make([]trip.Member, 0, len(members))
	for _, m := range members {
		if m.UserID != userID {
			out = append(out, m)
		}
	}
	return out
}

var errLastMember = errors.New("last member leaving")

// disconnecter is implemented by publishers that hold live connections.
type disconnecter interface {
	Disconnect(tripID, userID string)
}

// RemoveMember removes target from the trip. Members may remove themselves;
// the owner may remove anyone else. An owner who leaves hands the trip to
// the longest-standing member; the last member leaving deletes the trip.
// deleted reports whether the trip was removed.
func (s *Service) RemoveMember(ctx context.Context, userID, id, target string) (trip.Trip, bool, error) {
	updated, err := s.trips.MutateTrip(ctx, id, func(t *trip.Trip) error {
		if !t.IsMember(userID) {
			return svcerrors.Forbidden("not a member of this trip")
		}
		if target != userID && t.OwnerID != userID {
			return svcerrors.Forbidden("only the owner can remove other members")
		}
		if !t.IsMember(target) {
			return svcerrors.NotFound("member", target)
		}
		if len(t.Members) == 1 {
			return errLastMember
		}
		if t.OwnerID == target {
			next, _ := successor(*t, target)
			t.OwnerID = next
		}
		t.Members = withoutMember(t.Members, target)
		return nil
	})
	if errors.Is(err, errLastMember) {
		if err := s.deleteTrip(ctx, id); err != nil {
			return trip.Trip{}, false, err
		}
		return trip.Trip{}, true, nil
	}
	if err != nil {
		return trip.Trip{}, false, access.StoreError(err, "trip", id)
	}
	s.access.Invalidate(ctx, id)
	if d, ok := s.events.(disconnecter); ok {
		d.Disconnect(id, target)
	}
	s.events.Publish(realtime.Event{Type: realtime.EventTripUpdated, TripID: id, ActorID: userID, Data: updated})
	s.log.WithField("trip_id", id).WithField("member", target).WithField("owner", updated.OwnerID).Info("trip member removed")
	return updated, false, nil
}

// ForgetUser cleans up after a deleted account. Trips where the user is the
// only member are deleted; owned trips with other members pass to the
// longest-standing member. Other memberships are left in place.
func (s *Service) ForgetUser(ctx context.Context, userID string) error {
	owned, err := s.trips.ListTripsForUser(ctx, userID)
	if err != nil {
		return access.StoreError(err, "trip", "")
	}
	for _, t := range owned {
		if len(t.Members) == 1 {
			if err := s.deleteTrip(ctx, t.ID); err != nil && !errors.Is(err, svcerrors.ErrNotFound) {
				return err
			}
			continue
		}
		if t.OwnerID != userID {
			continue
		}
		_, err := s.trips.MutateTrip(ctx, t.ID, func(t *trip.Trip) error {
			if t.OwnerID != userID {
				return nil
			}
			if next, ok := successor(*t, userID); ok {
				t.OwnerID = next
			}
			return nil
		})
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return access.StoreError(err, "trip", t.ID)
		}
		s.access.Invalidate(ctx, t.ID)
	}
	return nil
}
