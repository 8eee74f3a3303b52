// Package access resolves trip membership for the trip-scoped services.
package access

import (
	"context"
	"errors"
	"time"

	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/cache"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

// Grant is the membership snapshot of one trip.
type Grant struct {
	TripID   string   `json:"tripId"`
	OwnerID  string   `json:"ownerId"`
	Members  []string `json:"members"`
	Currency string   `json:"currency"`
}

// IsMember reports whether userID belongs to the trip.
func (g Grant) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// IsOwner reports whether userID owns the trip.
func (g Grant) IsOwner(userID string) bool { return g.OwnerID == userID }

// GrantFor builds the snapshot of t.
func GrantFor(t trip.Trip) Grant {
	return Grant{TripID: t.ID, OwnerID: t.OwnerID, Members: t.MemberIDs(), Currency: t.Currency}
}

// Checker loads grants through a short-lived cache.
type Checker struct {
	trips storage.TripStore
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewChecker creates a checker. A nil cache disables caching.
func NewChecker(trips storage.TripStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.NewDefault("access")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Checker{trips: trips, cache: c, ttl: ttl, log: log}
}

func cacheKey(tripID string) string { return "trip-access:" + tripID }

// Grant returns the membership snapshot of tripID.
func (c *Checker) Grant(ctx context.Context, tripID string) (Grant, error) {
	if c.cache != nil {
		var g Grant
		found, err := c.cache.Get(ctx, cacheKey(tripID), &g)
		if err != nil {
			c.log.WithError(err).WithField("trip_id", tripID).Warn("read access cache")
		} else if found {
			return g, nil
		}
	}

	t, err := c.trips.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Grant{}, svcerrors.NotFound("trip", tripID)
		}
		return Grant{}, svcerrors.Internal("load trip", err)
	}
	g := GrantFor(t)
	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey(tripID), g, c.ttl); err != nil {
			c.log.WithError(err).WithField("trip_id", tripID).Warn("write access cache")
		}
	}
	return g, nil
}

// Require returns the grant when userID is a member, 404 when the trip is
// missing and 403 otherwise.
func (c *Checker) Require(ctx context.Context, tripID, userID string) (Grant, error) {
	g, err := c.Grant(ctx, tripID)
	if err != nil {
		return Grant{}, err
	}
	if !g.IsMember(userID) {
		return Grant{}, svcerrors.Forbidden("not a member of this trip")
	}
	return g, nil
}

// Invalidate drops the cached grant of tripID after a membership change.
func (c *Checker) Invalidate(ctx context.Context, tripID string) {
	if c == nil || c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, cacheKey(tripID)); err != nil {
		c.log.WithError(err).WithField("trip_id", tripID).Warn("invalidate access cache")
	}
}

// StoreError converts a storage error into a ServiceError. Errors that are
// already ServiceErrors pass through unchanged.
func StoreError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if se := svcerrors.GetServiceError(err); se != nil {
		return se
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return svcerrors.NotFound(resource, id)
	case errors.Is(err, storage.ErrConflict):
		return svcerrors.Conflict(resource + " conflicts with existing data")
	}
	return svcerrors.Internal("store "+resource, err)
}
