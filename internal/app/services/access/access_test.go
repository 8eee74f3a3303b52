package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/storage"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	"github.com/travelties/service_layer/internal/cache"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

func TestCheckerRequire(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tr, err := store.CreateTrip(ctx, trip.Trip{
		Name: "Lisbon", OwnerID: "u1", NumDays: 2, Currency: "EUR",
		Members: []trip.Member{{UserID: "u1"}, {UserID: "u2"}},
	})
	require.NoError(t, err)

	c := NewChecker(store, cache.NewMemory(), time.Minute, nil)

	g, err := c.Require(ctx, tr.ID, "u2")
	require.NoError(t, err)
	assert.True(t, g.IsOwner("u1"))
	assert.Equal(t, "EUR", g.Currency)

	_, err = c.Require(ctx, tr.ID, "u3")
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)

	_, err = c.Require(ctx, "missing", "u1")
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}

func TestCheckerInvalidate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tr, err := store.CreateTrip(ctx, trip.Trip{Name: "Oslo", OwnerID: "u1", NumDays: 1, Members: []trip.Member{{UserID: "u1"}}})
	require.NoError(t, err)

	c := NewChecker(store, cache.NewMemory(), time.Minute, nil)
	_, err = c.Require(ctx, tr.ID, "u1")
	require.NoError(t, err)

	_, err = store.MutateTrip(ctx, tr.ID, func(t *trip.Trip) error {
		t.Members = append(t.Members, trip.Member{UserID: "u2"})
		return nil
	})
	require.NoError(t, err)

	_, err = c.Require(ctx, tr.ID, "u2")
	assert.ErrorIs(t, err, svcerrors.ErrForbidden, "stale grant is served until invalidated")

	c.Invalidate(ctx, tr.ID)
	_, err = c.Require(ctx, tr.ID, "u2")
	assert.NoError(t, err)
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError(nil, "trip", "t1"))
	assert.ErrorIs(t, StoreError(storage.ErrNotFound, "trip", "t1"), svcerrors.ErrNotFound)
	assert.ErrorIs(t, StoreError(storage.ErrConflict, "trip", "t1"), svcerrors.ErrConflict)

	forbidden := svcerrors.Forbidden("nope")
	assert.Same(t, forbidden, StoreError(forbidden, "trip", "t1"))

	internal := svcerrors.GetServiceError(StoreError(assert.AnError, "trip", "t1"))
	require.NotNil(t, internal)
	assert.Equal(t, svcerrors.CodeInternal, internal.Code)
}
