package expenses

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage/memory"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

type recorder struct{ events []realtime.Event }

func (r *recorder) Publish(e realtime.Event) { r.events = append(r.events, e) }

func setup(t *testing.T) (*Service, *recorder, string) {
	t.Helper()
	store := memory.New()
	budget := dec("500")
	tr, err := store.CreateTrip(context.Background(), trip.Trip{
		Name: "Lisbon", OwnerID: "u1", NumDays: 4, Currency: "EUR", Budget: &budget,
		Members: []trip.Member{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	})
	require.NoError(t, err)
	rec := &recorder{}
	return New(store, store, access.NewChecker(store, nil, time.Minute, nil), rec, nil), rec, tr.ID
}

func TestCreateDefaultsToEqualSplitAcrossMembers(t *testing.T) {
	ctx := context.Background()
	svc, rec, tripID := setup(t)

	e, err := svc.Create(ctx, "u2", tripID, Input{Title: "Dinner", Amount: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "u2", e.PaidBy)
	assert.Equal(t, "EUR", e.Currency)
	assert.Equal(t, expense.CategoryOther, e.Category)
	assert.Equal(t, expense.SplitEqual, e.SplitMode)
	require.Len(t, e.Splits, 3)
	assert.Equal(t, []string{"33.34", "33.33", "33.33"}, amounts(e.Splits))
	require.Len(t, rec.events, 1)
	assert.Equal(t, realtime.EventExpenseChanged, rec.events[0].Type)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)

	bad := []Input{
		{Title: "", Amount: dec("10")},
		{Title: "Taxi", Amount: dec("10"), Currency: "USD"},
		{Title: "Taxi", Amount: dec("10"), Category: "fuel"},
		{Title: "Taxi", Amount: dec("10"), PaidBy: "u9"},
		{Title: "Taxi", Amount: dec("10"), SplitMode: expense.SplitExact},
		{Title: "Taxi", Amount: dec("10"), Splits: []SplitInput{{UserID: "u9"}}},
		{Title: "Taxi", Amount: dec("10"), SplitMode: expense.SplitExact, Splits: []SplitInput{{UserID: "u1", Value: dec("4")}}},
	}
	for i, in := range bad {
		_, err := svc.Create(ctx, "u1", tripID, in)
		assert.ErrorIs(t, err, svcerrors.ErrValidation, "case %d", i)
	}

	_, err := svc.Create(ctx, "u9", tripID, Input{Title: "Taxi", Amount: dec("10")})
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
}

func TestUpdateAndDeletePermissions(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	e, err := svc.Create(ctx, "u2", tripID, Input{Title: "Tram", Amount: dec("6")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u3", tripID, e.ID, Input{Title: "Tram", Amount: dec("9")})
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)

	updated, err := svc.Update(ctx, "u1", tripID, e.ID, Input{Title: "Tram 28", Amount: dec("9"), PaidBy: "u2", Category: expense.CategoryTransport})
	require.NoError(t, err)
	assert.Equal(t, "Tram 28", updated.Title)
	assert.Equal(t, "u2", updated.CreatedBy)
	assert.Equal(t, []string{"3.00", "3.00", "3.00"}, amounts(updated.Splits))

	assert.ErrorIs(t, svc.Delete(ctx, "u3", tripID, e.ID), svcerrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u2", tripID, e.ID))
	_, err = svc.Get(ctx, "u1", tripID, e.ID)
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	_, err := svc.Create(ctx, "u1", tripID, Input{Title: "Hotel", Amount: dec("300"), Category: expense.CategoryLodging})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", tripID, Input{Title: "Lunch", Amount: dec("45"), Category: expense.CategoryFood,
		SplitMode: expense.SplitShares, Splits: []SplitInput{{UserID: "u2", Value: dec("1")}, {UserID: "u3", Value: dec("2")}}})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, "u3", tripID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, "345.00", sum.Total.StringFixed(2))
	assert.Equal(t, "155.00", sum.Remaining.StringFixed(2))
	assert.Equal(t, "300.00", sum.ByCategory[expense.CategoryLodging].StringFixed(2))
	assert.Equal(t, "45.00", sum.ByPayer["u2"].StringFixed(2))
	assert.Equal(t, "130.00", sum.ByMember["u3"].StringFixed(2))

	_, err = svc.Summary(ctx, "u9", tripID)
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
}

func TestBalancesAndSettlements(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	_, err := svc.Create(ctx, "u1", tripID, Input{Title: "Car", Amount: dec("90")})
	require.NoError(t, err)

	b, err := svc.Balances(ctx, "u2", tripID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", b.Currency)
	require.Len(t, b.Plan, 2)
	assert.Equal(t, "u1", b.Plan[0].To)

	_, err = svc.CreateSettlement(ctx, "u2", tripID, SettlementInput{To: "u2", Amount: dec("30")})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)
	_, err = svc.CreateSettlement(ctx, "u2", tripID, SettlementInput{To: "u1", Amount: dec("0")})
	assert.ErrorIs(t, err, svcerrors.ErrValidation)

	st, err := svc.CreateSettlement(ctx, "u2", tripID, SettlementInput{To: "u1", Amount: dec("30")})
	require.NoError(t, err)
	assert.Equal(t, expense.SettlementPending, st.Status)

	_, err = svc.CompleteSettlement(ctx, "u3", tripID, st.ID)
	assert.ErrorIs(t, err, svcerrors.ErrForbidden)
	done, err := svc.CompleteSettlement(ctx, "u1", tripID, st.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.SettlementCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	_, err = svc.CompleteSettlement(ctx, "u2", tripID, st.ID)
	assert.ErrorIs(t, err, svcerrors.ErrConflict)

	b, err = svc.Balances(ctx, "u2", tripID)
	require.NoError(t, err)
	require.Len(t, b.Plan, 1)
	assert.Equal(t, "u3", b.Plan[0].From)
	assert.Equal(t, "30.00", b.Plan[0].Amount.StringFixed(2))
}

func TestCompleteByPaymentIntent(t *testing.T) {
	ctx := context.Background()
	svc, _, tripID := setup(t)
	st, err := svc.CreateSettlement(ctx, "u3", tripID, SettlementInput{To: "u1", Amount: dec("12.50")})
	require.NoError(t, err)
	st, err = svc.AttachPaymentIntent(ctx, st, "pi_123")
	require.NoError(t, err)

	done, err := svc.CompleteByPaymentIntent(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, expense.SettlementCompleted, done.Status)

	again, err := svc.CompleteByPaymentIntent(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, done.ID, again.ID)

	_, err = svc.CompleteByPaymentIntent(ctx, "pi_missing")
	assert.ErrorIs(t, err, svcerrors.ErrNotFound)
}
