package expenses

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/internal/app/domain/expense"
)

func TestComputeBalances(t *testing.T) {
	expenses := []expense.Expense{
		{PaidBy: "a", Amount: dec("90"), Splits: []expense.Split{
			{UserID: "a", Amount: dec("30")}, {UserID: "b", Amount: dec("30")}, {UserID: "c", Amount: dec("30")},
		}},
		{PaidBy: "b", Amount: dec("30"), Splits: []expense.Split{
			{UserID: "b", Amount: dec("15")}, {UserID: "c", Amount: dec("15")},
		}},
	}
	settlements := []expense.Settlement{
		{From: "c", To: "a", Amount: dec("20"), Status: expense.SettlementCompleted},
		{From: "c", To: "a", Amount: dec("99"), Status: expense.SettlementPending},
	}

	got := ComputeBalances([]string{"a", "b", "c", "d"}, expenses, settlements)
	require.Len(t, got, 4)
	net := map[string]string{}
	for _, b := range got {
		net[b.UserID] = b.Net.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"a": "40.00", "b": "-15.00", "c": "-25.00", "d": "0.00"}, net)
	assert.Equal(t, "90.00", got[0].Paid.StringFixed(2))
	assert.Equal(t, "45.00", got[2].Owed.StringFixed(2))
}

func TestSettleUp(t *testing.T) {
	plan := SettleUp([]Balance{
		{UserID: "a", Net: dec("40")},
		{UserID: "b", Net: dec("-15")},
		{UserID: "c", Net: dec("-25")},
		{UserID: "d", Net: dec("0")},
	})
	require.Len(t, plan, 2)
	assert.Equal(t, "c", plan[0].From)
	assert.Equal(t, "a", plan[0].To)
	assert.Equal(t, "25.00", plan[0].Amount.StringFixed(2))
	assert.Equal(t, "b", plan[1].From)
	assert.Equal(t, "15.00", plan[1].Amount.StringFixed(2))
}

func TestSettleUpZeroesEveryone(t *testing.T) {
	balances := []Balance{
		{UserID: "a", Net: dec("10.01")},
		{UserID: "b", Net: dec("5.00")},
		{UserID: "c", Net: dec("-7.50")},
		{UserID: "d", Net: dec("-7.51")},
	}
	remaining := map[string]string{}
	left := map[string]decimal.Decimal{}
	for _, b := range balances {
		left[b.UserID] = b.Net
	}
	for _, tr := range SettleUp(balances) {
		assert.True(t, tr.Amount.IsPositive())
		left[tr.From] = left[tr.From].Add(tr.Amount)
		left[tr.To] = left[tr.To].Sub(tr.Amount)
	}
	for id, v := range left {
		remaining[id] = v.StringFixed(2)
	}
	assert.Equal(t, map[string]string{"a": "0.00", "b": "0.00", "c": "0.00", "d": "0.00"}, remaining)
	assert.Empty(t, SettleUp(nil))
}
