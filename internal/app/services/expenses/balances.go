package expenses

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/expense"
)

// Balance is a member's net position. Positive means the member is owed money.
type Balance struct {
	UserID string          `json:"userId"`
	Paid   decimal.Decimal `json:"paid"`
	Owed   decimal.Decimal `json:"owed"`
	Net    decimal.Decimal `json:"net"`
}

// Transfer is one payment of a settle-up plan.
type Transfer struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Balances is the response of GET /trips/{id}/balances.
type Balances struct {
	Currency string     `json:"currency"`
	Members  []Balance  `json:"members"`
	Plan     []Transfer `json:"plan"`
}

// ComputeBalances nets expenses and completed settlements per member. Members
// listed in members appear even when they have no activity.
func ComputeBalances(members []string, expenses []expense.Expense, settlements []expense.Settlement) []Balance {
	index := make(map[string]*Balance)
	order := make([]string, 0, len(members))
	get := func(id string) *Balance {
		b, ok := index[id]
		if !ok {
			b = &Balance{UserID: id, Paid: decimal.Zero, Owed: decimal.Zero, Net: decimal.Zero}
			index[id] = b
			order = append(order, id)
		}
		return b
	}
	for _, m := range members {
		get(m)
	}
	for _, e := range expenses {
		get(e.PaidBy).Paid = get(e.PaidBy).Paid.Add(e.Amount)
		for _, s := range e.Splits {
			get(s.UserID).Owed = get(s.UserID).Owed.Add(s.Amount)
		}
	}
	for _, id := range order {
		b := index[id]
		b.Net = b.Paid.Sub(b.Owed)
	}
	for _, s := range settlements {
		if s.Status != expense.SettlementCompleted {
			continue
		}
		from, to := get(s.From), get(s.To)
		from.Net = from.Net.Add(s.Amount)
		to.Net = to.Net.Sub(s.Amount)
	}
	out := make([]Balance, 0, len(order))
	for _, id := range order {
		out = append(out, *index[id])
	}
	return out
}

type party struct {
	id     string
	amount decimal.Decimal
}

// SettleUp returns a plan that zeroes every balance by repeatedly paying the
// largest creditor from the largest debtor.
func SettleUp(balances []Balance) []Transfer {
	var debtors, creditors []party
	for _, b := range balances {
		switch {
		case b.Net.IsNegative():
			debtors = append(debtors, party{b.UserID, b.Net.Neg()})
		case b.Net.IsPositive():
			creditors = append(creditors, party{b.UserID, b.Net})
		}
	}
	plan := []Transfer{}
	for len(debtors) > 0 && len(creditors) > 0 {
		sortParties(debtors)
		sortParties(creditors)
		d, c := &debtors[0], &creditors[0]
		amt := decimal.Min(d.amount, c.amount)
		plan = append(plan, Transfer{From: d.id, To: c.id, Amount: amt})
		d.amount = d.amount.Sub(amt)
		c.amount = c.amount.Sub(amt)
		if d.amount.IsZero() {
			debtors = debtors[1:]
		}
		if c.amount.IsZero() {
			creditors = creditors[1:]
		}
	}
	return plan
}

func sortParties(ps []party) {
	sort.SliceStable(ps, func(i, j int) bool {
		if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
			return c > 0
		}
		return ps[i].id < ps[j].id
	})
}
