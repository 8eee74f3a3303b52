package expenses

import (
	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Split computes each participant's Amount from mode and the participants'
// Values. The amounts always sum to amount exactly; leftover cents go one at
// a time to participants in the order given.
func Split(amount decimal.Decimal, mode expense.SplitMode, splits []expense.Split) ([]expense.Split, error) {
	if !amount.IsPositive() || !IsCents(amount) {
		return nil, svcerrors.Validation("amount must be positive with at most 2 decimal places")
	}
	if len(splits) == 0 {
		return nil, svcerrors.Validation("at least one participant is required")
	}
	seen := make(map[string]bool, len(splits))
	for _, s := range splits {
		if s.UserID == "" {
			return nil, svcerrors.Validation("participant userId is required")
		}
		if seen[s.UserID] {
			return nil, svcerrors.Validation("participant %s is listed twice", s.UserID)
		}
		seen[s.UserID] = true
		if s.Value.IsNegative() {
			return nil, svcerrors.Validation("split values cannot be negative")
		}
	}

	total := toCents(amount)
	out := make([]expense.Split, len(splits))
	copy(out, splits)

	switch mode {
	case expense.SplitEqual:
		weights := make([]decimal.Decimal, len(out))
		for i := range out {
			out[i].Value = decimal.Zero
			weights[i] = decimal.NewFromInt(1)
		}
		assign(out, proportional(total, weights))
	case expense.SplitExact:
		sum := decimal.Zero
		for i := range out {
			if !IsCents(out[i].Value) {
				return nil, svcerrors.Validation("exact amounts must have at most 2 decimal places")
			}
			out[i].Amount = out[i].Value
			sum = sum.Add(out[i].Value)
		}
		if !sum.Equal(amount) {
			return nil, svcerrors.Validation("exact amounts sum to %s, expected %s", sum.StringFixed(2), amount.StringFixed(2))
		}
	case expense.SplitPercent:
		weights := make([]decimal.Decimal, len(out))
		sum := decimal.Zero
		for i := range out {
			weights[i] = out[i].Value
			sum = sum.Add(out[i].Value)
		}
		if !sum.Equal(hundred) {
			return nil, svcerrors.Validation("percentages sum to %s, expected 100", sum.String())
		}
		assign(out, proportional(total, weights))
	case expense.SplitShares:
		weights := make([]decimal.Decimal, len(out))
		for i := range out {
			if !out[i].Value.IsPositive() {
				return nil, svcerrors.Validation("shares must be greater than zero")
			}
			weights[i] = out[i].Value
		}
		assign(out, proportional(total, weights))
	default:
		return nil, svcerrors.Validation("splitMode must be equal, exact, percent or shares")
	}
	return out, nil
}

func assign(out []expense.Split, cents []int64) {
	for i := range out {
		out[i].Amount = fromCents(cents[i])
	}
}

// proportional divides total cents by weight, flooring each share and
// handing the remainder to positive-weight entries in order.
func proportional(total int64, weights []decimal.Decimal) []int64 {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	out := make([]int64, len(weights))
	if sum.IsZero() {
		return out
	}
	t := decimal.NewFromInt(total)
	var allocated int64
	for i, w := range weights {
		out[i] = t.Mul(w).Div(sum).Floor().IntPart()
		allocated += out[i]
	}
	for rem := total - allocated; rem > 0; {
		for i, w := range weights {
			if rem == 0 {
				break
			}
			if w.IsPositive() {
				out[i]++
				rem--
			}
		}
	}
	return out
}
