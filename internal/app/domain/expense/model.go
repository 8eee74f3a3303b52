package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups expenses in summaries.
type Category string

const (
	CategoryFood      Category = "food"
	CategoryLodging   Category = "lodging"
	CategoryTransport Category = "transport"
	CategoryActivity  Category = "activity"
	CategoryShopping  Category = "shopping"
	CategoryOther     Category = "other"
)

// Valid reports whether c is known.
func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryLodging, CategoryTransport, CategoryActivity, CategoryShopping, CategoryOther:
		return true
	}
	return false
}

// SplitMode controls how Split.Value is interpreted.
type SplitMode string

const (
	SplitEqual   SplitMode = "equal"
	SplitExact   SplitMode = "exact"
	SplitPercent SplitMode = "percent"
	SplitShares  SplitMode = "shares"
)

// Split is one participant's portion. Value is the input (exact amount,
// percent or weight); Amount is the computed share.
type Split struct {
	UserID string          `json:"userId"`
	Value  decimal.Decimal `json:"value"`
	Amount decimal.Decimal `json:"amount"`
}

// Expense is money spent on behalf of some trip members.
type Expense struct {
	ID        string          `json:"id"`
	TripID    string          `json:"tripId"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Category  Category        `json:"category"`
	PaidBy    string          `json:"paidBy"`
	Date      time.Time       `json:"date"`
	SplitMode SplitMode       `json:"splitMode"`
	Splits    []Split         `json:"splits"`
	Notes     string          `json:"notes,omitempty"`
	CreatedBy string          `json:"createdBy"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SettlementStatus tracks repayment progress.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
)

// Settlement is a repayment between two members.
type Settlement struct {
	ID              string           `json:"id"`
	TripID          string           `json:"tripId"`
	From            string           `json:"from"`
	To              string           `json:"to"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	Status          SettlementStatus `json:"status"`
	PaymentIntentID string           `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}
