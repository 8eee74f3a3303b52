// Package expenses tracks shared trip spending, balances and settlements.
package expenses

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/metrics"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	"github.com/travelties/service_layer/internal/app/storage"
	svcerrors "github.com/travelties/service_layer/internal/errors"
	"github.com/travelties/service_layer/pkg/logger"
)

const (
	maxTitle = 200
	maxNotes = 2000
)

// Service implements expense operations.
type Service struct {
	store  storage.ExpenseStore
	trips  storage.TripStore
	access *access.Checker
	events realtime.Publisher
	log    *logger.Logger
	now    func() time.Time
}

// New creates the service.
func New(store storage.ExpenseStore, trips storage.TripStore, checker *access.Checker, events realtime.Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("expenses")
	}
	if events == nil {
		events = realtime.Nop{}
	}
	return &Service{store: store, trips: trips, access: checker, events: events, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// SplitInput is one participant of a split.
type SplitInput struct {
	UserID string          `json:"userId"`
	Value  decimal.Decimal `json:"value"`
}

// Input is the body of expense create and update requests. Omitted splits
// divide the amount equally among all members; an omitted payer is the
// caller.
type Input struct {
	Title     string            `json:"title"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Category  expense.Category  `json:"category"`
	PaidBy    string            `json:"paidBy"`
	Date      *time.Time        `json:"date"`
	SplitMode expense.SplitMode `json:"splitMode"`
	Splits    []SplitInput      `json:"splits"`
	Notes     string            `json:"notes"`
}

func (s *Service) build(grant access.Grant, userID string, in Input) (expense.Expense, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > maxTitle {
		return expense.Expense{}, svcerrors.Validation("title must be 1-%d characters", maxTitle)
	}
	if len(in.Notes) > maxNotes {
		return expense.Expense{}, svcerrors.Validation("notes must be at most %d characters", maxNotes)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = grant.Currency
	}
	if currency != grant.Currency {
		return expense.Expense{}, svcerrors.Validation("currency must match the trip currency %s", grant.Currency)
	}
	category := in.Category
	if category == "" {
		category = expense.CategoryOther
	}
	if !category.Valid() {
		return expense.Expense{}, svcerrors.Validation("category must be food, lodging, transport, activity, shopping or other")
	}
	paidBy := in.PaidBy
	if paidBy == "" {
		paidBy = userID
	}
	if !grant.IsMember(paidBy) {
		return expense.Expense{}, svcerrors.Validation("payer must be a trip member")
	}
	mode := in.SplitMode
	if mode == "" {
		mode = expense.SplitEqual
	}

	var splits []expense.Split
	if len(in.Splits) == 0 {
		if mode != expense.SplitEqual {
			return expense.Expense{}, svcerrors.Validation("splits are required for %s mode", mode)
		}
		for _, m := range grant.Members {
			splits = append(splits, expense.Split{UserID: m})
		}
	} else {
		for _, sp := range in.Splits {
			if !grant.IsMember(sp.UserID) {
				return expense.Expense{}, svcerrors.Validation("participant %s is not a trip member", sp.UserID)
			}
			splits = append(splits, expense.Split{UserID: sp.UserID, Value: sp.Value})
		}
	}
	computed, err := Split(in.Amount, mode, splits)
	if err != nil {
		return expense.Expense{}, err
	}

	date := s.now()
	if in.Date != nil {
		date = in.Date.UTC()
	}
	return expense.Expense{
		TripID:    grant.TripID,
		Title:     title,
		Amount:    in.Amount,
		Currency:  currency,
		Category:  category,
		PaidBy:    paidBy,
		Date:      date,
		SplitMode: mode,
		Splits:    computed,
		Notes:     in.Notes,
		CreatedBy: userID,
	}, nil
}

func (s *Service) changed(tripID, userID, action string, e expense.Expense) {
	s.events.Publish(realtime.Event{
		Type: realtime.EventExpenseChanged, TripID: tripID, ActorID: userID,
		Data: map[string]interface{}{"action": action, "expense": e},
	})
}

// Create records an expense.
func (s *Service) Create(ctx context.Context, userID, tripID string, in Input) (expense.Expense, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return expense.Expense{}, err
	}
	e, err := s.build(grant, userID, in)
	if err != nil {
		return expense.Expense{}, err
	}
	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return expense.Expense{}, access.StoreError(err, "expense", "")
	}
	metrics.RecordExpense(string(created.SplitMode))
	s.log.WithField("trip_id", tripID).WithField("expense_id", created.ID).WithField("amount", created.Amount.StringFixed(2)).Info("expense recorded")
	s.changed(tripID, userID, "created", created)
	return created, nil
}

// List returns the trip's expenses, newest first.
func (s *Service) List(ctx context.Context, userID, tripID string) ([]expense.Expense, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	out, err := s.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "expense", "")
	}
	if out == nil {
		out = []expense.Expense{}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, tripID, id string) (expense.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return expense.Expense{}, access.StoreError(err, "expense", id)
	}
	if e.TripID != tripID {
		return expense.Expense{}, svcerrors.NotFound("expense", id)
	}
	return e, nil
}

// Get returns one expense.
func (s *Service) Get(ctx context.Context, userID, tripID, id string) (expense.Expense, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return expense.Expense{}, err
	}
	return s.load(ctx, tripID, id)
}

func canEdit(grant access.Grant, userID string, e expense.Expense) bool {
	return e.CreatedBy == userID || e.PaidBy == userID || grant.IsOwner(userID)
}

// Update replaces an expense. Its creator, payer or the trip owner may edit.
func (s *Service) Update(ctx context.Context, userID, tripID, id string, in Input) (expense.Expense, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return expense.Expense{}, err
	}
	existing, err := s.load(ctx, tripID, id)
	if err != nil {
		return expense.Expense{}, err
	}
	if !canEdit(grant, userID, existing) {
		return expense.Expense{}, svcerrors.Forbidden("only the creator, payer or trip owner can edit an expense")
	}
	e, err := s.build(grant, userID, in)
	if err != nil {
		return expense.Expense{}, err
	}
	e.ID = existing.ID
	e.CreatedBy = existing.CreatedBy
	if in.Date == nil {
		e.Date = existing.Date
	}
	updated, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return expense.Expense{}, access.StoreError(err, "expense", id)
	}
	s.changed(tripID, userID, "updated", updated)
	return updated, nil
}

// Delete removes an expense. Its creator, payer or the trip owner may delete.
func (s *Service) Delete(ctx context.Context, userID, tripID, id string) error {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return err
	}
	existing, err := s.load(ctx, tripID, id)
	if err != nil {
		return err
	}
	if !canEdit(grant, userID, existing) {
		return svcerrors.Forbidden("only the creator, payer or trip owner can delete an expense")
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return access.StoreError(err, "expense", id)
	}
	s.changed(tripID, userID, "deleted", existing)
	return nil
}

// Summary aggregates a trip's spending.
type Summary struct {
	Currency   string                               `json:"currency"`
	Count      int                                  `json:"count"`
	Total      decimal.Decimal                      `json:"total"`
	Budget     *decimal.Decimal                     `json:"budget,omitempty"`
	Remaining  *decimal.Decimal                     `json:"remaining,omitempty"`
	ByCategory map[expense.Category]decimal.Decimal `json:"byCategory"`
	ByPayer    map[string]decimal.Decimal           `json:"byPayer"`
	ByMember   map[string]decimal.Decimal           `json:"byMember"`
}

// Summary totals expenses per category, payer and member share and compares
// the total with the trip budget.
func (s *Service) Summary(ctx context.Context, userID, tripID string) (Summary, error) {
	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return Summary{}, access.StoreError(err, "trip", tripID)
	}
	if !t.IsMember(userID) {
		return Summary{}, svcerrors.Forbidden("not a member of this trip")
	}
	list, err := s.store.ListExpenses(ctx, tripID)
	if err != nil {
		return Summary{}, access.StoreError(err, "expense", "")
	}
	sum := Summary{
		Currency:   t.Currency,
		Count:      len(list),
		Total:      decimal.Zero,
		ByCategory: map[expense.Category]decimal.Decimal{},
		ByPayer:    map[string]decimal.Decimal{},
		ByMember:   map[string]decimal.Decimal{},
	}
	for _, e := range list {
		sum.Total = sum.Total.Add(e.Amount)
		sum.ByCategory[e.Category] = sum.ByCategory[e.Category].Add(e.Amount)
		sum.ByPayer[e.PaidBy] = sum.ByPayer[e.PaidBy].Add(e.Amount)
		for _, sp := range e.Splits {
			sum.ByMember[sp.UserID] = sum.ByMember[sp.UserID].Add(sp.Amount)
		}
	}
	if t.Budget != nil {
		b := *t.Budget
		rem := b.Sub(sum.Total)
		sum.Budget = &b
		sum.Remaining = &rem
	}
	return sum, nil
}

// Balances returns every member's net position and a settle-up plan.
func (s *Service) Balances(ctx context.Context, userID, tripID string) (Balances, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return Balances{}, err
	}
	list, err := s.store.ListExpenses(ctx, tripID)
	if err != nil {
		return Balances{}, access.StoreError(err, "expense", "")
	}
	settlements, err := s.store.ListSettlements(ctx, tripID)
	if err != nil {
		return Balances{}, access.StoreError(err, "settlement", "")
	}
	members := ComputeBalances(grant.Members, list, settlements)
	return Balances{Currency: grant.Currency, Members: members, Plan: SettleUp(members)}, nil
}
