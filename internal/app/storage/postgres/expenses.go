package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/expense"
)

type expenseRow struct {
	ID        string          `db:"id"`
	TripID    string          `db:"trip_id"`
	Title     string          `db:"title"`
	Amount    decimal.Decimal `db:"amount"`
	Currency  string          `db:"currency"`
	Category  string          `db:"category"`
	PaidBy    string          `db:"paid_by"`
	Date      time.Time       `db:"spent_on"`
	SplitMode string          `db:"split_mode"`
	Splits    []byte          `db:"splits"`
	Notes     string          `db:"notes"`
	CreatedBy string          `db:"created_by"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r expenseRow) toDomain() (expense.Expense, error) {
	e := expense.Expense{
		ID:        r.ID,
		TripID:    r.TripID,
		Title:     r.Title,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Category:  expense.Category(r.Category),
		PaidBy:    r.PaidBy,
		Date:      r.Date,
		SplitMode: expense.SplitMode(r.SplitMode),
		Notes:     r.Notes,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Splits, &e.Splits); err != nil {
		return expense.Expense{}, err
	}
	return e, nil
}

const expenseSelect = `
	SELECT id, trip_id, title, amount, currency, category, paid_by, spent_on, split_mode, splits, notes,
		created_by, created_at, updated_at
	FROM expenses`

func (s *Store) CreateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	splitsJSON, err := marshalJSON(e.Splits)
	if err != nil {
		return expense.Expense{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, trip_id, title, amount, currency, category, paid_by, spent_on, split_mode, splits,
			notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, e.ID, e.TripID, e.Title, e.Amount, e.Currency, string(e.Category), e.PaidBy, e.Date, string(e.SplitMode),
		splitsJSON, e.Notes, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return expense.Expense{}, mapError(err)
	}
	return e, nil
}

func (s *Store) GetExpense(ctx context.Context, id string) (expense.Expense, error) {
	var row expenseRow
	if err := s.db.GetContext(ctx, &row, expenseSelect+` WHERE id = $1`, id); err != nil {
		return expense.Expense{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListExpenses(ctx context.Context, tripID string) ([]expense.Expense, error) {
	var rows []expenseRow
	err := s.db.SelectContext(ctx, &rows, expenseSelect+`
		WHERE trip_id = $1
		ORDER BY spent_on DESC, created_at DESC`, tripID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]expense.Expense, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e expense.Expense) (expense.Expense, error) {
	splitsJSON, err := marshalJSON(e.Splits)
	if err != nil {
		return expense.Expense{}, err
	}
	e.UpdatedAt = time.Now().UTC()

	var kept struct {
		TripID    string    `db:"trip_id"`
		CreatedBy string    `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = s.db.GetContext(ctx, &kept, `
		UPDATE expenses
		SET title = $2, amount = $3, currency = $4, category = $5, paid_by = $6, spent_on = $7,
			split_mode = $8, splits = $9, notes = $10, updated_at = $11
		WHERE id = $1
		RETURNING trip_id, created_by, created_at
	`, e.ID, e.Title, e.Amount, e.Currency, string(e.Category), e.PaidBy, e.Date, string(e.SplitMode),
		splitsJSON, e.Notes, e.UpdatedAt)
	if err != nil {
		return expense.Expense{}, mapError(err)
	}
	e.TripID = kept.TripID
	e.CreatedBy = kept.CreatedBy
	e.CreatedAt = kept.CreatedAt
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}

type settlementRow struct {
	ID              string          `db:"id"`
	TripID          string          `db:"trip_id"`
	From            string          `db:"from_user"`
	To              string          `db:"to_user"`
	Amount          decimal.Decimal `db:"amount"`
	Currency        string          `db:"currency"`
	Status          string          `db:"status"`
	PaymentIntentID string          `db:"payment_intent_id"`
	CreatedAt       time.Time       `db:"created_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
}

func (r settlementRow) toDomain() expense.Settlement {
	return expense.Settlement{
		ID:              r.ID,
		TripID:          r.TripID,
		From:            r.From,
		To:              r.To,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Status:          expense.SettlementStatus(r.Status),
		PaymentIntentID: r.PaymentIntentID,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
}

const settlementSelect = `
	SELECT id, trip_id, from_user, to_user, amount, currency, status, payment_intent_id, created_at, completed_at
	FROM settlements`

func (s *Store) CreateSettlement(ctx context.Context, st expense.Settlement) (expense.Settlement, error) {
	if st.ID == "" {
		st.ID = newID()
	}
	st.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlements (id, trip_id, from_user, to_user, amount, currency, status, payment_intent_id,
			created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, st.ID, st.TripID, st.From, st.To, st.Amount, st.Currency, string(st.Status), st.PaymentIntentID,
		st.CreatedAt, st.CompletedAt)
	if err != nil {
		return expense.Settlement{}, mapError(err)
	}
	return st, nil
}

func (s *Store) GetSettlement(ctx context.Context, id string) (expense.Settlement, error) {
	var row settlementRow
	if err := s.db.GetContext(ctx, &row, settlementSelect+` WHERE id = $1`, id); err != nil {
		return expense.Settlement{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetSettlementByPaymentIntent(ctx context.Context, intentID string) (expense.Settlement, error) {
	var row settlementRow
	if err := s.db.GetContext(ctx, &row, settlementSelect+` WHERE payment_intent_id = $1 AND $1 <> ''`, intentID); err != nil {
		return expense.Settlement{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListSettlements(ctx context.Context, tripID string) ([]expense.Settlement, error) {
	var rows []settlementRow
	if err := s.db.SelectContext(ctx, &rows, settlementSelect+` WHERE trip_id = $1 ORDER BY created_at`, tripID); err != nil {
		return nil, mapError(err)
	}
	out := make([]expense.Settlement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) UpdateSettlement(ctx context.Context, st expense.Settlement) (expense.Settlement, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE settlements SET status = $2, payment_intent_id = $3, completed_at = $4 WHERE id = $1
	`, st.ID, string(st.Status), st.PaymentIntentID, st.CompletedAt)
	if err != nil {
		return expense.Settlement{}, mapError(err)
	}
	if err := expectRows(res); err != nil {
		return expense.Settlement{}, err
	}
	return s.GetSettlement(ctx, st.ID)
}
