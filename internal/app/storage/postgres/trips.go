package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/storage"
)

type tripRow struct {
	ID          string              `db:"id"`
	Name        string              `db:"name"`
	Description string              `db:"description"`
	Destination string              `db:"destination"`
	ImageURL    string              `db:"image_url"`
	OwnerID     string              `db:"owner_id"`
	Members     []byte              `db:"members"`
	StartDate   *time.Time          `db:"start_date"`
	EndDate     *time.Time          `db:"end_date"`
	NumDays     int                 `db:"num_days"`
	Currency    string              `db:"currency"`
	Budget      decimal.NullDecimal `db:"budget"`
	OrderInTab  []byte              `db:"order_in_tab"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (r tripRow) toDomain() (trip.Trip, error) {
	t := trip.Trip{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Destination: r.Destination,
		ImageURL:    r.ImageURL,
		OwnerID:     r.OwnerID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		NumDays:     r.NumDays,
		Currency:    r.Currency,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Budget.Valid {
		b := r.Budget.Decimal
		t.Budget = &b
	}
	if err := unmarshalJSON(r.Members, &t.Members); err != nil {
		return trip.Trip{}, err
	}
	if err := unmarshalJSON(r.OrderInTab, &t.OrderInTab); err != nil {
		return trip.Trip{}, err
	}
	if t.Members == nil {
		t.Members = []trip.Member{}
	}
	if t.OrderInTab == nil {
		t.OrderInTab = trip.NewOrder(t.NumDays)
	}
	return t, nil
}

func budgetValue(b *decimal.Decimal) decimal.NullDecimal {
	if b == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *b, Valid: true}
}

const tripSelect = `
	SELECT id, name, description, destination, image_url, owner_id, members, start_date, end_date,
		num_days, currency, budget, order_in_tab, created_at, updated_at
	FROM trips`

func (s *Store) CreateTrip(ctx context.Context, t trip.Trip) (trip.Trip, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.OrderInTab == nil {
		t.OrderInTab = trip.NewOrder(t.NumDays)
	}
	if t.Members == nil {
		t.Members = []trip.Member{}
	}

	membersJSON, err := marshalJSON(t.Members)
	if err != nil {
		return trip.Trip{}, err
	}
	orderJSON, err := marshalJSON(t.OrderInTab)
	if err != nil {
		return trip.Trip{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trips (id, name, description, destination, image_url, owner_id, members, start_date, end_date,
			num_days, currency, budget, order_in_tab, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, t.ID, t.Name, t.Description, t.Destination, t.ImageURL, t.OwnerID, membersJSON, t.StartDate, t.EndDate,
		t.NumDays, t.Currency, budgetValue(t.Budget), orderJSON, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return trip.Trip{}, mapError(err)
	}
	return t, nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (trip.Trip, error) {
	var row tripRow
	if err := s.db.GetContext(ctx, &row, tripSelect+` WHERE id = $1`, id); err != nil {
		return trip.Trip{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListTripsForUser(ctx context.Context, userID string) ([]trip.Trip, error) {
	var rows []tripRow
	err := s.db.SelectContext(ctx, &rows, tripSelect+`
		WHERE members @> jsonb_build_array(jsonb_build_object('userId', $1::text))
		ORDER BY start_date ASC NULLS LAST, created_at ASC`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]trip.Trip, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) MutateTrip(ctx context.Context, id string, fn storage.TripFunc) (trip.Trip, error) {
	var out trip.Trip
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := mutateTripTx(ctx, tx, id, fn)
		out = t
		return err
	})
	if err != nil {
		return trip.Trip{}, err
	}
	return out, nil
}

// mutateTripTx locks the trip row, applies fn and writes the result back.
func mutateTripTx(ctx context.Context, tx *sqlx.Tx, id string, fn storage.TripFunc) (trip.Trip, error) {
	var row tripRow
	if err := tx.GetContext(ctx, &row, tripSelect+` WHERE id = $1 FOR UPDATE`, id); err != nil {
		return trip.Trip{}, mapError(err)
	}
	t, err := row.toDomain()
	if err != nil {
		return trip.Trip{}, err
	}
	if err := fn(&t); err != nil {
		return trip.Trip{}, err
	}
	t.ID = row.ID
	t.CreatedAt = row.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	membersJSON, err := marshalJSON(t.Members)
	if err != nil {
		return trip.Trip{}, err
	}
	orderJSON, err := marshalJSON(t.OrderInTab)
	if err != nil {
		return trip.Trip{}, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE trips
		SET name = $2, description = $3, destination = $4, image_url = $5, owner_id = $6, members = $7,
			start_date = $8, end_date = $9, num_days = $10, currency = $11, budget = $12, order_in_tab = $13,
			updated_at = $14
		WHERE id = $1
	`, t.ID, t.Name, t.Description, t.Destination, t.ImageURL, t.OwnerID, membersJSON,
		t.StartDate, t.EndDate, t.NumDays, t.Currency, budgetValue(t.Budget), orderJSON, t.UpdatedAt)
	if err != nil {
		return trip.Trip{}, mapError(err)
	}
	return t, nil
}

// DeleteTrip removes the trip. Child tables cascade on the foreign key.
func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}
