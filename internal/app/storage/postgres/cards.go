package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/card"
	"github.com/travelties/service_layer/internal/app/domain/trip"
	"github.com/travelties/service_layer/internal/app/storage"
)

type cardRow struct {
	ID          string              `db:"id"`
	TripID      string              `db:"trip_id"`
	Type        string              `db:"type"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	CreatedBy   string              `db:"created_by"`
	StartTime   *time.Time          `db:"start_time"`
	EndTime     *time.Time          `db:"end_time"`
	Cost        decimal.NullDecimal `db:"cost"`
	Location    []byte              `db:"location"`
	Transport   []byte              `db:"transport"`
	Checked     bool                `db:"checked"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}

func (r cardRow) toDomain() (card.Card, error) {
	c := card.Card{
		ID:          r.ID,
		TripID:      r.TripID,
		Type:        card.Type(r.Type),
		Title:       r.Title,
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Checked:     r.Checked,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Cost.Valid {
		cost := r.Cost.Decimal
		c.Cost = &cost
	}
	if len(r.Location) > 0 {
		c.Location = &card.Location{}
		if err := unmarshalJSON(r.Location, c.Location); err != nil {
			return card.Card{}, err
		}
	}
	if len(r.Transport) > 0 {
		c.Transport = &card.Transport{}
		if err := unmarshalJSON(r.Transport, c.Transport); err != nil {
			return card.Card{}, err
		}
	}
	return c, nil
}

// cardJSON returns the JSONB parameters for the optional sub-documents.
func cardJSON(c card.Card) (location, transport interface{}, err error) {
	if c.Location != nil {
		if location, err = marshalJSON(c.Location); err != nil {
			return nil, nil, err
		}
	}
	if c.Transport != nil {
		if transport, err = marshalJSON(c.Transport); err != nil {
			return nil, nil, err
		}
	}
	return location, transport, nil
}

const cardSelect = `
	SELECT id, trip_id, type, title, description, created_by, start_time, end_time, cost,
		location, transport, checked, created_at, updated_at
	FROM cards`

// CreateCard inserts the card and applies layout to the locked trip in one
// transaction.
func (s *Store) CreateCard(ctx context.Context, c card.Card, layout storage.TripFunc) (card.Card, trip.Trip, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	location, transport, err := cardJSON(c)
	if err != nil {
		return card.Card{}, trip.Trip{}, err
	}

	var updated trip.Trip
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := mutateTripTx(ctx, tx, c.TripID, layout)
		if err != nil {
			return err
		}
		updated = t
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (id, trip_id, type, title, description, created_by, start_time, end_time, cost,
				location, transport, checked, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, c.ID, c.TripID, string(c.Type), c.Title, c.Description, c.CreatedBy, c.StartTime, c.EndTime,
			budgetValue(c.Cost), location, transport, c.Checked, c.CreatedAt, c.UpdatedAt)
		return mapError(err)
	})
	if err != nil {
		return card.Card{}, trip.Trip{}, err
	}
	return c, updated, nil
}

func (s *Store) GetCard(ctx context.Context, tripID, id string) (card.Card, error) {
	var row cardRow
	if err := s.db.GetContext(ctx, &row, cardSelect+` WHERE id = $1 AND trip_id = $2`, id, tripID); err != nil {
		return card.Card{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListCards(ctx context.Context, tripID string) ([]card.Card, error) {
	var rows []cardRow
	if err := s.db.SelectContext(ctx, &rows, cardSelect+` WHERE trip_id = $1 ORDER BY created_at`, tripID); err != nil {
		return nil, mapError(err)
	}
	out := make([]card.Card, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// UpdateCard replaces the mutable fields. Type, author and creation time
// are kept from the stored row.
func (s *Store) UpdateCard(ctx context.Context, c card.Card) (card.Card, error) {
	location, transport, err := cardJSON(c)
	if err != nil {
		return card.Card{}, err
	}
	c.UpdatedAt = time.Now().UTC()

	var kept struct {
		Type      string    `db:"type"`
		CreatedBy string    `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = s.db.GetContext(ctx, &kept, `
		UPDATE cards
		SET title = $3, description = $4, start_time = $5, end_time = $6, cost = $7,
			location = $8, transport = $9, checked = $10, updated_at = $11
		WHERE id = $1 AND trip_id = $2
		RETURNING type, created_by, created_at
	`, c.ID, c.TripID, c.Title, c.Description, c.StartTime, c.EndTime, budgetValue(c.Cost),
		location, transport, c.Checked, c.UpdatedAt)
	if err != nil {
		return card.Card{}, mapError(err)
	}
	c.Type = card.Type(kept.Type)
	c.CreatedBy = kept.CreatedBy
	c.CreatedAt = kept.CreatedAt
	return c, nil
}

// DeleteCard removes the card and applies layout to the locked trip in one
// transaction.
func (s *Store) DeleteCard(ctx context.Context, tripID, id string, layout storage.TripFunc) (trip.Trip, error) {
	var updated trip.Trip
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := mutateTripTx(ctx, tx, tripID, layout)
		if err != nil {
			return err
		}
		updated = t
		res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = $1 AND trip_id = $2`, id, tripID)
		if err != nil {
			return mapError(err)
		}
		return expectRows(res)
	})
	if err != nil {
		return trip.Trip{}, err
	}
	return updated, nil
}
