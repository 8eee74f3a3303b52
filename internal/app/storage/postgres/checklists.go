package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/travelties/service_layer/internal/app/domain/checklist"
)

type checklistRow struct {
	ID        string    `db:"id"`
	TripID    string    `db:"trip_id"`
	Kind      string    `db:"kind"`
	Title     string    `db:"title"`
	OwnerID   string    `db:"owner_id"`
	Items     []byte    `db:"items"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r checklistRow) toDomain() (checklist.Checklist, error) {
	c := checklist.Checklist{
		ID:        r.ID,
		TripID:    r.TripID,
		Kind:      checklist.Kind(r.Kind),
		Title:     r.Title,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Items, &c.Items); err != nil {
		return checklist.Checklist{}, err
	}
	if c.Items == nil {
		c.Items = []checklist.Item{}
	}
	return c, nil
}

const checklistSelect = `SELECT id, trip_id, kind, title, owner_id, items, created_at, updated_at FROM checklists`

func (s *Store) CreateChecklist(ctx context.Context, c checklist.Checklist) (checklist.Checklist, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Items == nil {
		c.Items = []checklist.Item{}
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	itemsJSON, err := marshalJSON(c.Items)
	if err != nil {
		return checklist.Checklist{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checklists (id, trip_id, kind, title, owner_id, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.TripID, string(c.Kind), c.Title, c.OwnerID, itemsJSON, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return checklist.Checklist{}, mapError(err)
	}
	return c, nil
}

func (s *Store) GetChecklist(ctx context.Context, id string) (checklist.Checklist, error) {
	var row checklistRow
	if err := s.db.GetContext(ctx, &row, checklistSelect+` WHERE id = $1`, id); err != nil {
		return checklist.Checklist{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListChecklists(ctx context.Context, tripID string) ([]checklist.Checklist, error) {
	var rows []checklistRow
	if err := s.db.SelectContext(ctx, &rows, checklistSelect+` WHERE trip_id = $1 ORDER BY created_at`, tripID); err != nil {
		return nil, mapError(err)
	}
	out := make([]checklist.Checklist, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) MutateChecklist(ctx context.Context, id string, fn func(c *checklist.Checklist) error) (checklist.Checklist, error) {
	var out checklist.Checklist
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row checklistRow
		if err := tx.GetContext(ctx, &row, checklistSelect+` WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err)
		}
		c, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.ID = row.ID
		c.TripID = row.TripID
		c.CreatedAt = row.CreatedAt
		c.UpdatedAt = time.Now().UTC()

		itemsJSON, err := marshalJSON(c.Items)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE checklists SET title = $2, items = $3, updated_at = $4 WHERE id = $1
		`, c.ID, c.Title, itemsJSON, c.UpdatedAt); err != nil {
			return mapError(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return checklist.Checklist{}, err
	}
	return out, nil
}

func (s *Store) DeleteChecklist(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checklists WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}
