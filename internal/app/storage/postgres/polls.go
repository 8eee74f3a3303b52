package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/travelties/service_layer/internal/app/domain/poll"
)

type pollRow struct {
	ID            string     `db:"id"`
	TripID        string     `db:"trip_id"`
	Question      string     `db:"question"`
	Options       []byte     `db:"options"`
	AllowMultiple bool       `db:"allow_multiple"`
	Anonymous     bool       `db:"anonymous"`
	CreatedBy     string     `db:"created_by"`
	ClosesAt      *time.Time `db:"closes_at"`
	Closed        bool       `db:"closed"`
	Votes         []byte     `db:"votes"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r pollRow) toDomain() (poll.Poll, error) {
	p := poll.Poll{
		ID:            r.ID,
		TripID:        r.TripID,
		Question:      r.Question,
		AllowMultiple: r.AllowMultiple,
		Anonymous:     r.Anonymous,
		CreatedBy:     r.CreatedBy,
		ClosesAt:      r.ClosesAt,
		Closed:        r.Closed,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Options, &p.Options); err != nil {
		return poll.Poll{}, err
	}
	if err := unmarshalJSON(r.Votes, &p.Votes); err != nil {
		return poll.Poll{}, err
	}
	if p.Votes == nil {
		p.Votes = map[string][]string{}
	}
	return p, nil
}

func pollsFromRows(rows []pollRow) ([]poll.Poll, error) {
	out := make([]poll.Poll, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

const pollSelect = `
	SELECT id, trip_id, question, options, allow_multiple, anonymous, created_by, closes_at, closed, votes,
		created_at, updated_at
	FROM polls`

func (s *Store) CreatePoll(ctx context.Context, p poll.Poll) (poll.Poll, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Votes == nil {
		p.Votes = map[string][]string{}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	optionsJSON, err := marshalJSON(p.Options)
	if err != nil {
		return poll.Poll{}, err
	}
	votesJSON, err := marshalJSON(p.Votes)
	if err != nil {
		return poll.Poll{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO polls (id, trip_id, question, options, allow_multiple, anonymous, created_by, closes_at, closed,
			votes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.TripID, p.Question, optionsJSON, p.AllowMultiple, p.Anonymous, p.CreatedBy, p.ClosesAt, p.Closed,
		votesJSON, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return poll.Poll{}, mapError(err)
	}
	return p, nil
}

func (s *Store) GetPoll(ctx context.Context, id string) (poll.Poll, error) {
	var row pollRow
	if err := s.db.GetContext(ctx, &row, pollSelect+` WHERE id = $1`, id); err != nil {
		return poll.Poll{}, mapError(err)
	}
	return row.toDomain()
}

func (s *Store) ListPolls(ctx context.Context, tripID string) ([]poll.Poll, error) {
	var rows []pollRow
	if err := s.db.SelectContext(ctx, &rows, pollSelect+` WHERE trip_id = $1 ORDER BY created_at DESC`, tripID); err != nil {
		return nil, mapError(err)
	}
	return pollsFromRows(rows)
}

func (s *Store) MutatePoll(ctx context.Context, id string, fn func(p *poll.Poll) error) (poll.Poll, error) {
	var out poll.Poll
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row pollRow
		if err := tx.GetContext(ctx, &row, pollSelect+` WHERE id = $1 FOR UPDATE`, id); err != nil {
			return mapError(err)
		}
		p, err := row.toDomain()
		if err != nil {
			return err
		}
		if err := fn(&p); err != nil {
			return err
		}
		p.ID = row.ID
		p.TripID = row.TripID
		p.CreatedAt = row.CreatedAt
		p.UpdatedAt = time.Now().UTC()

		votesJSON, err := marshalJSON(p.Votes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE polls SET closes_at = $2, closed = $3, votes = $4, updated_at = $5 WHERE id = $1
		`, p.ID, p.ClosesAt, p.Closed, votesJSON, p.UpdatedAt); err != nil {
			return mapError(err)
		}
		out = p
		return nil
	})
	if err != nil {
		return poll.Poll{}, err
	}
	return out, nil
}

func (s *Store) DeletePoll(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}

func (s *Store) ListExpiredOpenPolls(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	var rows []pollRow
	err := s.db.SelectContext(ctx, &rows, pollSelect+`
		WHERE NOT closed AND closes_at IS NOT NULL AND closes_at <= $1
		ORDER BY closes_at`, now)
	if err != nil {
		return nil, mapError(err)
	}
	return pollsFromRows(rows)
}
