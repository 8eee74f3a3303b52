package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/travelties/service_layer/internal/app/domain/user"
)

type userRow struct {
	ID          string         `db:"id"`
	Username    string         `db:"username"`
	DisplayName string         `db:"display_name"`
	Email       string         `db:"email"`
	AvatarURL   string         `db:"avatar_url"`
	Bio         string         `db:"bio"`
	Friends     pq.StringArray `db:"friends"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:          r.ID,
		Username:    r.Username,
		DisplayName: r.DisplayName,
		Email:       r.Email,
		AvatarURL:   r.AvatarURL,
		Bio:         r.Bio,
		Friends:     stringsOrEmpty(r.Friends),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const userSelect = `
	SELECT u.id, u.username, u.display_name, u.email, u.avatar_url, u.bio,
		COALESCE((SELECT array_agg(f.friend_id ORDER BY f.created_at) FROM friendships f WHERE f.user_id = u.id), '{}') AS friends,
		u.created_at, u.updated_at
	FROM users u`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Friends = []string{}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email, avatar_url, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Username, u.DisplayName, u.Email, u.AvatarURL, u.Bio, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, userSelect+` WHERE u.id = $1`, id); err != nil {
		return user.User{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, userSelect+` WHERE lower(u.username) = lower($1)`, username); err != nil {
		return user.User{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = $2, display_name = $3, email = $4, avatar_url = $5, bio = $6, updated_at = $7
		WHERE id = $1
	`, u.ID, u.Username, u.DisplayName, u.Email, u.AvatarURL, u.Bio, time.Now().UTC())
	if err != nil {
		return user.User{}, mapError(err)
	}
	if err := expectRows(res); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

// DeleteUser removes the profile; friendships and requests cascade.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, userSelect+`
		WHERE lower(u.username) LIKE $1 OR lower(u.display_name) LIKE $1
		ORDER BY u.username
		LIMIT $2`, likePrefix(query), limit)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) RemoveFriendship(ctx context.Context, a, b string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`, a, b)
	if err != nil {
		return mapError(err)
	}
	return expectRows(res)
}

type friendRequestRow struct {
	ID          string     `db:"id"`
	From        string     `db:"from_user"`
	To          string     `db:"to_user"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	RespondedAt *time.Time `db:"responded_at"`
}

func (r friendRequestRow) toDomain() user.FriendRequest {
	return user.FriendRequest{
		ID:          r.ID,
		From:        r.From,
		To:          r.To,
		Status:      user.RequestStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		RespondedAt: r.RespondedAt,
	}
}

const friendRequestSelect = `SELECT id, from_user, to_user, status, created_at, responded_at FROM friend_requests`

func (s *Store) CreateFriendRequest(ctx context.Context, req user.FriendRequest) (user.FriendRequest, error) {
	if req.ID == "" {
		req.ID = newID()
	}
	if req.Status == "" {
		req.Status = user.RequestPending
	}
	req.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friend_requests (id, from_user, to_user, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.From, req.To, string(req.Status), req.CreatedAt)
	if err != nil {
		return user.FriendRequest{}, mapError(err)
	}
	return req, nil
}

func (s *Store) GetFriendRequest(ctx context.Context, id string) (user.FriendRequest, error) {
	var row friendRequestRow
	if err := s.db.GetContext(ctx, &row, friendRequestSelect+` WHERE id = $1`, id); err != nil {
		return user.FriendRequest{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindPendingRequest(ctx context.Context, from, to string) (user.FriendRequest, error) {
	var row friendRequestRow
	err := s.db.GetContext(ctx, &row, friendRequestSelect+`
		WHERE from_user = $1 AND to_user = $2 AND status = 'pending'
		LIMIT 1`, from, to)
	if err != nil {
		return user.FriendRequest{}, mapError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListFriendRequests(ctx context.Context, userID string, incoming bool) ([]user.FriendRequest, error) {
	column := "from_user"
	if incoming {
		column = "to_user"
	}
	var rows []friendRequestRow
	err := s.db.SelectContext(ctx, &rows, friendRequestSelect+`
		WHERE `+column+` = $1 AND status = 'pending'
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]user.FriendRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) RespondFriendRequest(ctx context.Context, id string, status user.RequestStatus, at time.Time) (user.FriendRequest, error) {
	var out user.FriendRequest
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var row friendRequestRow
		if err := tx.GetContext(ctx, &row, friendRequestSelect+`
			WHERE id = $1 AND status = 'pending'
			FOR UPDATE`, id); err != nil {
			return mapError(err)
		}
		if status == user.RequestAccepted {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO friendships (user_id, friend_id, created_at)
				VALUES ($1, $2, $3), ($2, $1, $3)
				ON CONFLICT DO NOTHING
			`, row.From, row.To, at); err != nil {
				return mapError(err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE friend_requests SET status = $2, responded_at = $3 WHERE id = $1
		`, id, string(status), at); err != nil {
			return mapError(err)
		}
		row.Status = string(status)
		row.RespondedAt = &at
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return user.FriendRequest{}, err
	}
	return out, nil
}
