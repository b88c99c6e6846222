package store

import (
	"context"

	"PMessenger/module/chat/model"
)

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, avatar FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.AvatarLocator)
	if err != nil {
		return nil, wrap(err, "get user")
	}
	return &u, nil
}

// GetUsers batch-loads users for summary assembly, keyed by id.
func (s *Store) GetUsers(ctx context.Context, ids []int64) (map[int64]model.User, error) {
	out := make(map[int64]model.User)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, avatar FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrap(err, "load users")
	}
	defer rows.Close()
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarLocator); err != nil {
			return nil, wrap(err, "scan user")
		}
		out[u.ID] = u
	}
	return out, wrap(rows.Err(), "load users")
}

// SearchUsers matches name or email, excluding the searcher.
func (s *Store) SearchUsers(ctx context.Context, selfID int64, query string, page, perPage int) ([]model.User, bool, error) {
	offset := (page - 1) * perPage
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, avatar FROM users
		 WHERE id <> $1
		   AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
		 ORDER BY name, id
		 LIMIT $3 OFFSET $4`,
		selfID, query, perPage+1, offset)
	if err != nil {
		return nil, false, wrap(err, "search users")
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarLocator); err != nil {
			return nil, false, wrap(err, "scan user")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, wrap(err, "search users")
	}
	hasMore := len(out) > perPage
	if hasMore {
		out = out[:perPage]
	}
	return out, hasMore, nil
}
