package store

import (
	"context"
	"time"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// EnsureContact creates the one-way contact link if it does not exist yet.
// Reports whether a row was created so callers can emit an event only for
// genuinely new links.
func (s *Store) EnsureContact(ctx context.Context, ownerID, contactID int64, now time.Time) (bool, error) {
	if ownerID == contactID {
		return false, errs.ErrValidation.WithDetail("cannot add yourself as a contact")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (owner_user_id, contact_user_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		ownerID, contactID, now)
	if err != nil {
		return false, wrap(err, "ensure contact")
	}
	return tag.RowsAffected() > 0, nil
}

// AddContact is the explicit variant: adding an existing contact is a
// conflict, not a silent no-op.
func (s *Store) AddContact(ctx context.Context, ownerID, contactID int64, now time.Time) error {
	created, err := s.EnsureContact(ctx, ownerID, contactID, now)
	if err != nil {
		return err
	}
	if !created {
		return errs.ErrConflict.WithDetail("contact already exists")
	}
	return nil
}

func (s *Store) DeleteContact(ctx context.Context, ownerID, contactID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM contacts WHERE owner_user_id = $1 AND contact_user_id = $2`,
		ownerID, contactID)
	if err != nil {
		return wrap(err, "delete contact")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WithDetail("contact")
	}
	return nil
}

// ListContacts returns one page of the owner's contacts with the contact
// users joined in, newest link first.
func (s *Store) ListContacts(ctx context.Context, ownerID int64, search string, page, perPage int) ([]model.ContactEntry, bool, error) {
	offset := (page - 1) * perPage
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, u.email, u.avatar, c.created_at
		 FROM contacts c
		 JOIN users u ON u.id = c.contact_user_id
		 WHERE c.owner_user_id = $1
		   AND ($2 = '' OR u.name ILIKE '%' || $2 || '%' OR u.email ILIKE '%' || $2 || '%')
		 ORDER BY c.created_at DESC, u.id
		 LIMIT $3 OFFSET $4`,
		ownerID, search, perPage+1, offset)
	if err != nil {
		return nil, false, wrap(err, "list contacts")
	}
	defer rows.Close()

	var out []model.ContactEntry
	for rows.Next() {
		var e model.ContactEntry
		if err := rows.Scan(&e.User.ID, &e.User.Name, &e.User.Email, &e.User.AvatarURL, &e.AddedAt); err != nil {
			return nil, false, wrap(err, "scan contact")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, wrap(err, "list contacts")
	}
	hasMore := len(out) > perPage
	if hasMore {
		out = out[:perPage]
	}
	return out, hasMore, nil
}

// WatchlistIDs assembles the presence watchlist: users the owner added,
// users who added the owner, and co-participants, deduplicated and capped.
func (s *Store) WatchlistIDs(ctx context.Context, userID int64, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT uid FROM (
		     SELECT contact_user_id AS uid FROM contacts WHERE owner_user_id = $1
		     UNION
		     SELECT owner_user_id FROM contacts WHERE contact_user_id = $1
		     UNION
		     SELECT cp.user_id FROM conversation_participants cp
		     JOIN conversation_participants mine
		       ON mine.conversation_id = cp.conversation_id AND mine.user_id = $1
		 ) w
		 WHERE uid <> $1
		 ORDER BY uid
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, wrap(err, "watchlist")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "scan watchlist id")
		}
		out = append(out, id)
	}
	return out, wrap(rows.Err(), "watchlist")
}
