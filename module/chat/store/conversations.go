package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// directKey normalizes a participant pair into the unique key that makes
// direct conversations idempotent, including under concurrent creation.
func directKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// CreateDirect finds or creates the direct conversation between the two
// users. The pair key carries a unique index, so two racing first-contact
// sends converge on one row: the loser's insert hits the conflict and it
// re-reads the winner's conversation.
func (s *Store) CreateDirect(ctx context.Context, userA, userB int64, now time.Time) (*model.Conversation, bool, error) {
	if userA == userB {
		return nil, false, errs.ErrValidation.WithDetail("cannot start a conversation with yourself")
	}
	key := directKey(userA, userB)
	var conv model.Conversation
	var created bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		found, err := s.directByKey(ctx, tx, key, &conv)
		if err != nil || found {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO conversations (kind, direct_key, created_at, updated_at)
			 VALUES ('direct', $1, $2, $2)
			 ON CONFLICT (direct_key) DO NOTHING
			 RETURNING id`,
			key, now,
		).Scan(&conv.ID)
		if err == pgx.ErrNoRows {
			// Lost the race; the winner's row is committed by the time the
			// conflict resolves.
			found, err = s.directByKey(ctx, tx, key, &conv)
			if err == nil && !found {
				err = errs.ErrTransientStorage.WithDetail("direct conversation vanished")
			}
			return err
		}
		if err != nil {
			return wrap(err, "create conversation")
		}
		conv.Kind = model.KindDirect
		conv.CreatedAt = now
		conv.UpdatedAt = now
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			 VALUES ($1, $2, 'member', $3), ($1, $4, 'member', $3)`,
			conv.ID, userA, now, userB)
		if err != nil {
			return wrap(err, "add participants")
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

func (s *Store) directByKey(ctx context.Context, tx pgx.Tx, key string, conv *model.Conversation) (bool, error) {
	err := tx.QueryRow(ctx,
		`SELECT id, kind, COALESCE(name, ''), last_message_id, created_at, updated_at
		 FROM conversations WHERE direct_key = $1`,
		key,
	).Scan(&conv.ID, &conv.Kind, &conv.Name, &conv.LastMessageID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "find direct conversation")
	}
	return true, nil
}

// CreateGroup creates a named group conversation with the creator as admin.
func (s *Store) CreateGroup(ctx context.Context, name string, creatorID int64, memberIDs []int64, now time.Time) (*model.Conversation, error) {
	if name == "" {
		return nil, errs.ErrValidation.WithDetail("group name is required")
	}
	conv := &model.Conversation{Kind: model.KindGroup, Name: name, CreatedAt: now, UpdatedAt: now}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO conversations (kind, name, created_at, updated_at) VALUES ('group', $1, $2, $2) RETURNING id`,
			name, now,
		).Scan(&conv.ID)
		if err != nil {
			return wrap(err, "create group")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at) VALUES ($1, $2, 'admin', $3)`,
			conv.ID, creatorID, now)
		if err != nil {
			return wrap(err, "add creator")
		}
		for _, id := range memberIDs {
			if id == creatorID {
				continue
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
				 VALUES ($1, $2, 'member', $3)
				 ON CONFLICT DO NOTHING`,
				conv.ID, id, now)
			if err != nil {
				return wrap(err, "add member")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *Store) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	var c model.Conversation
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, COALESCE(name, ''), last_message_id, created_at, updated_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.Kind, &c.Name, &c.LastMessageID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, wrap(err, "get conversation")
	}
	return &c, nil
}

// ConversationListItem is what ListConversations scans before the service
// layer resolves counterpart users and previews into summaries.
type ConversationListItem struct {
	Conversation model.Conversation
	OtherUserID  int64 // 0 for groups
	UnreadCount  int
}

// ListConversations returns one page of the user's conversations, most
// recently active first. The unread count is the number of messages by
// others newer than the user's last_read_at. When search is set, group
// names and counterpart user names are matched.
func (s *Store) ListConversations(ctx context.Context, userID int64, search string, page, perPage int) ([]ConversationListItem, bool, error) {
	offset := (page - 1) * perPage
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.kind, COALESCE(c.name, ''), c.last_message_id, c.created_at, c.updated_at,
		        COALESCE(other.user_id, 0),
		        (SELECT COUNT(*) FROM messages m
		         WHERE m.conversation_id = c.id AND m.author_id <> $1
		           AND m.created_at > COALESCE(p.last_read_at, 'epoch'::timestamptz))
		 FROM conversations c
		 JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
		 LEFT JOIN LATERAL (
		     SELECT cp.user_id FROM conversation_participants cp
		     WHERE cp.conversation_id = c.id AND cp.user_id <> $1 AND c.kind = 'direct'
		     LIMIT 1
		 ) other ON TRUE
		 LEFT JOIN users ou ON ou.id = other.user_id
		 WHERE ($2 = '' OR c.name ILIKE '%' || $2 || '%' OR ou.name ILIKE '%' || $2 || '%')
		 ORDER BY c.updated_at DESC, c.id DESC
		 LIMIT $3 OFFSET $4`,
		userID, search, perPage+1, offset)
	if err != nil {
		return nil, false, wrap(err, "list conversations")
	}
	defer rows.Close()

	var items []ConversationListItem
	for rows.Next() {
		var it ConversationListItem
		if err := rows.Scan(&it.Conversation.ID, &it.Conversation.Kind, &it.Conversation.Name,
			&it.Conversation.LastMessageID, &it.Conversation.CreatedAt, &it.Conversation.UpdatedAt,
			&it.OtherUserID, &it.UnreadCount); err != nil {
			return nil, false, wrap(err, "scan conversation")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, false, wrap(err, "list conversations")
	}
	hasMore := len(items) > perPage
	if hasMore {
		items = items[:perPage]
	}
	return items, hasMore, nil
}

func (s *Store) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&ok)
	return ok, wrap(err, "check participant")
}

func (s *Store) Participants(ctx context.Context, conversationID int64) ([]model.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, user_id, role, last_read_at, joined_at
		 FROM conversation_participants WHERE conversation_id = $1 ORDER BY user_id`,
		conversationID)
	if err != nil {
		return nil, wrap(err, "load participants")
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &p.LastReadAt, &p.JoinedAt); err != nil {
			return nil, wrap(err, "scan participant")
		}
		out = append(out, p)
	}
	return out, wrap(rows.Err(), "load participants")
}

// OtherParticipantID resolves the counterpart in a direct conversation.
func (s *Store) OtherParticipantID(ctx context.Context, conversationID, userID int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM conversation_participants
		 WHERE conversation_id = $1 AND user_id <> $2 LIMIT 1`,
		conversationID, userID,
	).Scan(&id)
	return id, wrap(err, "other participant")
}
