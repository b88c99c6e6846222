package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// CreateMessage inserts the message and its attachments, bumps the
// conversation pointer, and advances the author's read position, all in one
// transaction. The author implicitly marks their own last-read at send time.
func (s *Store) CreateMessage(ctx context.Context, conversationID, authorID int64, body string, atts []model.AttachmentDescriptor, now time.Time) (*model.Message, []model.Attachment, error) {
	if body == "" && len(atts) == 0 {
		return nil, nil, errs.ErrValidation.WithDetail("message body is required when there are no attachments")
	}

	msg := &model.Message{
		ConversationID: conversationID,
		AuthorID:       authorID,
		Body:           body,
		HasAttachments: len(atts) > 0,
		CreatedAt:      now,
	}
	var created []model.Attachment

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO messages (conversation_id, author_id, body, has_attachments, created_at)
			 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
			 RETURNING id`,
			conversationID, authorID, body, len(atts) > 0, now,
		).Scan(&msg.ID)
		if err != nil {
			return wrap(err, "insert message")
		}

		for _, a := range atts {
			att := model.Attachment{
				MessageID:      msg.ID,
				StorageLocator: a.StorageLocator,
				OriginalName:   a.OriginalName,
				MimeType:       a.MimeType,
				SizeBytes:      a.SizeBytes,
			}
			err := tx.QueryRow(ctx,
				`INSERT INTO message_attachments (message_id, storage_locator, original_name, mime_type, size_bytes)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING id`,
				att.MessageID, att.StorageLocator, att.OriginalName, att.MimeType, att.SizeBytes,
			).Scan(&att.ID)
			if err != nil {
				return wrap(err, "insert attachment")
			}
			created = append(created, att)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE conversations SET last_message_id = $1, updated_at = $2 WHERE id = $3`,
			msg.ID, now, conversationID)
		if err != nil {
			return wrap(err, "bump conversation")
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound.WithDetail("conversation")
		}

		// Forward-only: a concurrent mark-read with a later timestamp wins.
		_, err = tx.Exec(ctx,
			`UPDATE conversation_participants
			 SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $1)
			 WHERE conversation_id = $2 AND user_id = $3`,
			now, conversationID, authorID)
		return wrap(err, "advance author last_read_at")
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, created, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	var m model.Message
	err := s.pool.QueryRow(ctx,
		`SELECT id, conversation_id, author_id, COALESCE(body, ''), has_attachments, created_at, edited_at, deleted_at
		 FROM messages WHERE id = $1`, id,
	).Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Body, &m.HasAttachments, &m.CreatedAt, &m.EditedAt, &m.DeletedAt)
	if err != nil {
		return nil, wrap(err, "get message")
	}
	if m.Deleted() {
		m.Body = ""
	}
	return &m, nil
}

// EditMessage replaces the body and stamps edited_at. The caller has
// already checked authorship and the edit window via the policy engine.
func (s *Store) EditMessage(ctx context.Context, id int64, newBody string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET body = $1, edited_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
		newBody, now, id)
	if err != nil {
		return wrap(err, "edit message")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WithDetail("message")
	}
	return nil
}

// SoftDeleteMessage stamps deleted_at; the row and id persist so receipts
// and ordering stay stable. The body is cleared from subsequent reads.
func (s *Store) SoftDeleteMessage(ctx context.Context, id int64, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		now, id)
	if err != nil {
		return wrap(err, "delete message")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound.WithDetail("message")
	}
	return nil
}

// ListMessages returns one keyset page: up to limit messages with
// id < beforeID (or the most recent limit when beforeID is 0), ascending by
// id, plus whether older messages remain. Keyset-by-id keeps in-flight
// pages stable under concurrent inserts. The text filter never matches
// soft-deleted messages; their retained body column is invisible to reads.
func (s *Store) ListMessages(ctx context.Context, conversationID, beforeID int64, limit int, textFilter string) ([]model.Message, bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, author_id,
		        CASE WHEN deleted_at IS NOT NULL THEN '' ELSE COALESCE(body, '') END,
		        has_attachments, created_at, edited_at, deleted_at
		 FROM messages
		 WHERE conversation_id = $1
		   AND ($2 = 0 OR id < $2)
		   AND ($3 = '' OR (deleted_at IS NULL AND body ILIKE '%' || $3 || '%'))
		 ORDER BY id DESC
		 LIMIT $4`,
		conversationID, beforeID, textFilter, limit+1)
	if err != nil {
		return nil, false, wrap(err, "list messages")
	}
	defer rows.Close()

	var page []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Body, &m.HasAttachments, &m.CreatedAt, &m.EditedAt, &m.DeletedAt); err != nil {
			return nil, false, wrap(err, "scan message")
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, wrap(err, "list messages")
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	// fetched newest-first; return oldest-first
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

// MessagesByIDs batch-loads messages for preview assembly, keyed by id.
// Deleted messages come back with an empty body.
func (s *Store) MessagesByIDs(ctx context.Context, ids []int64) (map[int64]model.Message, error) {
	out := make(map[int64]model.Message)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, author_id,
		        CASE WHEN deleted_at IS NOT NULL THEN '' ELSE COALESCE(body, '') END,
		        has_attachments, created_at, edited_at, deleted_at
		 FROM messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, wrap(err, "load messages")
	}
	defer rows.Close()
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AuthorID, &m.Body, &m.HasAttachments, &m.CreatedAt, &m.EditedAt, &m.DeletedAt); err != nil {
			return nil, wrap(err, "scan message")
		}
		out[m.ID] = m
	}
	return out, wrap(rows.Err(), "load messages")
}

// AttachmentsByMessages batch-loads attachments for a page of messages in
// one query (explicit preload, no per-message lookups).
func (s *Store) AttachmentsByMessages(ctx context.Context, messageIDs []int64) (map[int64][]model.Attachment, error) {
	out := make(map[int64][]model.Attachment)
	if len(messageIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, message_id, storage_locator, original_name, mime_type, size_bytes
		 FROM message_attachments WHERE message_id = ANY($1) ORDER BY id`,
		messageIDs)
	if err != nil {
		return nil, wrap(err, "load attachments")
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.StorageLocator, &a.OriginalName, &a.MimeType, &a.SizeBytes); err != nil {
			return nil, wrap(err, "scan attachment")
		}
		out[a.MessageID] = append(out[a.MessageID], a)
	}
	return out, wrap(rows.Err(), "load attachments")
}

// GetAttachment also resolves the owning conversation so the view policy
// can gate access without a second query.
func (s *Store) GetAttachment(ctx context.Context, id int64) (*model.Attachment, int64, error) {
	var a model.Attachment
	var conversationID int64
	err := s.pool.QueryRow(ctx,
		`SELECT a.id, a.message_id, a.storage_locator, a.original_name, a.mime_type, a.size_bytes, m.conversation_id
		 FROM message_attachments a
		 JOIN messages m ON m.id = a.message_id
		 WHERE a.id = $1`, id,
	).Scan(&a.ID, &a.MessageID, &a.StorageLocator, &a.OriginalName, &a.MimeType, &a.SizeBytes, &conversationID)
	if err != nil {
		return nil, 0, wrap(err, "get attachment")
	}
	return &a, conversationID, nil
}
