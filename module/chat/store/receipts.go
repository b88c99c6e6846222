package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// UpsertReceipt records a receipt, never downgrading: read stays read when a
// late delivered report arrives, and equal-status reports keep the original
// timestamp. The rank CASE mirrors model.ReceiptRank.
func (s *Store) UpsertReceipt(ctx context.Context, messageID, userID int64, status string, now time.Time) error {
	if model.ReceiptRank(status) == 0 {
		return errs.ErrValidation.WithDetail("unknown receipt status " + status)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO message_receipts (message_id, user_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (message_id, user_id) DO UPDATE
		 SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		 WHERE (CASE message_receipts.status WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE 0 END)
		     < (CASE EXCLUDED.status         WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE 0 END)`,
		messageID, userID, status, now)
	return wrap(err, "upsert receipt")
}

// MarkDeliveredForMessages inserts delivered receipts for the given messages
// on behalf of userID, skipping any message that already has a receipt.
func (s *Store) MarkDeliveredForMessages(ctx context.Context, messageIDs []int64, userID int64, now time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO message_receipts (message_id, user_id, status, created_at, updated_at)
		 SELECT id, $2, 'delivered', $3, $3 FROM messages WHERE id = ANY($1)
		 ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageIDs, userID, now)
	return wrap(err, "mark delivered")
}

// ReceiptsForMessages batch-loads the counterpart receipts for a page of
// messages, keyed by message id.
func (s *Store) ReceiptsForMessages(ctx context.Context, messageIDs []int64, userID int64) (map[int64]model.Receipt, error) {
	out := make(map[int64]model.Receipt)
	if len(messageIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT message_id, user_id, status, created_at, updated_at
		 FROM message_receipts WHERE message_id = ANY($1) AND user_id = $2`,
		messageIDs, userID)
	if err != nil {
		return nil, wrap(err, "load receipts")
	}
	defer rows.Close()
	for rows.Next() {
		var r model.Receipt
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, wrap(err, "scan receipt")
		}
		out[r.MessageID] = r
	}
	return out, wrap(rows.Err(), "load receipts")
}

// MarkReadThrough upgrades receipts to read for every message in the
// conversation authored by someone else with id <= upTo, and advances the
// reader's last_read_at, in one transaction. Returns the ids that actually
// changed so the caller can fan out read events for them only.
func (s *Store) MarkReadThrough(ctx context.Context, conversationID, userID, upTo int64, now time.Time) ([]int64, error) {
	var changed []int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`INSERT INTO message_receipts (message_id, user_id, status, created_at, updated_at)
			 SELECT id, $2, 'read', $4, $4
			 FROM messages
			 WHERE conversation_id = $1 AND author_id <> $2 AND id <= $3
			 ON CONFLICT (message_id, user_id) DO UPDATE
			 SET status = 'read', updated_at = EXCLUDED.updated_at
			 WHERE message_receipts.status <> 'read'
			 RETURNING message_id`,
			conversationID, userID, upTo, now)
		if err != nil {
			return wrap(err, "mark read")
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return wrap(err, "scan read id")
			}
			changed = append(changed, id)
		}
		if err := rows.Err(); err != nil {
			return wrap(err, "mark read")
		}

		_, err = tx.Exec(ctx,
			`UPDATE conversation_participants
			 SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $1)
			 WHERE conversation_id = $2 AND user_id = $3`,
			now, conversationID, userID)
		return wrap(err, "advance last_read_at")
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}
