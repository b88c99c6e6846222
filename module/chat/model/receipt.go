package model

import "time"

// Receipt statuses. Transitions only move forward: delivered -> read.
const (
	ReceiptDelivered = "delivered"
	ReceiptRead      = "read"
)

// Receipt records one recipient's delivery state for one message. Unique
// per (message, user); never written for the message's own author.
type Receipt struct {
	MessageID int64     `json:"message_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReceiptRank orders statuses for the forward-only upsert; unknown statuses
// rank lowest so they can never overwrite a real one.
func ReceiptRank(status string) int {
	switch status {
	case ReceiptDelivered:
		return 1
	case ReceiptRead:
		return 2
	default:
		return 0
	}
}
