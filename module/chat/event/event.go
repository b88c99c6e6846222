package event

import (
	"time"

	"PMessenger/module/chat/model"
)

// Event names as seen on the wire.
const (
	MessageSent    = "message.sent"
	MessageEdited  = "message.edited"
	MessageDeleted = "message.deleted"
	ReadUpdated    = "read.updated"
	TypingStarted  = "typing.started"
	TypingStopped  = "typing.stopped"
	ContactAdded   = "contact.added"
)

// Event is the domain event: a channel, a name tag, and a JSON-encodable
// payload. One dispatch function maps it to a publish call on the bus; no
// broadcast behavior lives on the payload types themselves.
type Event struct {
	Channel string
	Name    string
	Payload any
}

// MessageSentPayload carries the full constructed message, attachments with
// resolved URLs included, so clients can append without a follow-up fetch.
type MessageSentPayload struct {
	ID             int64                     `json:"id"`
	Body           string                    `json:"body,omitempty"`
	HasAttachments bool                      `json:"has_attachments"`
	Attachments    []model.AttachmentPayload `json:"attachments"`
	User           model.UserSummary         `json:"user"`
	CreatedAt      time.Time                 `json:"created_at"`
}

type MessageEditedPayload struct {
	ID       int64     `json:"id"`
	Body     string    `json:"body"`
	EditedAt time.Time `json:"edited_at"`
}

type MessageDeletedPayload struct {
	ID        int64     `json:"id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ReadUpdatedPayload acknowledges everything up to MessageID; recipients
// flip their own sent messages to read for any id <= it.
type ReadUpdatedPayload struct {
	UserID    int64 `json:"user_id"`
	MessageID int64 `json:"message_id"`
}

// TypingPayload is ephemeral: never persisted, no delivery guarantee,
// receivers clear stale state on their own timer.
type TypingPayload struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
}

// ContactAddedPayload goes to the recipient's personal channel when a first
// direct message creates the reciprocal contact edge.
type ContactAddedPayload struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	ConversationID int64  `json:"conversation_id"`
}
