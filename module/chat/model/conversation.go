package model

import "time"

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Participant roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Conversation is a direct or group chat. UpdatedAt is bumped whenever a new
// message lands and is the sort key for conversation lists. There is no
// delete operation; rows live forever.
type Conversation struct {
	ID            int64     `json:"id"`
	Kind          string    `json:"kind"`
	Name          string    `json:"name,omitempty"` // group only
	LastMessageID int64     `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Participant is a user's membership in a conversation. LastReadAt moves
// only forward: the read-receipt operation and the act of sending advance
// it, nothing regresses it.
type Participant struct {
	ConversationID int64      `json:"conversation_id"`
	UserID         int64      `json:"user_id"`
	Role           string     `json:"role"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// ConversationSummary is the conversation-list projection: the counterpart
// for direct chats, last message preview, and the viewer's unread count.
type ConversationSummary struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	Name        string          `json:"name,omitempty"`
	OtherUser   *UserSummary    `json:"other_user,omitempty"` // direct only
	LastMessage *MessagePreview `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MessagePreview is the trimmed last-message payload for sidebars.
type MessagePreview struct {
	ID             int64       `json:"id"`
	Body           string      `json:"body,omitempty"`
	HasAttachments bool        `json:"has_attachments"`
	User           UserSummary `json:"user"`
	CreatedAt      time.Time   `json:"created_at"`
	DeletedAt      *time.Time  `json:"deleted_at,omitempty"`
}
