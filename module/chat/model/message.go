package model

import (
	"strings"
	"time"
)

// Message is one message in a conversation. Ids are assigned by the store
// and increase monotonically within a conversation, which makes them the
// canonical order and the keyset-pagination cursor. Deletion is soft:
// DeletedAt is set, the body is cleared from reads, and the row stays so
// receipts and ordering remain stable.
type Message struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	AuthorID       int64      `json:"author_id"`
	Body           string     `json:"body,omitempty"`
	HasAttachments bool       `json:"has_attachments"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool { return m.DeletedAt != nil }

// Attachment is owned by exactly one message and created in the same
// transaction. StorageLocator points into the blob store; bytes are never
// inlined here.
type Attachment struct {
	ID             int64  `json:"id"`
	MessageID      int64  `json:"message_id"`
	StorageLocator string `json:"-"`
	OriginalName   string `json:"original_name"`
	MimeType       string `json:"mime_type"`
	SizeBytes      int64  `json:"size_bytes"`
}

// IsImage reports whether the attachment renders inline as an image.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

// AttachmentDescriptor is the input shape for attaching an already-stored
// blob to a new message.
type AttachmentDescriptor struct {
	StorageLocator string
	OriginalName   string
	MimeType       string
	SizeBytes      int64
}

// AttachmentPayload is the wire projection with resolved URLs.
type AttachmentPayload struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	DownloadURL  string `json:"download_url"`
	MimeType     string `json:"mime_type"`
	OriginalName string `json:"original_name"`
	SizeBytes    int64  `json:"size_bytes"`
	IsImage      bool   `json:"is_image"`
}

// MessageView is one listed message from a viewer's perspective: the
// author summary, resolved attachments, and (for the viewer's own messages
// in direct chats) the counterpart's delivery state.
type MessageView struct {
	ID             int64               `json:"id"`
	Body           string              `json:"body,omitempty"`
	HasAttachments bool                `json:"has_attachments"`
	Attachments    []AttachmentPayload `json:"attachments"`
	User           UserSummary         `json:"user"`
	CreatedAt      time.Time           `json:"created_at"`
	EditedAt       *time.Time          `json:"edited_at,omitempty"`
	DeletedAt      *time.Time          `json:"deleted_at,omitempty"`
	DeliveredAt    *time.Time          `json:"delivered_at,omitempty"`
	ReadAt         *time.Time          `json:"read_at,omitempty"`
}

// MessagePage is one keyset page, oldest-first, with the cursor for the
// next (older) page.
type MessagePage struct {
	Data         []MessageView `json:"data"`
	HasMore      bool          `json:"has_more"`
	NextBeforeID int64         `json:"next_before_id,omitempty"`
}
