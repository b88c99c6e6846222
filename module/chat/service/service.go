package service

import (
	"context"
	"fmt"
	"time"

	"PMessenger/module/chat/event"
	"PMessenger/module/chat/model"
	"PMessenger/module/chat/policy"
	"PMessenger/module/chat/store"
)

// Store is everything the chat service needs from persistence. The pg
// implementation lives in module/chat/store; tests substitute an in-memory
// fake.
type Store interface {
	CreateMessage(ctx context.Context, conversationID, authorID int64, body string, atts []model.AttachmentDescriptor, now time.Time) (*model.Message, []model.Attachment, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	EditMessage(ctx context.Context, id int64, newBody string, now time.Time) error
	SoftDeleteMessage(ctx context.Context, id int64, now time.Time) error
	ListMessages(ctx context.Context, conversationID, beforeID int64, limit int, textFilter string) ([]model.Message, bool, error)
	MessagesByIDs(ctx context.Context, ids []int64) (map[int64]model.Message, error)
	AttachmentsByMessages(ctx context.Context, messageIDs []int64) (map[int64][]model.Attachment, error)
	GetAttachment(ctx context.Context, id int64) (*model.Attachment, int64, error)

	UpsertReceipt(ctx context.Context, messageID, userID int64, status string, now time.Time) error
	MarkDeliveredForMessages(ctx context.Context, messageIDs []int64, userID int64, now time.Time) error
	ReceiptsForMessages(ctx context.Context, messageIDs []int64, userID int64) (map[int64]model.Receipt, error)
	MarkReadThrough(ctx context.Context, conversationID, userID, upTo int64, now time.Time) ([]int64, error)

	CreateDirect(ctx context.Context, userA, userB int64, now time.Time) (*model.Conversation, bool, error)
	CreateGroup(ctx context.Context, name string, creatorID int64, memberIDs []int64, now time.Time) (*model.Conversation, error)
	GetConversation(ctx context.Context, id int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID int64, search string, page, perPage int) ([]store.ConversationListItem, bool, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	Participants(ctx context.Context, conversationID int64) ([]model.Participant, error)
	OtherParticipantID(ctx context.Context, conversationID, userID int64) (int64, error)

	EnsureContact(ctx context.Context, ownerID, contactID int64, now time.Time) (bool, error)
	AddContact(ctx context.Context, ownerID, contactID int64, now time.Time) error
	DeleteContact(ctx context.Context, ownerID, contactID int64) error
	ListContacts(ctx context.Context, ownerID int64, search string, page, perPage int) ([]model.ContactEntry, bool, error)
	WatchlistIDs(ctx context.Context, userID int64, limit int) ([]int64, error)

	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]model.User, error)
	SearchUsers(ctx context.Context, selfID int64, query string, page, perPage int) ([]model.User, bool, error)
}

// Presence answers online/offline for a set of users. Backed by redis in
// service/storage; the fake in tests is a plain set.
type Presence interface {
	OnlineSet(ctx context.Context, userIDs []int64) (map[int64]bool, error)
}

// WatchlistCache is an advisory cache for watchlist id sets. A miss or an
// unusable entry sends the caller to the store; Set never blocks the
// request path on failure.
type WatchlistCache interface {
	GetWatchlist(ctx context.Context, userID int64) ([]int64, bool)
	SetWatchlist(ctx context.Context, userID int64, ids []int64)
}

// Page size clamps. Message pages default larger than sidebar lists.
const (
	DefaultMessagePageSize = 30
	DefaultListPageSize    = 15
	MaxPageSize            = 100
)

// ClampPerPage normalizes a client-supplied page size.
func ClampPerPage(perPage, def int) int {
	if perPage <= 0 {
		return def
	}
	if perPage > MaxPageSize {
		return MaxPageSize
	}
	return perPage
}

// ClampPage normalizes a client-supplied page number.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Service is the chat engine: every operation takes the acting user
// explicitly and authorizes before touching state. The clock is injected so
// edit windows and receipt timestamps are deterministic under test.
type Service struct {
	store      Store
	policy     *policy.Engine
	dispatcher *event.Dispatcher
	presence   Presence
	watchCache WatchlistCache
	clock      func() time.Time
}

func New(st Store, dispatcher *event.Dispatcher, presence Presence) *Service {
	return &Service{
		store:      st,
		policy:     policy.NewEngine(st),
		dispatcher: dispatcher,
		presence:   presence,
		clock:      time.Now,
	}
}

// WithWatchlistCache attaches the redis-backed watchlist cache.
func (s *Service) WithWatchlistCache(c WatchlistCache) *Service {
	s.watchCache = c
	return s
}

// WithClock overrides the time source; tests use a fixed or stepped clock.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Policy exposes the authorization engine for the gateway's channel auth.
func (s *Service) Policy() *policy.Engine { return s.policy }

func (s *Service) userSummary(u model.User) model.UserSummary {
	return model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, AvatarURL: u.AvatarLocator}
}

func attachmentPayload(a model.Attachment) model.AttachmentPayload {
	return model.AttachmentPayload{
		ID:           a.ID,
		URL:          fmt.Sprintf("/api/attachments/%d", a.ID),
		DownloadURL:  fmt.Sprintf("/api/attachments/%d/download", a.ID),
		MimeType:     a.MimeType,
		OriginalName: a.OriginalName,
		SizeBytes:    a.SizeBytes,
		IsImage:      a.IsImage(),
	}
}

func attachmentPayloads(atts []model.Attachment) []model.AttachmentPayload {
	out := make([]model.AttachmentPayload, 0, len(atts))
	for _, a := range atts {
		out = append(out, attachmentPayload(a))
	}
	return out
}
