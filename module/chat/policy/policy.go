package policy

import (
	"context"
	"strconv"
	"strings"
	"time"

	"PMessenger/module/chat/model"
)

// EditWindow is how long after creation the author may edit or delete a
// message. Edit and delete share the rule.
const EditWindow = 5 * time.Minute

// ParticipantStore is the one store fact the engine needs. Predicates are
// pure given current store state; failures surface as Forbidden upstream,
// never as silent filtering.
type ParticipantStore interface {
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

type Engine struct {
	store ParticipantStore
}

func NewEngine(store ParticipantStore) *Engine {
	return &Engine{store: store}
}

// IsParticipant is the gating predicate for essentially every read/write.
func (e *Engine) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	return e.store.IsParticipant(ctx, conversationID, userID)
}

// CanViewAttachment gates inline/download access by participancy in the
// owning message's conversation.
func (e *Engine) CanViewAttachment(ctx context.Context, userID, conversationID int64) (bool, error) {
	return e.store.IsParticipant(ctx, conversationID, userID)
}

// CanSubscribe authorizes a broadcast channel: conversation channels for
// participants, personal channels for the owner only.
func (e *Engine) CanSubscribe(ctx context.Context, userID int64, channel string) (bool, error) {
	ch, ok := ParseChannel(channel)
	if !ok {
		return false, nil
	}
	switch ch.Kind {
	case ChannelConversation:
		return e.store.IsParticipant(ctx, ch.ID, userID)
	case ChannelUser:
		return ch.ID == userID, nil
	default:
		return false, nil
	}
}

// CanEdit: author only, not deleted, within the edit window. The caller
// injects now so the window is deterministic under test.
func CanEdit(userID int64, m *model.Message, now time.Time) bool {
	if m == nil || m.AuthorID != userID || m.Deleted() {
		return false
	}
	return now.Sub(m.CreatedAt) <= EditWindow
}

// CanDelete shares the ownership/window rule with CanEdit. Admin role gets
// no override; author-only applies to group conversations too.
func CanDelete(userID int64, m *model.Message, now time.Time) bool {
	return CanEdit(userID, m, now)
}

// Channel kinds for the broadcast bus.
const (
	ChannelConversation = "conversations"
	ChannelUser         = "users"
)

type Channel struct {
	Kind string
	ID   int64
}

// ConversationChannel names the per-conversation broadcast channel.
func ConversationChannel(conversationID int64) string {
	return ChannelConversation + "." + strconv.FormatInt(conversationID, 10)
}

// UserChannel names a user's personal channel, used only for out-of-band
// notifications such as contact.added.
func UserChannel(userID int64) string {
	return ChannelUser + "." + strconv.FormatInt(userID, 10)
}

// ParseChannel splits "<kind>.<id>"; unknown shapes are unauthorized.
func ParseChannel(name string) (Channel, bool) {
	kind, rest, ok := strings.Cut(name, ".")
	if !ok {
		return Channel{}, false
	}
	if kind != ChannelConversation && kind != ChannelUser {
		return Channel{}, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return Channel{}, false
	}
	return Channel{Kind: kind, ID: id}, true
}
