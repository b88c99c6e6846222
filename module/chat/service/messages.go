package service

import (
	"context"
	"strings"
	"time"

	"PMessenger/logger"
	"PMessenger/module/chat/event"
	"PMessenger/module/chat/model"
	"PMessenger/module/chat/policy"
	"PMessenger/tools/errs"
)

// SendInput is the payload for SendMessage. Attachments reference blobs
// already written to the blob store by the upload handler.
type SendInput struct {
	ConversationID int64
	Body           string
	Attachments    []model.AttachmentDescriptor
}

// SendMessage persists a message and broadcasts it to the conversation
// channel. On the first exchange in a direct chat it also links the two
// users as contacts; that linking is best-effort and never fails the send.
func (s *Service) SendMessage(ctx context.Context, userID int64, in SendInput) (*model.MessageView, error) {
	if err := s.requireParticipant(ctx, in.ConversationID, userID); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(in.Body)
	if body == "" && len(in.Attachments) == 0 {
		return nil, errs.ErrValidation.WithDetail("message body is required when there are no attachments")
	}

	now := s.clock()
	msg, atts, err := s.store.CreateMessage(ctx, in.ConversationID, userID, body, in.Attachments, now)
	if err != nil {
		return nil, err
	}

	author, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &model.MessageView{
		ID:             msg.ID,
		Body:           msg.Body,
		HasAttachments: msg.HasAttachments,
		Attachments:    attachmentPayloads(atts),
		User:           s.userSummary(*author),
		CreatedAt:      msg.CreatedAt,
	}

	s.linkDirectContacts(ctx, in.ConversationID, *author, now)

	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.ConversationChannel(in.ConversationID),
		Name:    event.MessageSent,
		Payload: event.MessageSentPayload{
			ID:             view.ID,
			Body:           view.Body,
			HasAttachments: view.HasAttachments,
			Attachments:    view.Attachments,
			User:           view.User,
			CreatedAt:      view.CreatedAt,
		},
	})
	return view, nil
}

// linkDirectContacts ensures both contact edges exist after a direct-chat
// message and notifies the counterpart about a newly created one.
func (s *Service) linkDirectContacts(ctx context.Context, conversationID int64, author model.User, now time.Time) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil || conv.Kind != model.KindDirect {
		return
	}
	otherID, err := s.store.OtherParticipantID(ctx, conversationID, author.ID)
	if err != nil {
		logger.Warnf("[chat] contact link: resolve counterpart for conversation %d: %v", conversationID, err)
		return
	}
	if _, err := s.store.EnsureContact(ctx, author.ID, otherID, now); err != nil {
		logger.Warnf("[chat] contact link %d -> %d: %v", author.ID, otherID, err)
	}
	created, err := s.store.EnsureContact(ctx, otherID, author.ID, now)
	if err != nil {
		logger.Warnf("[chat] contact link %d -> %d: %v", otherID, author.ID, err)
		return
	}
	if !created {
		return
	}
	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.UserChannel(otherID),
		Name:    event.ContactAdded,
		Payload: event.ContactAddedPayload{
			ID:             author.ID,
			Name:           author.Name,
			Email:          author.Email,
			AvatarURL:      author.AvatarLocator,
			ConversationID: conversationID,
		},
	})
}

// ConversationMessages returns one keyset page for the viewer. Listing is
// the delivery act: every message by others on the page gets a delivered
// receipt if it has none yet. For the viewer's own messages in a direct
// chat the counterpart's receipt is folded into delivered_at/read_at.
func (s *Service) ConversationMessages(ctx context.Context, userID, conversationID, beforeID int64, perPage int, search string) (*model.MessagePage, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	perPage = ClampPerPage(perPage, DefaultMessagePageSize)

	msgs, hasMore, err := s.store.ListMessages(ctx, conversationID, beforeID, perPage, search)
	if err != nil {
		return nil, err
	}
	page := &model.MessagePage{Data: []model.MessageView{}, HasMore: hasMore}
	if len(msgs) == 0 {
		return page, nil
	}
	if hasMore {
		page.NextBeforeID = msgs[0].ID
	}

	ids := make([]int64, 0, len(msgs))
	var incoming []int64
	authorIDs := map[int64]struct{}{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
		authorIDs[m.AuthorID] = struct{}{}
		if m.AuthorID != userID {
			incoming = append(incoming, m.ID)
		}
	}

	now := s.clock()
	if err := s.store.MarkDeliveredForMessages(ctx, incoming, userID, now); err != nil {
		logger.Warnf("[chat] mark delivered for user %d: %v", userID, err)
	}

	users, err := s.store.GetUsers(ctx, keys(authorIDs))
	if err != nil {
		return nil, err
	}
	atts, err := s.store.AttachmentsByMessages(ctx, ids)
	if err != nil {
		return nil, err
	}

	receipts := map[int64]model.Receipt{}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Kind == model.KindDirect {
		otherID, err := s.store.OtherParticipantID(ctx, conversationID, userID)
		if err == nil {
			receipts, err = s.store.ReceiptsForMessages(ctx, ids, otherID)
			if err != nil {
				return nil, err
			}
		}
	}

	for _, m := range msgs {
		v := model.MessageView{
			ID:             m.ID,
			Body:           m.Body,
			HasAttachments: m.HasAttachments,
			Attachments:    []model.AttachmentPayload{},
			User:           s.userSummary(users[m.AuthorID]),
			CreatedAt:      m.CreatedAt,
			EditedAt:       m.EditedAt,
			DeletedAt:      m.DeletedAt,
		}
		if !m.Deleted() {
			v.Attachments = attachmentPayloads(atts[m.ID])
		}
		if m.AuthorID == userID {
			if r, ok := receipts[m.ID]; ok {
				created := r.CreatedAt
				v.DeliveredAt = &created
				if r.Status == model.ReceiptRead {
					updated := r.UpdatedAt
					v.ReadAt = &updated
				}
			}
		}
		page.Data = append(page.Data, v)
	}
	return page, nil
}

// EditMessage replaces the body within the edit window and broadcasts the
// change. Authorship and window violations map to distinct errors so the
// API can tell "not yours" from "too late".
func (s *Service) EditMessage(ctx context.Context, userID, messageID int64, newBody string) (*model.Message, error) {
	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return nil, errs.ErrValidation.WithDetail("message body is required")
	}
	msg, now, err := s.editable(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.store.EditMessage(ctx, messageID, newBody, now); err != nil {
		return nil, err
	}
	msg.Body = newBody
	msg.EditedAt = &now

	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.ConversationChannel(msg.ConversationID),
		Name:    event.MessageEdited,
		Payload: event.MessageEditedPayload{ID: msg.ID, Body: msg.Body, EditedAt: now},
	})
	return msg, nil
}

// DeleteMessage soft-deletes within the same window rule as editing.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID int64) error {
	msg, now, err := s.editable(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteMessage(ctx, messageID, now); err != nil {
		return err
	}
	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.ConversationChannel(msg.ConversationID),
		Name:    event.MessageDeleted,
		Payload: event.MessageDeletedPayload{ID: msg.ID, DeletedAt: now},
	})
	return nil
}

func (s *Service) editable(ctx context.Context, userID, messageID int64) (*model.Message, time.Time, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, time.Time{}, err
	}
	now := s.clock()
	if msg.AuthorID != userID || msg.Deleted() {
		return nil, time.Time{}, errs.ErrForbidden.WithDetail("not the message author")
	}
	if !policy.CanEdit(userID, msg, now) {
		return nil, time.Time{}, errs.ErrEditWindowExpired
	}
	return msg, now, nil
}

// MarkRead acknowledges everything up to upToMessageID for the caller. The
// event fires only when at least one receipt actually changed, so repeated
// or stale acknowledgements stay silent.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID, upToMessageID int64) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	changed, err := s.store.MarkReadThrough(ctx, conversationID, userID, upToMessageID, s.clock())
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.ConversationChannel(conversationID),
		Name:    event.ReadUpdated,
		Payload: event.ReadUpdatedPayload{UserID: userID, MessageID: upToMessageID},
	})
	return nil
}

// AckDelivered records a delivered receipt for one pushed message. The
// gateway calls this when a connected client confirms a frame.
func (s *Service) AckDelivered(ctx context.Context, userID, messageID int64) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID == userID {
		return nil // no receipts for one's own messages
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	return s.store.UpsertReceipt(ctx, messageID, userID, model.ReceiptDelivered, s.clock())
}

// Typing broadcasts an ephemeral typing signal. Nothing is persisted and
// delivery is best-effort.
func (s *Service) Typing(ctx context.Context, userID, conversationID int64, started bool) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	name := event.TypingStarted
	if !started {
		name = event.TypingStopped
	}
	s.dispatcher.Dispatch(ctx, event.Event{
		Channel: policy.ConversationChannel(conversationID),
		Name:    name,
		Payload: event.TypingPayload{UserID: u.ID, UserName: u.Name},
	})
	return nil
}

func (s *Service) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	ok, err := s.policy.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrForbidden.WithDetail("not a participant")
	}
	return nil
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
