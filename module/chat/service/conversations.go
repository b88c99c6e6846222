package service

import (
	"context"
	"strings"

	"PMessenger/module/chat/model"
	"PMessenger/tools/errs"
)

// StartDirect finds or creates the direct conversation with otherID.
// Created reports whether this call made the row; repeated calls are
// idempotent and converge on the same conversation.
func (s *Service) StartDirect(ctx context.Context, userID, otherID int64) (*model.ConversationSummary, bool, error) {
	if otherID == userID {
		return nil, false, errs.ErrValidation.WithDetail("cannot start a conversation with yourself")
	}
	other, err := s.store.GetUser(ctx, otherID)
	if err != nil {
		return nil, false, err
	}
	conv, created, err := s.store.CreateDirect(ctx, userID, otherID, s.clock())
	if err != nil {
		return nil, false, err
	}
	summary := &model.ConversationSummary{
		ID:        conv.ID,
		Kind:      conv.Kind,
		UpdatedAt: conv.UpdatedAt,
	}
	os := s.userSummary(*other)
	summary.OtherUser = &os
	return summary, created, nil
}

// CreateGroup creates a named group with the caller as admin. Every listed
// member must exist.
func (s *Service) CreateGroup(ctx context.Context, userID int64, name string, memberIDs []int64) (*model.ConversationSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.ErrValidation.WithDetail("group name is required")
	}
	if len(memberIDs) == 0 {
		return nil, errs.ErrValidation.WithDetail("a group needs at least one other member")
	}
	found, err := s.store.GetUsers(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range memberIDs {
		if _, ok := found[id]; !ok {
			return nil, errs.ErrNotFound.WithDetail("user")
		}
	}
	conv, err := s.store.CreateGroup(ctx, name, userID, memberIDs, s.clock())
	if err != nil {
		return nil, err
	}
	return &model.ConversationSummary{
		ID:        conv.ID,
		Kind:      conv.Kind,
		Name:      conv.Name,
		UpdatedAt: conv.UpdatedAt,
	}, nil
}

// ConversationPage is one page of the viewer's conversation list.
type ConversationPage struct {
	Data    []model.ConversationSummary `json:"data"`
	HasMore bool                        `json:"has_more"`
	Page    int                         `json:"page"`
}

// Conversations lists the viewer's conversations, most recently active
// first, with counterpart summaries, last-message previews, and unread
// counts resolved in batch.
func (s *Service) Conversations(ctx context.Context, userID int64, search string, page, perPage int) (*ConversationPage, error) {
	page = ClampPage(page)
	perPage = ClampPerPage(perPage, DefaultListPageSize)

	items, hasMore, err := s.store.ListConversations(ctx, userID, search, page, perPage)
	if err != nil {
		return nil, err
	}
	out := &ConversationPage{Data: []model.ConversationSummary{}, HasMore: hasMore, Page: page}
	if len(items) == 0 {
		return out, nil
	}

	userIDs := map[int64]struct{}{}
	var lastIDs []int64
	for _, it := range items {
		if it.OtherUserID != 0 {
			userIDs[it.OtherUserID] = struct{}{}
		}
		if it.Conversation.LastMessageID != 0 {
			lastIDs = append(lastIDs, it.Conversation.LastMessageID)
		}
	}
	lastMsgs, err := s.store.MessagesByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}
	for _, m := range lastMsgs {
		userIDs[m.AuthorID] = struct{}{}
	}
	users, err := s.store.GetUsers(ctx, keys(userIDs))
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		sum := model.ConversationSummary{
			ID:          it.Conversation.ID,
			Kind:        it.Conversation.Kind,
			Name:        it.Conversation.Name,
			UnreadCount: it.UnreadCount,
			UpdatedAt:   it.Conversation.UpdatedAt,
		}
		if it.OtherUserID != 0 {
			u := s.userSummary(users[it.OtherUserID])
			sum.OtherUser = &u
		}
		if m, ok := lastMsgs[it.Conversation.LastMessageID]; ok {
			sum.LastMessage = &model.MessagePreview{
				ID:             m.ID,
				Body:           m.Body,
				HasAttachments: m.HasAttachments,
				User:           s.userSummary(users[m.AuthorID]),
				CreatedAt:      m.CreatedAt,
				DeletedAt:      m.DeletedAt,
			}
		}
		out.Data = append(out.Data, sum)
	}
	return out, nil
}

// ConversationDetail returns one conversation summary for a participant,
// without a preview or unread count (the list call carries those).
func (s *Service) ConversationDetail(ctx context.Context, userID, conversationID int64) (*model.ConversationSummary, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	sum := &model.ConversationSummary{
		ID:        conv.ID,
		Kind:      conv.Kind,
		Name:      conv.Name,
		UpdatedAt: conv.UpdatedAt,
	}
	if conv.Kind == model.KindDirect {
		otherID, err := s.store.OtherParticipantID(ctx, conversationID, userID)
		if err != nil {
			return nil, err
		}
		other, err := s.store.GetUser(ctx, otherID)
		if err != nil {
			return nil, err
		}
		os := s.userSummary(*other)
		sum.OtherUser = &os
	}
	return sum, nil
}

// ConversationParticipants lists members with their profiles, participants
// only.
func (s *Service) ConversationParticipants(ctx context.Context, userID, conversationID int64) ([]model.UserSummary, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	parts, err := s.store.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserSummary, 0, len(parts))
	for _, p := range parts {
		out = append(out, s.userSummary(users[p.UserID]))
	}
	return out, nil
}
