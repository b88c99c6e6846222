package service

import (
	"context"

	"PMessenger/module/chat/event"
	"PMessenger/module/chat/model"
	"PMessenger/module/chat/policy"
	"PMessenger/tools/errs"
)

// AddContact explicitly links contactID into the caller's contact list and
// opens (or finds) their direct conversation. Adding an existing contact is
// a conflict. The added user is notified on their personal channel.
func (s *Service) AddContact(ctx context.Context, userID, contactID int64) (*model.ContactEntry, int64, error) {
	if contactID == userID {
		return nil, 0, errs.ErrValidation.WithDetail("cannot add yourself as a contact")
	}
	contact, err := s.store.GetUser(ctx, contactID)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock()
	if err := s.store.AddContact(ctx, userID, contactID, now); err != nil {
		return nil, 0, err
	}
	conv, _, err := s.store.CreateDirect(ctx, userID, contactID, now)
	if err != nil {
		return nil, 0, err
	}

	self, err := s.store.GetUser(ctx, userID)
	if err == nil {
		s.dispatcher.Dispatch(ctx, event.Event{
			Channel: policy.UserChannel(contactID),
			Name:    event.ContactAdded,
			Payload: event.ContactAddedPayload{
				ID:             self.ID,
				Name:           self.Name,
				Email:          self.Email,
				AvatarURL:      self.AvatarLocator,
				ConversationID: conv.ID,
			},
		})
	}

	return &model.ContactEntry{User: s.userSummary(*contact), AddedAt: now}, conv.ID, nil
}

// RemoveContact drops the caller's edge only; the reverse edge and the
// conversation history are untouched.
func (s *Service) RemoveContact(ctx context.Context, userID, contactID int64) error {
	return s.store.DeleteContact(ctx, userID, contactID)
}

// ContactPage is one page of the caller's contact list.
type ContactPage struct {
	Data    []model.ContactEntry `json:"data"`
	HasMore bool                 `json:"has_more"`
	Page    int                  `json:"page"`
}

func (s *Service) Contacts(ctx context.Context, userID int64, search string, page, perPage int) (*ContactPage, error) {
	page = ClampPage(page)
	perPage = ClampPerPage(perPage, DefaultListPageSize)
	entries, hasMore, err := s.store.ListContacts(ctx, userID, search, page, perPage)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.ContactEntry{}
	}
	return &ContactPage{Data: entries, HasMore: hasMore, Page: page}, nil
}

// UserPage is one page of user search results.
type UserPage struct {
	Data    []model.UserSummary `json:"data"`
	HasMore bool                `json:"has_more"`
	Page    int                 `json:"page"`
}

// SearchUsers finds users to start a chat with; the caller is excluded.
func (s *Service) SearchUsers(ctx context.Context, userID int64, query string, page, perPage int) (*UserPage, error) {
	page = ClampPage(page)
	perPage = ClampPerPage(perPage, DefaultListPageSize)
	users, hasMore, err := s.store.SearchUsers(ctx, userID, query, page, perPage)
	if err != nil {
		return nil, err
	}
	out := &UserPage{Data: []model.UserSummary{}, HasMore: hasMore, Page: page}
	for _, u := range users {
		out.Data = append(out.Data, s.userSummary(u))
	}
	return out, nil
}

// Watchlist resolves who the caller should see presence for: their
// contacts, anyone who added them, and co-participants, capped at
// model.WatchlistLimit, each flagged with current online state.
func (s *Service) Watchlist(ctx context.Context, userID int64) ([]model.PresenceEntry, error) {
	var ids []int64
	cached := false
	if s.watchCache != nil {
		ids, cached = s.watchCache.GetWatchlist(ctx, userID)
	}
	if !cached {
		var err error
		ids, err = s.store.WatchlistIDs(ctx, userID, model.WatchlistLimit)
		if err != nil {
			return nil, err
		}
		if s.watchCache != nil {
			s.watchCache.SetWatchlist(ctx, userID, ids)
		}
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	online := map[int64]bool{}
	if s.presence != nil {
		online, err = s.presence.OnlineSet(ctx, ids)
		if err != nil {
			return nil, errs.ErrTransientStorage.WithDetail("presence lookup: " + err.Error())
		}
	}
	out := make([]model.PresenceEntry, 0, len(ids))
	for _, id := range ids {
		u, ok := users[id]
		if !ok {
			continue
		}
		out = append(out, model.PresenceEntry{User: s.userSummary(u), Online: online[id]})
	}
	return out, nil
}
