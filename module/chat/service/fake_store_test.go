package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"PMessenger/module/chat/model"
	"PMessenger/module/chat/store"
	"PMessenger/tools/errs"
)

// memStore is an in-memory Store with the same observable semantics as the
// pg implementation, so service tests run hermetically.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]model.User
	convs    map[int64]*model.Conversation
	parts    map[int64][]*model.Participant
	msgs     map[int64]*model.Message
	atts     map[int64][]model.Attachment
	receipts map[[2]int64]*model.Receipt // (messageID, userID)
	contacts map[[2]int64]time.Time      // (ownerID, contactID)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]model.User{},
		convs:    map[int64]*model.Conversation{},
		parts:    map[int64][]*model.Participant{},
		msgs:     map[int64]*model.Message{},
		atts:     map[int64][]model.Attachment{},
		receipts: map[[2]int64]*model.Receipt{},
		contacts: map[[2]int64]time.Time{},
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

func (m *memStore) addUser(name, email string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.users[id] = model.User{ID: id, Name: name, Email: email}
	return id
}

func (m *memStore) participant(conversationID, userID int64) *model.Participant {
	for _, p := range m.parts[conversationID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (m *memStore) CreateMessage(_ context.Context, conversationID, authorID int64, body string, atts []model.AttachmentDescriptor, now time.Time) (*model.Message, []model.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return nil, nil, errs.ErrNotFound.WithDetail("conversation")
	}
	msg := &model.Message{
		ID:             m.id(),
		ConversationID: conversationID,
		AuthorID:       authorID,
		Body:           body,
		HasAttachments: len(atts) > 0,
		CreatedAt:      now,
	}
	m.msgs[msg.ID] = msg
	var created []model.Attachment
	for _, d := range atts {
		a := model.Attachment{
			ID:             m.id(),
			MessageID:      msg.ID,
			StorageLocator: d.StorageLocator,
			OriginalName:   d.OriginalName,
			MimeType:       d.MimeType,
			SizeBytes:      d.SizeBytes,
		}
		m.atts[msg.ID] = append(m.atts[msg.ID], a)
		created = append(created, a)
	}
	conv.LastMessageID = msg.ID
	conv.UpdatedAt = now
	if p := m.participant(conversationID, authorID); p != nil {
		if p.LastReadAt == nil || p.LastReadAt.Before(now) {
			t := now
			p.LastReadAt = &t
		}
	}
	out := *msg
	return &out, created, nil
}

func (m *memStore) GetMessage(_ context.Context, id int64) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("message")
	}
	out := *msg
	if out.Deleted() {
		out.Body = ""
	}
	return &out, nil
}

func (m *memStore) EditMessage(_ context.Context, id int64, newBody string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Deleted() {
		return errs.ErrNotFound.WithDetail("message")
	}
	msg.Body = newBody
	t := now
	msg.EditedAt = &t
	return nil
}

func (m *memStore) SoftDeleteMessage(_ context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok || msg.Deleted() {
		return errs.ErrNotFound.WithDetail("message")
	}
	t := now
	msg.DeletedAt = &t
	return nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID, beforeID int64, limit int, textFilter string) ([]model.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.Message
	for _, msg := range m.msgs {
		if msg.ConversationID != conversationID {
			continue
		}
		if beforeID != 0 && msg.ID >= beforeID {
			continue
		}
		// Deleted messages never match a text filter, as in the SQL store.
		if textFilter != "" && (msg.Deleted() || !strings.Contains(strings.ToLower(msg.Body), strings.ToLower(textFilter))) {
			continue
		}
		out := *msg
		if out.Deleted() {
			out.Body = ""
		}
		all = append(all, out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	hasMore := len(all) > limit
	if hasMore {
		all = all[:limit]
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, hasMore, nil
}

func (m *memStore) MessagesByIDs(_ context.Context, ids []int64) (map[int64]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]model.Message{}
	for _, id := range ids {
		if msg, ok := m.msgs[id]; ok {
			c := *msg
			if c.Deleted() {
				c.Body = ""
			}
			out[id] = c
		}
	}
	return out, nil
}

func (m *memStore) AttachmentsByMessages(_ context.Context, messageIDs []int64) (map[int64][]model.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64][]model.Attachment{}
	for _, id := range messageIDs {
		if as := m.atts[id]; len(as) > 0 {
			out[id] = append([]model.Attachment(nil), as...)
		}
	}
	return out, nil
}

func (m *memStore) GetAttachment(_ context.Context, id int64) (*model.Attachment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for msgID, as := range m.atts {
		for _, a := range as {
			if a.ID == id {
				out := a
				return &out, m.msgs[msgID].ConversationID, nil
			}
		}
	}
	return nil, 0, errs.ErrNotFound.WithDetail("attachment")
}

func (m *memStore) UpsertReceipt(_ context.Context, messageID, userID int64, status string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertReceiptLocked(messageID, userID, status, now)
	return nil
}

func (m *memStore) upsertReceiptLocked(messageID, userID int64, status string, now time.Time) bool {
	key := [2]int64{messageID, userID}
	r, ok := m.receipts[key]
	if !ok {
		m.receipts[key] = &model.Receipt{
			MessageID: messageID, UserID: userID, Status: status,
			CreatedAt: now, UpdatedAt: now,
		}
		return true
	}
	if model.ReceiptRank(status) > model.ReceiptRank(r.Status) {
		r.Status = status
		r.UpdatedAt = now
		return true
	}
	return false
}

func (m *memStore) MarkDeliveredForMessages(_ context.Context, messageIDs []int64, userID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range messageIDs {
		key := [2]int64{id, userID}
		if _, ok := m.receipts[key]; !ok {
			m.receipts[key] = &model.Receipt{
				MessageID: id, UserID: userID, Status: model.ReceiptDelivered,
				CreatedAt: now, UpdatedAt: now,
			}
		}
	}
	return nil
}

func (m *memStore) ReceiptsForMessages(_ context.Context, messageIDs []int64, userID int64) (map[int64]model.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]model.Receipt{}
	for _, id := range messageIDs {
		if r, ok := m.receipts[[2]int64{id, userID}]; ok {
			out[id] = *r
		}
	}
	return out, nil
}

func (m *memStore) MarkReadThrough(_ context.Context, conversationID, userID, upTo int64, now time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []int64
	for _, msg := range m.msgs {
		if msg.ConversationID != conversationID || msg.AuthorID == userID || msg.ID > upTo {
			continue
		}
		if m.upsertReceiptLocked(msg.ID, userID, model.ReceiptRead, now) {
			changed = append(changed, msg.ID)
		}
	}
	if p := m.participant(conversationID, userID); p != nil {
		if p.LastReadAt == nil || p.LastReadAt.Before(now) {
			t := now
			p.LastReadAt = &t
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })
	return changed, nil
}

func (m *memStore) CreateDirect(_ context.Context, userA, userB int64, now time.Time) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.convs {
		if c.Kind != model.KindDirect {
			continue
		}
		if m.participant(id, userA) != nil && m.participant(id, userB) != nil {
			out := *c
			return &out, false, nil
		}
	}
	c := &model.Conversation{ID: m.id(), Kind: model.KindDirect, CreatedAt: now, UpdatedAt: now}
	m.convs[c.ID] = c
	m.parts[c.ID] = []*model.Participant{
		{ConversationID: c.ID, UserID: userA, Role: model.RoleMember, JoinedAt: now},
		{ConversationID: c.ID, UserID: userB, Role: model.RoleMember, JoinedAt: now},
	}
	out := *c
	return &out, true, nil
}

func (m *memStore) CreateGroup(_ context.Context, name string, creatorID int64, memberIDs []int64, now time.Time) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Conversation{ID: m.id(), Kind: model.KindGroup, Name: name, CreatedAt: now, UpdatedAt: now}
	m.convs[c.ID] = c
	m.parts[c.ID] = []*model.Participant{{ConversationID: c.ID, UserID: creatorID, Role: model.RoleAdmin, JoinedAt: now}}
	for _, id := range memberIDs {
		if id == creatorID || m.participant(c.ID, id) != nil {
			continue
		}
		m.parts[c.ID] = append(m.parts[c.ID], &model.Participant{ConversationID: c.ID, UserID: id, Role: model.RoleMember, JoinedAt: now})
	}
	out := *c
	return &out, nil
}

func (m *memStore) GetConversation(_ context.Context, id int64) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("conversation")
	}
	out := *c
	return &out, nil
}

func (m *memStore) ListConversations(_ context.Context, userID int64, search string, page, perPage int) ([]store.ConversationListItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []store.ConversationListItem
	for id, c := range m.convs {
		p := m.participant(id, userID)
		if p == nil {
			continue
		}
		it := store.ConversationListItem{Conversation: *c}
		if c.Kind == model.KindDirect {
			for _, other := range m.parts[id] {
				if other.UserID != userID {
					it.OtherUserID = other.UserID
				}
			}
		}
		if search != "" {
			name := c.Name
			if it.OtherUserID != 0 {
				name = m.users[it.OtherUserID].Name
			}
			if !strings.Contains(strings.ToLower(name), strings.ToLower(search)) {
				continue
			}
		}
		lastRead := time.Time{}
		if p.LastReadAt != nil {
			lastRead = *p.LastReadAt
		}
		for _, msg := range m.msgs {
			if msg.ConversationID == id && msg.AuthorID != userID && msg.CreatedAt.After(lastRead) {
				it.UnreadCount++
			}
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Conversation, items[j].Conversation
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	offset := (page - 1) * perPage
	if offset >= len(items) {
		return nil, false, nil
	}
	items = items[offset:]
	hasMore := len(items) > perPage
	if hasMore {
		items = items[:perPage]
	}
	return items, hasMore, nil
}

func (m *memStore) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participant(conversationID, userID) != nil, nil
}

func (m *memStore) Participants(_ context.Context, conversationID int64) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Participant
	for _, p := range m.parts[conversationID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) OtherParticipantID(_ context.Context, conversationID, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parts[conversationID] {
		if p.UserID != userID {
			return p.UserID, nil
		}
	}
	return 0, errs.ErrNotFound.WithDetail("participant")
}

func (m *memStore) EnsureContact(_ context.Context, ownerID, contactID int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{ownerID, contactID}
	if _, ok := m.contacts[key]; ok {
		return false, nil
	}
	m.contacts[key] = now
	return true, nil
}

func (m *memStore) AddContact(ctx context.Context, ownerID, contactID int64, now time.Time) error {
	created, err := m.EnsureContact(ctx, ownerID, contactID, now)
	if err != nil {
		return err
	}
	if !created {
		return errs.ErrConflict.WithDetail("contact already exists")
	}
	return nil
}

func (m *memStore) DeleteContact(_ context.Context, ownerID, contactID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{ownerID, contactID}
	if _, ok := m.contacts[key]; !ok {
		return errs.ErrNotFound.WithDetail("contact")
	}
	delete(m.contacts, key)
	return nil
}

func (m *memStore) ListContacts(_ context.Context, ownerID int64, search string, page, perPage int) ([]model.ContactEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ContactEntry
	for key, at := range m.contacts {
		if key[0] != ownerID {
			continue
		}
		u := m.users[key[1]]
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), strings.ToLower(search)) &&
			!strings.Contains(strings.ToLower(u.Email), strings.ToLower(search)) {
			continue
		}
		out = append(out, model.ContactEntry{
			User:    model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email},
			AddedAt: at,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.After(out[j].AddedAt)
		}
		return out[i].User.ID < out[j].User.ID
	})
	offset := (page - 1) * perPage
	if offset >= len(out) {
		return nil, false, nil
	}
	out = out[offset:]
	hasMore := len(out) > perPage
	if hasMore {
		out = out[:perPage]
	}
	return out, hasMore, nil
}

func (m *memStore) WatchlistIDs(_ context.Context, userID int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[int64]struct{}{}
	for key := range m.contacts {
		if key[0] == userID {
			set[key[1]] = struct{}{}
		}
		if key[1] == userID {
			set[key[0]] = struct{}{}
		}
	}
	for id := range m.convs {
		if m.participant(id, userID) == nil {
			continue
		}
		for _, p := range m.parts[id] {
			set[p.UserID] = struct{}{}
		}
	}
	delete(set, userID)
	var out []int64
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("user")
	}
	return &u, nil
}

func (m *memStore) GetUsers(_ context.Context, ids []int64) (map[int64]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memStore) SearchUsers(_ context.Context, selfID int64, query string, page, perPage int) ([]model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if u.ID == selfID {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) &&
			!strings.Contains(strings.ToLower(u.Email), strings.ToLower(query)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	offset := (page - 1) * perPage
	if offset >= len(out) {
		return nil, false, nil
	}
	out = out[offset:]
	hasMore := len(out) > perPage
	if hasMore {
		out = out[:perPage]
	}
	return out, hasMore, nil
}

var _ Store = (*memStore)(nil)
