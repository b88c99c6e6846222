package chat

import "sync"

// Hub indexes this node's clients by subscribed channel. Subscriptions are
// node-local; cross-node reach comes from every node consuming the same
// bus wildcard.
type Hub struct {
	mu        sync.RWMutex
	byChannel map[string]map[*Client]struct{}
	byClient  map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byChannel: make(map[string]map[*Client]struct{}),
		byClient:  make(map[*Client]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byChannel[channel] == nil {
		h.byChannel[channel] = make(map[*Client]struct{})
	}
	h.byChannel[channel][c] = struct{}{}
	if h.byClient[c] == nil {
		h.byClient[c] = make(map[string]struct{})
	}
	h.byClient[c][channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c, channel)
}

// Remove detaches the client from every channel, on disconnect.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.byClient[c] {
		h.dropLocked(c, channel)
	}
}

func (h *Hub) dropLocked(c *Client, channel string) {
	if set := h.byChannel[channel]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byChannel, channel)
		}
	}
	if set := h.byClient[c]; set != nil {
		delete(set, channel)
		if len(set) == 0 {
			delete(h.byClient, c)
		}
	}
}

// Clients snapshots the subscribers of one channel for fanout.
func (h *Hub) Clients(channel string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.byChannel[channel]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
