package model

// WatchlistLimit caps how many users one watchlist call resolves.
const WatchlistLimit = 100

// PresenceEntry is one watchlist row: a watched user and whether they are
// currently online per the presence store.
type PresenceEntry struct {
	User   UserSummary `json:"user"`
	Online bool        `json:"online"`
}
