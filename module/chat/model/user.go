package model

// User identity is owned by the external auth provider; the engine stores a
// projection (display name, avatar locator) and references users by id.
type User struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	AvatarLocator string `json:"-"`
}

// UserSummary is the embedded author/contact projection used in payloads.
type UserSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}
