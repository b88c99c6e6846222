package model

import "time"

// Contact is a directed "knows" edge. Not symmetric by default; the first
// direct message between two users auto-creates the missing reciprocal
// edge (the one implicit mutation outside the explicit add-contact call).
type Contact struct {
	OwnerUserID   int64     `json:"owner_user_id"`
	ContactUserID int64     `json:"contact_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ContactEntry is the list projection: the contact's profile plus when the
// edge was created.
type ContactEntry struct {
	User    UserSummary `json:"user"`
	AddedAt time.Time   `json:"added_at"`
}
