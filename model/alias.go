package model

import "time"

// Alias is an alternate spelling that may refer to an entity in content.
// A banned alias is a forbidden term that must never substitute for the
// canonical name; it is excluded from detection and linking but still
// resolvable for audit purposes.
type Alias struct {
	ID        int64     `json:"id"`
	EntityID  int64     `json:"entity_id"`
	Alias     string    `json:"alias"`
	Banned    bool      `json:"banned"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
